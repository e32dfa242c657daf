package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cosmofolio/go-cosmofolio/env"
	"github.com/cosmofolio/go-cosmofolio/service/logger"
	"github.com/cosmofolio/go-cosmofolio/service/multichain"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/backbone"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/common"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/dao"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/evm"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/intergaze"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/lcd"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/stargaze"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/superbolt"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
	"github.com/cosmofolio/go-cosmofolio/service/reqcache"
	"github.com/cosmofolio/go-cosmofolio/util/retry"
)

func init() {
	for _, chain := range persist.AllChains() {
		env.RegisterValidation("LCD_URL_"+chain.EnvName(), "")
	}
}

// lcdConfigs is the default chain registry: one LCD endpoint plus the native
// asset per Cosmos chain. LCD_URL_<CHAIN> overrides the endpoint.
func lcdConfigs() []lcd.Config {
	configs := []lcd.Config{
		{
			Chain:  persist.ChainStargaze,
			LCDURL: "https://rest.stargaze-apis.com",
			Assets: []lcd.AssetConfig{{Denom: "ustars", Symbol: "STARS", Decimals: 6, IsNative: true, OriginChain: persist.ChainStargaze}},
		},
		{
			Chain:  persist.ChainOsmosis,
			LCDURL: "https://lcd.osmosis.zone",
			Assets: []lcd.AssetConfig{
				{Denom: "uosmo", Symbol: "OSMO", Decimals: 6, IsNative: true, OriginChain: persist.ChainOsmosis},
				{Denom: "ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4", Symbol: "USDC", Decimals: 6, OriginChain: persist.ChainOsmosis},
			},
		},
		{
			Chain:    persist.ChainInjective,
			LCDURL:   "https://sentry.lcd.injective.network",
			Assets:   []lcd.AssetConfig{{Denom: "inj", Symbol: "INJ", Decimals: 18, IsNative: true, OriginChain: persist.ChainInjective}},
			UseRelay: true,
		},
		{
			Chain:  persist.ChainInitia,
			LCDURL: "https://rest.initia.xyz",
			Assets: []lcd.AssetConfig{{Denom: "uinit", Symbol: "INIT", Decimals: 6, IsNative: true, OriginChain: persist.ChainInitia}},
		},
		{
			Chain:  persist.ChainNeutron,
			LCDURL: "https://rest-kralum.neutron-1.neutron.org",
			Assets: []lcd.AssetConfig{{Denom: "untrn", Symbol: "NTRN", Decimals: 6, IsNative: true, OriginChain: persist.ChainNeutron}},
		},
		{
			Chain:  persist.ChainCosmosHub,
			LCDURL: "https://rest.cosmos.directory/cosmoshub",
			Assets: []lcd.AssetConfig{{Denom: "uatom", Symbol: "ATOM", Decimals: 6, IsNative: true, OriginChain: persist.ChainCosmosHub}},
		},
		{
			Chain:    persist.ChainDungeon,
			LCDURL:   "https://rest.cosmos.directory/dungeonchain",
			Assets:   []lcd.AssetConfig{{Denom: "udgn", Symbol: "DGN", Decimals: 6, IsNative: true, OriginChain: persist.ChainDungeon}},
			UseRelay: true,
		},
		{
			Chain:  persist.ChainOmniFlix,
			LCDURL: "https://rest.omniflix.network",
			Assets: []lcd.AssetConfig{{Denom: "uflix", Symbol: "FLIX", Decimals: 6, IsNative: true, OriginChain: persist.ChainOmniFlix}},
		},
	}
	for i := range configs {
		if override := env.GetStringOrDefault("LCD_URL_"+configs[i].Chain.EnvName(), ""); override != "" {
			configs[i].LCDURL = override
		}
	}
	return configs
}

func newPriceService(httpClient *http.Client) price.Service {
	var base price.Service
	gecko, err := price.NewCoinGeckoService(httpClient)
	if err != nil {
		logger.For(nil).WithError(err).Warn("coingecko unavailable, pricing via defillama only")
		base = price.NewDefiLlamaService(httpClient)
	} else {
		base = price.FallbackService{Primary: gecko, Fallback: price.NewDefiLlamaService(httpClient)}
	}
	withOracle := price.NewBoneOracleService(httpClient, base)
	return price.NewCachedService(withOracle, 5*time.Minute)
}

// NewPortfolioProvider wires every chain adapter, the staked-NFT resolver,
// the marketplace offer sources and the price oracles into one assembler.
// The returned cleanup drains the worker pool.
func NewPortfolioProvider(ctx context.Context, httpClient *http.Client, hooks multichain.Hooks) (*multichain.Provider, func(), error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	retryer := retry.New(httpClient)
	cache := reqcache.New()

	lcds := map[persist.Chain]*lcd.Provider{}
	for _, cfg := range lcdConfigs() {
		lcds[cfg.Chain] = lcd.NewProvider(cfg, httpClient, retryer, cache)
	}

	sg := stargaze.NewProvider(httpClient, env.GetStringOrDefault("STARGAZE_GRAPHQL_URL", ""))
	sb := superbolt.NewProvider(httpClient, env.GetStringOrDefault("SUPERBOLT_GRAPHQL_URL", ""))
	ig := intergaze.NewProvider(httpClient, env.GetStringOrDefault("INTERGAZE_API_URL", ""))

	backboneURL := env.GetStringOrDefault("BACKBONE_API_URL", "")
	backbones := map[persist.Chain]*backbone.Provider{}
	for _, chain := range []persist.Chain{persist.ChainOsmosis, persist.ChainInjective, persist.ChainDungeon} {
		cfg, ok := backbone.ConfigForChain(chain)
		if !ok {
			continue
		}
		backbones[chain] = backbone.NewProvider(cfg, retryer, backboneURL)
	}

	formaProvider, err := evm.NewProvider(ctx, httpClient, env.GetStringOrDefault("FORMA_RPC_URL", ""), env.GetStringOrDefault("FORMA_INDEXER_URL", ""))
	if err != nil {
		return nil, nil, err
	}

	resolver := dao.NewResolver(dao.DefaultRegistry(), httpClient, env.GetStringOrDefault("DAO_INDEXER_URL", ""), cache)
	for chain, provider := range lcds {
		resolver.RegisterChain(chain, provider, provider)
	}

	chains := multichain.ProviderLookup{
		persist.ChainStargaze: {
			Holdings: multichain.FallbackHoldingsProvider{Primary: sg, Fallback: lcds[persist.ChainStargaze]},
			Balances: lcds[persist.ChainStargaze],
			Metadata: lcds[persist.ChainStargaze],
		},
		persist.ChainNeutron: {
			Holdings: multichain.FallbackHoldingsProvider{Primary: sb, Fallback: lcds[persist.ChainNeutron]},
			Balances: lcds[persist.ChainNeutron],
			Metadata: lcds[persist.ChainNeutron],
		},
		persist.ChainInitia: {
			Holdings: multichain.FallbackHoldingsProvider{Primary: ig, Fallback: lcds[persist.ChainInitia]},
			Balances: lcds[persist.ChainInitia],
			Metadata: lcds[persist.ChainInitia],
		},
		persist.ChainCosmosHub: {
			Balances: lcds[persist.ChainCosmosHub],
		},
		persist.ChainOmniFlix: {
			Holdings: lcds[persist.ChainOmniFlix],
			Balances: lcds[persist.ChainOmniFlix],
			Metadata: lcds[persist.ChainOmniFlix],
		},
		persist.ChainForma: {
			Holdings: formaProvider,
			Balances: formaProvider,
		},
	}
	// wallet-held tokens come from the LCD, escrowed listings from Backbone
	for _, chain := range []persist.Chain{persist.ChainOsmosis, persist.ChainInjective, persist.ChainDungeon} {
		chains[chain] = multichain.ChainAdapter{
			Holdings: multichain.CombinedHoldingsProvider{Sources: []common.HoldingsFetcher{
				lcds[chain],
				backbones[chain],
			}},
			Balances: lcds[chain],
			Metadata: lcds[chain],
		}
	}

	offers := []multichain.OffersSource{
		{Chain: persist.ChainStargaze, Fetcher: sg},
		{Chain: persist.ChainNeutron, Fetcher: sb},
		{Chain: persist.ChainInitia, Fetcher: ig},
	}
	for _, chain := range []persist.Chain{persist.ChainOsmosis, persist.ChainInjective, persist.ChainDungeon} {
		offers = append(offers, multichain.OffersSource{Chain: chain, Fetcher: backbones[chain]})
	}

	prices := newPriceService(httpClient)

	provider := multichain.NewProvider(chains, resolver, offers, prices, cache, hooks)
	cleanup := func() {
		provider.StopWait()
		formaProvider.Close()
	}
	return provider, cleanup, nil
}
