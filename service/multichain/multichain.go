// Package multichain orchestrates the per-chain adapters into one portfolio
// view. It owns the request cache, the fetched-address bookkeeping and the
// generation counter that fences late results from a previous fetch cycle
// out of the current one.
package multichain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/cosmofolio/go-cosmofolio/env"
	"github.com/cosmofolio/go-cosmofolio/service/logger"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/dao"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
	"github.com/cosmofolio/go-cosmofolio/service/reqcache"
	sentryutil "github.com/cosmofolio/go-cosmofolio/service/sentry"
	"github.com/cosmofolio/go-cosmofolio/util"
)

func init() {
	env.RegisterValidation("MAX_CONCURRENT_FETCHES", "")
}

// State is the assembler's fetch-cycle lifecycle.
type State int

const (
	StateIdle State = iota
	StateDispatching
	StatePartiallyLoaded
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateDispatching:
		return "dispatching"
	case StatePartiallyLoaded:
		return "partially_loaded"
	case StateComplete:
		return "complete"
	default:
		return "idle"
	}
}

// Hooks are callback notifications fired on state transitions for the host
// UI. Nil hooks are skipped. No return value is expected.
type Hooks struct {
	OnAddressFetched         func(chain persist.Chain)
	OnFetchStatusChange      func(isFetching bool)
	OnInitialNFTLoadComplete func()
	OnManualAddressRemoved   func(chain persist.Chain)
}

// PortfolioSnapshot is the consumer-facing view, safe to retain: slices are
// copies of the assembler's state at call time.
type PortfolioSnapshot struct {
	State    State                                        `json:"state"`
	NFTs     []persist.NFTRecord                          `json:"nfts"`
	Balances map[persist.Chain]persist.ChainBalanceSnapshot `json:"balances"`
	Offers   persist.OffersSnapshot                       `json:"offers"`
}

// Provider drives adapters, the staked resolver and the offers sources
// concurrently and reconciles their output into a running record set.
type Provider struct {
	Chains ProviderLookup
	Staked *dao.Resolver
	Offers []OffersSource
	Prices price.Service
	Cache  *reqcache.Cache
	Hooks  Hooks
	SortBy SortCriterion

	pool *workerpool.WorkerPool

	mu            sync.Mutex
	generation    uint64
	fetched       map[string]bool
	records       []persist.NFTRecord
	balances      map[persist.Chain]*persist.ChainBalanceSnapshot
	offers        persist.OffersSnapshot
	offersFetched bool
	state         State
	dispatched    int
	completed     int
	pendingChain  map[persist.Chain]int
	initialDone   bool
}

// NewProvider creates an assembler over the given adapters. The worker pool
// bounds (chain, address) task fan-out; individual upstream calls are
// additionally throttled by the retryer's per-host limiters.
func NewProvider(chains ProviderLookup, staked *dao.Resolver, offers []OffersSource, prices price.Service, cache *reqcache.Cache, hooks Hooks) *Provider {
	if cache == nil {
		cache = reqcache.New()
	}
	size := env.GetIntOrDefault("MAX_CONCURRENT_FETCHES", 8)
	return &Provider{
		Chains:       chains,
		Staked:       staked,
		Offers:       offers,
		Prices:       prices,
		Cache:        cache,
		Hooks:        hooks,
		pool:         workerpool.New(size),
		fetched:      map[string]bool{},
		balances:     map[persist.Chain]*persist.ChainBalanceSnapshot{},
		pendingChain: map[persist.Chain]int{},
	}
}

// fetchToken marks one (chain, address) dispatch in the fetched-address set.
func fetchToken(key persist.AddressKey, chain persist.Chain, address persist.Address) string {
	if key.IsManual() {
		return fmt.Sprintf("%s-manual-%s", chain, address)
	}
	return fmt.Sprintf("%s-%s", chain, address)
}

// SyncAddresses diffs addrs against the fetched-address set and dispatches
// one task per not-yet-fetched (chain, address) pair. Re-evaluating the same
// map (re-render, manual address added alongside existing ones) never
// re-dispatches pairs already fetched. Returns the number of newly
// dispatched tasks.
func (p *Provider) SyncAddresses(ctx context.Context, addrs persist.AddressMap) int {
	type task struct {
		chain   persist.Chain
		address persist.Address
	}

	p.mu.Lock()
	gen := p.generation
	var tasks []task
	for key, address := range addrs {
		chain, ok := key.Chain()
		if !ok {
			logger.For(ctx).Warnf("unknown chain in address key %q", key)
			continue
		}
		if _, wired := p.Chains[chain]; !wired {
			continue
		}
		token := fetchToken(key, chain, address)
		if p.fetched[token] {
			continue
		}
		p.fetched[token] = true
		p.pendingChain[chain]++
		p.dispatched++
		tasks = append(tasks, task{chain: chain, address: address})
	}
	notifyFetching := false
	if len(tasks) > 0 && p.state != StateDispatching {
		notifyFetching = p.state == StateIdle || p.state == StateComplete
		p.state = StateDispatching
	}
	p.mu.Unlock()

	if len(tasks) == 0 {
		return 0
	}

	// fired before any task can complete, so callers always observe
	// fetching=true before fetching=false
	if notifyFetching && p.Hooks.OnFetchStatusChange != nil {
		p.Hooks.OnFetchStatusChange(true)
	}

	prices := p.priceTable(ctx)

	for _, t := range tasks {
		t := t
		p.pool.Submit(func() {
			p.runTask(ctx, gen, t.chain, t.address, prices)
		})
	}

	// offers are refetched wholesale once, on first load
	p.fetchOffersOnce(ctx, gen, addrs, prices)

	return len(tasks)
}

// runTask fetches one (chain, address) pair: wallet-held and listed NFTs,
// DAO-staked augmentation, and fungible balances. Every failure inside the
// task degrades that sub-fetch to empty; the task itself always completes.
func (p *Provider) runTask(ctx context.Context, gen uint64, chain persist.Chain, address persist.Address, prices price.Table) {
	defer util.Track(fmt.Sprintf("fetch %s %s", chain, address), time.Now())
	adapter := p.Chains[chain]

	var records []persist.NFTRecord
	if adapter.Holdings != nil {
		held, err := adapter.Holdings.GetNFTsByWalletAddress(ctx, address, prices)
		if err != nil {
			logger.For(ctx).WithError(err).Warnf("failed to fetch %s holdings for %s", chain, address)
			sentryutil.ReportError(ctx, err)
		} else {
			records = held
		}
	}

	if p.Staked != nil {
		staked := p.Staked.ResolveStaked(ctx, chain, address, prices)
		records = MergeRecords(records, staked)
	}

	var assets []persist.AssetBalance
	if adapter.Balances != nil {
		fetched, err := adapter.Balances.GetBalancesByWalletAddress(ctx, address, prices)
		if err != nil {
			logger.For(ctx).WithError(err).Warnf("failed to fetch %s balances for %s", chain, address)
		} else {
			assets = fetched
		}
	}

	p.commit(ctx, gen, chain, records, assets)
}

// commit merges one task's results into the running state. A result from a
// generation older than the current one is dropped silently: the cycle it
// belongs to was reset while it was in flight.
func (p *Provider) commit(ctx context.Context, gen uint64, chain persist.Chain, records []persist.NFTRecord, assets []persist.AssetBalance) {
	p.mu.Lock()

	if gen != p.generation {
		p.mu.Unlock()
		logger.For(ctx).Debugf("dropping stale results for %s from generation %d", chain, gen)
		return
	}

	p.records = MergeRecords(p.records, records)
	SortRecords(p.records, p.SortBy)

	if len(assets) > 0 {
		snap, ok := p.balances[chain]
		if !ok {
			snap = &persist.ChainBalanceSnapshot{Chain: chain}
			p.balances[chain] = snap
		}
		snap.Assets = append(snap.Assets, assets...)
		snap.Normalize()
	}

	p.completed++
	p.pendingChain[chain]--
	chainDone := p.pendingChain[chain] == 0
	allDone := p.completed == p.dispatched
	if allDone {
		p.state = StateComplete
	} else {
		p.state = StatePartiallyLoaded
	}
	firstComplete := allDone && !p.initialDone
	if firstComplete {
		p.initialDone = true
	}
	hooks := p.Hooks
	p.mu.Unlock()

	if chainDone && hooks.OnAddressFetched != nil {
		hooks.OnAddressFetched(chain)
	}
	if allDone {
		if hooks.OnFetchStatusChange != nil {
			hooks.OnFetchStatusChange(false)
		}
		if firstComplete && hooks.OnInitialNFTLoadComplete != nil {
			hooks.OnInitialNFTLoadComplete()
		}
	}
}

// priceTable resolves the USD prices adapters convert valuations with. A
// pricing failure degrades valuations to zero rather than blocking the
// fetch cycle.
func (p *Provider) priceTable(ctx context.Context) price.Table {
	if p.Prices == nil {
		return price.Table{}
	}
	symbols := []string{"STARS", "OSMO", "INJ", "INIT", "NTRN", "ATOM", "DGN", "FLIX", "TIA", "USDC", "BOSMO", "BINJ"}
	table, err := p.Prices.Prices(ctx, symbols...)
	if err != nil {
		logger.For(ctx).WithError(err).Warn("failed to resolve prices, valuations degrade to zero")
		return price.Table{}
	}
	return table
}

// RemoveManualAddress drops the records a removed manual address produced.
// addrs must be the address map after removal; when the chain has no tracked
// addresses left, its staked records are purged per the reconciliation
// heuristic. The removed pair leaves the fetched-address set so re-adding it
// later refetches.
func (p *Provider) RemoveManualAddress(chain persist.Chain, address persist.Address, addrs persist.AddressMap) {
	remaining := len(addrs.EntriesForChain(chain))

	p.mu.Lock()
	p.records = RemoveByAddress(p.records, chain, address, remaining)
	delete(p.fetched, fmt.Sprintf("%s-manual-%s", chain, address))
	hooks := p.Hooks
	p.mu.Unlock()

	if hooks.OnManualAddressRemoved != nil {
		hooks.OnManualAddressRemoved(chain)
	}
}

// Reset clears all state for a disconnect or account switch. In-flight
// tasks keep running but their generation no longer matches, so their
// results are dropped at commit time instead of bleeding into the next
// cycle.
func (p *Provider) Reset() {
	p.mu.Lock()
	p.generation++
	p.fetched = map[string]bool{}
	p.records = nil
	p.balances = map[persist.Chain]*persist.ChainBalanceSnapshot{}
	p.offers = persist.OffersSnapshot{}
	p.offersFetched = false
	p.state = StateIdle
	p.dispatched = 0
	p.completed = 0
	p.pendingChain = map[persist.Chain]int{}
	p.initialDone = false
	p.mu.Unlock()

	p.Cache.Reset()
}

// Snapshot returns a copy of the current portfolio view.
func (p *Provider) Snapshot() PortfolioSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	nfts := make([]persist.NFTRecord, len(p.records))
	copy(nfts, p.records)

	balances := make(map[persist.Chain]persist.ChainBalanceSnapshot, len(p.balances))
	for chain, snap := range p.balances {
		balances[chain] = *snap
	}

	return PortfolioSnapshot{
		State:    p.state,
		NFTs:     nfts,
		Balances: balances,
		Offers:   p.offers,
	}
}

// State returns the assembler's current lifecycle state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// StopWait drains the worker pool. For orderly shutdown in tests and the
// CLI's one-shot mode.
func (p *Provider) StopWait() {
	p.pool.StopWait()
}
