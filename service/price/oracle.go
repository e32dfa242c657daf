package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cosmofolio/go-cosmofolio/service/logger"
)

// boneOracleEndpoints are the bespoke Backbone Labs oracles for their
// liquid-staked tokens. Each returns the redemption rate against the
// underlying asset, so the USD price is rate * underlying price.
var boneOracleEndpoints = map[string]struct {
	URL        string
	Underlying string
}{
	"BOSMO": {URL: "https://osmosis.backbonelabs.io/api/v1/oracle/bosmo", Underlying: "OSMO"},
	"BINJ":  {URL: "https://injective.backbonelabs.io/api/v1/oracle/binj", Underlying: "INJ"},
}

// BoneOracleService prices bOSMO/bINJ from the Backbone oracle endpoints.
// Every other symbol is delegated to the underlying service, so it can sit
// in the middle of a service chain.
type BoneOracleService struct {
	hc         *http.Client
	underlying Service
}

func NewBoneOracleService(httpClient *http.Client, underlying Service) *BoneOracleService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BoneOracleService{httpClient, underlying}
}

func (s *BoneOracleService) Prices(ctx context.Context, symbols ...string) (Table, error) {
	boned := make([]string, 0, len(symbols))
	plain := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		if _, ok := boneOracleEndpoints[sym]; ok {
			boned = append(boned, sym)
		} else {
			plain = append(plain, sym)
		}
	}

	t := make(Table, len(symbols))
	if len(plain) > 0 {
		base, err := s.underlying.Prices(ctx, plain...)
		if err != nil {
			if len(boned) == 0 {
				return nil, err
			}
			logger.For(ctx).WithError(err).Warn("failed to price non-oracle symbols")
		} else {
			t.Merge(base)
		}
	}

	for _, sym := range boned {
		oracle := boneOracleEndpoints[sym]

		rate, err := s.redemptionRate(ctx, oracle.URL)
		if err != nil {
			logger.For(ctx).WithError(err).Warnf("failed to get %s redemption rate", sym)
			continue
		}

		base, err := s.underlying.Prices(ctx, oracle.Underlying)
		if err != nil {
			logger.For(ctx).WithError(err).Warnf("failed to price %s underlying %s", sym, oracle.Underlying)
			continue
		}
		t[sym] = rate * base.USD(oracle.Underlying)
	}
	return t, nil
}

func (s *BoneOracleService) redemptionRate(ctx context.Context, endpoint string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("oracle endpoint: %s", resp.Status)
	}

	var body struct {
		RedemptionRate json.Number `json:"redemption_rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode body: %w", err)
	}
	return strconv.ParseFloat(body.RedemptionRate.String(), 64)
}
