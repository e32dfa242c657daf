package price

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultTTL is how long a fetched price stays fresh.
const DefaultTTL = 5 * time.Minute

// CachedService fronts another Service with a TTL cache so repeated valuation
// passes within a fetch cycle hit the network once per symbol.
type CachedService struct {
	inner Service
	cache *gocache.Cache
}

func NewCachedService(inner Service, ttl time.Duration) *CachedService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedService{inner: inner, cache: gocache.New(ttl, 2*ttl)}
}

func (s *CachedService) Prices(ctx context.Context, symbols ...string) (Table, error) {
	t := make(Table, len(symbols))
	missing := make([]string, 0)
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		if p, ok := s.cache.Get(sym); ok {
			t[sym] = p.(float64)
		} else {
			missing = append(missing, sym)
		}
	}
	if len(missing) == 0 {
		return t, nil
	}

	fetched, err := s.inner.Prices(ctx, missing...)
	if err != nil {
		if len(t) > 0 {
			return t, nil
		}
		return nil, err
	}
	for sym, p := range fetched {
		s.cache.SetDefault(sym, p)
		t[sym] = p
	}
	return t, nil
}
