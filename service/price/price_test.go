package price

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	table Table
	err   error
	calls int
	asked [][]string
}

func (s *stubService) Prices(ctx context.Context, symbols ...string) (Table, error) {
	s.calls++
	s.asked = append(s.asked, symbols)
	if s.err != nil {
		return nil, s.err
	}
	out := Table{}
	for _, sym := range symbols {
		if p, ok := s.table[sym]; ok {
			out[sym] = p
		}
	}
	return out, nil
}

func TestTable(t *testing.T) {
	a := assert.New(t)

	table := Table{"OSMO": 0.5}
	a.Equal(0.5, table.USD("osmo"))
	a.Equal(0.0, table.USD("STARS"))

	table.Merge(Table{"OSMO": 99, "STARS": 0.01})
	a.Equal(0.5, table.USD("OSMO"))
	a.Equal(0.01, table.USD("STARS"))
}

func TestFallbackService(t *testing.T) {
	ctx := context.Background()

	t.Run("fills missing symbols from fallback", func(t *testing.T) {
		primary := &stubService{table: Table{"OSMO": 0.5}}
		fallback := &stubService{table: Table{"STARS": 0.01}}

		got, err := FallbackService{Primary: primary, Fallback: fallback}.Prices(ctx, "OSMO", "STARS")
		require.NoError(t, err)
		assert.Equal(t, Table{"OSMO": 0.5, "STARS": 0.01}, got)
		assert.Equal(t, []string{"STARS"}, fallback.asked[0])
	})

	t.Run("total primary failure degrades to fallback", func(t *testing.T) {
		primary := &stubService{err: errors.New("rate limited")}
		fallback := &stubService{table: Table{"OSMO": 0.5}}

		got, err := FallbackService{Primary: primary, Fallback: fallback}.Prices(ctx, "OSMO")
		require.NoError(t, err)
		assert.Equal(t, Table{"OSMO": 0.5}, got)
	})

	t.Run("partial table survives fallback failure", func(t *testing.T) {
		primary := &stubService{table: Table{"OSMO": 0.5}}
		fallback := &stubService{err: errors.New("down")}

		got, err := FallbackService{Primary: primary, Fallback: fallback}.Prices(ctx, "OSMO", "STARS")
		require.NoError(t, err)
		assert.Equal(t, Table{"OSMO": 0.5}, got)
	})
}

func TestCachedService(t *testing.T) {
	ctx := context.Background()

	t.Run("second lookup within the TTL hits the cache", func(t *testing.T) {
		inner := &stubService{table: Table{"OSMO": 0.5}}
		s := NewCachedService(inner, time.Minute)

		got, err := s.Prices(ctx, "osmo")
		require.NoError(t, err)
		assert.Equal(t, 0.5, got.USD("OSMO"))

		_, err = s.Prices(ctx, "OSMO")
		require.NoError(t, err)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("only misses reach the inner service", func(t *testing.T) {
		inner := &stubService{table: Table{"OSMO": 0.5, "STARS": 0.01}}
		s := NewCachedService(inner, time.Minute)

		_, err := s.Prices(ctx, "OSMO")
		require.NoError(t, err)

		_, err = s.Prices(ctx, "OSMO", "STARS")
		require.NoError(t, err)
		require.Len(t, inner.asked, 2)
		assert.Equal(t, []string{"STARS"}, inner.asked[1])
	})
}

func TestBoneOracleService(t *testing.T) {
	ctx := context.Background()

	t.Run("non-oracle symbols pass through to the underlying service", func(t *testing.T) {
		inner := &stubService{table: Table{"OSMO": 0.5, "STARS": 0.01}}
		s := NewCachedService(NewBoneOracleService(nil, inner), time.Minute)

		got, err := s.Prices(ctx, "OSMO", "STARS")
		require.NoError(t, err)
		assert.Equal(t, 0.5, got.USD("OSMO"))
		assert.Equal(t, 0.01, got.USD("STARS"))
	})

	t.Run("oracle symbols price as rate times underlying", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"redemption_rate":"1.2"}`))
		}))
		defer srv.Close()

		orig := boneOracleEndpoints
		boneOracleEndpoints = map[string]struct {
			URL        string
			Underlying string
		}{
			"BOSMO": {URL: srv.URL, Underlying: "OSMO"},
		}
		defer func() { boneOracleEndpoints = orig }()

		inner := &stubService{table: Table{"OSMO": 0.5, "STARS": 0.01}}
		got, err := NewBoneOracleService(srv.Client(), inner).Prices(ctx, "BOSMO", "STARS")
		require.NoError(t, err)
		assert.InDelta(t, 0.6, got.USD("BOSMO"), 1e-9)
		assert.Equal(t, 0.01, got.USD("STARS"))
	})
}
