package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	code, err := Normalize(" eur ")
	require.NoError(t, err)
	assert.Equal(t, "EUR", code)

	_, err = Normalize("XYZQ")
	assert.True(t, errors.Is(err, ErrUnknownCurrency))
}

func TestMockProvider_Deterministic(t *testing.T) {
	p := NewMockProvider("USD")
	ctx := context.Background()

	a, err := p.Rate(ctx, "EUR", "2026-01-05")
	require.NoError(t, err)
	b, err := p.Rate(ctx, "EUR", "2026-01-05")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	one, err := p.Rate(ctx, "USD", "2026-01-05")
	require.NoError(t, err)
	assert.True(t, one.Equal(decimal.NewFromInt(1)))

	// within ±2% of the anchor
	assert.True(t, a.GreaterThanOrEqual(decimal.RequireFromString("1.0584")))
	assert.True(t, a.LessThanOrEqual(decimal.RequireFromString("1.1016")))
}

func TestConvert(t *testing.T) {
	got, err := Convert(context.Background(), NewMockProvider("USD"), decimal.NewFromInt(100), "usd", "2026-01-05")
	require.NoError(t, err)
	assert.Equal(t, "100", got.String())

	_, err = Convert(context.Background(), NewMockProvider("USD"), decimal.NewFromInt(1), "??", "2026-01-05")
	assert.Error(t, err)
}

type countingProvider struct{ calls int }

func (c *countingProvider) Rate(context.Context, string, string) (decimal.Decimal, error) {
	c.calls++
	return decimal.RequireFromString("1.5"), nil
}

func TestCachedProvider(t *testing.T) {
	next := &countingProvider{}
	p, err := NewCachedProvider(next, 8)
	require.NoError(t, err)

	ctx := context.Background()
	for range 3 {
		r, err := p.Rate(ctx, "GBP", "2026-02-01")
		require.NoError(t, err)
		assert.Equal(t, "1.5", r.String())
	}
	_, _ = p.Rate(ctx, "GBP", "2026-02-02")
	assert.Equal(t, 2, next.calls)
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2026-01-05", r.URL.Path)
		assert.Equal(t, "EUR", r.URL.Query().Get("from"))
		assert.Equal(t, "USD", r.URL.Query().Get("to"))
		w.Write([]byte(`{"amount":1.0,"base":"EUR","date":"2026-01-05","rates":{"USD":1.0956}}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "USD")
	r, err := p.Rate(context.Background(), "EUR", "2026-01-05")
	require.NoError(t, err)
	assert.Equal(t, "1.0956", r.String())
}

func TestHTTPProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, "USD").Rate(context.Background(), "EUR", "2026-01-05")
	assert.Error(t, err)
}
