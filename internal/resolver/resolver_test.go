package resolver_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"divtracker/internal/provider"
	"divtracker/internal/provider/cache"
	"divtracker/internal/resolver"
)

// fakeProvider scripts Fetch by call number and records call counts.
type fakeProvider struct {
	name string

	mu       sync.Mutex
	calls    int
	inflight int
	maxSeen  int

	fetch func(call int, symbol string) (provider.Quote, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(_ context.Context, symbol string) (provider.Quote, error) {
	f.mu.Lock()
	f.calls++
	f.inflight++
	if f.inflight > f.maxSeen {
		f.maxSeen = f.inflight
	}
	call := f.calls
	f.mu.Unlock()

	q, err := f.fetch(call, symbol)

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()
	return q, err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quoteFrom(name, symbol, price string) provider.Quote {
	return provider.Quote{
		Symbol:    symbol,
		Price:     decimal.RequireFromString(price),
		Currency:  "USD",
		Source:    name,
		FetchedAt: time.Now().UTC(),
		Valid:     true,
	}
}

// quoting always succeeds with the same price.
func quoting(name, price string) *fakeProvider {
	return &fakeProvider{
		name: name,
		fetch: func(_ int, symbol string) (provider.Quote, error) {
			return quoteFrom(name, symbol, price), nil
		},
	}
}

// failing always returns the error built by mkErr.
func failing(name string, mkErr func(symbol string) error) *fakeProvider {
	return &fakeProvider{
		name: name,
		fetch: func(_ int, symbol string) (provider.Quote, error) {
			return provider.Quote{}, mkErr(symbol)
		},
	}
}

func newResolver(cfg resolver.Config, c *cache.Cache, providers ...provider.Provider) *resolver.Resolver {
	return resolver.New(providers, c, cfg, zerolog.Nop())
}

func TestResolve_FreshCacheSkipsProviders(t *testing.T) {
	c := cache.New(time.Minute)
	c.Put(quoteFrom("yahoo", "AAPL", "150"))
	p := quoting("yahoo", "999")
	r := newResolver(resolver.Config{}, c, p)

	q := r.Resolve(context.Background(), " aapl ")

	require.True(t, q.Valid)
	assert.Equal(t, "150", q.Price.String())
	assert.Equal(t, 0, p.callCount())
}

func TestResolve_FallsBackInProviderOrder(t *testing.T) {
	c := cache.New(time.Minute)
	primary := failing("yahoo", func(symbol string) error {
		return provider.NotFound("yahoo", symbol)
	})
	secondary := quoting("stooq", "88.20")
	r := newResolver(resolver.Config{Retries: 1}, c, primary, secondary)

	q := r.Resolve(context.Background(), "SAP")

	require.True(t, q.Valid)
	assert.Equal(t, "stooq", q.Source)
	assert.Equal(t, "88.2", q.Price.String())
	// not-found is final for a provider, no retry
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, secondary.callCount())

	// the fallback result is cached
	r.Resolve(context.Background(), "SAP")
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, secondary.callCount())
}

func TestResolve_RetriesTransientOncePerConfig(t *testing.T) {
	c := cache.New(time.Minute)
	primary := failing("yahoo", func(symbol string) error {
		return provider.Transient("yahoo", symbol, errors.New("connection reset"))
	})
	secondary := quoting("stooq", "42")
	r := newResolver(resolver.Config{Retries: 1}, c, primary, secondary)

	q := r.Resolve(context.Background(), "MSFT")

	require.True(t, q.Valid)
	assert.Equal(t, "stooq", q.Source)
	assert.Equal(t, 2, primary.callCount())
	assert.Equal(t, 1, secondary.callCount())
}

func TestResolve_RateLimitedProviderCoolsDown(t *testing.T) {
	c := cache.New(time.Minute)
	primary := failing("alphavantage", func(symbol string) error {
		return provider.RateLimited("alphavantage", symbol, errors.New("call frequency exceeded"))
	})
	secondary := quoting("stooq", "10")
	cfg := resolver.Config{Retries: 1, Cooldown: 100 * time.Millisecond}
	r := newResolver(cfg, c, primary, secondary)

	r.Resolve(context.Background(), "AAA")
	// rate-limited is final for a provider, no retry
	require.Equal(t, 1, primary.callCount())

	// a different symbol inside the cooldown window skips the provider
	r.Resolve(context.Background(), "BBB")
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 2, secondary.callCount())

	time.Sleep(250 * time.Millisecond)

	// cooldown elapsed, the provider is tried again
	r.Resolve(context.Background(), "CCC")
	assert.Equal(t, 2, primary.callCount())
}

func TestResolve_ServesStaleWhenAllProvidersFail(t *testing.T) {
	c := cache.New(50 * time.Millisecond)
	p := &fakeProvider{
		name: "yahoo",
		fetch: func(call int, symbol string) (provider.Quote, error) {
			if call == 1 {
				return quoteFrom("yahoo", symbol, "150.25"), nil
			}
			return provider.Quote{}, provider.Transient("yahoo", symbol, errors.New("503"))
		},
	}
	r := newResolver(resolver.Config{}, c, p)

	first := r.Resolve(context.Background(), "AAPL")
	require.True(t, first.Valid)
	require.False(t, first.Stale)

	time.Sleep(120 * time.Millisecond)

	second := r.Resolve(context.Background(), "AAPL")
	require.True(t, second.Valid)
	assert.True(t, second.Stale)
	assert.Equal(t, "150.25", second.Price.String())
	assert.Equal(t, "yahoo", second.Source)
	assert.Equal(t, 2, p.callCount())
}

func TestResolve_InvalidWhenNothingKnown(t *testing.T) {
	c := cache.New(time.Minute)
	p := failing("yahoo", func(symbol string) error {
		return provider.NotFound("yahoo", symbol)
	})
	r := newResolver(resolver.Config{}, c, p)

	q := r.Resolve(context.Background(), "nosuch")

	assert.False(t, q.Valid)
	assert.Equal(t, "NOSUCH", q.Symbol)
	assert.Equal(t, provider.SourceNone, q.Source)
	assert.True(t, q.Price.IsZero())
}

func TestResolve_EmptySymbolIsInvalid(t *testing.T) {
	c := cache.New(time.Minute)
	p := quoting("yahoo", "1")
	r := newResolver(resolver.Config{}, c, p)

	q := r.Resolve(context.Background(), "   ")

	assert.False(t, q.Valid)
	assert.Equal(t, 0, p.callCount())
}

func TestResolve_CoalescesConcurrentLookups(t *testing.T) {
	c := cache.New(time.Minute)
	p := &fakeProvider{
		name: "yahoo",
		fetch: func(_ int, symbol string) (provider.Quote, error) {
			time.Sleep(50 * time.Millisecond)
			return quoteFrom("yahoo", symbol, "77"), nil
		},
	}
	r := newResolver(resolver.Config{}, c, p)

	var wg sync.WaitGroup
	quotes := make([]provider.Quote, 8)
	for i := range quotes {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			quotes[i] = r.Resolve(context.Background(), "AAPL")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, p.callCount())
	for _, q := range quotes {
		require.True(t, q.Valid)
		assert.Equal(t, "77", q.Price.String())
	}
}

func TestResolveMany_DedupesSymbols(t *testing.T) {
	c := cache.New(time.Minute)
	p := quoting("yahoo", "5")
	r := newResolver(resolver.Config{}, c, p)

	out := r.ResolveMany(context.Background(), []string{"aapl", " AAPL ", "msft", ""})

	require.Len(t, out, 2)
	assert.True(t, out["AAPL"].Valid)
	assert.True(t, out["MSFT"].Valid)
	assert.Equal(t, 2, p.callCount())
}

func TestResolveMany_BoundsConcurrency(t *testing.T) {
	c := cache.New(time.Minute)
	p := &fakeProvider{
		name: "yahoo",
		fetch: func(_ int, symbol string) (provider.Quote, error) {
			time.Sleep(30 * time.Millisecond)
			return quoteFrom("yahoo", symbol, "1"), nil
		},
	}
	r := newResolver(resolver.Config{Fanout: 2}, c, p)

	out := r.ResolveMany(context.Background(), []string{"A", "B", "C", "D", "E", "F"})

	require.Len(t, out, 6)
	assert.Equal(t, 6, p.callCount())
	p.mu.Lock()
	maxSeen := p.maxSeen
	p.mu.Unlock()
	assert.LessOrEqual(t, maxSeen, 2)
}

func TestProviders_ReportsChainOrder(t *testing.T) {
	c := cache.New(time.Minute)
	r := newResolver(resolver.Config{}, c, quoting("yahoo", "1"), quoting("alphavantage", "2"), quoting("stooq", "3"))

	assert.Equal(t, []string{"yahoo", "alphavantage", "stooq"}, r.Providers())
}
