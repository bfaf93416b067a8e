package resolver

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"divtracker/internal/provider"
	"divtracker/internal/provider/cache"
)

// Config controls fallback behavior across the provider chain.
type Config struct {
	// Retries is how many extra attempts a provider gets after a
	// transient or malformed failure. Not-found and rate-limited
	// failures never retry.
	Retries int
	// Timeout bounds a single provider attempt.
	Timeout time.Duration
	// Cooldown is how long a rate-limited provider is skipped.
	Cooldown time.Duration
	// Fanout caps concurrent resolutions in ResolveMany.
	Fanout int
}

// Resolver walks an ordered provider chain until one yields a quote.
// Resolve never fails: when everything is down it serves the last
// cached quote marked stale, or an invalid marker quote.
type Resolver struct {
	providers []provider.Provider
	cache     *cache.Cache
	cfg       Config
	log       zerolog.Logger

	// coalesce concurrent resolutions per symbol
	sf singleflight.Group

	mu       sync.Mutex
	cooldown map[string]time.Time // key: provider name -> skip until
}

func New(providers []provider.Provider, c *cache.Cache, cfg Config, log zerolog.Logger) *Resolver {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.Fanout <= 0 {
		cfg.Fanout = 4
	}
	return &Resolver{
		providers: providers,
		cache:     c,
		cfg:       cfg,
		log:       log.With().Str("component", "resolver").Logger(),
		cooldown:  make(map[string]time.Time),
	}
}

// Providers returns the chain's provider names in fallback order.
func (r *Resolver) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// Resolve returns a quote for symbol. A fresh cache entry short-circuits
// the chain; otherwise providers are tried in order and the result is
// cached. The returned quote is invalid only when every provider failed
// and nothing was ever cached for the symbol.
func (r *Resolver) Resolve(ctx context.Context, symbol string) provider.Quote {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return provider.Invalid(sym)
	}
	if q, ok := r.cache.Get(sym); ok {
		return q
	}
	v, _, _ := r.sf.Do(sym, func() (any, error) {
		// double-check under the flight; a concurrent caller may have
		// filled the cache while we waited
		if q, ok := r.cache.Get(sym); ok {
			return q, nil
		}
		return r.resolveLive(ctx, sym), nil
	})
	return v.(provider.Quote)
}

// ResolveMany resolves all symbols with bounded concurrency. Duplicates
// collapse onto a single upstream fetch.
func (r *Resolver) ResolveMany(ctx context.Context, symbols []string) map[string]provider.Quote {
	seen := make(map[string]struct{}, len(symbols))
	uniq := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		uniq = append(uniq, sym)
	}

	out := make(map[string]provider.Quote, len(uniq))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.cfg.Fanout)
	for _, sym := range uniq {
		sym := sym
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				out[sym] = provider.Invalid(sym)
				mu.Unlock()
				return
			}
			q := r.Resolve(ctx, sym)
			mu.Lock()
			out[sym] = q
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

func (r *Resolver) resolveLive(ctx context.Context, sym string) provider.Quote {
	for _, p := range r.providers {
		if r.onCooldown(p.Name()) {
			r.log.Debug().Str("provider", p.Name()).Str("symbol", sym).Msg("provider cooling down, skipped")
			continue
		}
		q, err := r.fetchWithRetry(ctx, p, sym)
		if err == nil {
			r.cache.Put(q)
			return q
		}
		switch provider.KindOf(err) {
		case provider.KindNotFound:
			r.log.Debug().Str("provider", p.Name()).Str("symbol", sym).Msg("symbol not found")
		case provider.KindRateLimited:
			r.startCooldown(p.Name())
			r.log.Warn().Str("provider", p.Name()).Str("symbol", sym).
				Dur("cooldown", r.cfg.Cooldown).Msg("provider rate limited")
		default:
			r.log.Warn().Err(err).Str("provider", p.Name()).Str("symbol", sym).Msg("provider failed")
		}
	}

	if q, ok := r.cache.GetStale(sym); ok {
		q.Stale = true
		r.log.Info().Str("symbol", sym).Str("source", q.Source).Msg("all providers failed, serving stale quote")
		return q
	}
	r.log.Warn().Str("symbol", sym).Msg("no quote available")
	return provider.Invalid(sym)
}

// fetchWithRetry bounds each attempt with the per-provider timeout.
// Transient and malformed failures are retried; not-found and
// rate-limited are final for this provider.
func (r *Resolver) fetchWithRetry(ctx context.Context, p provider.Provider, sym string) (provider.Quote, error) {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.Retries; attempt++ {
		actx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		q, err := p.Fetch(actx, sym)
		cancel()
		if err == nil {
			return q, nil
		}
		lastErr = err
		switch provider.KindOf(err) {
		case provider.KindNotFound, provider.KindRateLimited:
			return provider.Quote{}, err
		}
	}
	return provider.Quote{}, lastErr
}

func (r *Resolver) onCooldown(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.cooldown[name]
	return ok && time.Now().Before(until)
}

func (r *Resolver) startCooldown(name string) {
	r.mu.Lock()
	r.cooldown[name] = time.Now().Add(r.cfg.Cooldown)
	r.mu.Unlock()
}
