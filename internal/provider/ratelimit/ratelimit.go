package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"divtracker/internal/provider"
)

// Limited wraps a provider and gates every upstream call through a
// token bucket. Calls wait for a token or give up when the context is
// canceled.
type Limited struct {
	P       provider.Provider
	Limiter *rate.Limiter
}

func New(p provider.Provider, rps float64, burst int) *Limited {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limited{P: p, Limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *Limited) Name() string { return l.P.Name() }

func (l *Limited) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	if l.Limiter != nil {
		if err := l.Limiter.Wait(ctx); err != nil {
			return provider.Quote{}, provider.Transient(l.P.Name(), symbol, err)
		}
	}
	return l.P.Fetch(ctx, symbol)
}
