package portfolio

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"divtracker/internal/provider"
	"divtracker/internal/provider/cache"
)

// Store persists holdings. The JSON file store implements it.
type Store interface {
	List() []Holding
	Upsert(symbol string, quantity decimal.Decimal) error
	Add(symbol string, quantity decimal.Decimal) error
	Remove(symbol string) error
}

// QuoteSource turns symbols into quotes. The resolver implements it.
type QuoteSource interface {
	Resolve(ctx context.Context, symbol string) provider.Quote
	ResolveMany(ctx context.Context, symbols []string) map[string]provider.Quote
}

// Service ties the holding store to live quotes and exposes the
// portfolio views the API serves.
type Service struct {
	store  Store
	quotes QuoteSource
	cache  *cache.Cache
	log    zerolog.Logger
}

func NewService(st Store, qs QuoteSource, c *cache.Cache, log zerolog.Logger) *Service {
	return &Service{
		store:  st,
		quotes: qs,
		cache:  c,
		log:    log.With().Str("component", "portfolio").Logger(),
	}
}

// Assets returns every stored holding enriched with its current quote.
func (s *Service) Assets(ctx context.Context) []Asset {
	holdings := s.store.List()
	return BuildSummary(holdings, s.resolveAll(ctx, holdings)).Assets
}

// Summary returns the whole-portfolio totals plus the per-asset rows.
func (s *Service) Summary(ctx context.Context) Summary {
	holdings := s.store.List()
	return BuildSummary(holdings, s.resolveAll(ctx, holdings))
}

// Monthly returns expected dividend income bucketed by calendar month.
func (s *Service) Monthly(ctx context.Context) []MonthlyBucket {
	holdings := s.store.List()
	return MonthlySchedule(holdings, s.resolveAll(ctx, holdings))
}

// Quote resolves a single symbol through the provider chain.
func (s *Service) Quote(ctx context.Context, symbol string) provider.Quote {
	return s.quotes.Resolve(ctx, symbol)
}

// AddAsset stores a holding with set semantics: the quantity replaces
// any prior one, and a non-positive quantity removes the holding.
func (s *Service) AddAsset(symbol string, quantity decimal.Decimal) error {
	sym := symbolKey(symbol)
	if sym == "" {
		return errors.New("symbol is required")
	}
	return s.store.Upsert(sym, quantity)
}

func (s *Service) RemoveAsset(symbol string) error {
	sym := symbolKey(symbol)
	if sym == "" {
		return errors.New("symbol is required")
	}
	return s.store.Remove(sym)
}

// ImportCSV applies a CSV of holdings with increment semantics, so the
// same symbol across files (or rows) accumulates. The price cache is
// cleared afterwards; the next read resolves against live data.
func (s *Service) ImportCSV(r io.Reader) (imported, skipped int, err error) {
	rows, skipped, err := ParseHoldingsCSV(r)
	if err != nil {
		return 0, 0, err
	}
	for _, h := range rows {
		if err := s.store.Add(h.Symbol, h.Quantity); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	s.cache.Clear()
	s.log.Info().Int("imported", imported).Int("skipped", skipped).Msg("holdings imported")
	return imported, skipped, nil
}

func (s *Service) resolveAll(ctx context.Context, holdings []Holding) map[string]provider.Quote {
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}
	return s.quotes.ResolveMany(ctx, symbols)
}
