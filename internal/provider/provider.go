package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Source markers reported on quotes.
const (
	SourceYahoo        = "yahoo"
	SourceAlphaVantage = "alphavantage"
	SourceStooq        = "stooq"
	// SourceNone marks the quote returned when no provider could price
	// a symbol and nothing usable was cached.
	SourceNone = "none"
)

// Quote is the normalized shape returned by all providers.
// Prices and dividends are decimals; float money does not appear
// anywhere downstream.
type Quote struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	// AnnualDividend is the per-share dividend sum over the trailing
	// year. Providers without dividend data leave it zero.
	AnnualDividend decimal.Decimal `json:"annual_dividend"`
	// PaymentMonths holds the sorted unique months (1..12) dividends
	// were paid in. Empty when unknown.
	PaymentMonths []int     `json:"payment_months,omitempty"`
	Source        string    `json:"source"`
	FetchedAt     time.Time `json:"fetched_at"`
	Valid         bool      `json:"valid"`
	Stale         bool      `json:"stale,omitempty"`
}

// Invalid returns the marker quote for a symbol nothing could price.
func Invalid(symbol string) Quote {
	return Quote{Symbol: symbol, Source: SourceNone}
}

type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (Quote, error)
}
