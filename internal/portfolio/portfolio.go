package portfolio

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Holding is one stored position: a symbol and how many shares are held.
// Quantity is decimal so fractional shares survive round trips.
type Holding struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Asset is a holding enriched with its resolved quote and the derived
// per-position numbers the API exposes.
type Asset struct {
	Symbol          string          `json:"symbol"`
	Quantity        decimal.Decimal `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency,omitempty"`
	Source          string          `json:"source"`
	Valid           bool            `json:"valid"`
	Stale           bool            `json:"stale,omitempty"`
	MarketValue     decimal.Decimal `json:"value"`
	AnnualDividend  decimal.Decimal `json:"annual_dividend"`
	MonthlyDividend decimal.Decimal `json:"monthly_dividend"`
	Yield           decimal.Decimal `json:"yield"`
}

// Summary is the whole-portfolio view. Invalid quotes contribute zero
// to the totals but their assets stay listed.
type Summary struct {
	Assets               []Asset         `json:"assets"`
	TotalValue           decimal.Decimal `json:"portfolio_value"`
	TotalAnnualDividend  decimal.Decimal `json:"yearly"`
	TotalMonthlyDividend decimal.Decimal `json:"monthly"`
}

// BucketEntry is one holding's contribution to a month.
type BucketEntry struct {
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthlyBucket collects expected dividend payments for one calendar
// month. Entries keep holding order.
type MonthlyBucket struct {
	Month   int             `json:"month"`
	Name    string          `json:"name"`
	Total   decimal.Decimal `json:"total"`
	Entries []BucketEntry   `json:"assets"`
}

var monthNames = [...]string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func symbolKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
