package portfolio

import (
	"github.com/shopspring/decimal"

	"divtracker/internal/provider"
)

var twelve = decimal.NewFromInt(12)

// BuildSummary derives per-asset market values and portfolio totals
// from stored holdings and their resolved quotes. Assets keep holding
// order. An invalid quote zeroes the asset's numbers without removing
// it from the list.
func BuildSummary(holdings []Holding, quotes map[string]provider.Quote) Summary {
	s := Summary{
		Assets:               make([]Asset, 0, len(holdings)),
		TotalValue:           decimal.Zero,
		TotalAnnualDividend:  decimal.Zero,
		TotalMonthlyDividend: decimal.Zero,
	}

	for _, h := range holdings {
		sym := symbolKey(h.Symbol)
		q, ok := quotes[sym]
		if !ok {
			q = provider.Invalid(sym)
		}
		a := Asset{
			Symbol:   sym,
			Quantity: h.Quantity,
			Price:    q.Price,
			Currency: q.Currency,
			Source:   q.Source,
			Valid:    q.Valid,
			Stale:    q.Stale,
		}
		if q.Valid {
			a.MarketValue = h.Quantity.Mul(q.Price)
			a.AnnualDividend = h.Quantity.Mul(q.AnnualDividend)
			a.MonthlyDividend = a.AnnualDividend.DivRound(twelve, 2)
			if !a.MarketValue.IsZero() {
				a.Yield = a.AnnualDividend.DivRound(a.MarketValue, 4)
			}
		}
		s.TotalValue = s.TotalValue.Add(a.MarketValue)
		s.TotalAnnualDividend = s.TotalAnnualDividend.Add(a.AnnualDividend)
		s.Assets = append(s.Assets, a)
	}

	s.TotalMonthlyDividend = s.TotalAnnualDividend.DivRound(twelve, 2)
	return s
}
