package portfolio

import (
	"github.com/shopspring/decimal"

	"divtracker/internal/provider"
)

// divisionPlaces bounds the rounding error when an annual dividend is
// split across payment months.
const divisionPlaces = 6

// MonthlySchedule spreads each holding's annual dividend evenly across
// its quote's payment months and buckets the amounts by calendar month.
// Always returns twelve buckets, January through December. Holdings
// whose quote is invalid, pays nothing, or has no known payment months
// contribute to no bucket.
func MonthlySchedule(holdings []Holding, quotes map[string]provider.Quote) []MonthlyBucket {
	buckets := make([]MonthlyBucket, 12)
	for i := range buckets {
		buckets[i] = MonthlyBucket{Month: i + 1, Name: monthNames[i+1], Total: decimal.Zero}
	}

	for _, h := range holdings {
		sym := symbolKey(h.Symbol)
		q := quotes[sym]
		if !q.Valid || q.AnnualDividend.IsZero() || len(q.PaymentMonths) == 0 {
			continue
		}
		annual := h.Quantity.Mul(q.AnnualDividend)
		perMonth := annual.DivRound(decimal.NewFromInt(int64(len(q.PaymentMonths))), divisionPlaces)
		for _, m := range q.PaymentMonths {
			if m < 1 || m > 12 {
				continue
			}
			b := &buckets[m-1]
			b.Total = b.Total.Add(perMonth)
			b.Entries = append(b.Entries, BucketEntry{Symbol: sym, Amount: perMonth})
		}
	}
	return buckets
}
