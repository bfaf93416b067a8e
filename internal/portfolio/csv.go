package portfolio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseHoldingsCSV reads holdings from broker-style CSV exports. The
// header row is matched case-insensitively against common column
// aliases; remaining columns are ignored. Rows without a usable symbol
// or with an unparsable or non-positive quantity are skipped and
// counted, not fatal. Duplicate symbols are NOT merged here; import
// applies them one by one so quantities accumulate.
func ParseHoldingsCSV(r io.Reader) (holdings []Holding, skipped int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("csv: read header: %w", err)
	}

	symIdx, qtyIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "symbol", "ticker", "stock":
			if symIdx == -1 {
				symIdx = i
			}
		case "quantity", "qty", "shares", "amount":
			if qtyIdx == -1 {
				qtyIdx = i
			}
		}
	}
	if symIdx == -1 || qtyIdx == -1 {
		return nil, 0, fmt.Errorf("csv: header %v lacks a symbol or quantity column", header)
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("csv: %w", err)
		}
		if symIdx >= len(rec) || qtyIdx >= len(rec) {
			skipped++
			continue
		}
		sym := symbolKey(rec[symIdx])
		qty, qerr := decimal.NewFromString(strings.TrimSpace(rec[qtyIdx]))
		if sym == "" || qerr != nil || qty.LessThanOrEqual(decimal.Zero) {
			skipped++
			continue
		}
		holdings = append(holdings, Holding{Symbol: sym, Quantity: qty})
	}
	return holdings, skipped, nil
}
