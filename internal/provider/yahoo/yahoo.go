package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"divtracker/internal/httpx"
	"divtracker/internal/provider"
)

type Config struct {
	Name     string
	BaseURL  string
	Range    string // chart lookback window, default 1y
	Interval string // chart candle interval, default 1d
}

// Provider fetches price and trailing dividend data from the Yahoo
// Finance chart API. One chart call carries both: the meta block has
// the regular market price, the div events cover the requested range.
type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = provider.SourceYahoo
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	}
	if cfg.Range == "" {
		cfg.Range = "1y"
	}
	if cfg.Interval == "" {
		cfg.Interval = "1d"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	u := fmt.Sprintf("%s/%s?range=%s&interval=%s&events=div",
		p.cfg.BaseURL, url.PathEscape(symbol), p.cfg.Range, p.cfg.Interval)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return provider.Quote{}, provider.Transient(p.cfg.Name, symbol, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return provider.Quote{}, provider.Transient(p.cfg.Name, symbol, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return provider.Quote{}, provider.NotFound(p.cfg.Name, symbol)
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.Quote{}, provider.RateLimited(p.cfg.Name, symbol, fmt.Errorf("http 429"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return provider.Quote{}, provider.Transient(p.cfg.Name, symbol,
			fmt.Errorf("GET %s -> %d: %s", u, resp.StatusCode, string(b)))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var body chartResponse
	if err := dec.Decode(&body); err != nil {
		return provider.Quote{}, provider.Malformed(p.cfg.Name, symbol, fmt.Errorf("decode: %w", err))
	}

	// Unknown symbols come back 200 with an error object or an empty
	// result array.
	if body.Chart.Error != nil || len(body.Chart.Result) == 0 {
		return provider.Quote{}, provider.NotFound(p.cfg.Name, symbol)
	}
	res := body.Chart.Result[0]

	price, err := decimal.NewFromString(res.Meta.RegularMarketPrice.String())
	if err != nil {
		return provider.Quote{}, provider.Malformed(p.cfg.Name, symbol,
			fmt.Errorf("regularMarketPrice %q: %w", res.Meta.RegularMarketPrice, err))
	}

	annual, months := sumDividends(res.Events)

	currency := res.Meta.Currency
	if currency == "" {
		currency = "USD"
	}
	return provider.Quote{
		Symbol:         symbol,
		Price:          price,
		Currency:       currency,
		AnnualDividend: annual,
		PaymentMonths:  months,
		Source:         p.cfg.Name,
		FetchedAt:      time.Now().UTC(),
		Valid:          true,
	}, nil
}

// sumDividends totals the event amounts and collects the distinct
// months they were paid in, sorted ascending. Events with unparsable
// amounts are skipped rather than failing the whole quote.
func sumDividends(events *chartEvents) (decimal.Decimal, []int) {
	annual := decimal.Zero
	if events == nil || len(events.Dividends) == 0 {
		return annual, nil
	}
	monthSet := make(map[int]struct{}, 12)
	for _, ev := range events.Dividends {
		amt, err := decimal.NewFromString(ev.Amount.String())
		if err != nil {
			continue
		}
		annual = annual.Add(amt)
		if ev.Date > 0 {
			monthSet[int(time.Unix(ev.Date, 0).UTC().Month())] = struct{}{}
		}
	}
	months := make([]int, 0, len(monthSet))
	for m := range monthSet {
		months = append(months, m)
	}
	sort.Ints(months)
	if len(months) == 0 {
		return annual, nil
	}
	return annual, months
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Currency           string      `json:"currency"`
		Symbol             string      `json:"symbol"`
		RegularMarketPrice json.Number `json:"regularMarketPrice"`
	} `json:"meta"`
	Events *chartEvents `json:"events"`
}

type chartEvents struct {
	Dividends map[string]dividendEvent `json:"dividends"`
}

type dividendEvent struct {
	Amount json.Number `json:"amount"`
	Date   int64       `json:"date"`
}
