package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"divtracker/internal/httpx"
	"divtracker/internal/provider"
)

type Config struct {
	Name    string
	BaseURL string
	// Suffix is appended to bare symbols; stooq quotes US tickers as
	// aapl.us. Symbols already carrying a market suffix pass through.
	Suffix string
}

// Provider fetches closing prices from the stooq.com CSV endpoint.
// Price only; stooq has no dividend feed.
type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = provider.SourceStooq
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://stooq.com"
	}
	if cfg.Suffix == "" {
		cfg.Suffix = ".us"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	s := strings.ToLower(symbol)
	if !strings.Contains(s, ".") {
		s += p.cfg.Suffix
	}
	u := fmt.Sprintf("%s/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv", p.cfg.BaseURL, url.QueryEscape(s))
	resp, err := p.client.Get(ctx, u)
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

	// Header row then one data row:
	// Symbol,Date,Time,Open,High,Low,Close,Volume
	cr := csv.NewReader(resp.Body)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return provider.Quote{}, provider.Malformed(p.cfg.Name, symbol, fmt.Errorf("read csv: %w", err))
	}
	if len(rows) < 2 || len(rows[1]) < 7 {
		return provider.Quote{}, provider.Malformed(p.cfg.Name, symbol,
			fmt.Errorf("unexpected csv shape: %d rows", len(rows)))
	}

	closeField := strings.TrimSpace(rows[1][6])
	// Unknown symbols come back as a row of N/D markers.
	if closeField == "" || strings.EqualFold(closeField, "N/D") {
		return provider.Quote{}, provider.NotFound(p.cfg.Name, symbol)
	}
	price, err := decimal.NewFromString(closeField)
	if err != nil {
		return provider.Quote{}, provider.Malformed(p.cfg.Name, symbol,
			fmt.Errorf("close %q: %w", closeField, err))
	}

	return provider.Quote{
		Symbol:    symbol,
		Price:     price,
		Currency:  "USD",
		Source:    p.cfg.Name,
		FetchedAt: time.Now().UTC(),
		Valid:     true,
	}, nil
}
