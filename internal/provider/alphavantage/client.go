package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"divtracker/internal/provider"
)

const defaultBaseURL = "https://www.alphavantage.co"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=alphavantage_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider fetches quotes from the Alpha Vantage GLOBAL_QUOTE endpoint.
// It only supplies a price; dividend fields stay zero.
type Provider struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient HTTPClient
	header     http.Header
}

// Option is a configuration option for the provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithHeader adds headers to every request.
func WithHeader(header http.Header) Option {
	return func(p *Provider) {
		for key, values := range header {
			for _, value := range values {
				p.header.Add(key, value)
			}
		}
	}
}

// New creates an Alpha Vantage provider. The key is required by the
// API; callers skip constructing the provider when no key is
// configured.
func New(apiKey string, options ...Option) *Provider {
	p := &Provider{
		name:       provider.SourceAlphaVantage,
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	query := url.Values{}
	query.Set("function", "GLOBAL_QUOTE")
	query.Set("symbol", symbol)
	query.Set("apikey", p.apiKey)

	u := fmt.Sprintf("%s/query?%s", p.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return provider.Quote{}, provider.Transient(p.name, symbol, err)
	}
	req.Header = p.header.Clone()

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return provider.Quote{}, provider.Transient(p.name, symbol, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.Quote{}, provider.RateLimited(p.name, symbol, fmt.Errorf("http 429"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return provider.Quote{}, provider.Transient(p.name, symbol,
			fmt.Errorf("GET %s -> %d", p.baseURL, resp.StatusCode))
	}

	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return provider.Quote{}, provider.Malformed(p.name, symbol, fmt.Errorf("decode: %w", err))
	}

	// Throttling comes back as 200 with a Note or Information field
	// instead of quote data.
	if _, err := jsonpath.Get(`$.Note`, body); err == nil {
		return provider.Quote{}, provider.RateLimited(p.name, symbol, fmt.Errorf("api note"))
	}
	if _, err := jsonpath.Get(`$.Information`, body); err == nil {
		return provider.Quote{}, provider.RateLimited(p.name, symbol, fmt.Errorf("api information"))
	}
	if _, err := jsonpath.Get(`$["Error Message"]`, body); err == nil {
		return provider.Quote{}, provider.NotFound(p.name, symbol)
	}

	gq, err := jsonpath.Get(`$["Global Quote"]`, body)
	if err != nil {
		return provider.Quote{}, provider.Malformed(p.name, symbol, fmt.Errorf("missing Global Quote: %w", err))
	}
	// An empty object means the symbol is unknown.
	if m, ok := gq.(map[string]any); !ok || len(m) == 0 {
		return provider.Quote{}, provider.NotFound(p.name, symbol)
	}

	raw, err := jsonpath.Get(`$["Global Quote"]["05. price"]`, body)
	if err != nil {
		return provider.Quote{}, provider.Malformed(p.name, symbol, fmt.Errorf("missing price field: %w", err))
	}
	s, ok := raw.(string)
	if !ok {
		return provider.Quote{}, provider.Malformed(p.name, symbol, fmt.Errorf("price is %T, want string", raw))
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return provider.Quote{}, provider.Malformed(p.name, symbol, fmt.Errorf("price %q: %w", s, err))
	}

	return provider.Quote{
		Symbol:    symbol,
		Price:     price,
		Currency:  "USD",
		Source:    p.name,
		FetchedAt: time.Now().UTC(),
		Valid:     true,
	}, nil
}
