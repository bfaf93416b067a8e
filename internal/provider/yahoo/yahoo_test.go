package yahoo_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"divtracker/internal/httpx"
	"divtracker/internal/provider"
	"divtracker/internal/provider/yahoo"
)

// Quarterly payer: four 0.26 events in Feb, May, Aug and Nov 2025.
const chartBody = `{"chart":{"result":[{"meta":{"currency":"USD","symbol":"AAPL","regularMarketPrice":150.25},"events":{"dividends":{
  "1739145600":{"amount":0.26,"date":1739145600},
  "1747008000":{"amount":0.26,"date":1747008000},
  "1754870400":{"amount":0.26,"date":1754870400},
  "1762732800":{"amount":0.26,"date":1762732800}
}}}],"error":null}}`

func newProvider(t *testing.T, handler http.HandlerFunc) *yahoo.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return yahoo.New(yahoo.Config{BaseURL: srv.URL}, httpx.New(2*time.Second))
}

func TestFetch_PriceAndDividends(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery string
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(chartBody))
	})

	q, err := p.Fetch(t.Context(), "AAPL")
	require.NoError(t, err)

	require.Equal(t, "/AAPL", gotPath)
	require.Contains(t, gotQuery, "range=1y")
	require.Contains(t, gotQuery, "interval=1d")
	require.Contains(t, gotQuery, "events=div")

	require.Equal(t, "AAPL", q.Symbol)
	require.True(t, q.Price.Equal(decimal.RequireFromString("150.25")), "price=%s", q.Price)
	require.True(t, q.AnnualDividend.Equal(decimal.RequireFromString("1.04")), "annual=%s", q.AnnualDividend)
	require.Equal(t, []int{2, 5, 8, 11}, q.PaymentMonths)
	require.Equal(t, "USD", q.Currency)
	require.Equal(t, provider.SourceYahoo, q.Source)
	require.True(t, q.Valid)
	require.False(t, q.Stale)
	require.False(t, q.FetchedAt.IsZero())
}

func TestFetch_NoDividendEvents(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{"currency":"USD","symbol":"GOOG","regularMarketPrice":180}}],"error":null}}`))
	})

	q, err := p.Fetch(t.Context(), "GOOG")
	require.NoError(t, err)
	require.True(t, q.AnnualDividend.IsZero())
	require.Empty(t, q.PaymentMonths)
	require.True(t, q.Valid)
}

func TestFetch_UnknownSymbolIsNotFound(t *testing.T) {
	t.Parallel()

	// Chart-level error with HTTP 200.
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})
	_, err := p.Fetch(t.Context(), "NOPE")
	require.True(t, provider.IsNotFound(err), "got %v", err)

	// Plain HTTP 404.
	p = newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err = p.Fetch(t.Context(), "NOPE")
	require.True(t, provider.IsNotFound(err), "got %v", err)
}

func TestFetch_RateLimited(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := p.Fetch(t.Context(), "AAPL")
	require.True(t, provider.IsRateLimited(err), "got %v", err)
}

func TestFetch_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := p.Fetch(t.Context(), "AAPL")
	require.True(t, provider.IsTransient(err), "got %v", err)
}

func TestFetch_MalformedResponses(t *testing.T) {
	t.Parallel()

	// Body that is not JSON at all.
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	})
	_, err := p.Fetch(t.Context(), "AAPL")
	require.True(t, provider.IsMalformed(err), "got %v", err)

	// Result present but without a price.
	p = newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{"currency":"USD","symbol":"AAPL"}}],"error":null}}`))
	})
	_, err = p.Fetch(t.Context(), "AAPL")
	require.True(t, provider.IsMalformed(err), "got %v", err)
}
