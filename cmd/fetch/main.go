package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"divtracker/internal/config"
	"divtracker/internal/httpx"
	"divtracker/internal/logx"
	"divtracker/internal/provider"
	"divtracker/internal/provider/alphavantage"
	"divtracker/internal/provider/cache"
	"divtracker/internal/provider/ratelimit"
	"divtracker/internal/provider/stooq"
	"divtracker/internal/provider/yahoo"
	"divtracker/internal/resolver"
)

func main() {
	var configPath string
	var providersCSV string
	var timeout int

	flag.StringVar(&configPath, "config", getenv("DIVTRACKER_CONFIG", ""), "path to config.json (optional)")
	flag.StringVar(&providersCSV, "providers", "", "override provider chain (CSV, e.g. stooq,yahoo)")
	flag.IntVar(&timeout, "timeout", getenvInt("DIVTRACKER_TIMEOUT_SEC", 0), "per-request timeout seconds (overrides config)")
	flag.Parse()

	logger := logx.New(getenv("DIVTRACKER_LOG_LEVEL", "warn"), "console")

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if providersCSV != "" {
		cfg.Providers = splitCSV(providersCSV)
	}
	if timeout > 0 {
		cfg.TimeoutSeconds = timeout
	}

	var symbols []string
	for _, arg := range flag.Args() {
		symbols = append(symbols, splitCSV(arg)...)
	}
	if len(symbols) == 0 {
		logger.Fatal().Msg("no symbols provided")
	}

	httpClient := httpx.New(cfg.Timeout())
	// Yahoo turns away the default Go user agent.
	httpClient.UserAgent = httpx.BrowserUserAgent

	providers := buildProviders(cfg, httpClient, logger)
	if len(providers) == 0 {
		logger.Fatal().Msg("no providers available; check providers list and credentials")
	}

	quoteCache := cache.New(cfg.CacheTTL())
	res := resolver.New(providers, quoteCache, resolver.Config{
		Retries:  cfg.Retries,
		Timeout:  cfg.Timeout(),
		Cooldown: cfg.Cooldown(),
		Fanout:   cfg.Fanout,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	quotes := res.ResolveMany(ctx, symbols)

	// Print in the order symbols were given, first occurrence wins.
	seen := make(map[string]bool, len(symbols))
	out := make([]provider.Quote, 0, len(symbols))
	valid := 0
	for _, s := range symbols {
		key := strings.ToUpper(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		q, ok := quotes[key]
		if !ok {
			continue
		}
		if q.Valid {
			valid++
		}
		out = append(out, q)
	}
	if valid == 0 {
		logger.Fatal().Msg("no quotes resolved")
	}

	b, _ := json.MarshalIndent(struct {
		Quotes []provider.Quote `json:"quotes"`
	}{Quotes: out}, "", "  ")
	fmt.Println(string(b))
}

// buildProviders assembles the fallback chain in configured order and
// wraps each provider with its outbound rate limit. A provider whose
// credentials are missing is skipped with a warning rather than
// failing startup.
func buildProviders(cfg config.Config, httpClient *httpx.Client, logger zerolog.Logger) []provider.Provider {
	providers := make([]provider.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		var p provider.Provider
		switch name {
		case provider.SourceYahoo:
			p = yahoo.New(yahoo.Config{}, httpClient)
		case provider.SourceAlphaVantage:
			if cfg.AlphaVantageKey == "" {
				logger.Warn().Msg("alphavantage configured but ALPHA_VANTAGE_KEY not set; skipping")
				continue
			}
			p = alphavantage.New(cfg.AlphaVantageKey,
				alphavantage.WithHTTPClient(httpClient.HTTP),
				alphavantage.WithHeader(http.Header{
					"User-Agent": []string{"divtracker/1.0"},
				}),
			)
		case provider.SourceStooq:
			p = stooq.New(stooq.Config{}, httpClient)
		default:
			continue
		}
		if rl, ok := cfg.RateLimits[name]; ok {
			p = ratelimit.New(p, rl.RPS, rl.Burst)
		}
		providers = append(providers, p)
	}
	return providers
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		if n, _ := fmt.Sscanf(v, "%d", &x); n == 1 {
			return x
		}
	}
	return def
}
