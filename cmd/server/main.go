package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"divtracker/internal/api"
	"divtracker/internal/config"
	"divtracker/internal/httpx"
	"divtracker/internal/logx"
	"divtracker/internal/portfolio"
	"divtracker/internal/provider"
	"divtracker/internal/provider/alphavantage"
	"divtracker/internal/provider/cache"
	"divtracker/internal/provider/ratelimit"
	"divtracker/internal/provider/stooq"
	"divtracker/internal/provider/yahoo"
	"divtracker/internal/resolver"
	"divtracker/internal/store"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("DIVTRACKER_CONFIG"), "path to config.json")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		bootLogger := logx.New("info", "")
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := logx.New(cfg.LogLevel, os.Getenv("DIVTRACKER_LOG_FORMAT"))

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

	st, err := store.Open(cfg.AssetsPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.AssetsPath).Msg("open holdings store")
	}

	svc := portfolio.NewService(st, res, quoteCache, logger)
	handler := api.NewHandler(svc, quoteCache, res.Providers(), logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Strs("providers", res.Providers()).
			Int("holdings", st.Len()).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server")
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
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
