package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"divtracker/internal/provider"
)

// RateLimit is the outbound budget for one provider.
type RateLimit struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

type Config struct {
	ListenAddr string `json:"listen_addr"`
	AssetsPath string `json:"assets_path"`
	// Providers is the fallback order. Unknown names fail validation.
	Providers       []string             `json:"providers"`
	CacheTTLSeconds int                  `json:"cache_ttl_sec"`
	TimeoutSeconds  int                  `json:"timeout_sec"`
	CooldownSeconds int                  `json:"cooldown_sec"`
	Retries         int                  `json:"retries"`
	Fanout          int                  `json:"fanout"`
	AlphaVantageKey string               `json:"alpha_vantage_key"`
	RateLimits      map[string]RateLimit `json:"rate_limits"`
	LogLevel        string               `json:"log_level"`
}

func (c Config) CacheTTL() time.Duration { return time.Duration(c.CacheTTLSeconds) * time.Second }
func (c Config) Timeout() time.Duration  { return time.Duration(c.TimeoutSeconds) * time.Second }
func (c Config) Cooldown() time.Duration { return time.Duration(c.CooldownSeconds) * time.Second }

func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		AssetsPath:      "assets.json",
		Providers:       []string{provider.SourceYahoo, provider.SourceAlphaVantage, provider.SourceStooq},
		CacheTTLSeconds: 300,
		TimeoutSeconds:  10,
		CooldownSeconds: 60,
		Retries:         1,
		Fanout:          4,
		RateLimits: map[string]RateLimit{
			provider.SourceYahoo:        {RPS: 2, Burst: 4},
			provider.SourceAlphaVantage: {RPS: 0.1, Burst: 1},
			provider.SourceStooq:        {RPS: 1, Burst: 2},
		},
		LogLevel: "info",
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. A .env file in the working directory is
// loaded first (best effort); environment variables override file values.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DIVTRACKER_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DIVTRACKER_ASSETS"); v != "" {
		cfg.AssetsPath = v
	}
	if v := os.Getenv("DIVTRACKER_PROVIDERS"); v != "" {
		cfg.Providers = splitCSV(v)
	}
	if v := os.Getenv("DIVTRACKER_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.CacheTTLSeconds = x
		}
	}
	if v := os.Getenv("DIVTRACKER_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.TimeoutSeconds = x
		}
	}
	if v := os.Getenv("DIVTRACKER_COOLDOWN_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.CooldownSeconds = x
		}
	}
	if v := os.Getenv("DIVTRACKER_RETRIES"); v != "" {
		var x int
		n, _ := fmt.Sscanf(v, "%d", &x)
		if n == 1 && x >= 0 {
			cfg.Retries = x
		}
	}
	if v := os.Getenv("DIVTRACKER_FANOUT"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Fanout = x
		}
	}
	if v := os.Getenv("ALPHA_VANTAGE_KEY"); v != "" {
		cfg.AlphaVantageKey = v
	}
	if v := os.Getenv("DIVTRACKER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func (c Config) validate() error {
	if len(c.Providers) == 0 {
		return errors.New("config: providers must not be empty")
	}
	for _, name := range c.Providers {
		switch name {
		case provider.SourceYahoo, provider.SourceAlphaVantage, provider.SourceStooq:
		default:
			return fmt.Errorf("config: unknown provider %q", name)
		}
	}
	if c.CacheTTLSeconds <= 0 {
		return fmt.Errorf("config: cache_ttl_sec must be positive, got %d", c.CacheTTLSeconds)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: timeout_sec must be positive, got %d", c.TimeoutSeconds)
	}
	if c.CooldownSeconds <= 0 {
		return fmt.Errorf("config: cooldown_sec must be positive, got %d", c.CooldownSeconds)
	}
	if c.Retries < 0 {
		return fmt.Errorf("config: retries must not be negative, got %d", c.Retries)
	}
	if c.Fanout < 1 {
		return fmt.Errorf("config: fanout must be at least 1, got %d", c.Fanout)
	}
	return nil
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
