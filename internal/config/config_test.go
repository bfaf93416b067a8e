package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.AssetsPath != "assets.json" {
		t.Errorf("AssetsPath = %q, want assets.json", cfg.AssetsPath)
	}
	if got, want := cfg.CacheTTL(), 5*time.Minute; got != want {
		t.Errorf("CacheTTL = %v, want %v", got, want)
	}
	if got, want := cfg.Timeout(), 10*time.Second; got != want {
		t.Errorf("Timeout = %v, want %v", got, want)
	}
	if got, want := cfg.Cooldown(), time.Minute; got != want {
		t.Errorf("Cooldown = %v, want %v", got, want)
	}
	want := []string{"yahoo", "alphavantage", "stooq"}
	if len(cfg.Providers) != len(want) {
		t.Fatalf("Providers = %v, want %v", cfg.Providers, want)
	}
	for i := range want {
		if cfg.Providers[i] != want[i] {
			t.Errorf("Providers[%d] = %q, want %q", i, cfg.Providers[i], want[i])
		}
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"listen_addr": ":9090",
		"cache_ttl_sec": 60,
		"providers": ["stooq"],
		"rate_limits": {"stooq": {"rps": 0.5, "burst": 1}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", cfg.ListenAddr)
	}
	if got := cfg.CacheTTL(); got != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", got)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0] != "stooq" {
		t.Errorf("Providers = %v, want [stooq]", cfg.Providers)
	}
	if rl := cfg.RateLimits["stooq"]; rl.RPS != 0.5 || rl.Burst != 1 {
		t.Errorf("RateLimits[stooq] = %+v, want rps 0.5 burst 1", rl)
	}
	// untouched fields keep defaults
	if cfg.TimeoutSeconds != 10 {
		t.Errorf("TimeoutSeconds = %d, want default 10", cfg.TimeoutSeconds)
	}
	if cfg.Retries != 1 {
		t.Errorf("Retries = %d, want default 1", cfg.Retries)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"listen_addr": ":9090", "cache_ttl_sec": 60}`)
	t.Setenv("DIVTRACKER_ADDR", ":7070")
	t.Setenv("DIVTRACKER_CACHE_TTL_SEC", "30")
	t.Setenv("DIVTRACKER_PROVIDERS", " stooq , yahoo ")
	t.Setenv("ALPHA_VANTAGE_KEY", "secret")
	t.Setenv("DIVTRACKER_RETRIES", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("ListenAddr = %q, want :7070", cfg.ListenAddr)
	}
	if got := cfg.CacheTTL(); got != 30*time.Second {
		t.Errorf("CacheTTL = %v, want 30s", got)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0] != "stooq" || cfg.Providers[1] != "yahoo" {
		t.Errorf("Providers = %v, want [stooq yahoo]", cfg.Providers)
	}
	if cfg.AlphaVantageKey != "secret" {
		t.Errorf("AlphaVantageKey = %q, want secret", cfg.AlphaVantageKey)
	}
	if cfg.Retries != 1 {
		t.Errorf("Retries = %d, want default 1 despite junk env", cfg.Retries)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"unknown provider", `{"providers": ["yahoo", "bloomberg"]}`, "unknown provider"},
		{"empty providers", `{"providers": []}`, "must not be empty"},
		{"negative ttl", `{"cache_ttl_sec": -5}`, "cache_ttl_sec"},
		{"negative fanout", `{"fanout": -1}`, "fanout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoad_MalformedJSONFails(t *testing.T) {
	_, err := Load(writeConfig(t, `{"listen_addr": `))
	if err == nil {
		t.Fatal("Load succeeded, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Errorf("error %q does not mention parse config", err)
	}
}
