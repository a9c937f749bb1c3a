package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: lms
    url_root: https://sso.example.com
    client_key: my-client
    client_secret: s3cret
  - name: studio
    url_root: https://sso.example.com
    client_key: studio-client
    max_token_age: 5m
sentry_dsn: https://key@sentry.example.com/1
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(cfg.Providers))
	}
	if cfg.SentryDSN != "https://key@sentry.example.com/1" {
		t.Errorf("SentryDSN = %q", cfg.SentryDSN)
	}

	lms, ok := cfg.Provider("lms")
	if !ok {
		t.Fatal("lms provider not found")
	}
	// Defaults are applied on load.
	if lms.MaxTokenAge != 10*time.Minute {
		t.Errorf("lms MaxTokenAge = %v, want default", lms.MaxTokenAge)
	}

	studio, ok := cfg.Provider("studio")
	if !ok {
		t.Fatal("studio provider not found")
	}
	if studio.MaxTokenAge != 5*time.Minute {
		t.Errorf("studio MaxTokenAge = %v, want 5m", studio.MaxTokenAge)
	}
}

func TestLoadConfigInvalidProvider(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: lms
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for provider without url_root")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("AUTHKIT_SENTRY_DSN", "https://env@sentry.example.com/2")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SentryDSN != "https://env@sentry.example.com/2" {
		t.Errorf("SentryDSN = %q, want env override", cfg.SentryDSN)
	}
}

func TestProviderLookup(t *testing.T) {
	cfg := &Config{}
	if _, ok := cfg.Provider(""); ok {
		t.Error("empty config must not resolve a provider")
	}

	path := writeConfig(t, `
providers:
  - name: only
    url_root: https://sso.example.com
    client_key: abc
`)
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	// A single configured provider is the default.
	p, ok := loaded.Provider("")
	if !ok || p.Name != "only" {
		t.Errorf("Provider(\"\") = %+v, %v", p, ok)
	}
	if _, ok := loaded.Provider("missing"); ok {
		t.Error("unknown provider name must not resolve")
	}
}
