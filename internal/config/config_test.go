package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Port != 3000 {
		t.Fatalf("App.Port = %d, want 3000", cfg.App.Port)
	}
	if cfg.Inference.Provider != "gemini" {
		t.Fatalf("Inference.Provider = %q, want gemini", cfg.Inference.Provider)
	}
	if cfg.Inference.Model != "" {
		t.Fatalf("Inference.Model = %q, want empty so each provider picks its own", cfg.Inference.Model)
	}
	if cfg.StoreConfigured() {
		t.Fatalf("StoreConfigured() = true with no store credentials")
	}
	if got := cfg.HTTPAddr(); got != "0.0.0.0:3000" {
		t.Fatalf("HTTPAddr() = %q", got)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	body := []byte(`
[app]
port = 8081

[store]
driver = "sqlite"
url = "file:lumina.db"
anon_key = "from-file"
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9090")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Port != 9090 {
		t.Fatalf("App.Port = %d, want env value 9090", cfg.App.Port)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.AnonKey != "from-file" {
		t.Fatalf("store section not decoded: %+v", cfg.Store)
	}
	if !cfg.StoreConfigured() {
		t.Fatalf("StoreConfigured() = false, want true")
	}
	if cfg.Inference.APIKey != "gemini-key" {
		t.Fatalf("Inference.APIKey = %q, want GEMINI_API_KEY alias", cfg.Inference.APIKey)
	}
}

func TestInferenceKeyTakesPrecedenceOverAlias(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("GEMINI_API_KEY", "alias")
	t.Setenv("INFERENCE_API_KEY", "primary")
	t.Setenv("AUTH_REQUIRE_CONFIRMATION", "false")
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Inference.APIKey != "primary" {
		t.Fatalf("Inference.APIKey = %q, want primary", cfg.Inference.APIKey)
	}
	if cfg.Auth.RequireConfirmation {
		t.Fatalf("RequireConfirmation = true, want false")
	}
	if cfg.App.Port != 3000 {
		t.Fatalf("invalid PORT should keep default, got %d", cfg.App.Port)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT",
		"STORE_DRIVER",
		"STORE_URL",
		"STORE_ANON_KEY",
		"GEMINI_API_KEY",
		"INFERENCE_API_KEY",
		"INFERENCE_PROVIDER",
		"AUTH_REQUIRE_CONFIRMATION",
		"REDIS_ADDR",
		"RABBITMQ_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}
