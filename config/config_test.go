package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdir moves into an empty directory so no config.yaml or .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Server.LoginPath != "/login.html" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if !cfg.Auth.Demo() || cfg.Storage.Driver != "memory" {
		t.Errorf("Auth = %+v, Storage = %+v", cfg.Auth, cfg.Storage)
	}
	if cfg.Market.OutputPath != "data/latest.json" || cfg.Market.Timeout != 15*time.Second {
		t.Errorf("Market = %+v", cfg.Market)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t)
	t.Setenv("AUTH_MODE", "firebase")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001234")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}
	if cfg.Auth.Demo() {
		t.Error("AUTH_MODE=firebase still reports demo")
	}
	if cfg.Server.Port != "9090" || cfg.Telegram.ChatID != -1001234 {
		t.Errorf("Server.Port = %q, Telegram.ChatID = %d", cfg.Server.Port, cfg.Telegram.ChatID)
	}
}

func TestLoadConfigFilePlaceholders(t *testing.T) {
	dir := chdir(t)
	t.Setenv("TAMJ_TEST_SECRET", "sk_test_123")
	yaml := "stripe:\n  secretkey: ${TAMJ_TEST_SECRET}\nmarket:\n  outputpath: out/snapshot.json\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}
	if cfg.Stripe.SecretKey != "sk_test_123" {
		t.Errorf("Stripe.SecretKey = %q, want placeholder expanded", cfg.Stripe.SecretKey)
	}
	if cfg.Market.OutputPath != "out/snapshot.json" {
		t.Errorf("Market.OutputPath = %q", cfg.Market.OutputPath)
	}
}
