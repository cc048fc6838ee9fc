package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"CART_CONFIG", "PORT", "HTTP_PORT", "CART_STORAGE", "CART_DB_PATH", "REDIS_ADDR",
	"CART_STORAGE_KEY", "CART_PERSIST_TIMEOUT", "LOG_LEVEL", "ENABLE_TRACING",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

// clearEnv unsets every key load reads and restores the previous values when
// the test ends.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		if v, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, v) })
		} else {
			t.Cleanup(func() { os.Unsetenv(k) })
		}
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	got, err := load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)

	tomlPath := writeFile(t, "cart.toml", `
storage = "redis"
redis_addr = "redis-cart"
http_port = "9000"
persist_timeout = "2s"
log_level = "warn"
`)
	envPath := writeFile(t, ".env", "HTTP_PORT=9100\nCART_STORAGE_KEY=@Test:cart\n")

	os.Setenv("CART_CONFIG", tomlPath)
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("ENABLE_TRACING", "true")

	got, err := load(envPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := Default()
	want.Storage = "redis"
	want.RedisAddr = "redis-cart"
	want.HTTPPort = "9100"
	want.StorageKey = "@Test:cart"
	want.PersistTimeout = 2 * time.Second
	want.LogLevel = "debug"
	want.EnableTracing = true
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", "CART_PERSIST_TIMEOUT", "soon"},
		{"non-positive duration", "CART_PERSIST_TIMEOUT", "0s"},
		{"bad bool", "ENABLE_TRACING", "sometimes"},
		{"missing toml", "CART_CONFIG", "/nonexistent/cart.toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			os.Setenv(tt.key, tt.val)
			if _, err := load(""); err == nil {
				t.Fatalf("expected an error for %s=%q", tt.key, tt.val)
			}
		})
	}
}
