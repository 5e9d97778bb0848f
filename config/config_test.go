package config

import (
	"os"
	"testing"
	"time"
)

// chdir stands in for t.Chdir, which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}

func TestLoadConfigFromEnvOnly(t *testing.T) {
	t.Setenv("INTERVU_LLM_API_KEY", "sk-test")
	t.Setenv("INTERVU_GENERAL_JWT_SECRET", "topsecret")
	t.Setenv("INTERVU_STORAGE_POSTGRES_HOST", "db")
	t.Setenv("INTERVU_STORAGE_POSTGRES_DBNAME", "intervu")
	t.Setenv("INTERVU_STORAGE_REDIS_HOST", "cache")

	dir := t.TempDir()
	chdir(t, dir)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig with env-only settings: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("api key not read from environment: %q", cfg.LLM.APIKey)
	}
	if cfg.General.JWTSecret != "topsecret" {
		t.Fatalf("jwt secret not read from environment: %q", cfg.General.JWTSecret)
	}
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		t.Fatalf("postgres settings not read from environment: %v", err)
	}
	if !cfg.Storage.Redis.Enabled() || cfg.Storage.Redis.Addr() != "cache:6379" {
		t.Fatalf("redis settings not read from environment: %+v", cfg.Storage.Redis)
	}
	if cfg.General.Listen != ":8080" || cfg.LLM.Timeout != 30*time.Second {
		t.Fatalf("defaults must still apply: %+v", cfg)
	}
}

func TestLoadConfigEnvOverridesDefaults(t *testing.T) {
	t.Setenv("INTERVU_LLM_API_KEY", "sk-test")
	t.Setenv("INTERVU_LLM_DEFAULT_MODEL", "openai/gpt-4o")
	t.Setenv("INTERVU_GENERAL_LISTEN", ":9090")

	dir := t.TempDir()
	chdir(t, dir)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.DefaultModel != "openai/gpt-4o" {
		t.Fatalf("default model not overridden: %q", cfg.LLM.DefaultModel)
	}
	if cfg.General.Listen != ":9090" {
		t.Fatalf("listen not overridden: %q", cfg.General.Listen)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "app", Password: "pw", DBName: "intervu"}
	want := "postgres://app:pw@db:5432/intervu?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN() = %s, want %s", got, want)
	}

	p.URL = "postgres://explicit"
	if got := p.DSN(); got != "postgres://explicit" {
		t.Fatalf("explicit url must win, got %s", got)
	}
}

func TestPostgresValidate(t *testing.T) {
	if err := (PostgresConfig{}).Validate(); err == nil {
		t.Fatal("empty postgres config must not validate")
	}
	if err := (PostgresConfig{URL: "postgres://x"}).Validate(); err != nil {
		t.Fatalf("url-only config must validate: %v", err)
	}
	if err := (PostgresConfig{Host: "db", DBName: "intervu"}).Validate(); err != nil {
		t.Fatalf("host+dbname must validate: %v", err)
	}
}

func TestModelAllowed(t *testing.T) {
	l := LLMConfig{}
	if !l.ModelAllowed("anything/goes") {
		t.Fatal("empty allowlist must permit everything")
	}
	l.AllowedModels = []string{"openai/gpt-3.5-turbo", "openai/gpt-4o"}
	if !l.ModelAllowed("openai/gpt-4o") {
		t.Fatal("listed model must be allowed")
	}
	if l.ModelAllowed("someone/else") {
		t.Fatal("unlisted model must be rejected")
	}
}

func TestRedisConfig(t *testing.T) {
	r := RedisConfig{}
	if r.Enabled() {
		t.Fatal("redis must be disabled without a host")
	}
	r.Host = "cache"
	if !r.Enabled() {
		t.Fatal("redis must be enabled with a host")
	}
	if got := r.Addr(); got != "cache:6379" {
		t.Fatalf("Addr() = %s, want cache:6379", got)
	}
	r.Port = "6380"
	if got := r.Addr(); got != "cache:6380" {
		t.Fatalf("Addr() = %s, want cache:6380", got)
	}
}
