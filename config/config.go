package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the coaching service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains server-wide settings
type GeneralConfig struct {
	Listen     string        `mapstructure:"listen"`
	Debug      bool          `mapstructure:"debug"`
	LogJSON    bool          `mapstructure:"log_json"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// LLMConfig contains the OpenRouter completion settings
type LLMConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	DefaultModel  string        `mapstructure:"default_model"`
	AllowedModels []string      `mapstructure:"allowed_models"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if l.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be > 0")
	}
	return nil
}

// ModelAllowed reports whether the given completion model may be used.
// An empty allowlist permits everything.
func (l LLMConfig) ModelAllowed(model string) bool {
	if len(l.AllowedModels) == 0 {
		return true
	}
	for _, m := range l.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds the connection string, preferring an explicit URL.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings. Redis is optional and
// only used to snapshot in-progress sessions.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a snapshot store should be wired at all.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

// Addr joins host and port for the redis client.
func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// envOnlyKeys have no default and no guaranteed config-file entry. Viper
// only surfaces environment values to Unmarshal for keys it already
// knows about, so each one is bound explicitly.
var envOnlyKeys = []string{
	"general.jwt_secret",
	"llm.api_key",
	"llm.allowed_models",
	"storage.postgres.url",
	"storage.postgres.host",
	"storage.postgres.port",
	"storage.postgres.user",
	"storage.postgres.password",
	"storage.postgres.dbname",
	"storage.postgres.sslmode",
	"storage.redis.host",
	"storage.redis.port",
	"storage.redis.password",
	"storage.redis.db",
}

// LoadConfig loads config from file and INTERVU_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.SetDefault("general.listen", ":8080")
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_json", false)
	v.SetDefault("general.session_ttl", 2*time.Hour)
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.default_model", "openai/gpt-3.5-turbo")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_retries", 1)
	v.SetDefault("llm.retry_backoff", 500*time.Millisecond)
	v.SetDefault("telemetry.enabled", true)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		v.AddConfigPath(filepath.Dir(exe))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("INTERVU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		// a config file is optional; everything can come from the environment
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// postgres settings are validated by the commands that open a
	// connection; the terminal client runs without one
	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
