package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App       AppConfig       `toml:"app"`
	Store     StoreConfig     `toml:"store"`
	Auth      AuthConfig      `toml:"auth"`
	Inference InferenceConfig `toml:"inference"`
	Redis     RedisConfig     `toml:"redis"`
	RabbitMQ  RabbitMQConfig  `toml:"rabbitmq"`
	Log       LogConfig       `toml:"log"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Client    ClientConfig    `toml:"client"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

// StoreConfig points at the relational store. URL is handed to the gorm
// driver as its DSN; AnonKey signs access tokens.
type StoreConfig struct {
	Driver       string `toml:"driver"`
	URL          string `toml:"url"`
	AnonKey      string `toml:"anon_key"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

type AuthConfig struct {
	TokenExpireMinute   int    `toml:"token_expire_minute"`
	RequireConfirmation bool   `toml:"require_confirmation"`
	ConfirmBaseURL      string `toml:"confirm_base_url"`
}

type InferenceConfig struct {
	Provider string `toml:"provider"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`
}

// RedisConfig enables the shared revocation store when Addr is set.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// RabbitMQConfig enables cross-process auth event fan-out when URL is set.
type RabbitMQConfig struct {
	URL          string `toml:"url"`
	AuthExchange string `toml:"auth_exchange"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type TelemetryConfig struct {
	MetricsEnabled   bool   `toml:"metrics_enabled"`
	MetricsNamespace string `toml:"metrics_namespace"`
	TraceFile        string `toml:"trace_file"`
}

type ClientConfig struct {
	IdleTimeoutMinute int `toml:"idle_timeout_minute"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

// StoreConfigured reports whether the store credentials are present. Without
// them the server only serves the configuration-required screen.
func (c *Config) StoreConfigured() bool {
	return strings.TrimSpace(c.Store.URL) != "" && strings.TrimSpace(c.Store.AnonKey) != ""
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "lumina",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    3000,
			GinMode: "release",
		},
		Store: StoreConfig{
			Driver:       "postgres",
			MaxOpenConns: 50,
			MaxIdleConns: 10,
		},
		Auth: AuthConfig{
			TokenExpireMinute:   60,
			RequireConfirmation: true,
			ConfirmBaseURL:      "http://localhost:3000",
		},
		Inference: InferenceConfig{
			Provider: "gemini",
		},
		RabbitMQ: RabbitMQConfig{
			AuthExchange: "lumina.auth.events",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled:   true,
			MetricsNamespace: "lumina",
		},
		Client: ClientConfig{
			IdleTimeoutMinute: 120,
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.URL = getEnv("STORE_URL", cfg.Store.URL)
	cfg.Store.AnonKey = getEnv("STORE_ANON_KEY", cfg.Store.AnonKey)

	cfg.Auth.TokenExpireMinute = getEnvAsInt("AUTH_TOKEN_EXPIRE_MINUTE", cfg.Auth.TokenExpireMinute)
	cfg.Auth.RequireConfirmation = getEnvAsBool("AUTH_REQUIRE_CONFIRMATION", cfg.Auth.RequireConfirmation)
	cfg.Auth.ConfirmBaseURL = getEnv("AUTH_CONFIRM_BASE_URL", cfg.Auth.ConfirmBaseURL)

	cfg.Inference.Provider = getEnv("INFERENCE_PROVIDER", cfg.Inference.Provider)
	cfg.Inference.APIKey = getEnv("GEMINI_API_KEY", cfg.Inference.APIKey)
	cfg.Inference.APIKey = getEnv("INFERENCE_API_KEY", cfg.Inference.APIKey)
	cfg.Inference.Model = getEnv("INFERENCE_MODEL", cfg.Inference.Model)
	cfg.Inference.BaseURL = getEnv("INFERENCE_BASE_URL", cfg.Inference.BaseURL)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.AuthExchange = getEnv("RABBITMQ_AUTH_EXCHANGE", cfg.RabbitMQ.AuthExchange)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	cfg.Telemetry.MetricsEnabled = getEnvAsBool("METRICS_ENABLED", cfg.Telemetry.MetricsEnabled)
	cfg.Telemetry.MetricsNamespace = getEnv("METRICS_NAMESPACE", cfg.Telemetry.MetricsNamespace)
	cfg.Telemetry.TraceFile = getEnv("TRACE_FILE", cfg.Telemetry.TraceFile)

	cfg.Client.IdleTimeoutMinute = getEnvAsInt("CLIENT_IDLE_TIMEOUT_MINUTE", cfg.Client.IdleTimeoutMinute)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
