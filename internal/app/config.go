package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yungbote/stackmemory-backend/internal/data/db"
	"github.com/yungbote/stackmemory-backend/internal/data/stores"
	"github.com/yungbote/stackmemory-backend/internal/observability"
	"github.com/yungbote/stackmemory-backend/internal/platform/llm"
	"github.com/yungbote/stackmemory-backend/internal/services"
)

type Config struct {
	Port    string
	LogMode string
	LogFile string

	DataProvider      string
	Postgres          db.PostgresConfig
	HostedDatabaseURL string

	JWTSecretKey   string
	AccessTokenTTL time.Duration
	OpenClawAPIKey string
	SecureCookie   bool

	LLM llm.Config

	ProbeTimeout         time.Duration
	ProbeCacheTTL        time.Duration
	RedisAddr            string
	CurrentTasksAutofill int

	CORSOrigins []string
	Otel        observability.OtelConfig
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("DATA_PROVIDER", stores.ProviderLocalPG)
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_NAME", "stackmemory")
	v.SetDefault("HOSTED_DATABASE_URL", "")

	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("ACCESS_TOKEN_TTL", int(services.DefaultAccessTokenTTL/time.Second))
	v.SetDefault("OPENCLAW_API_KEY", "")
	v.SetDefault("SECURE_COOKIE", false)

	v.SetDefault("AI_API_URL", llm.DefaultBaseURL)
	v.SetDefault("AI_MODEL", llm.DefaultModel)
	v.SetDefault("OPENROUTER_API_KEY", "")
	v.SetDefault("AI_TIMEOUT_SECONDS", int(llm.DefaultTimeout/time.Second))
	v.SetDefault("AI_REFERER", "")
	v.SetDefault("AI_TITLE", "StackMemory")

	v.SetDefault("QUALITY_GATE_PROBE_TIMEOUT_SECONDS", 10)
	v.SetDefault("QUALITY_GATE_CACHE_TTL_SECONDS", 600)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("CURRENT_TASKS_AUTOFILL_LIMIT", services.DefaultCurrentTasksAutofillLimit)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "stackmemory-backend")
	v.SetDefault("OTEL_ENVIRONMENT", "development")
	v.SetDefault("OTEL_SERVICE_VERSION", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_HEADERS", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLER_RATIO", 1.0)

	v.AutomaticEnv()
	return v
}

// LoadConfig reads .env (when present), an optional yaml file named by
// CONFIG_FILE, then the environment. Environment values win.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := newViper()
	if file := strings.TrimSpace(os.Getenv("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return configFrom(v)
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

func configFrom(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:    v.GetString("PORT"),
		LogMode: v.GetString("LOG_MODE"),
		LogFile: v.GetString("LOG_FILE"),

		DataProvider: strings.ToLower(strings.TrimSpace(v.GetString("DATA_PROVIDER"))),
		Postgres: db.PostgresConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			Name:     v.GetString("POSTGRES_NAME"),
		},
		HostedDatabaseURL: strings.TrimSpace(v.GetString("HOSTED_DATABASE_URL")),

		JWTSecretKey:   v.GetString("JWT_SECRET_KEY"),
		AccessTokenTTL: seconds(v, "ACCESS_TOKEN_TTL"),
		OpenClawAPIKey: strings.TrimSpace(v.GetString("OPENCLAW_API_KEY")),
		SecureCookie:   v.GetBool("SECURE_COOKIE"),

		LLM: llm.Config{
			BaseURL: v.GetString("AI_API_URL"),
			APIKey:  strings.TrimSpace(v.GetString("OPENROUTER_API_KEY")),
			Model:   v.GetString("AI_MODEL"),
			Timeout: seconds(v, "AI_TIMEOUT_SECONDS"),
			Referer: v.GetString("AI_REFERER"),
			Title:   v.GetString("AI_TITLE"),
		},

		ProbeTimeout:         seconds(v, "QUALITY_GATE_PROBE_TIMEOUT_SECONDS"),
		ProbeCacheTTL:        seconds(v, "QUALITY_GATE_CACHE_TTL_SECONDS"),
		RedisAddr:            strings.TrimSpace(v.GetString("REDIS_ADDR")),
		CurrentTasksAutofill: v.GetInt("CURRENT_TASKS_AUTOFILL_LIMIT"),

		CORSOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		Otel: observability.OtelConfig{
			Enabled:     v.GetBool("OTEL_ENABLED"),
			ServiceName: v.GetString("OTEL_SERVICE_NAME"),
			Environment: v.GetString("OTEL_ENVIRONMENT"),
			Version:     v.GetString("OTEL_SERVICE_VERSION"),
			Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Headers:     observability.ParseHeaders(v.GetString("OTEL_EXPORTER_OTLP_HEADERS")),
			Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
			SampleRatio: v.GetFloat64("OTEL_SAMPLER_RATIO"),
		},
	}

	if strings.TrimSpace(cfg.JWTSecretKey) == "" {
		return Config{}, fmt.Errorf("JWT_SECRET_KEY is required")
	}
	switch cfg.DataProvider {
	case stores.ProviderLocalPG:
	case stores.ProviderHosted:
		if cfg.HostedDatabaseURL == "" {
			return Config{}, fmt.Errorf("HOSTED_DATABASE_URL is required for the %s provider", stores.ProviderHosted)
		}
	default:
		return Config{}, fmt.Errorf("unknown DATA_PROVIDER %q", cfg.DataProvider)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
