package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// devJWTSecret signs tokens when ENV=development and JWT_SECRET is unset.
const devJWTSecret = "clinic-development-secret-do-not-use-in-production"

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	KafkaBrokers      string        `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic        string        `mapstructure:"KAFKA_TOPIC"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	JWTIssuer         string        `mapstructure:"JWT_ISSUER"`
	JWTTTL            time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	LoginRateLimit    int           `mapstructure:"LOGIN_RATE_LIMIT"`
	LoginRateWindow   time.Duration `mapstructure:"LOGIN_RATE_WINDOW"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit         string        `mapstructure:"BODY_LIMIT"`
	OTelEnabled       bool          `mapstructure:"OTEL_ENABLED"`
	OTelEndpoint      string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSamplingRatio float64       `mapstructure:"OTEL_SAMPLING_RATIO"`
	CatalogCacheTTL   time.Duration `mapstructure:"CATALOG_CACHE_TTL"`
	OutboxPollEvery   time.Duration `mapstructure:"OUTBOX_POLL_EVERY"`
	OutboxBatchSize   int           `mapstructure:"OUTBOX_BATCH_SIZE"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"JWT_SECRET", "JWT_ISSUER", "JWT_TTL", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOGIN_RATE_LIMIT", "LOGIN_RATE_WINDOW",
	"REQUEST_TIMEOUT", "BODY_LIMIT",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SAMPLING_RATIO",
	"CATALOG_CACHE_TTL", "OUTBOX_POLL_EVERY", "OUTBOX_BATCH_SIZE",
}

func Load() (*Config, error) {
	// A missing .env is fine; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("KAFKA_TOPIC", "clinic.appointments")
	v.SetDefault("JWT_ISSUER", "clinic-server")
	v.SetDefault("JWT_TTL", "720h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOGIN_RATE_WINDOW", "1m")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_SAMPLING_RATIO", 1.0)
	v.SetDefault("CATALOG_CACHE_TTL", "5m")
	v.SetDefault("OUTBOX_POLL_EVERY", "2s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Unmarshal splits on commas but keeps the surrounding spaces.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET is not set; using the built-in development secret.")
		log.Println("WARNING: Set ENV=production and JWT_SECRET before exposing this server.")
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Brokers returns the configured Kafka brokers, empty when publishing is off.
func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if !c.IsDev() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters outside development, got %d", len(c.JWTSecret))
	}
	if !c.IsDev() && c.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must not be the development secret when ENV=%q", c.Env)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.OTelSamplingRatio < 0 || c.OTelSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1, got %v", c.OTelSamplingRatio)
	}
	if c.LoginRateLimit <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must be positive, got %d", c.LoginRateLimit)
	}
	return nil
}
