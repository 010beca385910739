package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/nekogravitycat/locker-booking-backend/internal/logger"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	ProdOrigins string `envconfig:"PROD_ORIGINS"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// Database
	DBDSN         string `envconfig:"DB_DSN" required:"true"`
	DBAutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`

	// JWT
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	JWTAccessTokenTTL time.Duration `envconfig:"JWT_ACCESS_TOKEN_TTL" default:"15m"`

	// Payment callbacks must carry this value in X-Webhook-Secret. Required in
	// production; unset outside it leaves the callbacks open for local testing.
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`

	Timezone  string `envconfig:"APP_TIMEZONE" default:"Asia/Colombo"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Optional infrastructure. Empty disables the integration.
	RedisURL     string `envconfig:"REDIS_URL"`
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"locker.events"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Lifecycle
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"60s"`
	PaymentTimeout time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"10m"`
	SessionGrace   time.Duration `envconfig:"SESSION_GRACE" default:"10m"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"10"`

	// Slot calendar. Slots never wrap past midnight, so SLOT_MAX is an upper
	// bound; the defaults fit 15 slots (06:00 to 23:20).
	SlotFirstStart string        `envconfig:"SLOT_FIRST_START" default:"06:00"`
	SlotLength     time.Duration `envconfig:"SLOT_LENGTH" default:"60m"`
	SlotGap        time.Duration `envconfig:"SLOT_GAP" default:"10m"`
	SlotMax        int           `envconfig:"SLOT_MAX" default:"15"`

	// Derived
	IsProduction         bool           `ignored:"true"`
	Location             *time.Location `ignored:"true"`
	SlotFirstStartOffset time.Duration  `ignored:"true"`
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logger.Log.WithField("error", err.Error()).Debug("no .env file loaded")
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finalize() error {
	c.IsProduction = c.AppEnv == PROD_STRING

	// Database DSN is required
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	// JWT secret is required for signing tokens
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.IsProduction && c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required in production")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	c.Location = loc

	start, err := time.Parse("15:04", c.SlotFirstStart)
	if err != nil {
		return fmt.Errorf("invalid SLOT_FIRST_START: %w", err)
	}
	c.SlotFirstStartOffset = time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute

	if c.SlotLength <= 0 {
		return fmt.Errorf("SLOT_LENGTH must be positive")
	}
	if c.SlotGap < 0 {
		return fmt.Errorf("SLOT_GAP must not be negative")
	}
	if c.SlotMax < 1 {
		return fmt.Errorf("SLOT_MAX must be at least 1")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return nil
}
