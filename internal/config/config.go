package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string
	GoEnv string // development / production

	DatabaseURL      string // takes priority over the POSTGRES_* values
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	JWTSecret   string
	FrontendURL string // redirect base for checkout success/cancel

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeTimeout       time.Duration
	Currency            string

	PremiumPriceCents  int64
	PremiumBoxSize     int
	SubscriptionMonths int

	RabbitMQURL         string // empty disables order events
	OrderEventsExchange string
}

func (c Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// LoadDotenv reads a .env file when one exists; a missing file is not an error.
func LoadDotenv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port:  getenv("PORT", "8080"),
		GoEnv: getenv("GO_ENV", "development"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "app"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		FrontendURL: os.Getenv("FRONTEND_URL"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:            getenv("CURRENCY", "usd"),

		RabbitMQURL:         os.Getenv("RABBITMQ_URL"),
		OrderEventsExchange: getenv("ORDER_EVENTS_EXCHANGE", "orders"),
	}

	var err error
	if cfg.PostgresPort, err = atoiDefault("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.PremiumBoxSize, err = atoiDefault("PREMIUM_BOX_SIZE", 3); err != nil {
		return Config{}, err
	}
	if cfg.SubscriptionMonths, err = atoiDefault("SUBSCRIPTION_MONTHS", 1); err != nil {
		return Config{}, err
	}
	price, err := atoiDefault("PREMIUM_PRICE_CENTS", 1999)
	if err != nil {
		return Config{}, err
	}
	cfg.PremiumPriceCents = int64(price)

	cfg.StripeTimeout = 10 * time.Second
	if v := os.Getenv("STRIPE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("STRIPE_TIMEOUT must be a duration: %w", err)
		}
		cfg.StripeTimeout = d
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.FrontendURL == "" {
		return Config{}, fmt.Errorf("FRONTEND_URL is required")
	}
	if cfg.StripeSecretKey == "" {
		return Config{}, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if cfg.StripeWebhookSecret == "" {
		return Config{}, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if cfg.PremiumBoxSize < 1 {
		return Config{}, fmt.Errorf("PREMIUM_BOX_SIZE must be >= 1")
	}
	if cfg.SubscriptionMonths < 1 {
		return Config{}, fmt.Errorf("SUBSCRIPTION_MONTHS must be >= 1")
	}
	if cfg.StripeTimeout <= 0 {
		return Config{}, fmt.Errorf("STRIPE_TIMEOUT must be positive")
	}

	return cfg, nil
}

// DSN builds the postgres connection string.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}
