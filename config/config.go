package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	awspkg "checkout-service/pkg/aws"
	"checkout-service/sender"

	"github.com/joho/godotenv"
)

// Secrets Manager names read when AWS_USE_SECRETS=true.
const (
	DBSecretName     = "checkout/DB_CREDENTIALS"
	StripeSecretName = "checkout/STRIPE"
)

type Config struct {
	Port string
	Env  string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	StripeSecretKey  string
	StripeWebhookKey string

	Currency          string
	ShippingFee       int64
	ShippingRateTable string
	TotalTolerance    int64
	PaymentTimeout    time.Duration
	NotifyTimeout     time.Duration
	RequestTimeout    time.Duration

	JWTSecret         string
	ProductServiceURL string
	RedisURL          string
	IdempotencyTTL    time.Duration

	OrderSNSTopicARN string
	KafkaBrokers     []string
	OrderEventsTopic string

	SMTP sender.SMTPConfig

	AWSRegion           string
	AWSEndpoint         string
	UseSecrets          bool
	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string

	AllowedOrigins     []string
	RateLimitPerMinute int
	RateLimitBurst     int
}

// SecretReader decodes a JSON secret by name.
type SecretReader interface {
	GetSecretJSON(ctx context.Context, name string, out interface{}) error
}

// LoadConfig reads .env (if present) and the environment, then overlays
// Secrets Manager values when AWS_USE_SECRETS=true.
func LoadConfig(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.UseSecrets {
		awsCfg, err := awspkg.LoadAWSConfig(ctx, cfg.AWSOptions())
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the environment without validating required values.
func FromEnv() (*Config, error) {
	var errs []string
	intVar := func(key string, fallback int64) int64 {
		raw := os.Getenv(key)
		if raw == "" {
			return fallback
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be a non-negative integer", key))
			return fallback
		}
		return v
	}
	durationVar := func(key string, fallback time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return fallback
		}
		v, err := time.ParseDuration(raw)
		if err != nil || v <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be a positive duration", key))
			return fallback
		}
		return v
	}

	cfg := &Config{
		Port: getEnv("PORT", "8085"),
		Env:  getEnv("APP_ENV", "development"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Ho_Chi_Minh"),

		StripeSecretKey:  os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		Currency:          strings.ToLower(getEnv("CURRENCY", "vnd")),
		ShippingFee:       intVar("SHIPPING_FEE", 20000),
		ShippingRateTable: os.Getenv("SHIPPING_RATE_TABLE"),
		TotalTolerance:    intVar("TOTAL_TOLERANCE", 0),
		PaymentTimeout:    durationVar("PAYMENT_TIMEOUT", 10*time.Second),
		NotifyTimeout:     durationVar("NOTIFY_TIMEOUT", 15*time.Second),
		RequestTimeout:    durationVar("REQUEST_TIMEOUT", 30*time.Second),

		JWTSecret:         strings.TrimSpace(os.Getenv("JWT_SECRET")),
		ProductServiceURL: os.Getenv("PRODUCT_SERVICE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		IdempotencyTTL:    durationVar("IDEMPOTENCY_TTL", 24*time.Hour),

		OrderSNSTopicARN: os.Getenv("ORDER_SNS_TOPIC_ARN"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order-events"),

		SMTP: sender.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SMTP_FROM"),
		},

		AWSRegion:           os.Getenv("AWS_REGION"),
		AWSEndpoint:         os.Getenv("AWS_ENDPOINT"),
		UseSecrets:          os.Getenv("AWS_USE_SECRETS") == "true",
		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "ECommerce"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/ecommerce/services"),

		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitPerMinute: int(intVar("RATE_LIMIT_PER_MINUTE", 100)),
		RateLimitBurst:     int(intVar("RATE_LIMIT_BURST", 50)),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// ApplySecrets overlays database and Stripe credentials from Secrets Manager.
// Keys missing from a secret keep their environment value.
func (c *Config) ApplySecrets(ctx context.Context, secrets SecretReader) error {
	var db map[string]string
	if err := secrets.GetSecretJSON(ctx, DBSecretName, &db); err != nil {
		return fmt.Errorf("failed to load database secret: %w", err)
	}
	overlay(&c.PostgresUser, db["POSTGRES_USER"])
	overlay(&c.PostgresPassword, db["POSTGRES_PASSWORD"])
	overlay(&c.PostgresDB, db["POSTGRES_DB"])
	overlay(&c.PostgresHost, db["POSTGRES_HOST"])
	overlay(&c.PostgresPort, db["POSTGRES_PORT"])

	var stripeSecret map[string]string
	if err := secrets.GetSecretJSON(ctx, StripeSecretName, &stripeSecret); err != nil {
		return fmt.Errorf("failed to load stripe secret: %w", err)
	}
	overlay(&c.StripeSecretKey, stripeSecret["STRIPE_API_KEY"])
	overlay(&c.StripeWebhookKey, stripeSecret["STRIPE_WEBHOOK_SECRET"])
	return nil
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.StripeSecretKey == "" || c.StripeWebhookKey == "" {
		return fmt.Errorf("STRIPE_API_KEY and STRIPE_WEBHOOK_SECRET are required")
	}
	if c.Currency == "" {
		return fmt.Errorf("CURRENCY is required")
	}
	return nil
}

// DSN is the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

func (c *Config) AWSOptions() awspkg.Options {
	return awspkg.Options{Region: c.AWSRegion, Endpoint: c.AWSEndpoint}
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.TrimSuffix(part, "/"))
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
