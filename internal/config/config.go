package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime settings sourced from the environment.
type Config struct {
	AppEnv   string
	LogLevel string

	HTTPListenAddr   string
	HTTPBasePath     string
	MetricsNamespace string

	DatabaseURL    string
	DatabaseSchema string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	WhatsAppStorePath string
	WhatsAppLogLevel  string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration

	GCSBucket string

	// Natillera business rules.
	ExpectedAccount      string
	MonthlyFeeDefault    int64
	GraceDueDay          int
	TypicalFeeMin        int64
	TypicalFeeMax        int64
	PendingSessionTTL    time.Duration
	AuthSessionTTL       time.Duration
	MaxPINAttempts       int
	PartialSponsorStatus string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPListenAddr:   getEnv("HTTP_LISTEN_ADDR", ":8080"),
		HTTPBasePath:     os.Getenv("HTTP_BASE_PATH"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "natillera"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DatabaseSchema: getEnv("DATABASE_SCHEMA", "public"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		WhatsAppStorePath: getEnv("WHATSAPP_STORE_PATH", "data/whatsapp.db"),
		WhatsAppLogLevel:  getEnv("WHATSAPP_LOG_LEVEL", "INFO"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		GCSBucket: os.Getenv("GCS_BUCKET"),

		ExpectedAccount:      os.Getenv("EXPECTED_ACCOUNT"),
		PartialSponsorStatus: getEnv("PARTIAL_SPONSOR_STATUS", "pending"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	cfg.RedisTLS = getEnvBool("REDIS_TLS", false)

	if cfg.GeminiTimeout, err = getEnvDuration("GEMINI_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	fee, err := getEnvInt("MONTHLY_FEE_DEFAULT", 150000)
	if err != nil {
		return nil, err
	}
	cfg.MonthlyFeeDefault = int64(fee)

	if cfg.GraceDueDay, err = getEnvInt("GRACE_DUE_DAY", 5); err != nil {
		return nil, err
	}

	typicalMin, err := getEnvInt("TYPICAL_FEE_MIN", 50000)
	if err != nil {
		return nil, err
	}
	typicalMax, err := getEnvInt("TYPICAL_FEE_MAX", 500000)
	if err != nil {
		return nil, err
	}
	cfg.TypicalFeeMin = int64(typicalMin)
	cfg.TypicalFeeMax = int64(typicalMax)

	if cfg.PendingSessionTTL, err = getEnvDuration("PENDING_SESSION_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AuthSessionTTL, err = getEnvDuration("AUTH_SESSION_TTL", 60*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxPINAttempts, err = getEnvInt("MAX_PIN_ATTEMPTS", 3); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}
