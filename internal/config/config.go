package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the API process reads from the environment.
type Config struct {
	AppEnv string
	Port   string

	DB DBConfig

	JWTSecret string
	JWTTTL    time.Duration

	CORSOrigins []string

	LogLevel string
	LogFile  string

	RedisURL      string
	VoteRateLimit int // requests per minute per user
	VoteSelfHeal  bool

	UploadDir      string
	UploadBaseURL  string
	MaxUploadBytes int64

	Twilio TwilioConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the connection string in the form gorm's postgres driver expects.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Enabled reports whether SMS delivery is configured.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// Load reads the configuration from the environment. Callers that want a
// .env file loaded should do so before calling Load.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "campus_events"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWTSecret:     getEnv("JWT_SECRET", ""),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		UploadBaseURL: strings.TrimRight(getEnv("UPLOAD_BASE_URL", "/uploads"), "/"),
		Twilio: TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		},
	}

	var err error
	if cfg.JWTTTL, err = time.ParseDuration(getEnv("JWT_TTL", "72h")); err != nil {
		return nil, fmt.Errorf("JWT_TTL must be a duration: %w", err)
	}
	if cfg.VoteRateLimit, err = strconv.Atoi(getEnv("VOTE_RATE_LIMIT", "30")); err != nil {
		return nil, fmt.Errorf("VOTE_RATE_LIMIT must be an integer: %w", err)
	}
	if cfg.VoteSelfHeal, err = strconv.ParseBool(getEnv("VOTE_SELF_HEAL", "true")); err != nil {
		return nil, fmt.Errorf("VOTE_SELF_HEAL must be a boolean: %w", err)
	}
	if cfg.MaxUploadBytes, err = strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "5242880"), 10, 64); err != nil {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be an integer: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.VoteRateLimit <= 0 {
		return nil, fmt.Errorf("VOTE_RATE_LIMIT must be positive")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	// Twilio: all three or none
	t := cfg.Twilio
	if (t.AccountSID != "" || t.AuthToken != "" || t.FromNumber != "") && !t.Enabled() {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER must be set together")
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
