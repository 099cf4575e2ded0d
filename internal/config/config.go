package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	Port        string
	LogLevel    slog.Level

	DB       DBConfig
	JWT      JWTConfig
	Storage  StorageConfig
	OAuth    OAuthConfig
	NatsURL  string `validate:"required"`
	RedisURL string `validate:"required"`

	CorsOrigins   []string
	ThrottleLimit int
	ThrottleTTL   time.Duration
	OtelEndpoint  string
}

type DBConfig struct {
	User     string `validate:"required"`
	Password string
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	Name     string `validate:"required"`
	SSLMode  string
}

func (c DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type JWTConfig struct {
	Secret     string `validate:"required,min=16"`
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type StorageConfig struct {
	SupabaseURL string `validate:"required,url"`
	AccessKey   string `validate:"required"`
	SecretKey   string `validate:"required"`
	Bucket      string `validate:"required"`
	Region      string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	RedirectURL        string
}

func (c OAuthConfig) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load reads .env.dev when present and then the process environment.
func Load(serviceName string) (*Config, error) {
	if err := godotenv.Load(".env.dev"); err != nil {
		fmt.Println("No .env.dev file found, reading from environment variables")
	}

	cfg := &Config{
		ServiceName: serviceName,
		Port:        getEnv("APP_PORT", "8001"),
		LogLevel:    parseLevel(os.Getenv("LOG_LEVEL")),
		DB: DBConfig{
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:     os.Getenv("JWT_SECRET"),
			Issuer:     getEnv("JWT_ISSUER", "account-service"),
			AccessTTL:  getDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTTL: getDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
		},
		Storage: StorageConfig{
			SupabaseURL: strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			AccessKey:   os.Getenv("SUPABASE_S3_ACCESS_KEY"),
			SecretKey:   os.Getenv("SUPABASE_S3_SECRET_KEY"),
			Bucket:      os.Getenv("SUPABASE_BUCKET"),
			Region:      getEnv("S3_REGION", "us-east-1"),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:        getEnv("OAUTH_REDIRECT_URL", "http://localhost:8001/v1/auth/oauth/google/callback"),
		},
		NatsURL:       getEnv("NATS_URL", "nats://localhost:4222"),
		RedisURL:      getEnv("REDIS_ADDR", "localhost:6379"),
		CorsOrigins:   splitList(getEnv("CORS_ORIGIN", "http://localhost:3000")),
		ThrottleLimit: getInt("THROTTLE_LIMIT", 100),
		ThrottleTTL:   time.Duration(getInt("THROTTLE_TTL", 60000)) * time.Millisecond,
		OtelEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "jaeger:4317"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
