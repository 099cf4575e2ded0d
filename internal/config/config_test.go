package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "accounts")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co/")
	t.Setenv("SUPABASE_S3_ACCESS_KEY", "key")
	t.Setenv("SUPABASE_S3_SECRET_KEY", "secret")
	t.Setenv("SUPABASE_BUCKET", "files")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("account-service")
	require.NoError(t, err)

	require.Equal(t, "8001", cfg.Port)
	require.Equal(t, "https://abc.supabase.co", cfg.Storage.SupabaseURL)
	require.Equal(t, "us-east-1", cfg.Storage.Region)
	require.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	require.Equal(t, 100, cfg.ThrottleLimit)
	require.Equal(t, time.Minute, cfg.ThrottleTTL)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.CorsOrigins)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
	require.False(t, cfg.OAuth.GoogleEnabled())
	require.Equal(t, "postgres://postgres:@localhost:5432/accounts?sslmode=disable", cfg.DB.URL())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGIN", "http://a.test, http://b.test")
	t.Setenv("THROTTLE_LIMIT", "5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	cfg, err := Load("account-service")
	require.NoError(t, err)

	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CorsOrigins)
	require.Equal(t, 5, cfg.ThrottleLimit)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.True(t, cfg.OAuth.GoogleEnabled())
}

func TestLoad_MissingStorageCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("SUPABASE_BUCKET", "")

	_, err := Load("account-service")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Bucket")
}
