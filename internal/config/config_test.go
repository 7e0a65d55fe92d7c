package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// setBaseEnv pins every variable Load consults so ambient shell state cannot
// leak into assertions.
func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_ENV_PATH", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_key")
	t.Setenv("RAZORPAY_KEY_SECRET", "rzp_secret")
	t.Setenv("PAYMENT_TEST_MODE", "")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("DEFAULT_CURRENCY", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "")
	t.Setenv("GENERATION_WORKERS", "")
	t.Setenv("GENERATION_QUEUE_SIZE", "")
	t.Setenv("MAX_UPLOAD_MB", "")
	t.Setenv("WATERMARK_TEXT", "")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, EnvDevelopment, cfg.AppEnv)
	require.False(t, cfg.Production())
	require.Equal(t, ":8000", cfg.ListenAddr)
	require.Equal(t, time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, 2, cfg.FreeCreditsOnSignup)
	require.Equal(t, "INR", cfg.DefaultCurrency)
	require.Equal(t, "https://api.razorpay.com", cfg.RazorpayBaseURL)
	require.False(t, cfg.PaymentTestMode)
	require.Equal(t, "gemini-2.5-flash-image", cfg.GeminiModel)
	require.Equal(t, 2*time.Minute, cfg.RequestTimeout)
	require.Equal(t, 2, cfg.WorkerCount)
	require.Equal(t, 64, cfg.QueueSize)
	require.Equal(t, "local", cfg.StorageBackend)
	require.Equal(t, int64(10)<<20, cfg.MaxUploadBytes)
	require.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	require.Equal(t, "PREVIEW", cfg.WatermarkText)
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LISTEN_ADDR", ":9100")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "15")
	t.Setenv("DEFAULT_CURRENCY", "usd")
	t.Setenv("GENERATION_WORKERS", "4")
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.ListenAddr)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, "USD", cfg.DefaultCurrency)
	require.Equal(t, 4, cfg.WorkerCount)
	require.Equal(t, int64(5)<<20, cfg.MaxUploadBytes)
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadMissingJWTSecret(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadRazorpayKeysRequiredUnlessTestMode(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RAZORPAY_KEY_ID", "")
	t.Setenv("RAZORPAY_KEY_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "RAZORPAY_KEY_ID")

	t.Setenv("PAYMENT_TEST_MODE", "true")
	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.PaymentTestMode)
}

func TestLoadRejectsTestModeInProduction(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/app")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("PAYMENT_TEST_MODE", "true")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "PAYMENT_TEST_MODE")
}

func TestLoadProductionRequirements(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "MYSQL_DSN")
	require.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestLoadRejectsUnknownAppEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "staging")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "APP_ENV")
}

func TestLoadS3Backend(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_BACKEND", "s3")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "S3_REGION")
	require.Contains(t, err.Error(), "S3_BUCKET")

	t.Setenv("S3_REGION", "ap-south-1")
	t.Setenv("S3_ACCESS_KEY", "ak")
	t.Setenv("S3_SECRET_KEY", "sk")
	t.Setenv("S3_BUCKET", "prewedding-media")
	t.Setenv("S3_PUBLIC_BASE_URL", "https://cdn.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "s3", cfg.StorageBackend)
	require.Equal(t, "prewedding", cfg.S3Prefix)
}

func TestLoadRejectsUnknownStorageBackend(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_BACKEND", "ftp")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "STORAGE_BACKEND")
}

func TestLoadEnvFile(t *testing.T) {
	setBaseEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEFAULT_CURRENCY=eur\nWATERMARK_TEXT=SAMPLE\n"), 0o644))
	t.Setenv("CONFIG_ENV_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "EUR", cfg.DefaultCurrency)
	require.Equal(t, "SAMPLE", cfg.WatermarkText)
}
