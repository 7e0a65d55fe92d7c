package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config aggregates runtime configuration for the API server and supporting services.
type Config struct {
	AppEnv     string
	ListenAddr string
	MySQLDSN   string

	JWTSecret      string
	AccessTokenTTL time.Duration
	GoogleClientID string

	FreeCreditsOnSignup int
	DefaultCurrency     string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string
	// PaymentTestMode bypasses the gateway entirely. It is a dedicated flag,
	// not a debug switch, and Load refuses it when AppEnv is production.
	PaymentTestMode bool

	GeminiAPIKey   string
	GeminiBaseURL  string
	GeminiModel    string
	RequestTimeout time.Duration

	WorkerCount int
	QueueSize   int

	StorageBackend  string
	UploadDir       string
	PublicBaseURL   string
	MaxUploadBytes  int64
	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string

	AdminUsername string
	AdminPassword string

	CORSAllowedOrigins []string

	WatermarkText string
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:              strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),
		ListenAddr:          getEnv("LISTEN_ADDR", ":8000"),
		AccessTokenTTL:      time.Minute * time.Duration(getInt("ACCESS_TOKEN_TTL_MINUTES", 60)),
		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		FreeCreditsOnSignup: getInt("FREE_CREDITS_ON_SIGNUP", 2),
		DefaultCurrency:     strings.ToUpper(getEnv("DEFAULT_CURRENCY", "INR")),
		RazorpayBaseURL:     getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		PaymentTestMode:     getBool("PAYMENT_TEST_MODE", false),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		RequestTimeout:      time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 120)),
		WorkerCount:         getInt("GENERATION_WORKERS", 2),
		QueueSize:           getInt("GENERATION_QUEUE_SIZE", 64),
		StorageBackend:      strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		UploadDir:           getEnv("UPLOAD_DIR", "uploads"),
		PublicBaseURL:       getEnv("PUBLIC_BASE_URL", "http://localhost:8000"),
		MaxUploadBytes:      int64(getInt("MAX_UPLOAD_MB", 10)) << 20,
		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		S3Region:            os.Getenv("S3_REGION"),
		S3AccessKey:         os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:         os.Getenv("S3_SECRET_KEY"),
		S3Bucket:            os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:     os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:      getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:            getEnv("S3_PREFIX", "prewedding"),
		AdminUsername:       getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:       getEnv("ADMIN_PASSWORD", "change-me"),
		CORSAllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		WatermarkText:       getEnv("WATERMARK_TEXT", "PREVIEW"),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.RazorpayKeyID = os.Getenv("RAZORPAY_KEY_ID")
	cfg.RazorpayKeySecret = os.Getenv("RAZORPAY_KEY_SECRET")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	if cfg.AppEnv != EnvDevelopment && cfg.AppEnv != EnvProduction {
		return Config{}, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, cfg.AppEnv)
	}
	if cfg.PaymentTestMode && cfg.AppEnv == EnvProduction {
		return Config{}, errors.New("PAYMENT_TEST_MODE cannot be enabled when APP_ENV=production")
	}

	var missing []string
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.AppEnv == EnvProduction {
		if cfg.MySQLDSN == "" {
			missing = append(missing, "MYSQL_DSN")
		}
		if cfg.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	}
	if !cfg.PaymentTestMode {
		if cfg.RazorpayKeyID == "" {
			missing = append(missing, "RAZORPAY_KEY_ID")
		}
		if cfg.RazorpayKeySecret == "" {
			missing = append(missing, "RAZORPAY_KEY_SECRET")
		}
	}
	if cfg.StorageBackend == "s3" {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if cfg.S3Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
		if cfg.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	} else if cfg.StorageBackend != "local" {
		return Config{}, fmt.Errorf("STORAGE_BACKEND must be \"local\" or \"s3\", got %q", cfg.StorageBackend)
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// Production reports whether the server runs with production safeguards.
func (c Config) Production() bool {
	return c.AppEnv == EnvProduction
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// No env file is fine; the process environment may carry everything.
	return nil
}
