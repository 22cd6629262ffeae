package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Auth      AuthConfig
	AWS       AWSConfig
	Email     EmailConfig
	App       AppConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AuthConfig controls who counts as an administrator.
type AuthConfig struct {
	// RequireAdminRole restricts the admin panel to role "admin". When false
	// any authenticated user is an administrator.
	RequireAdminRole bool
	SeedEmail        string
	SeedPassword     string
	SeedName         string
}

// AWSConfig holds AWS credentials and S3 bucket names.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	PhotosBucket         string
	ExportsBucket        string
	PresignExpireMinutes int
}

// EmailConfig holds SMTP settings and the default notification switches.
// Stored settings override the Enable* defaults at runtime.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string

	ConfirmationEnabled      bool
	CancellationEnabled      bool
	IndividualRequestEnabled bool
}

// AppConfig holds public-facing application settings.
type AppConfig struct {
	PublicURL string // base URL of the frontend, used in links and QR codes
	APIURL    string // externally reachable base URL of this API, used for calendar links
	ICSDomain string // domain part of calendar event UIDs
	Timezone  string
}

// RateLimitConfig throttles public write endpoints per client IP.
type RateLimitConfig struct {
	PublicPerMinute int
	Burst           int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Location resolves the configured time zone. Session dates and times are
// wall-clock values in this zone.
func (c AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "groeigesprek"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 12),
		},
		Auth: AuthConfig{
			RequireAdminRole: getEnvBool("AUTH_REQUIRE_ADMIN_ROLE", false),
			SeedEmail:        getEnv("ADMIN_EMAIL", ""),
			SeedPassword:     getEnv("ADMIN_PASSWORD", ""),
			SeedName:         getEnv("ADMIN_NAME", "Administrator"),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			PhotosBucket:         getEnv("AWS_S3_PHOTOS_BUCKET", "groeigesprek-colleagues"),
			ExportsBucket:        getEnv("AWS_S3_EXPORTS_BUCKET", "groeigesprek-exports"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress:              getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:                 getEnv("EMAIL_FROM_NAME", "Groeigesprekken"),
			SMTPHost:                 getEnv("SMTP_HOST", ""),
			SMTPPort:                 getEnvInt("SMTP_PORT", 587),
			SMTPUser:                 getEnv("SMTP_USER", ""),
			SMTPPass:                 getEnv("SMTP_PASS", ""),
			ConfirmationEnabled:      getEnvBool("EMAIL_CONFIRMATION_ENABLED", false),
			CancellationEnabled:      getEnvBool("EMAIL_CANCELLATION_ENABLED", false),
			IndividualRequestEnabled: getEnvBool("EMAIL_INDIVIDUAL_REQUEST_ENABLED", true),
		},
		App: AppConfig{
			PublicURL: strings.TrimRight(getEnv("APP_PUBLIC_URL", "http://localhost:3000"), "/"),
			APIURL:    strings.TrimRight(getEnv("API_PUBLIC_URL", "http://localhost:8080"), "/"),
			ICSDomain: getEnv("ICS_DOMAIN", "groeigesprekken.local"),
			Timezone:  getEnv("APP_TIMEZONE", "Europe/Amsterdam"),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: getEnvInt("RATE_LIMIT_PUBLIC_PER_MINUTE", 30),
			Burst:           getEnvInt("RATE_LIMIT_BURST", 5),
		},
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
