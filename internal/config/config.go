package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Storage    StorageConfig
	Auth       AuthConfig
	CORS       CORSConfig
	Email      EmailConfig
	Newsletter NewsletterConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
	Debug   bool
	Port    string
	Host    string
}

// DatabaseConfig holds database configuration.
// An empty URL selects the JSON file backend.
type DatabaseConfig struct {
	URL string
}

// StorageConfig holds settings shared by both storage backends
type StorageConfig struct {
	DataFile         string
	StatsWindowDays  int
	OperationTimeout time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	SecretKey          string
	TokenExpiryMinutes int
	AdminPassword      string // first-run fallback, ignored once a credential is stored
	AdminEmail         string
	OTPValidityMinutes int
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// EmailConfig holds email service configuration
type EmailConfig struct {
	Enabled   bool
	SMTPHost  string
	SMTPPort  int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// NewsletterConfig holds newsletter confirmation settings.
// APIURL is where this server is reachable and prefixes the emailed
// confirmation link; PublicURL is the site the link redirects back to.
type NewsletterConfig struct {
	PublicURL     string
	APIURL        string
	TokenTTLHours int
}

const (
	MinStatsWindowDays = 14
	MaxStatsWindowDays = 30
)

var globalConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "Portfolio API"),
			Version: getEnv("APP_VERSION", "1.0.0"),
			Debug:   getEnvAsBool("DEBUG", false),
			Port:    getEnv("PORT", "5000"),
			Host:    getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		},
		Storage: StorageConfig{
			DataFile:         getEnv("DATA_FILE", "./data/site.json"),
			StatsWindowDays:  getEnvAsInt("STATS_WINDOW_DAYS", MaxStatsWindowDays),
			OperationTimeout: getEnvAsDuration("STORAGE_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			SecretKey:          getEnv("SECRET_KEY", "your-secret-key-change-in-production"),
			TokenExpiryMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 120),
			AdminPassword:      getEnv("ADMIN_PASSWORD", "admin123"),
			AdminEmail:         getEnv("ADMIN_EMAIL", ""),
			OTPValidityMinutes: getEnvAsInt("OTP_VALIDITY_MINUTES", 5),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
			MaxAge:         86400,
		},
		Email: EmailConfig{
			Enabled:   getEnvAsBool("EMAIL_ENABLED", false),
			SMTPHost:  getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:  getEnvAsInt("SMTP_PORT", 587),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromEmail: getEnv("EMAIL_FROM", "noreply@localhost"),
			FromName:  getEnv("EMAIL_FROM_NAME", "Portfolio"),
		},
		Newsletter: NewsletterConfig{
			PublicURL:     strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:5173"), "/"),
			APIURL:        strings.TrimRight(getEnv("API_URL", "http://localhost:5000"), "/"),
			TokenTTLHours: getEnvAsInt("NEWSLETTER_TOKEN_TTL_HOURS", 48),
		},
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	globalConfig = config
	return config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.App.Port == "" {
		return fmt.Errorf("PORT must be set")
	}
	if !cfg.Database.IsConfigured() && cfg.Storage.DataFile == "" {
		return fmt.Errorf("either DATABASE_URL or DATA_FILE must be set")
	}
	if cfg.Storage.StatsWindowDays < MinStatsWindowDays || cfg.Storage.StatsWindowDays > MaxStatsWindowDays {
		return fmt.Errorf("STATS_WINDOW_DAYS must be between %d and %d", MinStatsWindowDays, MaxStatsWindowDays)
	}
	if cfg.Storage.OperationTimeout <= 0 {
		return fmt.Errorf("STORAGE_TIMEOUT must be greater than 0")
	}
	if cfg.Auth.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY must be set")
	}
	if cfg.Auth.TokenExpiryMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be greater than 0")
	}
	if cfg.Auth.OTPValidityMinutes <= 0 {
		return fmt.Errorf("OTP_VALIDITY_MINUTES must be greater than 0")
	}
	if cfg.Newsletter.TokenTTLHours <= 0 {
		return fmt.Errorf("NEWSLETTER_TOKEN_TTL_HOURS must be greater than 0")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		// Load default config if not loaded
		config, _ := Load()
		return config
	}
	return globalConfig
}

// OTPValidity returns the lifetime of an admin login code
func (c *AuthConfig) OTPValidity() time.Duration {
	return time.Duration(c.OTPValidityMinutes) * time.Minute
}

// TokenExpiry returns the lifetime of an admin session token
func (c *AuthConfig) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpiryMinutes) * time.Minute
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// IsConfigured reports whether a relational connection string is present
func (c *DatabaseConfig) IsConfigured() bool {
	return c.URL != ""
}

// IsPostgres checks if the database URL is for PostgreSQL
func (c *DatabaseConfig) IsPostgres() bool {
	url := strings.ToLower(c.URL)
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return true
	}
	// key=value DSN form
	return strings.Contains(url, "host=") && strings.Contains(url, "dbname=")
}

// GetPostgresDSN returns the connection string handed to the pgx driver,
// which accepts both URL and key=value forms. A sslmode is added for URLs
// that omit one so local development databases work out of the box.
func (c *DatabaseConfig) GetPostgresDSN() string {
	url := c.URL
	if strings.Contains(url, "://") && !strings.Contains(url, "sslmode=") {
		if strings.Contains(url, "?") {
			return url + "&sslmode=disable"
		}
		return url + "?sslmode=disable"
	}
	return url
}

// GetSQLitePath extracts SQLite database path from URL
func (c *DatabaseConfig) GetSQLitePath() string {
	url := c.URL
	if len(url) > 10 && url[:10] == "sqlite:///" {
		return url[10:]
	}
	if strings.HasPrefix(url, "file:") {
		return url
	}
	return strings.TrimPrefix(url, "sqlite://")
}
