// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Public base URL of the API (e.g., https://api.quillbase.dev)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Optional YAML file overriding the compiled-in resource policies
	PolicyFile string `env:"POLICY_FILE"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitAPIEnabled    bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitPublicEnabled bool `env:"RATE_LIMIT_PUBLIC_ENABLED" envDefault:"true"`
	RateLimitPublicRPM     int  `env:"RATE_LIMIT_PUBLIC_RPM" envDefault:"10"`
	RateLimitPublicBurst   int  `env:"RATE_LIMIT_PUBLIC_BURST" envDefault:"5"`

	// Read-through cache for public records
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// Outgoing mail (SMTP)
	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPTLS      string `env:"SMTP_TLS" envDefault:"opportunistic"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"no-reply@quillbase.local"`
	MailFromName string `env:"MAIL_FROM_NAME" envDefault:"Quillbase"`
	AdminEmail   string `env:"ADMIN_EMAIL"`

	// Google login
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/google/token"`

	// Media scraping and downloads
	MediaDownloadDir  string        `env:"MEDIA_DOWNLOAD_DIR" envDefault:"./media"`
	MediaFetchTimeout time.Duration `env:"MEDIA_FETCH_TIMEOUT" envDefault:"15s"`
	MediaMaxBytes     int64         `env:"MEDIA_MAX_BYTES" envDefault:"524288000"`

	// Background jobs (Redis Streams)
	JobsWorkerEnabled bool  `env:"JOBS_WORKER_ENABLED" envDefault:"true"`
	JobsMaxAttempts   int   `env:"JOBS_MAX_ATTEMPTS" envDefault:"6"`
	JobsStreamMaxLen  int64 `env:"JOBS_STREAM_MAXLEN" envDefault:"100000"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Seconds shared caches may keep anonymous blog and page reads; 0 disables
	PublicCacheMaxAge int `env:"PUBLIC_CACHE_MAX_AGE" envDefault:"30"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GoogleEnabled reports whether Google login is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be positive, got %d", cfg.MaxRequestBodySize)
	}
	if cfg.PublicCacheMaxAge < 0 {
		return nil, fmt.Errorf("PUBLIC_CACHE_MAX_AGE must not be negative, got %d", cfg.PublicCacheMaxAge)
	}
	return cfg, nil
}
