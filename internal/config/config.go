package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Pipeline PipelineConfig
	Matching MatchingConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	ScrapeRateLimit float64
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	URL string
}

type BrowserConfig struct {
	Headless       bool
	NavTimeout     time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	UserAgents     []string
}

type ScraperConfig struct {
	ScrapeTimeout time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	OutputDir     string
}

type PipelineConfig struct {
	Workers    int
	MinDelay   time.Duration
	MaxDelay   time.Duration
	BatchLimit int
}

type MatchingConfig struct {
	MinConfidence float64
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", "8000"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSOrigins:     getStringSliceOrDefault("CORS_ORIGINS", []string{"http://localhost:3000"}),
			ScrapeRateLimit: getFloatOrDefault("SCRAPE_RATE_LIMIT", 1),
		},
		Database: DatabaseConfig{
			URL:      getEnvOrDefault("DATABASE_URL", ""),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "pricehawk"),
		},
		Redis: RedisConfig{
			URL: getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			NavTimeout:     getDurationOrDefault("BROWSER_NAV_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "th-TH,th;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Bangkok"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "th-TH"),
			UserAgents:     getStringSliceOrDefault("BROWSER_USER_AGENTS", defaultUserAgents()),
		},
		Scraper: ScraperConfig{
			ScrapeTimeout: getDurationOrDefault("SCRAPE_TIMEOUT", 60*time.Second),
			MaxRetries:    getIntOrDefault("SCRAPE_MAX_RETRIES", 3),
			RetryDelay:    getDurationOrDefault("SCRAPE_RETRY_DELAY", 5*time.Second),
			OutputDir:     getEnvOrDefault("SCRAPE_OUTPUT_DIR", "data"),
		},
		Pipeline: PipelineConfig{
			Workers:    getIntOrDefault("PIPELINE_WORKERS", 6),
			MinDelay:   getDurationOrDefault("PIPELINE_MIN_DELAY", 3*time.Second),
			MaxDelay:   getDurationOrDefault("PIPELINE_MAX_DELAY", 8*time.Second),
			BatchLimit: getIntOrDefault("PIPELINE_BATCH_LIMIT", 0),
		},
		Matching: MatchingConfig{
			MinConfidence: getFloatOrDefault("MATCHING_MIN_CONFIDENCE", 0.5),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("DATABASE_URL or DB_HOST must be set")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}

	if c.Pipeline.MinDelay > c.Pipeline.MaxDelay {
		return fmt.Errorf("PIPELINE_MIN_DELAY cannot be greater than PIPELINE_MAX_DELAY")
	}

	if c.Matching.MinConfidence < 0 || c.Matching.MinConfidence > 1 {
		return fmt.Errorf("MATCHING_MIN_CONFIDENCE must be between 0 and 1")
	}

	if c.Scraper.ScrapeTimeout < time.Second {
		return fmt.Errorf("SCRAPE_TIMEOUT must be at least 1s")
	}

	return nil
}

// ConnString builds the pgx connection string. DATABASE_URL wins when set;
// otherwise the discrete DB_* variables are assembled, requiring SSL for
// anything that is not a local database.
func (c DatabaseConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}

	sslMode := "disable"
	if c.Host != "localhost" && c.Host != "127.0.0.1" {
		sslMode = "require"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, c.Name, sslMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
