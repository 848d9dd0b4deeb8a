package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Output   OutputConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Download DownloadConfig
	Database DatabaseConfig
	Redis    RedisConfig
	S3       S3Config
	Server   ServerConfig
	Logging  LoggingConfig
}

type OutputConfig struct {
	Root string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

type ScraperConfig struct {
	UserAgent     string
	MaxPages      int
	SlugMaxLen    int
	StoreDelayMin time.Duration
	StoreDelayMax time.Duration
	NavRetries    int
}

type DownloadConfig struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxConns int32
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Stream    string
	StreamMax int64
}

type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	root, err := outputRoot()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Output: OutputConfig{
			Root: root,
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "pt-BR,pt;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/Sao_Paulo"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "pt-BR"),
		},
		Scraper: ScraperConfig{
			UserAgent:     getEnvOrDefault("SCRAPER_USER_AGENT", DefaultUserAgent),
			MaxPages:      getIntOrDefault("SCRAPER_MAX_PAGES", 40),
			SlugMaxLen:    getIntOrDefault("SCRAPER_SLUG_MAX_LEN", 80),
			StoreDelayMin: getDurationOrDefault("SCRAPER_STORE_DELAY_MIN", 1*time.Second),
			StoreDelayMax: getDurationOrDefault("SCRAPER_STORE_DELAY_MAX", 3*time.Second),
			NavRetries:    getIntOrDefault("SCRAPER_NAV_RETRIES", 3),
		},
		Download: DownloadConfig{
			Timeout:    getDurationOrDefault("DOWNLOAD_TIMEOUT", 60*time.Second),
			Retries:    getIntOrDefault("DOWNLOAD_RETRIES", 2),
			RetryDelay: getDurationOrDefault("DOWNLOAD_RETRY_DELAY", 2*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("CATALOG_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "encartes"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 5)),
		},
		Redis: RedisConfig{
			Addr:      getEnvOrDefault("REDIS_ADDR", ""),
			Password:  getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:        getIntOrDefault("REDIS_DB", 0),
			Stream:    getEnvOrDefault("REDIS_STREAM", "stream:encartes"),
			StreamMax: int64(getIntOrDefault("REDIS_STREAM_MAXLEN", 10000)),
		},
		S3: S3Config{
			Bucket: getEnvOrDefault("S3_BUCKET", ""),
			Prefix: getEnvOrDefault("S3_PREFIX", "encartes"),
			Region: getEnvOrDefault("AWS_REGION", "sa-east-1"),
		},
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8085),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Output.Root == "" {
		return fmt.Errorf("output root is required")
	}

	if c.Scraper.MaxPages < 1 {
		return fmt.Errorf("SCRAPER_MAX_PAGES must be at least 1")
	}

	if c.Scraper.SlugMaxLen < 8 {
		return fmt.Errorf("SCRAPER_SLUG_MAX_LEN must be at least 8")
	}

	if c.Scraper.StoreDelayMin > c.Scraper.StoreDelayMax {
		return fmt.Errorf("SCRAPER_STORE_DELAY_MIN cannot be greater than SCRAPER_STORE_DELAY_MAX")
	}

	if c.Download.Retries < 0 {
		return fmt.Errorf("DOWNLOAD_RETRIES cannot be negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Redis.StreamMax < 0 {
		return fmt.Errorf("REDIS_STREAM_MAXLEN cannot be negative")
	}

	if c.Database.Enabled && c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required when CATALOG_ENABLED is set")
	}

	return nil
}

// outputRoot resolves OUTPUT_DIR, then GITHUB_WORKSPACE, then ./Encartes.
func outputRoot() (string, error) {
	root := getEnvOrDefault("OUTPUT_DIR", getEnvOrDefault("GITHUB_WORKSPACE", "Encartes"))
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output dir %q: %w", root, err)
	}
	return abs, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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
