package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the object counter API server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Upload   UploadConfig
	Detector DetectorConfig
	Monitor  MonitorConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL            string
	ObjectTypesTTL time.Duration
}

type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

type DetectorConfig struct {
	Provider string
	Timeout  time.Duration
	Mock     MockDetectorConfig
	Remote   RemoteDetectorConfig
}

type MockDetectorConfig struct {
	Delay time.Duration
}

type RemoteDetectorConfig struct {
	URL string
}

type MonitorConfig struct {
	Interval   time.Duration
	MaxHistory int
	DiskPath   string
}

var validDetectors = map[string]bool{
	"mock":   true,
	"remote": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("COUNTER_PORT", 5000),
			Env:             envString("COUNTER_ENV", "development"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 600),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL:            os.Getenv("REDIS_URL"),
			ObjectTypesTTL: envDuration("OBJECT_TYPES_CACHE_TTL", 5*time.Minute),
		},
		Upload: UploadConfig{
			Dir:      envString("UPLOAD_DIR", "uploads"),
			MaxBytes: int64(envInt("MAX_UPLOAD_BYTES", 16*1024*1024)),
		},
		Detector: DetectorConfig{
			Provider: envString("DETECTOR_PROVIDER", "mock"),
			Timeout:  envDurationSecs("DETECTOR_TIMEOUT_SECS", 120*time.Second),
			Mock: MockDetectorConfig{
				Delay: envDuration("DETECTOR_DELAY", 2*time.Second),
			},
			Remote: RemoteDetectorConfig{
				URL: os.Getenv("DETECTOR_URL"),
			},
		},
		Monitor: MonitorConfig{
			Interval:   envDuration("MONITOR_INTERVAL", 500*time.Millisecond),
			MaxHistory: envInt("MONITOR_MAX_HISTORY", 100),
			DiskPath:   envString("MONITOR_DISK_PATH", "/"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.Upload.MaxBytes)
	}

	if !validDetectors[c.Detector.Provider] {
		return fmt.Errorf("DETECTOR_PROVIDER must be one of mock, remote; got %q", c.Detector.Provider)
	}
	if c.Detector.Provider == "remote" {
		if c.Detector.Remote.URL == "" {
			return fmt.Errorf("DETECTOR_URL is required when DETECTOR_PROVIDER is remote")
		}
		if !isHTTPURL(c.Detector.Remote.URL) {
			return fmt.Errorf("DETECTOR_URL must start with http:// or https://, got %q", c.Detector.Remote.URL)
		}
	}

	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive")
	}

	return nil
}

// ClientConfig holds settings for the counter CLI and the processing orchestrator.
type ClientConfig struct {
	APIURL         string
	RequestTimeout time.Duration
	JobTimeout     time.Duration
	PollInterval   time.Duration
	TickInterval   time.Duration
	Prompt         string
}

// LoadClient reads CLI configuration from environment variables.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		APIURL:         strings.TrimRight(envString("COUNTER_API_URL", "http://127.0.0.1:5000"), "/"),
		RequestTimeout: envDuration("COUNTER_REQUEST_TIMEOUT", 30*time.Second),
		JobTimeout:     envDurationSecs("COUNTER_JOB_TIMEOUT_SECS", 120*time.Second),
		PollInterval:   envDuration("COUNTER_POLL_INTERVAL", 250*time.Millisecond),
		TickInterval:   envDuration("COUNTER_TICK_INTERVAL", 100*time.Millisecond),
		Prompt:         os.Getenv("COUNTER_PROMPT"),
	}

	if !isHTTPURL(cfg.APIURL) {
		return nil, fmt.Errorf("COUNTER_API_URL must start with http:// or https://, got %q", cfg.APIURL)
	}
	if cfg.JobTimeout <= 0 {
		return nil, fmt.Errorf("COUNTER_JOB_TIMEOUT_SECS must be positive")
	}

	return cfg, nil
}

func isHTTPURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
