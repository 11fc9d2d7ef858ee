package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all application-level configuration loaded from environment variables.
type AppConfig struct {
	// NewsletterSecret authorizes privileged events (unsubscribe and trigger).
	// When empty, every privileged request is rejected.
	NewsletterSecret string `envconfig:"NEWSLETTER_SECRET"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the root data directory. Defaults to ~/.newsletter.
	DataDir string `envconfig:"NEWSLETTER_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// LogFormat selects the slog handler: "json" or "text". Defaults to json.
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// CaptureURL receives every outbound send_newsletter event as a JSON POST.
	// Optional: when unset, outbound events are only recorded locally.
	CaptureURL string `envconfig:"CAPTURE_URL"`

	// CaptureTimeout bounds a single POST to CaptureURL.
	CaptureTimeout time.Duration `envconfig:"CAPTURE_TIMEOUT" default:"10s"`

	// ListSubscribersCron, when set, runs the "List all subscribers" job on
	// this cron expression (five fields, no seconds).
	ListSubscribersCron string `envconfig:"LIST_SUBSCRIBERS_CRON"`

	// CORSAllowedOrigins is a comma-separated list of origins allowed to post events.
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS"`

	// EventBusWorkers is the number of goroutines draining the event bus.
	EventBusWorkers int `envconfig:"EVENTBUS_WORKERS" default:"3"`

	// MongoURI moves the subscriber list to MongoDB when set. Outbound
	// events stay in the SQLite database.
	MongoURI string `envconfig:"MONGO_URI"`

	// MongoDatabase names the MongoDB database used with MongoURI.
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"newsletter"`
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Variables that are already set win; missing files are skipped.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	return nil
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.newsletter if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".newsletter")
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory (~/.newsletter/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DBPath returns the path to the SQLite database file.
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.DataDir, "newsletter.db")
}

// AllowedOrigins splits CORSAllowedOrigins, dropping blanks.
func (c *AppConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
