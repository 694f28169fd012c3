package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix of every environment variable read by Load.
const Prefix = "LESSONSHOP"

// App holds the runtime settings. Every field can be set from the
// environment (or a .env file) and most can be overridden by flags.
type App struct {
	// Remote lessons/orders API
	APIURL      string        `envconfig:"API_URL" default:"http://localhost:3000"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`

	// Storefront
	Port           string        `envconfig:"PORT" default:"8888"`
	SearchDebounce time.Duration `envconfig:"SEARCH_DEBOUNCE" default:"300ms"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"2h"`
	FallbackFile   string        `envconfig:"FALLBACK_FILE"`
	ReceiptsDir    string        `envconfig:"RECEIPTS_DIR" default:"receipts"`
	StaticDir      string        `envconfig:"STATIC_DIR" default:"static"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the configuration from LESSONSHOP_* variables.
func Load() (App, error) {
	var c App
	if err := envconfig.Process(Prefix, &c); err != nil {
		return c, fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.APIURL == "" {
		return c, fmt.Errorf("%s_API_URL must not be empty", Prefix)
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	return c, nil
}

// ParseLogLevel converts a level name to slog.Level, defaulting to info.
func ParseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
