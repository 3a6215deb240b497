package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	envPrefix       = "YTMP"
	maxPollInterval = 5 * time.Second
)

// ScraperConfig drives the page-side process
type ScraperConfig struct {
	Addr         string        `split_words:"true" default:"127.0.0.1:3001"`
	Source       string        `split_words:"true" default:"devtools"`
	DevtoolsURL  string        `split_words:"true" default:"http://127.0.0.1:9222"`
	PageMatch    string        `split_words:"true" default:"music.youtube.com"`
	File         string        `split_words:"true"`
	MprisPlayers []string      `split_words:"true"`
	PollInterval time.Duration `split_words:"true" default:"1s"`
	StartupDelay time.Duration `split_words:"true" default:"2500ms"`
	QueueSize    int           `split_words:"true" default:"16"`
	PauseTokens  []string      `split_words:"true" default:"Pause,Pausa,Pausieren,Mettre en pause,一時停止"`
}

// BridgeConfig selects how messages cross from the scraper to the relay
type BridgeConfig struct {
	Kind          string `split_words:"true" default:"http"`
	RelayURL      string `split_words:"true" default:"http://127.0.0.1:3000"`
	RedisAddr     string `split_words:"true" default:"127.0.0.1:6379"`
	RedisPassword string `split_words:"true"`
	RedisDB       int    `split_words:"true" default:"0"`
	RedisChannel  string `split_words:"true" default:"ytmpresence:updates"`
}

// RelayConfig drives the presence daemon
type RelayConfig struct {
	Addr            string        `split_words:"true" default:"127.0.0.1:3000"`
	Transport       string        `split_words:"true" default:"ipc"`
	ClientID        string        `split_words:"true"`
	BotToken        string        `split_words:"true"`
	MaxRetries      int           `split_words:"true" default:"10"`
	RetryBaseDelay  time.Duration `split_words:"true" default:"1s"`
	RetryMaxDelay   time.Duration `split_words:"true" default:"30s"`
	AuthRetryDelay  time.Duration `split_words:"true" default:"15s"`
	RefreshInterval time.Duration `split_words:"true" default:"60s"`
	PausedBehavior  string        `split_words:"true" default:"clear"`
	DefaultImageKey string        `split_words:"true" default:"ytm_logo"`
	LargeImageText  string        `split_words:"true" default:"YouTube Music"`
	UnknownArtist   string        `split_words:"true" default:"Unknown Artist"`
}

// HistoryConfig locates the listening history file
type HistoryConfig struct {
	Enabled    bool   `split_words:"true" default:"true"`
	Path       string `split_words:"true"`
	MaxEntries int    `split_words:"true" default:"500"`
}

// ArtworkConfig tunes album art resolution
type ArtworkConfig struct {
	Enabled bool `split_words:"true" default:"true"`
	Size    int  `split_words:"true" default:"544"`
	MinSize int  `split_words:"true" default:"64"`
}

// AppConfig holds application configuration for both processes
type AppConfig struct {
	LogLevel string        `split_words:"true" default:"info"`
	Scraper  ScraperConfig `envconfig:"SCRAPER"`
	Bridge   BridgeConfig  `envconfig:"BRIDGE"`
	Relay    RelayConfig   `envconfig:"RELAY"`
	History  HistoryConfig `envconfig:"HISTORY"`
	Artwork  ArtworkConfig `envconfig:"ARTWORK"`
}

// Load reads an optional .env file, then the YTMP_* environment
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg AppConfig
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, err
	}

	if cfg.History.Path == "" {
		cfg.History.Path = defaultHistoryPath()
	}
	cfg.History.Path = expandPath(cfg.History.Path)
	cfg.Scraper.File = expandPath(cfg.Scraper.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewAppConfig loads the configuration. The logger is built from it, so the
// effective values are logged separately by LogSummary.
func NewAppConfig() (*AppConfig, error) {
	cfg, err := Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LogSummary logs the effective values
func (c *AppConfig) LogSummary(logger *zap.Logger) {
	logger.Info("Configuration loaded",
		zap.String("logLevel", c.LogLevel),
		zap.String("scraperSource", c.Scraper.Source),
		zap.Duration("pollInterval", c.Scraper.PollInterval),
		zap.String("bridge", c.Bridge.Kind),
		zap.String("transport", c.Relay.Transport),
		zap.String("pausedBehavior", c.Relay.PausedBehavior),
		zap.Bool("history", c.History.Enabled),
		zap.String("historyPath", c.History.Path),
		zap.Bool("artwork", c.Artwork.Enabled))
}

// Validate rejects values the components cannot run with
func (c *AppConfig) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("YTMP_LOG_LEVEL: %w", err)
	}

	switch c.Scraper.Source {
	case "devtools", "mpris":
	case "file":
		if c.Scraper.File == "" {
			return fmt.Errorf("YTMP_SCRAPER_FILE is required for the file source")
		}
	default:
		return fmt.Errorf("YTMP_SCRAPER_SOURCE must be devtools, file or mpris, got %q", c.Scraper.Source)
	}
	if c.Scraper.PollInterval <= 0 || c.Scraper.PollInterval > maxPollInterval {
		return fmt.Errorf("YTMP_SCRAPER_POLL_INTERVAL must be in (0, %s], got %s", maxPollInterval, c.Scraper.PollInterval)
	}
	if c.Scraper.StartupDelay < 0 {
		return fmt.Errorf("YTMP_SCRAPER_STARTUP_DELAY must not be negative")
	}
	if c.Scraper.QueueSize <= 0 {
		return fmt.Errorf("YTMP_SCRAPER_QUEUE_SIZE must be greater than 0")
	}

	switch c.Bridge.Kind {
	case "http":
		if c.Bridge.RelayURL == "" {
			return fmt.Errorf("YTMP_BRIDGE_RELAY_URL is required for the http bridge")
		}
	case "redis":
		if c.Bridge.RedisAddr == "" || c.Bridge.RedisChannel == "" {
			return fmt.Errorf("YTMP_BRIDGE_REDIS_ADDR and YTMP_BRIDGE_REDIS_CHANNEL are required for the redis bridge")
		}
	default:
		return fmt.Errorf("YTMP_BRIDGE_KIND must be http or redis, got %q", c.Bridge.Kind)
	}

	if c.Relay.MaxRetries < 0 {
		return fmt.Errorf("YTMP_RELAY_MAX_RETRIES must not be negative")
	}
	if c.Relay.RetryBaseDelay <= 0 || c.Relay.RetryMaxDelay < c.Relay.RetryBaseDelay {
		return fmt.Errorf("YTMP_RELAY_RETRY_BASE_DELAY must be positive and not above YTMP_RELAY_RETRY_MAX_DELAY")
	}
	if c.Relay.RefreshInterval < 0 {
		return fmt.Errorf("YTMP_RELAY_REFRESH_INTERVAL must not be negative")
	}
	if c.Relay.PausedBehavior != "clear" && c.Relay.PausedBehavior != "show" {
		return fmt.Errorf("YTMP_RELAY_PAUSED_BEHAVIOR must be clear or show, got %q", c.Relay.PausedBehavior)
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("YTMP_HISTORY_PATH is required when history is enabled")
	}
	if c.Artwork.Size <= 0 || c.Artwork.MinSize <= 0 {
		return fmt.Errorf("YTMP_ARTWORK_SIZE and YTMP_ARTWORK_MIN_SIZE must be greater than 0")
	}
	return nil
}

// ValidateRelay checks the credentials the selected transport needs. Only
// the daemon calls it, so the scraper runs without Discord settings.
func (c *AppConfig) ValidateRelay() error {
	switch c.Relay.Transport {
	case "ipc", "websocket":
		if c.Relay.ClientID == "" {
			return fmt.Errorf("YTMP_RELAY_CLIENT_ID is required for the %s transport", c.Relay.Transport)
		}
	case "bot":
		if c.Relay.BotToken == "" {
			return fmt.Errorf("YTMP_RELAY_BOT_TOKEN is required for the bot transport")
		}
	default:
		return fmt.Errorf("YTMP_RELAY_TRANSPORT must be ipc, websocket or bot, got %q", c.Relay.Transport)
	}
	return nil
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ytmpresence", "history.db")
}

// expandPath resolves environment variables and a leading ~
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if len(p) > 0 && p[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return p
}
