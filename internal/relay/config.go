package relay

import (
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the server configuration including the protocol limits
// that govern sanitization, history retention, and rate limiting.
type Config struct {
	Port           string   `env:"SERVER_PORT"`
	Env            string   `env:"ENV"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// MaxFrameSize is the WebSocket read limit in bytes.
	MaxFrameSize int64 `env:"MAX_FRAME_SIZE"`

	// DefaultRoom is the room an unjoined session belongs to.
	DefaultRoom string `env:"DEFAULT_ROOM"`

	// HistoryLimit caps each room's retained message history.
	HistoryLimit int `env:"HISTORY_LIMIT"`

	// MaxTextLen and MaxNameLen bound sanitized message text and
	// room/display names respectively.
	MaxTextLen int `env:"MAX_TEXT_LEN"`
	MaxNameLen int `env:"MAX_NAME_LEN"`

	// MessageMinInterval and TypingMinInterval are the per-session
	// windows below which repeat events are silently dropped.
	MessageMinInterval time.Duration `env:"MESSAGE_MIN_INTERVAL"`
	TypingMinInterval  time.Duration `env:"TYPING_MIN_INTERVAL"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		Env:  "development",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxFrameSize:       4096,
		DefaultRoom:        "global",
		HistoryLimit:       200,
		MaxTextLen:         1000,
		MaxNameLen:         64,
		MessageMinInterval: 400 * time.Millisecond,
		TypingMinInterval:  time.Second,
		ShutdownTimeout:    30 * time.Second,
	}
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = def.MaxFrameSize
	}
	if cfg.DefaultRoom == "" {
		cfg.DefaultRoom = def.DefaultRoom
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.MaxTextLen <= 0 {
		cfg.MaxTextLen = def.MaxTextLen
	}
	if cfg.MaxNameLen <= 0 {
		cfg.MaxNameLen = def.MaxNameLen
	}
	if cfg.MessageMinInterval <= 0 {
		cfg.MessageMinInterval = def.MessageMinInterval
	}
	if cfg.TypingMinInterval <= 0 {
		cfg.TypingMinInterval = def.TypingMinInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		defaultCfg := defaultConfig()
		sanitizeConfig(defaultCfg)
		return
	}

	copied := *cfg
	copied.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitizeConfig(copied)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from environment variables, loading a
// .env file first when one is present. Unset variables keep their
// defaults; invalid values are corrected when the config is applied.
func NewConfigFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
