package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Mode string `env:"CHATBIRD_MODE" envDefault:"interactive" validate:"oneof=server interactive headless"`

	// Upstream endpoints.
	SocketURL string `env:"CHATBIRD_SOCKET_URL" envDefault:"ws://localhost:5000/socket" validate:"required"`
	APIURL    string `env:"CHATBIRD_API_URL" envDefault:"http://localhost:5000/api" validate:"required,url"`

	// Identity: either a ready token+user id, or credentials for login.
	Token    string `env:"CHATBIRD_TOKEN"`
	UserID   string `env:"CHATBIRD_USER_ID"`
	Email    string `env:"CHATBIRD_EMAIL" validate:"omitempty,email"`
	Password string `env:"CHATBIRD_PASSWORD"`

	DatabasePath string `env:"CHATBIRD_DATABASE_PATH"`
	MCPAddress   string `env:"CHATBIRD_MCP_ADDRESS" envDefault:"127.0.0.1:8080"`
	LogLevel     string `env:"CHATBIRD_LOG_LEVEL" envDefault:"info"`

	// Sync tunables. Defaults mirror the server's expectations.
	TypingQuietPeriod   time.Duration `env:"CHATBIRD_TYPING_QUIET_PERIOD" envDefault:"2s" validate:"gt=0"`
	TypingDisplayExpiry time.Duration `env:"CHATBIRD_TYPING_DISPLAY_EXPIRY" envDefault:"3s" validate:"gt=0"`
	HistoryTimeout      time.Duration `env:"CHATBIRD_HISTORY_TIMEOUT" envDefault:"15s" validate:"gt=0"`
	ReconnectAttempts   int           `env:"CHATBIRD_RECONNECT_ATTEMPTS" envDefault:"5" validate:"gte=0"`
	ReconnectDelay      time.Duration `env:"CHATBIRD_RECONNECT_DELAY" envDefault:"1s" validate:"gt=0"`
	MaxUploadSize       int64         `env:"CHATBIRD_MAX_UPLOAD_SIZE" envDefault:"10485760" validate:"gt=0"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.DatabasePath == "" {
		homeDir, _ := os.UserHomeDir()
		cfg.DatabasePath = filepath.Join(homeDir, ".chatbird-bridge", "chatbird.db")
	}

	flag.StringVar(&cfg.Mode, "mode", cfg.Mode, "Run mode: server, interactive, or headless")
	flag.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "Archive database file path")
	flag.StringVar(&cfg.SocketURL, "socket", cfg.SocketURL, "ChatBird socket server URL")
	flag.StringVar(&cfg.APIURL, "api", cfg.APIURL, "ChatBird REST API base URL")
	flag.StringVar(&cfg.MCPAddress, "mcp-addr", cfg.MCPAddress, "MCP SSE server address")
	flag.Parse()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755)

	return cfg, nil
}
