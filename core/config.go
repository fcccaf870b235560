package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultHandshakeTTL     = 10 * time.Minute
	DefaultSweepInterval    = 60 * time.Second
	DefaultVerifyTimeout    = 5 * time.Second
	DefaultRecentEventLimit = 20
)

type TrelloConfig struct {
	APIKey        string        `koanf:"api_key" mapstructure:"api_key"`
	APISecret     string        `koanf:"api_secret" mapstructure:"api_secret"`
	AppName       string        `koanf:"app_name" mapstructure:"app_name"`
	Scope         string        `koanf:"scope" mapstructure:"scope"`
	Expiration    string        `koanf:"expiration" mapstructure:"expiration"`
	AuthorizeURL  string        `koanf:"authorize_url" mapstructure:"authorize_url"`
	APIBaseURL    string        `koanf:"api_base_url" mapstructure:"api_base_url"`
	RedirectURI   string        `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	VerifyTimeout time.Duration `koanf:"verify_timeout" mapstructure:"verify_timeout"`
	// WebhookCallbackURL is the callback registered with Trello. Deliveries
	// are signature checked only when it and APISecret are both set.
	WebhookCallbackURL string `koanf:"webhook_callback_url" mapstructure:"webhook_callback_url"`
}

type HandshakeConfig struct {
	TTL           time.Duration `koanf:"ttl" mapstructure:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval" mapstructure:"sweep_interval"`
}

type ServerConfig struct {
	Addr               string `koanf:"addr" mapstructure:"addr"`
	APIKey             string `koanf:"api_key" mapstructure:"api_key"`
	RateLimitPerMinute int    `koanf:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	WebhookBodyLimit   int64  `koanf:"webhook_body_limit" mapstructure:"webhook_body_limit"`
}

type DatabaseConfig struct {
	Driver      string        `koanf:"driver" mapstructure:"driver"`
	DSN         string        `koanf:"dsn" mapstructure:"dsn"`
	Debug       bool          `koanf:"debug" mapstructure:"debug"`
	PingTimeout time.Duration `koanf:"ping_timeout" mapstructure:"ping_timeout"`
}

type SecurityConfig struct {
	AppKey string `koanf:"app_key" mapstructure:"app_key"`
	KeyID  string `koanf:"key_id" mapstructure:"key_id"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Trello      TrelloConfig    `koanf:"trello" mapstructure:"trello"`
	Handshake   HandshakeConfig `koanf:"handshake" mapstructure:"handshake"`
	Server      ServerConfig    `koanf:"server" mapstructure:"server"`
	Database    DatabaseConfig  `koanf:"database" mapstructure:"database"`
	Security    SecurityConfig  `koanf:"security" mapstructure:"security"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "trellolink",
		Trello: TrelloConfig{
			AppName:       "Trello Dashboard",
			Scope:         "read,write",
			Expiration:    "never",
			AuthorizeURL:  "https://trello.com/1/authorize",
			APIBaseURL:    "https://api.trello.com",
			VerifyTimeout: DefaultVerifyTimeout,
		},
		Handshake: HandshakeConfig{
			TTL:           DefaultHandshakeTTL,
			SweepInterval: DefaultSweepInterval,
		},
		Server: ServerConfig{
			Addr:             ":3001",
			WebhookBodyLimit: 1 << 20,
		},
		Database: DatabaseConfig{
			Driver:      "sqlite3",
			DSN:         "file:trellolink.db?_foreign_keys=on",
			PingTimeout: 5 * time.Second,
		},
		Security: SecurityConfig{
			KeyID: "trellolink-v1",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Trello.APIKey) == "" {
		return fmt.Errorf("core: trello.api_key is required")
	}
	if strings.TrimSpace(c.Trello.RedirectURI) == "" {
		return fmt.Errorf("core: trello.redirect_uri is required")
	}
	if c.Trello.VerifyTimeout <= 0 {
		return fmt.Errorf("core: trello.verify_timeout must be positive")
	}
	if c.Handshake.TTL <= 0 {
		return fmt.Errorf("core: handshake.ttl must be positive")
	}
	if c.Handshake.SweepInterval <= 0 {
		return fmt.Errorf("core: handshake.sweep_interval must be positive")
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("core: server.rate_limit_per_minute must not be negative")
	}
	return nil
}
