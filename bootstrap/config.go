package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-trellolink/core"
)

// EnvConfig is the process environment the service reads.
type EnvConfig struct {
	TrelloKey          string        `env:"TRELLO_KEY"`
	TrelloSecret       string        `env:"TRELLO_SECRET"`
	TrelloRedirectURI  string        `env:"TRELLO_REDIRECT_URI"`
	TrelloAppName      string        `env:"TRELLO_APP_NAME"`
	TrelloWebhookURL   string        `env:"TRELLO_WEBHOOK_CALLBACK_URL"`
	Port               string        `env:"PORT"`
	BackendAPIKey      string        `env:"BACKEND_API_KEY"`
	DBDriver           string        `env:"DB_DRIVER"`
	DBPath             string        `env:"DB_PATH"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	DBDebug            bool          `env:"DB_DEBUG"`
	AppKey             string        `env:"APP_KEY"`
	HandshakeTTL       time.Duration `env:"HANDSHAKE_TTL"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat          string        `env:"LOG_FORMAT" envDefault:"text"`
}

// ParseEnv reads EnvConfig from environ, or from the process environment
// when environ is nil.
func ParseEnv(environ map[string]string) (EnvConfig, error) {
	var out EnvConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&out, opts); err != nil {
		return EnvConfig{}, fmt.Errorf("bootstrap: parse env: %w", err)
	}
	if out.RateLimitPerMinute < 0 {
		return EnvConfig{}, fmt.Errorf("bootstrap: RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return out, nil
}

// Layer maps the environment onto a partial Config. Unset variables stay
// zero so they do not shadow defaults.
func (e EnvConfig) Layer() core.Config {
	var cfg core.Config
	cfg.Trello.APIKey = strings.TrimSpace(e.TrelloKey)
	cfg.Trello.APISecret = strings.TrimSpace(e.TrelloSecret)
	cfg.Trello.RedirectURI = strings.TrimSpace(e.TrelloRedirectURI)
	cfg.Trello.AppName = strings.TrimSpace(e.TrelloAppName)
	cfg.Trello.WebhookCallbackURL = strings.TrimSpace(e.TrelloWebhookURL)

	cfg.Server.Addr = addrFromPort(e.Port)
	cfg.Server.APIKey = strings.TrimSpace(e.BackendAPIKey)
	cfg.Server.RateLimitPerMinute = e.RateLimitPerMinute

	cfg.Database.Driver = strings.TrimSpace(e.DBDriver)
	cfg.Database.Debug = e.DBDebug
	switch {
	case strings.TrimSpace(e.DatabaseURL) != "":
		cfg.Database.DSN = strings.TrimSpace(e.DatabaseURL)
		if cfg.Database.Driver == "" {
			cfg.Database.Driver = "postgres"
		}
	case strings.TrimSpace(e.DBPath) != "":
		cfg.Database.DSN = sqliteDSN(e.DBPath)
	}

	cfg.Security.AppKey = strings.TrimSpace(e.AppKey)
	cfg.Handshake.TTL = e.HandshakeTTL
	cfg.Handshake.SweepInterval = e.SweepInterval
	return cfg
}

// LoadConfig resolves defaults, the environment layer and runtime
// overrides into a validated Config.
func LoadConfig(ctx context.Context, e EnvConfig, runtime core.Config) (core.Config, error) {
	loader := core.StaticRawConfigLoader{Values: core.ConfigToLayerMap(e.Layer(), false)}
	return core.ResolveConfig(ctx, core.NewCfgxConfigProvider(loader), core.GoOptionsResolver{}, runtime)
}

func addrFromPort(port string) string {
	port = strings.TrimSpace(port)
	if port == "" || strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func sqliteDSN(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_foreign_keys=on"
}
