package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	sessionStore    SessionStore
	verifier        TokenVerifier
	urlBuilder      AuthorizeURLBuilder
	credentialStore CredentialStore
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithSessionStore(store SessionStore) Option {
	return func(b *serviceBuilder) {
		b.sessionStore = store
	}
}

func WithTokenVerifier(verifier TokenVerifier) Option {
	return func(b *serviceBuilder) {
		b.verifier = verifier
	}
}

func WithAuthorizeURLBuilder(builder AuthorizeURLBuilder) Option {
	return func(b *serviceBuilder) {
		b.urlBuilder = builder
	}
}

func WithCredentialStore(store CredentialStore) Option {
	return func(b *serviceBuilder) {
		b.credentialStore = store
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("trellolink", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

// ResolveConfig runs the defaults, loaded and runtime layers through the
// provider and resolver, returning a validated Config.
func ResolveConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	// Validation runs after the runtime layer is merged; loaded values alone
	// may still lack required fields.
	cfg, err := cfgx.Build[Config](raw, cfgx.WithDefaults(defaults))
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			ConfigToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			ConfigToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			ConfigToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// ConfigToLayerMap flattens cfg into the nested map shape the options stack
// merges. Unless includeZero is set, zero values are left out so they do not
// shadow lower layers.
func ConfigToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString := func(section map[string]any, key, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			section[key] = value
		}
	}
	putAny := func(section map[string]any, key string, value any, zero bool) {
		if includeZero || !zero {
			section[key] = value
		}
	}
	nest := func(key string, section map[string]any) {
		if len(section) > 0 {
			layer[key] = section
		}
	}

	putString(layer, "service_name", cfg.ServiceName)

	trello := map[string]any{}
	putString(trello, "api_key", cfg.Trello.APIKey)
	putString(trello, "api_secret", cfg.Trello.APISecret)
	putString(trello, "app_name", cfg.Trello.AppName)
	putString(trello, "scope", cfg.Trello.Scope)
	putString(trello, "expiration", cfg.Trello.Expiration)
	putString(trello, "authorize_url", cfg.Trello.AuthorizeURL)
	putString(trello, "api_base_url", cfg.Trello.APIBaseURL)
	putString(trello, "redirect_uri", cfg.Trello.RedirectURI)
	putAny(trello, "verify_timeout", cfg.Trello.VerifyTimeout, cfg.Trello.VerifyTimeout == 0)
	putString(trello, "webhook_callback_url", cfg.Trello.WebhookCallbackURL)
	nest("trello", trello)

	handshake := map[string]any{}
	putAny(handshake, "ttl", cfg.Handshake.TTL, cfg.Handshake.TTL == 0)
	putAny(handshake, "sweep_interval", cfg.Handshake.SweepInterval, cfg.Handshake.SweepInterval == 0)
	nest("handshake", handshake)

	server := map[string]any{}
	putString(server, "addr", cfg.Server.Addr)
	putString(server, "api_key", cfg.Server.APIKey)
	putAny(server, "rate_limit_per_minute", cfg.Server.RateLimitPerMinute, cfg.Server.RateLimitPerMinute == 0)
	putAny(server, "webhook_body_limit", cfg.Server.WebhookBodyLimit, cfg.Server.WebhookBodyLimit == 0)
	nest("server", server)

	database := map[string]any{}
	putString(database, "driver", cfg.Database.Driver)
	putString(database, "dsn", cfg.Database.DSN)
	putAny(database, "debug", cfg.Database.Debug, !cfg.Database.Debug)
	putAny(database, "ping_timeout", cfg.Database.PingTimeout, cfg.Database.PingTimeout == 0)
	nest("database", database)

	security := map[string]any{}
	putString(security, "app_key", cfg.Security.AppKey)
	putString(security, "key_id", cfg.Security.KeyID)
	nest("security", security)

	return layer
}
