package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	trellolink "github.com/goliatone/go-trellolink"
	"github.com/goliatone/go-trellolink/core"
	"github.com/goliatone/go-trellolink/httpapi"
	"github.com/goliatone/go-trellolink/providers/trello"
	"github.com/goliatone/go-trellolink/ratelimit"
	"github.com/goliatone/go-trellolink/security"
	sqlstore "github.com/goliatone/go-trellolink/store/sql"
	"github.com/goliatone/go-trellolink/transport"
	"github.com/goliatone/go-trellolink/webhooks"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	credentialCacheTTL     = 5 * time.Minute
)

type Option func(*builder)

type builder struct {
	loggerProvider glog.LoggerProvider
	logger         glog.Logger
	verifier       core.TokenVerifier
	httpClient     *http.Client
	metrics        core.MetricsRecorder
	client         *persistence.Client
}

func WithLogger(logger glog.Logger) Option {
	return func(b *builder) { b.logger = logger }
}

func WithLoggerProvider(provider glog.LoggerProvider) Option {
	return func(b *builder) { b.loggerProvider = provider }
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *builder) { b.metrics = recorder }
}

// WithTokenVerifier replaces the Trello members/me verifier.
func WithTokenVerifier(verifier core.TokenVerifier) Option {
	return func(b *builder) { b.verifier = verifier }
}

func WithHTTPClient(client *http.Client) Option {
	return func(b *builder) { b.httpClient = client }
}

// WithPersistenceClient uses an already opened and migrated client instead
// of opening cfg.Database. App.Close leaves it open.
func WithPersistenceClient(client *persistence.Client) Option {
	return func(b *builder) { b.client = client }
}

// App is the fully wired service: stores, link service, ingestor, facade
// and HTTP server.
type App struct {
	Config      core.Config
	Persistence *persistence.Client
	Stores      *sqlstore.RepositoryFactory
	Credentials core.CredentialStore
	Sessions    *core.MemorySessionStore
	Link        *core.LinkService
	Ingestor    *webhooks.Ingestor
	Facade      *trellolink.Facade
	Server      *httpapi.Server

	logger     glog.Logger
	ownsClient bool
}

// New opens the database, applies migrations and wires every component
// for cfg.
func New(ctx context.Context, cfg core.Config, opts ...Option) (*App, error) {
	b := builder{}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}
	provider, logger := glog.Resolve("trellolink", b.loggerProvider, b.logger)
	logger = glog.Ensure(logger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{Config: cfg, logger: logger}
	client := b.client
	if client == nil {
		opened, err := OpenDatabase(cfg.Database, cfg.ServiceName)
		if err != nil {
			return nil, err
		}
		if err := Migrate(ctx, opened); err != nil {
			_ = opened.Close()
			return nil, err
		}
		client = opened
		app.ownsClient = true
	}
	app.Persistence = client

	if err := app.wire(cfg, b, provider, logger); err != nil {
		_ = app.Close()
		return nil, err
	}
	logger.Info("trellolink wired",
		"driver", cfg.Database.Driver,
		"encrypted_tokens", strings.TrimSpace(cfg.Security.AppKey) != "",
		"rate_limit_per_minute", cfg.Server.RateLimitPerMinute,
	)
	return app, nil
}

func (a *App) wire(cfg core.Config, b builder, provider glog.LoggerProvider, logger glog.Logger) error {
	var factoryOpts []sqlstore.FactoryOption
	if appKey := strings.TrimSpace(cfg.Security.AppKey); appKey != "" {
		secrets, err := security.NewAppKeySecretProviderFromString(appKey, security.WithKeyID(cfg.Security.KeyID))
		if err != nil {
			return fmt.Errorf("bootstrap: secret provider: %w", err)
		}
		factoryOpts = append(factoryOpts, sqlstore.WithSecretProvider(secrets))
	}

	stores, err := sqlstore.NewRepositoryFactoryFromPersistence(a.Persistence, factoryOpts...)
	if err != nil {
		return err
	}
	a.Stores = stores

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = credentialCacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return fmt.Errorf("bootstrap: credential cache: %w", err)
	}
	credentials, err := sqlstore.NewCachedCredentialStore(stores.CredentialStore(), cacheService)
	if err != nil {
		return err
	}
	a.Credentials = credentials

	verifier := b.verifier
	if verifier == nil {
		httpClient := b.httpClient
		if httpClient == nil {
			httpClient = &http.Client{}
		}
		verifier = trello.NewTokenVerifier(cfg.Trello, transport.NewRESTAdapter(httpClient),
			trello.WithRateLimitPolicy(ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())),
		)
	}

	a.Sessions = core.NewMemorySessionStore(cfg.Handshake.TTL)
	linkOpts := []core.Option{
		core.WithSessionStore(a.Sessions),
		core.WithTokenVerifier(verifier),
		core.WithAuthorizeURLBuilder(trello.NewAuthorizeURLBuilder(cfg.Trello)),
		core.WithCredentialStore(credentials),
		core.WithLogger(logger),
	}
	if provider != nil {
		linkOpts = append(linkOpts, core.WithLoggerProvider(provider))
	}
	if b.metrics != nil {
		linkOpts = append(linkOpts, core.WithMetricsRecorder(b.metrics))
	}
	link, err := core.NewLinkService(cfg, linkOpts...)
	if err != nil {
		return err
	}
	a.Link = link

	ingestor, err := webhooks.NewIngestor(stores.EventStore(),
		webhooks.WithObserver(core.NewObserver(namedLogger(provider, logger, "trellolink.webhooks"), b.metrics, "trellolink.webhooks")),
	)
	if err != nil {
		return err
	}
	a.Ingestor = ingestor

	facade, err := trellolink.NewFacade(link, ingestor)
	if err != nil {
		return err
	}
	a.Facade = facade

	a.Server = httpapi.NewServer(link, ingestor, cfg.Server,
		httpapi.WithLogger(namedLogger(provider, logger, "trellolink.http")),
		httpapi.WithServiceName(cfg.ServiceName),
		httpapi.WithAppName(cfg.Trello.AppName),
		httpapi.WithSignatureVerifier(webhooks.NewSignatureVerifier(cfg.Trello.APISecret, cfg.Trello.WebhookCallbackURL)),
	)
	return nil
}

func namedLogger(provider glog.LoggerProvider, fallback glog.Logger, name string) glog.Logger {
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			return named
		}
	}
	return glog.Ensure(fallback)
}

func (a *App) Handler() http.Handler {
	if a == nil || a.Server == nil {
		return http.NotFoundHandler()
	}
	return a.Server.Handler()
}

// Serve starts the handshake sweeper and serves HTTP on listener until ctx
// ends, then shuts the server down and stops the sweeper.
func (a *App) Serve(ctx context.Context, listener net.Listener) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("bootstrap: app is not wired")
	}
	if listener == nil {
		return fmt.Errorf("bootstrap: listener is required")
	}

	a.Sessions.StartSweeper(ctx, a.Config.Handshake.SweepInterval, func(removed int) {
		if removed > 0 {
			a.logger.Debug("expired handshakes swept", "removed", removed)
		}
	})
	defer a.Sessions.Stop()

	server := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", listener.Addr().String())
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("bootstrap: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe binds cfg.Server.Addr and calls Serve.
func (a *App) ListenAndServe(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("bootstrap: app is not wired")
	}
	addr := strings.TrimSpace(a.Config.Server.Addr)
	if addr == "" {
		addr = core.DefaultConfig().Server.Addr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bootstrap: listen %s: %w", addr, err)
	}
	return a.Serve(ctx, listener)
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	a.Sessions.Stop()
	if a.ownsClient && a.Persistence != nil {
		return a.Persistence.Close()
	}
	return nil
}
