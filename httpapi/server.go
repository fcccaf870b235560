package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-trellolink/core"
	"github.com/goliatone/go-trellolink/webhooks"
)

const (
	apiKeyHeader          = "x-api-key"
	defaultServiceName    = "trellolink"
	defaultCompletePath   = "/auth/complete"
	maxCompleteBodyBytes  = 16 << 10
	defaultWebhookMaxBody = 1 << 20
)

type LinkService interface {
	Start(ctx context.Context, req core.StartLinkRequest) (core.StartLinkResponse, error)
	Complete(ctx context.Context, req core.CompleteLinkRequest) (core.CompleteLinkResponse, error)
}

type EventIngestor interface {
	Ingest(ctx context.Context, body []byte) (webhooks.IngestResult, error)
	Recent(ctx context.Context, limit int) ([]core.ProviderEvent, error)
}

type Option func(*Server)

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func WithServiceName(name string) Option {
	return func(s *Server) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			s.serviceName = trimmed
		}
	}
}

// WithSignatureVerifier rejects webhook deliveries whose X-Trello-Webhook
// header does not match. A nil verifier accepts everything.
func WithSignatureVerifier(verifier *webhooks.SignatureVerifier) Option {
	return func(s *Server) {
		s.signatures = verifier
	}
}

func WithAppName(name string) Option {
	return func(s *Server) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			s.appName = trimmed
		}
	}
}

type Server struct {
	link        LinkService
	ingestor    EventIngestor
	logger      core.Logger
	apiKey      string
	limiter     *clientRateLimiter
	bodyLimit   int64
	serviceName string
	appName     string
	now         func() time.Time
	signatures  *webhooks.SignatureVerifier
}

func NewServer(link LinkService, ingestor EventIngestor, cfg core.ServerConfig, opts ...Option) *Server {
	s := &Server{
		link:        link,
		ingestor:    ingestor,
		logger:      glog.Nop(),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		bodyLimit:   cfg.WebhookBodyLimit,
		serviceName: defaultServiceName,
		appName:     "Trello",
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	if s.bodyLimit <= 0 {
		s.bodyLimit = defaultWebhookMaxBody
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.limiter = newClientRateLimiter(cfg.RateLimitPerMinute, s.now)
	return s
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	auth := func(h http.HandlerFunc) http.Handler {
		return s.rateLimited(h)
	}
	api := func(h http.HandlerFunc) http.Handler {
		return s.requireAPIKey(h)
	}

	mux.Handle("GET /auth/start", auth(s.handleStart))
	mux.Handle("GET /auth/callback", auth(s.handleCallback))
	mux.Handle("POST /auth/complete", auth(s.handleComplete))

	for _, path := range []string{"/webhooks/provider", "/webhooks/trello"} {
		mux.HandleFunc("POST "+path, s.handleWebhook)
		mux.HandleFunc("HEAD "+path, s.handleWebhookProbe)
	}

	mux.Handle("GET /api/events/recent", api(s.handleRecentEvents))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("/", s.handleNotFound)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.recoverPanics(mux)
}

func (s *Server) requestLogger(r *http.Request) core.Logger {
	logger := s.logger.WithContext(r.Context())
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"client": clientIP(r),
		})
	}
	return logger
}
