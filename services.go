package trellolink

import "github.com/goliatone/go-trellolink/core"

type Config = core.Config

type Option = core.Option

type LinkService = core.LinkService

type StartLinkRequest = core.StartLinkRequest
type StartLinkResponse = core.StartLinkResponse
type CompleteLinkRequest = core.CompleteLinkRequest
type CompleteLinkResponse = core.CompleteLinkResponse
type LinkedCredential = core.LinkedCredential
type ProviderEvent = core.ProviderEvent

var (
	WithLogger              = core.WithLogger
	WithLoggerProvider      = core.WithLoggerProvider
	WithMetricsRecorder     = core.WithMetricsRecorder
	WithConfigProvider      = core.WithConfigProvider
	WithOptionsResolver     = core.WithOptionsResolver
	WithSessionStore        = core.WithSessionStore
	WithTokenVerifier       = core.WithTokenVerifier
	WithAuthorizeURLBuilder = core.WithAuthorizeURLBuilder
	WithCredentialStore     = core.WithCredentialStore
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewLinkService builds the account-link service. A token verifier, an
// authorize URL builder and a credential store are required.
func NewLinkService(cfg Config, opts ...Option) (*LinkService, error) {
	return core.NewLinkService(cfg, opts...)
}
