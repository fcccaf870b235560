package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const maxIssueAttempts = 3

// LinkService drives the handshake that binds a local user to a Trello
// access token: Start issues a state and authorize URL, Complete consumes
// the state, verifies the token and upserts the credential.
type LinkService struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	observer        *Observer
	sessions        SessionStore
	verifier        TokenVerifier
	urlBuilder      AuthorizeURLBuilder
	credentialStore CredentialStore
}

func NewLinkService(cfg Config, opts ...Option) (*LinkService, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("trellolink", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("trellolink.link"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	finalConfig, err := ResolveConfig(context.Background(), builder.configProvider, builder.optionsResolver, builder.runtimeConfig)
	if err != nil {
		return nil, err
	}

	if builder.verifier == nil {
		return nil, fmt.Errorf("core: token verifier is required")
	}
	if builder.urlBuilder == nil {
		return nil, fmt.Errorf("core: authorize url builder is required")
	}
	if builder.credentialStore == nil {
		return nil, fmt.Errorf("core: credential store is required")
	}
	if builder.sessionStore == nil {
		builder.sessionStore = NewMemorySessionStore(finalConfig.Handshake.TTL)
	}

	return &LinkService{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		observer:        NewObserver(logger, builder.metricsRecorder, "trellolink.link"),
		sessions:        builder.sessionStore,
		verifier:        builder.verifier,
		urlBuilder:      builder.urlBuilder,
		credentialStore: builder.credentialStore,
	}, nil
}

func (s *LinkService) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *LinkService) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *LinkService) SessionStore() SessionStore {
	if s == nil {
		return nil
	}
	return s.sessions
}

func (s *LinkService) Start(ctx context.Context, req StartLinkRequest) (_ StartLinkResponse, err error) {
	startedAt := time.Now().UTC()
	userID := strings.TrimSpace(req.UserID)
	fields := map[string]any{"user_id": userID}
	phase := newPhaseTracker(PhaseStarted, fields)
	defer func() {
		s.observer.Observe(ctx, startedAt, "start", err, fields)
	}()

	if userID == "" {
		phase.end(PhaseFailed)
		return StartLinkResponse{}, InvalidRequestError("userId is required")
	}

	state, err := s.issueState(ctx, userID)
	if err != nil {
		phase.end(PhaseFailed)
		return StartLinkResponse{}, err
	}

	authorizeURL, err := s.urlBuilder.AuthorizeURL(state)
	if err == nil {
		err = phase.advance(PhaseAwaitingToken)
	}
	if err != nil {
		phase.end(PhaseFailed)
		// Nobody can complete a handshake whose URL was never handed out.
		s.sessions.Take(ctx, state)
		return StartLinkResponse{}, err
	}

	return StartLinkResponse{
		State:        state,
		AuthorizeURL: authorizeURL,
		Phase:        phase.current,
	}, nil
}

func (s *LinkService) Complete(ctx context.Context, req CompleteLinkRequest) (_ CompleteLinkResponse, err error) {
	startedAt := time.Now().UTC()
	token := strings.TrimSpace(req.Token)
	state := strings.TrimSpace(req.State)
	fields := map[string]any{}
	phase := newPhaseTracker(PhaseAwaitingToken, fields)
	defer func() {
		s.observer.Observe(ctx, startedAt, "complete", err, fields)
	}()

	if token == "" || state == "" {
		phase.end(PhaseFailed)
		return CompleteLinkResponse{}, InvalidRequestError("token and state are required")
	}
	fields["token_hint"] = MaskToken(token)

	handshake, ok := s.sessions.Take(ctx, state)
	if !ok {
		return CompleteLinkResponse{}, SessionInvalidError(phase.end(PhaseFailed))
	}
	fields["user_id"] = handshake.OwnerUserID
	if s.sessions.IsExpired(handshake) {
		return CompleteLinkResponse{}, SessionInvalidError(phase.end(PhaseExpired))
	}

	if err = phase.advance(PhaseVerifying); err != nil {
		phase.end(PhaseFailed)
		return CompleteLinkResponse{}, err
	}
	identity, err := s.verifier.Verify(ctx, token)
	if err != nil {
		phase.end(PhaseFailed)
		return CompleteLinkResponse{}, TokenVerificationError(err)
	}
	fields["provider_member_id"] = identity.ID

	if _, err = s.credentialStore.Upsert(ctx, UpsertCredentialInput{
		UserID:      handshake.OwnerUserID,
		AccessToken: token,
	}); err != nil {
		phase.end(PhaseFailed)
		return CompleteLinkResponse{}, StorageError(err, "upsert_credential")
	}

	if err = phase.advance(PhaseCompleted); err != nil {
		phase.end(PhaseFailed)
		return CompleteLinkResponse{}, err
	}
	return CompleteLinkResponse{
		UserID:   handshake.OwnerUserID,
		Identity: identity,
		Phase:    phase.current,
	}, nil
}

func (s *LinkService) GetCredential(ctx context.Context, userID string) (LinkedCredential, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return LinkedCredential{}, InvalidRequestError("userId is required")
	}
	return s.credentialStore.Get(ctx, userID)
}

func (s *LinkService) issueState(ctx context.Context, userID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		state, err := s.sessions.Issue(ctx, userID)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, ErrSessionStateCollision) {
			return "", err
		}
		lastErr = err
	}
	return "", StorageError(lastErr, "issue_session")
}
