package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type linkFixture struct {
	service     *LinkService
	sessions    *MemorySessionStore
	verifier    *stubVerifier
	credentials *memoryCredentialStore
	clock       *manualClock
}

func newLinkFixture(t *testing.T) linkFixture {
	t.Helper()
	clock := newManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	sessions := NewMemorySessionStore(DefaultHandshakeTTL, WithSessionClock(clock.Now))
	verifier := &stubVerifier{accepted: map[string]ProviderIdentity{
		"tok-x": {ID: "p1", Username: "member_one"},
		"tok-z": {ID: "p1", Username: "member_one"},
	}}
	credentials := newMemoryCredentialStore()

	service, err := NewLinkService(testConfig(),
		WithSessionStore(sessions),
		WithTokenVerifier(verifier),
		WithAuthorizeURLBuilder(stubURLBuilder{}),
		WithCredentialStore(credentials),
	)
	if err != nil {
		t.Fatalf("new link service: %v", err)
	}
	return linkFixture{
		service:     service,
		sessions:    sessions,
		verifier:    verifier,
		credentials: credentials,
		clock:       clock,
	}
}

func requireTextCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != code {
		t.Fatalf("expected text code %s, got %s", code, rich.TextCode)
	}
}

func TestLinkService_StartThenCompleteLinksCredential(t *testing.T) {
	fx := newLinkFixture(t)
	ctx := context.Background()

	started, err := fx.service.Start(ctx, StartLinkRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Phase != PhaseAwaitingToken {
		t.Fatalf("expected awaiting_token phase, got %s", started.Phase)
	}
	if !strings.Contains(started.AuthorizeURL, started.State) {
		t.Fatalf("expected authorize url to embed state, got %s", started.AuthorizeURL)
	}

	completed, err := fx.service.Complete(ctx, CompleteLinkRequest{Token: "tok-x", State: started.State})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.UserID != "u1" || completed.Identity.ID != "p1" || completed.Phase != PhaseCompleted {
		t.Fatalf("unexpected completion: %#v", completed)
	}

	credential, err := fx.credentials.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if credential.AccessToken != "tok-x" {
		t.Fatalf("expected access token tok-x, got %q", credential.AccessToken)
	}
}

func TestLinkService_StartRequiresUserID(t *testing.T) {
	fx := newLinkFixture(t)
	_, err := fx.service.Start(context.Background(), StartLinkRequest{})
	requireTextCode(t, err, ErrorInvalidRequest)
	if fx.sessions.Len() != 0 {
		t.Fatalf("expected no pending handshakes, got %d", fx.sessions.Len())
	}
}

func TestLinkService_StartDropsStateWhenURLBuildFails(t *testing.T) {
	sessions := NewMemorySessionStore(time.Minute)
	service, err := NewLinkService(testConfig(),
		WithSessionStore(sessions),
		WithTokenVerifier(&stubVerifier{}),
		WithAuthorizeURLBuilder(stubURLBuilder{err: errors.New("bad redirect")}),
		WithCredentialStore(newMemoryCredentialStore()),
	)
	if err != nil {
		t.Fatalf("new link service: %v", err)
	}
	if _, err := service.Start(context.Background(), StartLinkRequest{UserID: "u1"}); err == nil {
		t.Fatalf("expected start to fail")
	}
	if sessions.Len() != 0 {
		t.Fatalf("expected orphaned state to be removed, got %d entries", sessions.Len())
	}
}

func TestLinkService_CompleteValidatesInput(t *testing.T) {
	fx := newLinkFixture(t)
	for _, req := range []CompleteLinkRequest{
		{Token: "", State: "s"},
		{Token: "t", State: ""},
		{Token: " ", State: " "},
	} {
		_, err := fx.service.Complete(context.Background(), req)
		requireTextCode(t, err, ErrorInvalidRequest)
	}
	if fx.verifier.callCount() != 0 {
		t.Fatalf("expected verifier not to be called")
	}
}

func TestLinkService_CompleteUnknownStateLeavesStoresUntouched(t *testing.T) {
	fx := newLinkFixture(t)
	_, err := fx.service.Complete(context.Background(), CompleteLinkRequest{Token: "tok-y", State: "unknown-state"})
	requireTextCode(t, err, ErrorSessionInvalidOrExpired)
	if fx.credentials.upsertCount() != 0 {
		t.Fatalf("expected no credential writes")
	}
	if fx.verifier.callCount() != 0 {
		t.Fatalf("expected verifier not to be called")
	}
}

func TestLinkService_CompleteAfterTTLIsExpiredWithoutSweep(t *testing.T) {
	fx := newLinkFixture(t)
	ctx := context.Background()
	started, err := fx.service.Start(ctx, StartLinkRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	fx.clock.Advance(DefaultHandshakeTTL + time.Second)

	_, err = fx.service.Complete(ctx, CompleteLinkRequest{Token: "tok-x", State: started.State})
	requireTextCode(t, err, ErrorSessionInvalidOrExpired)

	var rich *goerrors.Error
	goerrors.As(err, &rich)
	if rich.Metadata["phase"] != string(PhaseExpired) {
		t.Fatalf("expected expired phase metadata, got %#v", rich.Metadata)
	}
	if fx.sessions.Len() != 0 {
		t.Fatalf("expected expired handshake to be consumed")
	}
	if fx.verifier.callCount() != 0 {
		t.Fatalf("expected verifier not to be called for expired session")
	}
}

func TestLinkService_CompleteReplayFails(t *testing.T) {
	fx := newLinkFixture(t)
	ctx := context.Background()
	started, err := fx.service.Start(ctx, StartLinkRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := fx.service.Complete(ctx, CompleteLinkRequest{Token: "tok-x", State: started.State}); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	_, err = fx.service.Complete(ctx, CompleteLinkRequest{Token: "tok-x", State: started.State})
	requireTextCode(t, err, ErrorSessionInvalidOrExpired)
}

func TestLinkService_CompleteVerifierFailureIsTerminal(t *testing.T) {
	fx := newLinkFixture(t)
	ctx := context.Background()
	started, err := fx.service.Start(ctx, StartLinkRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err = fx.service.Complete(ctx, CompleteLinkRequest{Token: "tok-bad", State: started.State})
	requireTextCode(t, err, ErrorTokenVerificationFailed)
	if msg := PublicMessage(MapError(err)); strings.Contains(msg, "rejected") {
		t.Fatalf("expected public message to hide verifier cause, got %q", msg)
	}

	_, err = fx.service.Complete(ctx, CompleteLinkRequest{Token: "tok-x", State: started.State})
	requireTextCode(t, err, ErrorSessionInvalidOrExpired)
	if fx.credentials.upsertCount() != 0 {
		t.Fatalf("expected no credential writes")
	}
}

func TestLinkService_CompleteStorageFailure(t *testing.T) {
	fx := newLinkFixture(t)
	fx.credentials.upsertErr = errors.New("disk full")
	ctx := context.Background()
	started, err := fx.service.Start(ctx, StartLinkRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err = fx.service.Complete(ctx, CompleteLinkRequest{Token: "tok-x", State: started.State})
	requireTextCode(t, err, ErrorStorageFailure)
	if mapped := MapError(err); mapped.Code != 500 {
		t.Fatalf("expected 500, got %d", mapped.Code)
	}
}

func TestLinkService_RelinkKeepsSingleCredential(t *testing.T) {
	fx := newLinkFixture(t)
	ctx := context.Background()
	for _, token := range []string{"tok-x", "tok-z"} {
		started, err := fx.service.Start(ctx, StartLinkRequest{UserID: "u1"})
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if _, err := fx.service.Complete(ctx, CompleteLinkRequest{Token: token, State: started.State}); err != nil {
			t.Fatalf("complete %s: %v", token, err)
		}
	}
	if len(fx.credentials.rows) != 1 {
		t.Fatalf("expected one credential row, got %d", len(fx.credentials.rows))
	}
	credential, _ := fx.credentials.Get(ctx, "u1")
	if credential.AccessToken != "tok-z" {
		t.Fatalf("expected latest token, got %q", credential.AccessToken)
	}
}

func TestLinkService_ConcurrentCompleteHasSingleWinner(t *testing.T) {
	fx := newLinkFixture(t)
	ctx := context.Background()
	started, err := fx.service.Start(ctx, StartLinkRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.service.Complete(ctx, CompleteLinkRequest{Token: "tok-x", State: started.State})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		requireTextCode(t, err, ErrorSessionInvalidOrExpired)
	}
	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
}

func TestNewLinkService_RequiresCollaborators(t *testing.T) {
	if _, err := NewLinkService(testConfig()); err == nil {
		t.Fatalf("expected error without collaborators")
	}
	if _, err := NewLinkService(DefaultConfig(),
		WithTokenVerifier(&stubVerifier{}),
		WithAuthorizeURLBuilder(stubURLBuilder{}),
		WithCredentialStore(newMemoryCredentialStore()),
	); err == nil {
		t.Fatalf("expected config validation error without api key")
	}
}
