package adapters_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-trellolink/adapters/gocommand"
	"github.com/goliatone/go-trellolink/adapters/gologger"
	"github.com/goliatone/go-trellolink/bootstrap"
	trellocommand "github.com/goliatone/go-trellolink/command"
	"github.com/goliatone/go-trellolink/core"
	trelloquery "github.com/goliatone/go-trellolink/query"
	"github.com/goliatone/go-trellolink/webhooks"
)

type compatVerifier struct{}

func (compatVerifier) Verify(_ context.Context, token string) (core.ProviderIdentity, error) {
	if token != "tok-good" {
		return core.ProviderIdentity{}, errors.New("rejected")
	}
	return core.ProviderIdentity{ID: "member_1"}, nil
}

func TestRuntimeCompatibility_DispatcherOverSQLiteApp(t *testing.T) {
	ctx := context.Background()

	var logs bytes.Buffer
	provider := gologger.NewProvider(gologger.NewWriterLogger(&logs, "json", slog.LevelDebug))

	cfg := core.DefaultConfig()
	cfg.Trello.APIKey = "key-1"
	cfg.Trello.RedirectURI = "http://localhost:3001/auth/callback"
	cfg.Database.DSN = fmt.Sprintf("file:compat-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())

	app, err := bootstrap.New(ctx, cfg,
		bootstrap.WithLoggerProvider(provider),
		bootstrap.WithTokenVerifier(compatVerifier{}),
	)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer func() { _ = app.Close() }()

	subs, err := gocommand.RegisterFacade(gocommand.NewRegistryAdapter(nil), app.Facade)
	if err != nil {
		t.Fatalf("register facade: %v", err)
	}
	defer subs.Unsubscribe()

	start, err := gocommand.DispatchWithResult[trellocommand.StartLinkMessage, core.StartLinkResponse](ctx,
		trellocommand.StartLinkMessage{Request: core.StartLinkRequest{UserID: "user_1"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := gocommand.DispatchWithResult[trellocommand.CompleteLinkMessage, core.CompleteLinkResponse](ctx,
		trellocommand.CompleteLinkMessage{Request: core.CompleteLinkRequest{Token: "tok-bad", State: start.State}}); err == nil {
		t.Fatalf("expected rejected token to fail")
	}
	if _, err := gocommand.DispatchWithResult[trellocommand.CompleteLinkMessage, core.CompleteLinkResponse](ctx,
		trellocommand.CompleteLinkMessage{Request: core.CompleteLinkRequest{Token: "tok-good", State: start.State}}); err == nil {
		t.Fatalf("expected consumed state to fail on retry")
	}

	start, err = gocommand.DispatchWithResult[trellocommand.StartLinkMessage, core.StartLinkResponse](ctx,
		trellocommand.StartLinkMessage{Request: core.StartLinkRequest{UserID: "user_1"}})
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	completed, err := gocommand.DispatchWithResult[trellocommand.CompleteLinkMessage, core.CompleteLinkResponse](ctx,
		trellocommand.CompleteLinkMessage{Request: core.CompleteLinkRequest{Token: "tok-good", State: start.State}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.UserID != "user_1" || completed.Phase != core.PhaseCompleted {
		t.Fatalf("unexpected completion %#v", completed)
	}

	credential, err := gocommand.Query[trelloquery.GetCredentialMessage, core.LinkedCredential](ctx,
		trelloquery.GetCredentialMessage{UserID: "user_1"})
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if credential.AccessToken != "tok-good" {
		t.Fatalf("unexpected credential %#v", credential)
	}

	ingested, err := gocommand.DispatchWithResult[trellocommand.IngestWebhookMessage, webhooks.IngestResult](ctx,
		trellocommand.IngestWebhookMessage{Body: []byte(`{"action":{"type":"updateCard","data":{"card":{"id":"c1"},"listAfter":{"id":"l2","name":"Done"}}}}`)})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if ingested.Outcome != webhooks.OutcomeAccepted || ingested.Event == nil || ingested.Event.ID == 0 {
		t.Fatalf("unexpected ingest result %#v", ingested)
	}

	events, err := gocommand.Query[trelloquery.RecentEventsMessage, []core.ProviderEvent](ctx, trelloquery.RecentEventsMessage{})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 1 || *events[0].ListName != "Done" {
		t.Fatalf("unexpected events %#v", events)
	}

	if strings.Contains(logs.String(), "tok-good") {
		t.Fatalf("expected raw token to stay out of logs")
	}
	if !strings.Contains(logs.String(), `"logger":"trellolink.link"`) {
		t.Fatalf("expected named link logger output, got %s", logs.String())
	}
}
