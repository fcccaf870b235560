package webhooks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-trellolink/core"
)

type memoryEventStore struct {
	mu        sync.Mutex
	events    []core.ProviderEvent
	appendErr error
	lastLimit int
}

func (s *memoryEventStore) Append(_ context.Context, event core.ProviderEvent) (core.ProviderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return core.ProviderEvent{}, s.appendErr
	}
	event.ID = int64(len(s.events) + 1)
	s.events = append(s.events, event)
	return event, nil
}

func (s *memoryEventStore) Recent(_ context.Context, limit int) ([]core.ProviderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit
	out := append([]core.ProviderEvent(nil), s.events...)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryEventStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

const cardUpdateBody = `{
	"action": {
		"id": "act_1",
		"type": "updateCard",
		"data": {
			"card": {"id": "card_1", "name": "Ship it"},
			"list": {"id": "list_1", "name": "Doing"},
			"board": {"id": "board_1", "name": "Roadmap"}
		}
	},
	"model": {"id": "board_1", "name": "Roadmap"}
}`

func newTestIngestor(t *testing.T, store *memoryEventStore) *Ingestor {
	t.Helper()
	fixed := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	ingestor, err := NewIngestor(store, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}
	return ingestor
}

func TestIngestor_Outcomes(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		outcome Outcome
		reason  string
		writes  int
	}{
		{"empty probe", "", OutcomeAccepted, ReasonProbe, 0},
		{"object probe", "{}", OutcomeAccepted, ReasonProbe, 0},
		{"null probe", "null", OutcomeAccepted, ReasonProbe, 0},
		{"malformed", `{"action": {`, OutcomeRejected, ReasonMalformed, 0},
		{"array", `[{"action":{}}]`, OutcomeIgnored, ReasonUnsupportedShape, 0},
		{"no action", `{"model":{"id":"board_1"}}`, OutcomeIgnored, ReasonMissingAction, 0},
		{"action without type", `{"action":{"id":"a1"}}`, OutcomeIgnored, ReasonMissingAction, 0},
		{"list change", `{"action":{"type":"updateList","data":{"list":{"id":"l1"},"board":{"id":"b1"}}}}`, OutcomeIgnored, ReasonFiltered, 0},
		{"card update", cardUpdateBody, OutcomeAccepted, ReasonStored, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &memoryEventStore{}
			result, err := newTestIngestor(t, store).Ingest(context.Background(), []byte(tc.body))
			if err != nil {
				t.Fatalf("ingest: %v", err)
			}
			if result.Outcome != tc.outcome || result.Reason != tc.reason {
				t.Fatalf("expected %s/%s, got %s/%s", tc.outcome, tc.reason, result.Outcome, result.Reason)
			}
			if store.count() != tc.writes {
				t.Fatalf("expected %d writes, got %d", tc.writes, store.count())
			}
		})
	}
}

func TestIngestor_NormalizesCardEvent(t *testing.T) {
	store := &memoryEventStore{}
	result, err := newTestIngestor(t, store).Ingest(context.Background(), []byte(cardUpdateBody))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	event := result.Event
	if event == nil || event.ID != 1 {
		t.Fatalf("expected stored event with id, got %#v", event)
	}
	if event.EventType != "updateCard" {
		t.Fatalf("unexpected type %q", event.EventType)
	}
	if *event.CardID != "card_1" || *event.ListName != "Doing" || *event.BoardName != "Roadmap" {
		t.Fatalf("unexpected normalized fields: %#v", event)
	}
	if string(event.RawPayload) != cardUpdateBody {
		t.Fatalf("expected verbatim payload")
	}
	if !event.CreatedAt.Equal(time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected ingestion timestamp, got %s", event.CreatedAt)
	}
}

func TestIngestor_StoresBodyAndNamesAsReceived(t *testing.T) {
	body := "  {\"action\":{\"type\":\"updateCard\",\"data\":{" +
		"\"card\":{\"id\":\"card_1\",\"name\":\"  padded  \"}," +
		"\"list\":{\"id\":\"list_1\",\"name\":\"   \"}," +
		"\"board\":{\"id\":\"board_1\",\"name\":\"\"}}}}\n"
	store := &memoryEventStore{}
	result, err := newTestIngestor(t, store).Ingest(context.Background(), []byte(body))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Reason != ReasonStored || result.Event == nil {
		t.Fatalf("expected stored event, got %#v", result)
	}
	event := result.Event
	if string(event.RawPayload) != body {
		t.Fatalf("expected payload byte for byte (%d bytes), got %d bytes", len(body), len(event.RawPayload))
	}
	if event.CardName == nil || *event.CardName != "  padded  " {
		t.Fatalf("expected padded card name to be kept, got %v", event.CardName)
	}
	if event.ListName == nil || *event.ListName != "   " {
		t.Fatalf("expected whitespace list name to be kept, got %v", event.ListName)
	}
	if event.BoardName != nil {
		t.Fatalf("expected empty board name to be absent, got %q", *event.BoardName)
	}
}

func TestIngestor_RepeatedDeliveriesAreNotDeduplicated(t *testing.T) {
	store := &memoryEventStore{}
	ingestor := newTestIngestor(t, store)
	for i := 0; i < 3; i++ {
		if _, err := ingestor.Ingest(context.Background(), []byte(cardUpdateBody)); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}
	if store.count() != 3 {
		t.Fatalf("expected 3 stored events, got %d", store.count())
	}
}

func TestIngestor_ConcurrentDeliveries(t *testing.T) {
	store := &memoryEventStore{}
	ingestor := newTestIngestor(t, store)
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ingestor.Ingest(context.Background(), []byte(cardUpdateBody)); err != nil {
				t.Errorf("ingest: %v", err)
			}
		}()
	}
	wg.Wait()
	if store.count() != 25 {
		t.Fatalf("expected 25 stored events, got %d", store.count())
	}
}

func TestIngestor_StoreFailureIsStorageError(t *testing.T) {
	store := &memoryEventStore{appendErr: errors.New("database is locked")}
	_, err := newTestIngestor(t, store).Ingest(context.Background(), []byte(cardUpdateBody))
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ErrorStorageFailure {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestIngestor_RecentDefaultsLimit(t *testing.T) {
	store := &memoryEventStore{}
	ingestor := newTestIngestor(t, store)
	if _, err := ingestor.Recent(context.Background(), 0); err != nil {
		t.Fatalf("recent: %v", err)
	}
	if store.lastLimit != core.DefaultRecentEventLimit {
		t.Fatalf("expected default limit %d, got %d", core.DefaultRecentEventLimit, store.lastLimit)
	}
	if _, err := ingestor.Recent(context.Background(), 500); err != nil {
		t.Fatalf("recent: %v", err)
	}
	if store.lastLimit != 500 {
		t.Fatalf("expected limit to pass through unbounded, got %d", store.lastLimit)
	}
}

func TestNewIngestor_RequiresStore(t *testing.T) {
	if _, err := NewIngestor(nil); err == nil {
		t.Fatalf("expected error without store")
	}
}

type loggedLine struct {
	msg    string
	fields map[string]any
}

type recordingLogger struct {
	mu    *sync.Mutex
	lines *[]loggedLine
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, lines: &[]loggedLine{}}
}

func (l *recordingLogger) record(msg string, args ...any) {
	fields := map[string]any{}
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.lines = append(*l.lines, loggedLine{msg: msg, fields: fields})
}

func (l *recordingLogger) find(msg string) (loggedLine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range *l.lines {
		if line.msg == msg {
			return line, true
		}
	}
	return loggedLine{}, false
}

func (l *recordingLogger) Trace(msg string, args ...any) { l.record(msg, args...) }
func (l *recordingLogger) Debug(msg string, args ...any) { l.record(msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record(msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record(msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record(msg, args...) }
func (l *recordingLogger) Fatal(msg string, args ...any) { l.record(msg, args...) }

func (l *recordingLogger) WithContext(context.Context) core.Logger { return l }

func TestIngestor_LogsActionDateAndModel(t *testing.T) {
	logger := newRecordingLogger()
	ingestor, err := NewIngestor(&memoryEventStore{},
		WithObserver(core.NewObserver(logger, nil, "trellolink.webhooks")),
	)
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}

	body := `{"action":{"id":"a9","type":"updateList","date":"2026-04-02T08:30:00.000Z",` +
		`"data":{"list":{"id":"l1"},"board":{"id":"b1"}}},"model":{"id":"b1","name":"Roadmap"}}`
	result, err := ingestor.Ingest(context.Background(), []byte(body))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Reason != ReasonFiltered {
		t.Fatalf("expected filtered list change, got %s", result.Reason)
	}

	metadata, ok := logger.find("webhook metadata change observed")
	if !ok {
		t.Fatalf("expected metadata debug line")
	}
	if metadata.fields["model_id"] != "b1" || metadata.fields["list_id"] != "l1" {
		t.Fatalf("expected model and list ids, got %#v", metadata.fields)
	}
	outcome, ok := logger.find("ingest succeeded")
	if !ok {
		t.Fatalf("expected ingest outcome line")
	}
	if outcome.fields["action_date"] != "2026-04-02T08:30:00.000Z" {
		t.Fatalf("expected action date on outcome line, got %#v", outcome.fields)
	}
}
