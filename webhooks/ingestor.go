package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-trellolink/core"
	"github.com/goliatone/go-trellolink/providers/trello"
)

type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeRejected Outcome = "rejected"
)

const (
	ReasonProbe            = "probe"
	ReasonStored           = "stored"
	ReasonMissingAction    = "missing_action"
	ReasonFiltered         = "filtered"
	ReasonUnsupportedShape = "unsupported_shape"
	ReasonMalformed        = "malformed"
)

type IngestResult struct {
	Outcome Outcome
	Reason  string
	Event   *core.ProviderEvent
}

type IngestorOption func(*Ingestor)

func WithClock(now func() time.Time) IngestorOption {
	return func(i *Ingestor) {
		if now != nil {
			i.now = now
		}
	}
}

func WithObserver(observer *core.Observer) IngestorOption {
	return func(i *Ingestor) {
		if observer != nil {
			i.observer = observer
		}
	}
}

type Ingestor struct {
	store    core.EventStore
	observer *core.Observer
	now      func() time.Time
}

func NewIngestor(store core.EventStore, opts ...IngestorOption) (*Ingestor, error) {
	if store == nil {
		return nil, fmt.Errorf("webhooks: event store is required")
	}
	ingestor := &Ingestor{
		store:    store,
		observer: core.NewObserver(nil, nil, "trellolink.webhooks"),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ingestor)
		}
	}
	return ingestor, nil
}

func (i *Ingestor) Ingest(ctx context.Context, body []byte) (result IngestResult, err error) {
	if i == nil || i.store == nil {
		return IngestResult{}, fmt.Errorf("webhooks: ingestor is not configured")
	}
	startedAt := time.Now().UTC()
	fields := map[string]any{"bytes": len(body)}
	defer func() {
		fields["outcome"] = string(result.Outcome)
		fields["reason"] = result.Reason
		i.observer.Observe(ctx, startedAt, "ingest", err, fields)
	}()

	if trello.IsProbe(body) {
		return IngestResult{Outcome: OutcomeAccepted, Reason: ReasonProbe}, nil
	}

	notification, decodeErr := trello.DecodeNotification(body)
	switch {
	case errors.Is(decodeErr, trello.ErrMalformedPayload):
		return IngestResult{Outcome: OutcomeRejected, Reason: ReasonMalformed}, nil
	case errors.Is(decodeErr, trello.ErrUnsupportedShape):
		return IngestResult{Outcome: OutcomeIgnored, Reason: ReasonUnsupportedShape}, nil
	case decodeErr != nil:
		return IngestResult{Outcome: OutcomeRejected, Reason: ReasonMalformed}, nil
	}

	action := notification.Action
	if action == nil || action.Type == "" {
		return IngestResult{Outcome: OutcomeIgnored, Reason: ReasonMissingAction}, nil
	}
	fields["action_type"] = action.Type
	fields["action_id"] = action.ID
	if action.Date != "" {
		fields["action_date"] = action.Date
	}

	if !action.ConcernsCard() {
		i.observeMetadataChange(ctx, action, notification.Model)
		return IngestResult{Outcome: OutcomeIgnored, Reason: ReasonFiltered}, nil
	}

	stored, err := i.store.Append(ctx, action.ToEvent(body, i.now()))
	if err != nil {
		return IngestResult{}, core.StorageError(err, "append_event")
	}
	fields["event_id"] = stored.ID
	return IngestResult{Outcome: OutcomeAccepted, Reason: ReasonStored, Event: &stored}, nil
}

// Recent returns up to limit events, newest first. A non-positive limit
// means DefaultRecentEventLimit.
func (i *Ingestor) Recent(ctx context.Context, limit int) (events []core.ProviderEvent, err error) {
	if i == nil || i.store == nil {
		return nil, fmt.Errorf("webhooks: ingestor is not configured")
	}
	if limit <= 0 {
		limit = core.DefaultRecentEventLimit
	}
	events, err = i.store.Recent(ctx, limit)
	if err != nil {
		return nil, core.StorageError(err, "recent_events")
	}
	return events, nil
}

// List and board changes are not stored, but they are worth a debug line
// for whoever wants to enrich card events later.
func (i *Ingestor) observeMetadataChange(ctx context.Context, action *trello.Action, model *trello.Entity) {
	fields := map[string]any{"action_type": action.Type}
	if model != nil && model.ID != nil {
		fields["model_id"] = *model.ID
	}
	if list, ok := action.List(); ok && list.ID != nil {
		fields["list_id"] = *list.ID
	}
	if board, ok := action.Board(); ok && board.ID != nil {
		fields["board_id"] = *board.ID
	}
	i.observer.LogDebug(ctx, "webhook metadata change observed", fields)
}
