package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-trellolink/core"
	"github.com/uptrace/bun"
)

// EventStore is the append-only log of card webhook deliveries.
type EventStore struct {
	db *bun.DB
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &EventStore{db: db}, nil
}

func (s *EventStore) Append(ctx context.Context, event core.ProviderEvent) (core.ProviderEvent, error) {
	if s == nil || s.db == nil {
		return core.ProviderEvent{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	if strings.TrimSpace(event.EventType) == "" {
		return core.ProviderEvent{}, fmt.Errorf("sqlstore: event type is required")
	}
	if len(event.RawPayload) == 0 {
		return core.ProviderEvent{}, fmt.Errorf("sqlstore: event payload is required")
	}

	record := newEventRecord(event)
	if _, err := s.db.NewInsert().Model(record).Returning("id").Exec(ctx); err != nil {
		return core.ProviderEvent{}, err
	}
	return record.toDomain(), nil
}

// Recent returns at most limit events ordered by created_at, newest first.
// id breaks ties between events stored within the same instant.
func (s *EventStore) Recent(ctx context.Context, limit int) ([]core.ProviderEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: event store is not configured")
	}
	if limit <= 0 {
		limit = core.DefaultRecentEventLimit
	}

	records := make([]eventRecord, 0, limit)
	if err := s.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.created_at DESC").
		OrderExpr("?TableAlias.id DESC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, err
	}

	events := make([]core.ProviderEvent, 0, len(records))
	for i := range records {
		events = append(events, records[i].toDomain())
	}
	return events, nil
}
