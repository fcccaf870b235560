package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/goliatone/go-trellolink/core"
	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:trello_credentials,alias:tc"`

	ID           string     `bun:"id,pk"`
	UserID       string     `bun:"user_id,notnull"`
	AccessToken  string     `bun:"access_token,notnull"`
	RefreshToken *string    `bun:"refresh_token"`
	ExpiresAt    *time.Time `bun:"expires_at,nullzero"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type eventRecord struct {
	bun.BaseModel `bun:"table:trello_events,alias:te"`

	ID        int64     `bun:"id,pk,autoincrement"`
	EventType string    `bun:"event_type,notnull"`
	CardID    *string   `bun:"card_id"`
	CardName  *string   `bun:"card_name"`
	ListID    *string   `bun:"list_id"`
	ListName  *string   `bun:"list_name"`
	BoardID   *string   `bun:"board_id"`
	BoardName *string   `bun:"board_name"`
	Payload   string    `bun:"payload,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// toDomain returns the credential as stored; token decryption happens in
// the store.
func (r *credentialRecord) toDomain() core.LinkedCredential {
	if r == nil {
		return core.LinkedCredential{}
	}
	return core.LinkedCredential{
		ID:           r.ID,
		UserID:       r.UserID,
		AccessToken:  r.AccessToken,
		RefreshToken: copyStringPointer(r.RefreshToken),
		ExpiresAt:    copyTimePointer(r.ExpiresAt),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func newEventRecord(event core.ProviderEvent) *eventRecord {
	createdAt := event.CreatedAt.UTC()
	if event.CreatedAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &eventRecord{
		EventType: event.EventType,
		CardID:    copyStringPointer(event.CardID),
		CardName:  copyStringPointer(event.CardName),
		ListID:    copyStringPointer(event.ListID),
		ListName:  copyStringPointer(event.ListName),
		BoardID:   copyStringPointer(event.BoardID),
		BoardName: copyStringPointer(event.BoardName),
		Payload:   string(event.RawPayload),
		CreatedAt: createdAt,
	}
}

func (r *eventRecord) toDomain() core.ProviderEvent {
	if r == nil {
		return core.ProviderEvent{}
	}
	return core.ProviderEvent{
		ID:         r.ID,
		EventType:  r.EventType,
		CardID:     copyStringPointer(r.CardID),
		CardName:   copyStringPointer(r.CardName),
		ListID:     copyStringPointer(r.ListID),
		ListName:   copyStringPointer(r.ListName),
		BoardID:    copyStringPointer(r.BoardID),
		BoardName:  copyStringPointer(r.BoardName),
		RawPayload: json.RawMessage(r.Payload),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func copyStringPointer(input *string) *string {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}

func copyTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
