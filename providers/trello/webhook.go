package trello

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-trellolink/core"
)

var (
	ErrMalformedPayload = errors.New("trello: payload is not valid json")
	ErrUnsupportedShape = errors.New("trello: payload is not a json object")
)

// Entity is the id/name pair Trello embeds for cards, lists and boards.
// Either half may be missing. Values are kept exactly as sent.
type Entity struct {
	ID   *string
	Name *string
}

func (e Entity) Empty() bool {
	return e.ID == nil && e.Name == nil
}

type Action struct {
	ID   string
	Type string
	Date string
	data map[string]json.RawMessage
}

// Notification is one decoded webhook body. Action and Model are nil when
// the body did not carry a usable object under that key.
type Notification struct {
	Action *Action
	Model  *Entity
}

// IsProbe reports whether body carries nothing at all: empty, whitespace,
// null or an empty object. Trello and uptime checkers send these to confirm
// the callback URL answers.
func IsProbe(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return true
	}
	switch string(trimmed) {
	case "null", "{}":
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err == nil && len(fields) == 0 {
		return true
	}
	return false
}

func DecodeNotification(body []byte) (Notification, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return Notification{}, ErrMalformedPayload
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Notification{}, ErrUnsupportedShape
	}

	var out Notification
	if raw, ok := fields["action"]; ok {
		out.Action = decodeAction(raw)
	}
	if raw, ok := fields["model"]; ok {
		if entity, ok := decodeEntity(raw); ok {
			out.Model = &entity
		}
	}
	return out, nil
}

func decodeAction(raw json.RawMessage) *Action {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil
	}
	action := &Action{
		ID:   stringField(fields, "id"),
		Type: stringField(fields, "type"),
		Date: stringField(fields, "date"),
	}
	if rawData, ok := fields["data"]; ok {
		var data map[string]json.RawMessage
		if err := json.Unmarshal(rawData, &data); err == nil {
			action.data = data
		}
	}
	return action
}

func decodeEntity(raw json.RawMessage) (Entity, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Entity{}, false
	}
	entity := Entity{
		ID:   optionalStringField(fields, "id"),
		Name: optionalStringField(fields, "name"),
	}
	return entity, !entity.Empty()
}

// stringField reads an action header value, trimmed for matching.
func stringField(fields map[string]json.RawMessage, key string) string {
	if value := optionalStringField(fields, key); value != nil {
		return strings.TrimSpace(*value)
	}
	return ""
}

// optionalStringField returns nil when key is missing, not a string or the
// empty string. Any other value is returned untouched.
func optionalStringField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil || value == "" {
		return nil
	}
	return &value
}

func (a *Action) entity(key string) (Entity, bool) {
	if a == nil || a.data == nil {
		return Entity{}, false
	}
	raw, ok := a.data[key]
	if !ok {
		return Entity{}, false
	}
	return decodeEntity(raw)
}

func (a *Action) Card() (Entity, bool) {
	return a.entity("card")
}

// List prefers data.list and falls back to data.listAfter, which is where
// Trello puts the destination list when a card moves.
func (a *Action) List() (Entity, bool) {
	if list, ok := a.entity("list"); ok {
		return list, true
	}
	return a.entity("listAfter")
}

func (a *Action) Board() (Entity, bool) {
	return a.entity("board")
}

// ConcernsCard reports whether the action type is about a card, e.g.
// createCard, updateCard, commentCard or addMemberToCard.
func (a *Action) ConcernsCard() bool {
	if a == nil {
		return false
	}
	return strings.Contains(strings.ToLower(a.Type), "card")
}

// ToEvent normalizes the action into a ProviderEvent carrying body byte for
// byte.
func (a *Action) ToEvent(body []byte, receivedAt time.Time) core.ProviderEvent {
	event := core.ProviderEvent{
		EventType:  a.Type,
		RawPayload: json.RawMessage(append([]byte(nil), body...)),
		CreatedAt:  receivedAt.UTC(),
	}
	if card, ok := a.Card(); ok {
		event.CardID, event.CardName = card.ID, card.Name
	}
	if list, ok := a.List(); ok {
		event.ListID, event.ListName = list.ID, list.Name
	}
	if board, ok := a.Board(); ok {
		event.BoardID, event.BoardName = board.ID, board.Name
	}
	return event
}
