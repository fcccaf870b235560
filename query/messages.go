package query

import "strings"

const (
	TypeRecentEvents  = "trellolink.query.events.recent"
	TypeGetCredential = "trellolink.query.credential.get"
)

// RecentEventsMessage asks for the newest events. A non-positive Limit
// falls back to the default page size.
type RecentEventsMessage struct {
	Limit int
}

func (RecentEventsMessage) Type() string { return TypeRecentEvents }

func (RecentEventsMessage) Validate() error { return nil }

type GetCredentialMessage struct {
	UserID string
}

func (GetCredentialMessage) Type() string { return TypeGetCredential }

func (m GetCredentialMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("userId", "user id is required")
	}
	return nil
}
