package core

import (
	"context"
	"encoding/json"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type PendingHandshake struct {
	State       string
	OwnerUserID string
	IssuedAt    time.Time
}

type LinkedCredential struct {
	ID           string
	UserID       string
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UpsertCredentialInput struct {
	UserID       string
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
}

// ProviderEvent is one normalized webhook delivery. Optional fields are nil
// when the payload did not carry them.
type ProviderEvent struct {
	ID         int64           `json:"id"`
	EventType  string          `json:"eventType"`
	CardID     *string         `json:"cardId"`
	CardName   *string         `json:"cardName"`
	ListID     *string         `json:"listId"`
	ListName   *string         `json:"listName"`
	BoardID    *string         `json:"boardId"`
	BoardName  *string         `json:"boardName"`
	RawPayload json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type ProviderIdentity struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

type StartLinkRequest struct {
	UserID string
}

type StartLinkResponse struct {
	State        string
	AuthorizeURL string
	Phase        HandshakePhase
}

type CompleteLinkRequest struct {
	Token string
	State string
}

type CompleteLinkResponse struct {
	UserID   string
	Identity ProviderIdentity
	Phase    HandshakePhase
}

type SessionStore interface {
	Issue(ctx context.Context, ownerUserID string) (string, error)
	Take(ctx context.Context, state string) (PendingHandshake, bool)
	IsExpired(handshake PendingHandshake) bool
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (ProviderIdentity, error)
}

type AuthorizeURLBuilder interface {
	AuthorizeURL(state string) (string, error)
}

type CredentialStore interface {
	Upsert(ctx context.Context, in UpsertCredentialInput) (LinkedCredential, error)
	Get(ctx context.Context, userID string) (LinkedCredential, error)
}

type EventStore interface {
	Append(ctx context.Context, event ProviderEvent) (ProviderEvent, error)
	Recent(ctx context.Context, limit int) ([]ProviderEvent, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// SealDetector is implemented by secret providers that can tell a sealed
// value from plaintext written before encryption was enabled.
type SealDetector interface {
	IsSealed(value []byte) bool
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
