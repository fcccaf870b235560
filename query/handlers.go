package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-trellolink/core"
)

type EventReader interface {
	Recent(ctx context.Context, limit int) ([]core.ProviderEvent, error)
}

type CredentialReader interface {
	GetCredential(ctx context.Context, userID string) (core.LinkedCredential, error)
}

type RecentEventsQuery struct {
	reader EventReader
}

func NewRecentEventsQuery(reader EventReader) *RecentEventsQuery {
	return &RecentEventsQuery{reader: reader}
}

func (q *RecentEventsQuery) Query(ctx context.Context, msg RecentEventsMessage) ([]core.ProviderEvent, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: event reader is required")
	}
	limit := msg.Limit
	if limit <= 0 {
		limit = core.DefaultRecentEventLimit
	}
	return q.reader.Recent(ctx, limit)
}

type GetCredentialQuery struct {
	reader CredentialReader
}

func NewGetCredentialQuery(reader CredentialReader) *GetCredentialQuery {
	return &GetCredentialQuery{reader: reader}
}

func (q *GetCredentialQuery) Query(ctx context.Context, msg GetCredentialMessage) (core.LinkedCredential, error) {
	if q == nil || q.reader == nil {
		return core.LinkedCredential{}, queryDependencyError("query: credential reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.LinkedCredential{}, err
	}
	return q.reader.GetCredential(ctx, strings.TrimSpace(msg.UserID))
}
