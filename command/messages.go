package command

import (
	"strings"

	"github.com/goliatone/go-trellolink/core"
)

const (
	TypeStartLink     = "trellolink.command.link.start"
	TypeCompleteLink  = "trellolink.command.link.complete"
	TypeIngestWebhook = "trellolink.command.webhook.ingest"
)

type StartLinkMessage struct {
	Request core.StartLinkRequest
}

func (StartLinkMessage) Type() string { return TypeStartLink }

func (m StartLinkMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("userId", "user id is required")
	}
	return nil
}

type CompleteLinkMessage struct {
	Request core.CompleteLinkRequest
}

func (CompleteLinkMessage) Type() string { return TypeCompleteLink }

func (m CompleteLinkMessage) Validate() error {
	if strings.TrimSpace(m.Request.Token) == "" {
		return commandValidationError("token", "token is required")
	}
	if strings.TrimSpace(m.Request.State) == "" {
		return commandValidationError("state", "state is required")
	}
	return nil
}

// IngestWebhookMessage carries a raw delivery body. An empty body is a
// valid probe.
type IngestWebhookMessage struct {
	Body []byte
}

func (IngestWebhookMessage) Type() string { return TypeIngestWebhook }

func (IngestWebhookMessage) Validate() error { return nil }
