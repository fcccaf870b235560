package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-trellolink/core"
	"github.com/goliatone/go-trellolink/webhooks"
)

type LinkService interface {
	Start(ctx context.Context, req core.StartLinkRequest) (core.StartLinkResponse, error)
	Complete(ctx context.Context, req core.CompleteLinkRequest) (core.CompleteLinkResponse, error)
}

type WebhookIngestor interface {
	Ingest(ctx context.Context, body []byte) (webhooks.IngestResult, error)
}

type StartLinkCommand struct {
	service LinkService
}

func NewStartLinkCommand(service LinkService) *StartLinkCommand {
	return &StartLinkCommand{service: service}
}

func (c *StartLinkCommand) Execute(ctx context.Context, msg StartLinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: link service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Start(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteLinkCommand struct {
	service LinkService
}

func NewCompleteLinkCommand(service LinkService) *CompleteLinkCommand {
	return &CompleteLinkCommand{service: service}
}

func (c *CompleteLinkCommand) Execute(ctx context.Context, msg CompleteLinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: link service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Complete(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type IngestWebhookCommand struct {
	ingestor WebhookIngestor
}

func NewIngestWebhookCommand(ingestor WebhookIngestor) *IngestWebhookCommand {
	return &IngestWebhookCommand{ingestor: ingestor}
}

func (c *IngestWebhookCommand) Execute(ctx context.Context, msg IngestWebhookMessage) error {
	if c == nil || c.ingestor == nil {
		return commandDependencyError("command: webhook ingestor is required")
	}
	out, err := c.ingestor.Ingest(ctx, msg.Body)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
