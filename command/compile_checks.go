package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[StartLinkMessage]     = (*StartLinkCommand)(nil)
	_ gocmd.Commander[CompleteLinkMessage]  = (*CompleteLinkCommand)(nil)
	_ gocmd.Commander[IngestWebhookMessage] = (*IngestWebhookCommand)(nil)
)
