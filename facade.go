package trellolink

import (
	"fmt"

	trellocommand "github.com/goliatone/go-trellolink/command"
	trelloquery "github.com/goliatone/go-trellolink/query"
)

// CommandQueryService is the link side of the facade, satisfied by
// *core.LinkService.
type CommandQueryService interface {
	trellocommand.LinkService
	trelloquery.CredentialReader
}

// EventIngestor is the webhook side of the facade, satisfied by
// *webhooks.Ingestor.
type EventIngestor interface {
	trellocommand.WebhookIngestor
	trelloquery.EventReader
}

type Commands struct {
	StartLink     *trellocommand.StartLinkCommand
	CompleteLink  *trellocommand.CompleteLinkCommand
	IngestWebhook *trellocommand.IngestWebhookCommand
}

type Queries struct {
	RecentEvents  *trelloquery.RecentEventsQuery
	GetCredential *trelloquery.GetCredentialQuery
}

type Facade struct {
	service  CommandQueryService
	ingestor EventIngestor
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService, ingestor EventIngestor) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("trellolink: link service is required")
	}
	if ingestor == nil {
		return nil, fmt.Errorf("trellolink: webhook ingestor is required")
	}

	facade := &Facade{service: service, ingestor: ingestor}
	facade.commands = Commands{
		StartLink:     trellocommand.NewStartLinkCommand(service),
		CompleteLink:  trellocommand.NewCompleteLinkCommand(service),
		IngestWebhook: trellocommand.NewIngestWebhookCommand(ingestor),
	}
	facade.queries = Queries{
		RecentEvents:  trelloquery.NewRecentEventsQuery(ingestor),
		GetCredential: trelloquery.NewGetCredentialQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func (f *Facade) Ingestor() EventIngestor {
	if f == nil {
		return nil
	}
	return f.ingestor
}
