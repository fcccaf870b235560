package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-trellolink/core"
)

var (
	_ gocmd.Querier[RecentEventsMessage, []core.ProviderEvent]   = (*RecentEventsQuery)(nil)
	_ gocmd.Querier[GetCredentialMessage, core.LinkedCredential] = (*GetCredentialQuery)(nil)
)
