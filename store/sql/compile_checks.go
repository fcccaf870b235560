package sqlstore

import "github.com/goliatone/go-trellolink/core"

var (
	_ core.CredentialStore = (*CredentialStore)(nil)
	_ core.CredentialStore = (*CachedCredentialStore)(nil)
	_ core.EventStore      = (*EventStore)(nil)
)
