// Package core holds the account-link domain: handshake sessions, the link
// service that drives start and complete, configuration and the error
// envelope shared by every adapter. Storage, transport and HTTP packages
// depend on core, never the reverse.
package core
