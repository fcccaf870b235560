// Package trello holds everything that speaks Trello: the authorize URL used
// to start a link handshake, the members/me token verifier and the webhook
// notification model.
package trello
