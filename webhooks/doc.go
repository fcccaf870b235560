// Package webhooks turns Trello webhook deliveries into stored events.
//
// Every delivery resolves to one outcome:
// accepted (probe or stored card event), ignored (no action, or an action
// that is not about a card) or rejected (body is not JSON).
// Deliveries are at-least-once; nothing here deduplicates them.
//
// SignatureVerifier checks the X-Trello-Webhook header when the app secret
// and callback URL are known.
package webhooks
