// Package httpapi exposes the account-link handshake, webhook intake and
// event feed over net/http.
//
// Routes:
//
//	GET  /auth/start?userId=       302 to the Trello authorize page
//	GET  /auth/callback?state=     handoff page that posts the fragment token
//	POST /auth/complete            {token, state}
//	POST /webhooks/provider        Trello deliveries (alias /webhooks/trello)
//	HEAD /webhooks/provider        callback URL liveness
//	GET  /api/events/recent?limit= newest stored card events
//	GET  /api/health               liveness
//
// When an API key is configured, /api/* other than health requires it in
// the x-api-key header. With a signature verifier installed, webhook POSTs
// must carry a valid X-Trello-Webhook header.
package httpapi
