// Package gateway exposes the conversational API over HTTP.
//
// Endpoints:
//
//   - POST /api/chat: either creates a session ({ownerId, initialQuestion})
//     returning {sessionId}, or runs one streamed turn ({sessionId,
//     message, isContinuation?}) whose body is newline-delimited JSON
//     frames with Content-Type text/plain.
//   - GET /api/sessions?sessionId=...: the session header and history as
//     JSON. 400/401/403/404 on the usual failures.
//   - GET /api/sessions/view?sessionId=...: the same transcript as HTML.
//   - /healthz and, when enabled, /metrics.
//
// Setup failures on the turn endpoint are rejected with a plain HTTP
// status before the first frame; once streaming begins, failures travel
// inside the stream and the response stays 200.
//
// Identity comes from the auth resolver: a bearer token, an explicit
// requesterIdentity parameter, or a long-lived anonymous cookie minted on
// first contact.
package gateway
