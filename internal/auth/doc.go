// Package auth resolves requester identities for the gateway.
//
// Identity issuance is an external concern: this package only maps what a
// request carries (a bearer token, an explicit requesterIdentity parameter,
// or the anonymous cookie) to an owner id. Callers without any identity are
// assigned a random persistent anonymous id stored in a long-lived cookie so
// retrieval and continuation still function without a login.
package auth
