// ABOUTME: Identity resolution for HTTP requests with anonymous fallback
// ABOUTME: Precedence: bearer token, explicit parameter, long-lived anonymous cookie

package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity describes how a requester identity was resolved
type Identity struct {
	OwnerID string
	// Authenticated is true when the identity came from a verified token
	Authenticated bool
	// Anonymous is true when the identity is a fallback cookie identity
	Anonymous bool
}

// anonCookieMaxAge keeps the anonymous identity stable across visits
const anonCookieMaxAge = int(400 * 24 * time.Hour / time.Second)

// Resolver resolves the requester identity for each request.
// Verifier may be nil, in which case bearer tokens are ignored.
type Resolver struct {
	Verifier   TokenVerifier
	CookieName string
	Logger     *slog.Logger
}

// Resolve determines the requester identity with the following precedence:
//  1. A valid Authorization bearer token ("sub" claim)
//  2. The explicit requesterIdentity query parameter
//  3. The anonymous identity cookie
//
// When nothing resolves, a fresh anonymous identity is minted and set as a
// long-lived cookie so retrieval and continuation work without a login.
// Returns a zero Identity only if a cookie cannot be issued.
func (r *Resolver) Resolve(w http.ResponseWriter, req *http.Request) Identity {
	if r.Verifier != nil {
		if token := bearerToken(req.Header.Get("Authorization")); token != "" {
			ownerID, err := r.Verifier.Verify(token)
			if err == nil {
				return Identity{OwnerID: ownerID, Authenticated: true}
			}
			if r.Logger != nil {
				r.Logger.Debug("bearer token rejected", "error", err)
			}
		}
	}

	if explicit := req.URL.Query().Get("requesterIdentity"); explicit != "" {
		return Identity{OwnerID: explicit}
	}

	if cookie, err := req.Cookie(r.CookieName); err == nil && cookie.Value != "" {
		return Identity{OwnerID: cookie.Value, Anonymous: true}
	}

	if w == nil {
		return Identity{}
	}

	anonID := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     r.CookieName,
		Value:    anonID,
		Path:     "/",
		MaxAge:   anonCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return Identity{OwnerID: anonID, Anonymous: true}
}

// bearerToken extracts a bearer token from the Authorization header.
// Returns "" when the header is absent or malformed.
func bearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
