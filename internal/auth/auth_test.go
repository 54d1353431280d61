// ABOUTME: Tests for identity resolution and JWT verification
// ABOUTME: Covers resolution precedence, anonymous cookie minting, token errors

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(verifier TokenVerifier) *Resolver {
	return &Resolver{Verifier: verifier, CookieName: "parrot_anon_id"}
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))

	token, err := v.Generate("u1", time.Hour)
	require.NoError(t, err)

	ownerID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", ownerID)
}

func TestJWTVerifier_Expired(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))

	token, err := v.Generate("u1", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	token, err := NewJWTVerifier([]byte("secret-a")).Generate("u1", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTVerifier([]byte("secret-b")).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolve_BearerWins(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))
	token, err := v.Generate("token-user", time.Hour)
	require.NoError(t, err)

	r := newResolver(v)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions?requesterIdentity=param-user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.AddCookie(&http.Cookie{Name: "parrot_anon_id", Value: "cookie-user"})

	id := r.Resolve(httptest.NewRecorder(), req)
	assert.Equal(t, "token-user", id.OwnerID)
	assert.True(t, id.Authenticated)
}

func TestResolve_ExplicitParam(t *testing.T) {
	r := newResolver(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions?requesterIdentity=param-user", nil)
	req.AddCookie(&http.Cookie{Name: "parrot_anon_id", Value: "cookie-user"})

	id := r.Resolve(httptest.NewRecorder(), req)
	assert.Equal(t, "param-user", id.OwnerID)
	assert.False(t, id.Authenticated)
	assert.False(t, id.Anonymous)
}

func TestResolve_CookieFallback(t *testing.T) {
	r := newResolver(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.AddCookie(&http.Cookie{Name: "parrot_anon_id", Value: "cookie-user"})

	id := r.Resolve(httptest.NewRecorder(), req)
	assert.Equal(t, "cookie-user", id.OwnerID)
	assert.True(t, id.Anonymous)
}

func TestResolve_MintsAnonymousCookie(t *testing.T) {
	r := newResolver(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()

	id := r.Resolve(rec, req)
	require.NotEmpty(t, id.OwnerID)
	assert.True(t, id.Anonymous)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "parrot_anon_id", cookies[0].Name)
	assert.Equal(t, id.OwnerID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestResolve_InvalidBearerFallsThrough(t *testing.T) {
	r := newResolver(NewJWTVerifier([]byte("secret")))
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	req.AddCookie(&http.Cookie{Name: "parrot_anon_id", Value: "cookie-user"})

	id := r.Resolve(httptest.NewRecorder(), req)
	assert.Equal(t, "cookie-user", id.OwnerID)
}

func TestResolve_NoWriterNoIdentity(t *testing.T) {
	r := newResolver(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)

	id := r.Resolve(nil, req)
	assert.Empty(t, id.OwnerID)
}
