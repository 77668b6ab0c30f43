package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokens verifies tokens from a fixed table.
type fakeTokens struct {
	claims map[string]*Claims
	errs   map[string]error
}

func (f *fakeTokens) Issue(userID uuid.UUID) (string, error) {
	return "issued-token", nil
}

func (f *fakeTokens) Verify(tokenStr string) (*Claims, error) {
	if err, ok := f.errs[tokenStr]; ok {
		return nil, err
	}
	if c, ok := f.claims[tokenStr]; ok {
		return c, nil
	}
	return nil, ErrInvalidToken
}

func okHandler(t *testing.T, wantPrincipal bool) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		_, ok := PrincipalFromContext(r.Context())
		assert.Equal(t, wantPrincipal, ok)
		w.WriteHeader(http.StatusOK)
	}
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "fail", body.Status)
	return body.Message
}

func TestProtect_NoToken(t *testing.T) {
	m := NewMiddleware(&fakeTokens{}, newFakeStore())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	m.Protect(okHandler(t, true)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "You are not logged in! Please log in to get access.", decodeMessage(t, rec))
}

func TestProtect_InvalidToken(t *testing.T) {
	m := NewMiddleware(&fakeTokens{}, newFakeStore())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")

	m.Protect(okHandler(t, true)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token. Please log in again!", decodeMessage(t, rec))
}

func TestProtect_ExpiredToken(t *testing.T) {
	tokens := &fakeTokens{errs: map[string]error{"old": ErrExpiredToken}}
	m := NewMiddleware(tokens, newFakeStore())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer old")

	m.Protect(okHandler(t, true)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Your token has expired! Please log in again.", decodeMessage(t, rec))
}

func TestProtect_UserGone(t *testing.T) {
	tokens := &fakeTokens{claims: map[string]*Claims{
		"tok": {UserID: uuid.New(), IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)},
	}}
	m := NewMiddleware(tokens, newFakeStore())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")

	m.Protect(okHandler(t, true)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "The user belonging to this token no longer exists.", decodeMessage(t, rec))
}

func TestProtect_PasswordChangedAfterToken(t *testing.T) {
	store := newFakeStore()
	u := addTestUser(t, store, "alice@example.com", "correcthorse")
	changed := time.Now()
	u.PasswordChangedAt = &changed

	tokens := &fakeTokens{claims: map[string]*Claims{
		"tok": {UserID: u.ID, IssuedAt: time.Now().Add(-time.Hour), ExpiresAt: time.Now().Add(time.Hour)},
	}}
	m := NewMiddleware(tokens, store)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")

	m.Protect(okHandler(t, true)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User recently changed password! Please log in again.", decodeMessage(t, rec))
}

func TestProtect_BearerHeaderSuccess(t *testing.T) {
	store := newFakeStore()
	u := addTestUser(t, store, "alice@example.com", "correcthorse")

	tokens := &fakeTokens{claims: map[string]*Claims{
		"tok": {UserID: u.ID, IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)},
	}}
	m := NewMiddleware(tokens, store)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")

	m.Protect(okHandler(t, true)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtect_CookieSuccess(t *testing.T) {
	store := newFakeStore()
	u := addTestUser(t, store, "alice@example.com", "correcthorse")

	tokens := &fakeTokens{claims: map[string]*Claims{
		"tok": {UserID: u.ID, IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)},
	}}
	m := NewMiddleware(tokens, store)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})

	m.Protect(okHandler(t, true)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIsLoggedIn_FailureContinuesAnonymously(t *testing.T) {
	m := NewMiddleware(&fakeTokens{}, newFakeStore())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")

	m.IsLoggedIn(okHandler(t, false)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIsLoggedIn_AttachesPrincipalOnValidSession(t *testing.T) {
	store := newFakeStore()
	u := addTestUser(t, store, "alice@example.com", "correcthorse")

	tokens := &fakeTokens{claims: map[string]*Claims{
		"tok": {UserID: u.ID, IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)},
	}}
	m := NewMiddleware(tokens, store)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})

	m.IsLoggedIn(okHandler(t, true)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRestrictTo(t *testing.T) {
	store := newFakeStore()
	u := addTestUser(t, store, "alice@example.com", "correcthorse") // role "user"

	tokens := &fakeTokens{claims: map[string]*Claims{
		"tok": {UserID: u.ID, IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)},
	}}
	m := NewMiddleware(tokens, store)

	protected := m.Protect(m.RestrictTo("admin", "lead-guide")(okHandler(t, true)))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You do not have permission to perform this action", decodeMessage(t, rec))

	// Allowed role passes through.
	u.Role = "admin"
	allowed := m.Protect(m.RestrictTo("admin")(okHandler(t, true)))
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	allowed.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRestrictTo_NoPrincipal(t *testing.T) {
	m := NewMiddleware(&fakeTokens{}, newFakeStore())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	m.RestrictTo("admin")(okHandler(t, true)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
