package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testUsers(t *testing.T) Users {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	users, err := ParseUsers("alice:student:" + string(hash) + "; bob:teacher:" + string(hash))
	require.NoError(t, err)
	return users
}

func echoCaller() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, role := Caller(r.Context())
		_, _ = w.Write([]byte(sub + "|" + role))
	})
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	tok, err := a.IssueJWT("alice", "student")
	require.NoError(t, err)
	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.Sub)
	assert.Equal(t, "student", c.Role)

	other := NewAuthService("other", time.Hour)
	_, err = other.Parse(tok)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	a := NewAuthService("secret", time.Minute)
	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := a.IssueJWT("alice", "student")
	require.NoError(t, err)
	_, err = NewAuthService("secret", time.Minute).Parse(tok)
	assert.Error(t, err)
}

func TestLoginHandler(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	h := LoginHandler(a, testUsers(t))

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "pw"})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp tokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.EqualValues(t, 3600, resp.ExpiresIn)
	c, err := a.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "student", c.Role)

	body, _ = json.Marshal(map[string]string{"username": "alice", "password": "nope"})
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body, _ = json.Marshal(map[string]string{"username": "mallory", "password": "pw"})
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	h := JWTMiddleware(a)(echoCaller())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, _ := a.IssueJWT("bob", "teacher")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob|teacher", rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	h := OptionalJWT(a, "admin")(echoCaller())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "|admin", rec.Body.String())

	tok, _ := a.IssueJWT("alice", "student")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "alice|student", rec.Body.String())
}

func TestParseUsersRejectsBadEntries(t *testing.T) {
	_, err := ParseUsers("alice:student")
	assert.Error(t, err)
	users, err := ParseUsers("")
	require.NoError(t, err)
	assert.Empty(t, users)
}
