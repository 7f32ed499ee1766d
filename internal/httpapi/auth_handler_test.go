package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin_gateway/internal/auth"
)

func TestRegisterCreatesAccountAndToken(t *testing.T) {
	deps, users, _, _, _ := newTestDeps()

	body := `{"email":"ana@example.com","password":"correcthorse","language":"en"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	deps.handleRegister(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(1), resp.UserID)

	userID, err := auth.DecodeToken(resp.Token, deps.Cfg.Auth)
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, userID)

	stored, err := users.GetByEmail(req.Context(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "en", stored.Language)
	assert.NotEqual(t, "correcthorse", stored.PasswordHash)
}

func TestRegisterNormalizesUnknownLanguage(t *testing.T) {
	deps, users, _, _, _ := newTestDeps()

	body := `{"email":"bo@example.com","password":"correcthorse","language":"fr"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	deps.handleRegister(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	stored, err := users.GetByEmail(req.Context(), "bo@example.com")
	require.NoError(t, err)
	assert.Equal(t, "es", stored.Language)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid email", `{"email":"not-an-email","password":"correcthorse"}`},
		{"short password", `{"email":"ana@example.com","password":"short"}`},
		{"malformed json", `{"email":`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps, _, _, _, _ := newTestDeps()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			deps.handleRegister(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	deps, _, _, _, _ := newTestDeps()
	body := `{"email":"ana@example.com","password":"correcthorse"}`

	rec := httptest.NewRecorder()
	deps.handleRegister(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	deps.handleRegister(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginRoundTrip(t *testing.T) {
	deps, _, _, _, _ := newTestDeps()

	registerBody := `{"email":"ana@example.com","password":"correcthorse"}`
	rec := httptest.NewRecorder()
	deps.handleRegister(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(registerBody)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	loginBody := `{"email":"ana@example.com","password":"correcthorse"}`
	deps.handleLogin(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(loginBody)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	userID, err := auth.DecodeToken(resp.Token, deps.Cfg.Auth)
	require.NoError(t, err)
	assert.Equal(t, int64(1), userID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	deps, _, _, _, _ := newTestDeps()

	registerBody := `{"email":"ana@example.com","password":"correcthorse"}`
	rec := httptest.NewRecorder()
	deps.handleRegister(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(registerBody)))
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name string
		body string
	}{
		{"wrong password", `{"email":"ana@example.com","password":"wrongwrong"}`},
		{"unknown user", `{"email":"nobody@example.com","password":"correcthorse"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			deps.handleLogin(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tc.body)))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "invalid credentials", resp.Message)
		})
	}
}
