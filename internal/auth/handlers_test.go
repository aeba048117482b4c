package auth

import (
	"Aperture-Backend/internal/domain"
	"Aperture-Backend/internal/repository/memory"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLoginTestHandlers(t *testing.T) (*AuthHandlers, *memory.MemStorage) {
	t.Helper()

	storage := memory.New()
	passwordService := NewPasswordService()

	hash, err := passwordService.Hash("s3cret")
	require.NoError(t, err)
	displayName := "Admin"
	require.NoError(t, storage.CreateUser(context.Background(), &domain.User{
		Email:        "admin@example.com",
		PasswordHash: hash,
		DisplayName:  &displayName,
		IsActive:     true,
	}))

	handlers := NewAuthHandlers(storage, newTestJWTService(), passwordService, zap.NewNop())
	return handlers, storage
}

func doLogin(t *testing.T, handlers *AuthHandlers, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(raw))
	recorder := httptest.NewRecorder()
	handlers.Login(recorder, req)
	return recorder
}

func TestLoginSuccess(t *testing.T) {
	handlers, storage := newLoginTestHandlers(t)

	rec := doLogin(t, handlers, LoginRequest{Email: "admin@example.com", Password: "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "admin@example.com", resp.Email)

	// The issued access token verifies against the same service.
	claims, err := newTestJWTService().ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", claims.Email)

	// Login bookkeeping is recorded.
	user, err := storage.GetUserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, user.LastLoginAt)
	assert.WithinDuration(t, time.Now(), *user.LastLoginAt, time.Minute)
}

func TestLoginWrongPassword(t *testing.T) {
	handlers, _ := newLoginTestHandlers(t)

	rec := doLogin(t, handlers, LoginRequest{Email: "admin@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginUnknownEmailSameResponseAsWrongPassword(t *testing.T) {
	handlers, _ := newLoginTestHandlers(t)

	unknownRec := doLogin(t, handlers, LoginRequest{Email: "nobody@example.com", Password: "s3cret"})
	wrongRec := doLogin(t, handlers, LoginRequest{Email: "admin@example.com", Password: "wrong"})

	assert.Equal(t, http.StatusUnauthorized, unknownRec.Code)
	assert.Equal(t, wrongRec.Code, unknownRec.Code)
	assert.JSONEq(t, wrongRec.Body.String(), unknownRec.Body.String())
}

func TestLoginValidation(t *testing.T) {
	handlers, _ := newLoginTestHandlers(t)

	rec := doLogin(t, handlers, LoginRequest{Email: "admin@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	recorder := httptest.NewRecorder()
	handlers.Login(recorder, req)
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}

func TestRequireAuth(t *testing.T) {
	jwtService := newTestJWTService()
	middleware := NewMiddleware(jwtService, zap.NewNop())

	var gotUserID int64
	var gotEmail string
	protected := middleware.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserIDFromContext(r.Context())
		gotEmail, _ = GetUserEmailFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	// No header.
	rec := httptest.NewRecorder()
	protected(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Malformed header.
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	protected(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token reaches the handler with identity in context.
	token, err := jwtService.GenerateAccessToken(9, "admin@example.com")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	protected(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(9), gotUserID)
	assert.Equal(t, "admin@example.com", gotEmail)
}

func TestCORSPreflight(t *testing.T) {
	middleware := NewMiddleware(newTestJWTService(), zap.NewNop())

	handler := middleware.CORS(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/analytics/session", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	// Non-preflight requests pass through with the headers set.
	req = httptest.NewRequest(http.MethodGet, "/api/analytics/session", nil)
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
