package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogsphere/internal/config"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func newAuthApp(handler fiber.Handler) *fiber.App {
	InitMiddleware(&config.Config{JWTSecret: testSecret})
	app := fiber.New()
	app.Get("/test", handler, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": UserID(c).String()})
	})
	return app
}

func signed(t *testing.T, method jwt.SigningMethod, claims jwt.Claims, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAuthRequired(t *testing.T) {
	app := newAuthApp(AuthRequired)
	userID := uuid.New()

	valid, err := IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, userID, -time.Hour)
	require.NoError(t, err)
	otherSecret, err := IssueToken("another-secret-another-secret-another", userID, time.Hour)
	require.NoError(t, err)

	numericSub := signed(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "123",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, []byte(testSecret))
	nilSub := signed(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.Nil.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}, []byte(testSecret))

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID uuid.UUID
	}{
		{"Happy Path", "Bearer " + valid, http.StatusOK, userID},
		{"Missing Header", "", http.StatusUnauthorized, uuid.Nil},
		{"Invalid Format", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, uuid.Nil},
		{"Malformed Token", "Bearer malformed.token.here", http.StatusUnauthorized, uuid.Nil},
		{"Expired Token", "Bearer " + expired, http.StatusUnauthorized, uuid.Nil},
		{"Wrong Secret", "Bearer " + otherSecret, http.StatusUnauthorized, uuid.Nil},
		{"Non UUID Subject", "Bearer " + numericSub, http.StatusUnauthorized, uuid.Nil},
		{"Nil UUID Subject", "Bearer " + nilSub, http.StatusUnauthorized, uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]string
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.expectedUserID.String(), body["userID"])
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	app := newAuthApp(OptionalAuth)
	userID := uuid.New()
	token, err := IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)

	t.Run("anonymous", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, uuid.Nil.String(), body["userID"])
	})

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, userID.String(), body["userID"])
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer nope")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestWebSocketAuthRequired_QueryToken(t *testing.T) {
	app := newAuthApp(WebSocketAuthRequired)
	userID := uuid.New()
	token, err := IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test?token="+token, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequired_RejectsNoneAlgorithm(t *testing.T) {
	app := newAuthApp(AuthRequired)
	token := signed(t, jwt.SigningMethodNone, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}, jwt.UnsafeAllowNoneSignatureType)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
