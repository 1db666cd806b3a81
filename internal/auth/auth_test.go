package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestGenerateAndParse(t *testing.T) {
	a, err := NewAuthenticator(testSecret)
	require.NoError(t, err)

	userID := uuid.NewString()
	token, err := a.GenerateToken(userID, time.Minute)
	require.NoError(t, err)

	got, err := a.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestParseRejectsBadTokens(t *testing.T) {
	a, err := NewAuthenticator(testSecret)
	require.NoError(t, err)
	other, err := NewAuthenticator("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)

	foreign, err := other.GenerateToken(uuid.NewString(), time.Minute)
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	notUUID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":    "",
		"garbage":  "not-a-token",
		"foreign":  foreign,
		"expired":  expired,
		"not uuid": notUUID,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.ParseAndValidate(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = a.GenerateToken("user-42", time.Minute)
	assert.Error(t, err)
	_, err = NewAuthenticator("short")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	a, err := NewAuthenticator(testSecret)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(a.Middleware())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(ActorID(c))
	})

	userID := uuid.NewString()
	token, err := a.GenerateToken(userID, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"anonymous", "", http.StatusOK, ""},
		{"valid", "Bearer " + token, http.StatusOK, userID},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.body, string(body))
			}
		})
	}
}
