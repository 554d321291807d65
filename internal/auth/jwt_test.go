package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("s3cret")

	token, err := tokens.GenerateUserToken("dr-martin", time.Hour)
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "dr-martin", claims.UserID)
	assert.Equal(t, RoleUser, claims.Role)

	_, err = NewTokens("other").ValidateToken(token)
	assert.Error(t, err)
}

func TestTokens_Expired(t *testing.T) {
	tokens := NewTokens("s3cret")
	claims := &JWTClaims{
		UserID: "dr-martin",
		Role:   RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = tokens.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokens_DisabledWithoutSecret(t *testing.T) {
	tokens := NewTokens("")
	assert.False(t, tokens.Enabled())
	_, err := tokens.GenerateUserToken("dr-martin", 0)
	assert.Error(t, err)
}

func TestRequireUser(t *testing.T) {
	tokens := NewTokens("s3cret")
	userToken, err := tokens.GenerateUserToken("dr-martin", time.Hour)
	require.NoError(t, err)
	deviceToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{Role: "device"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	e := echo.New()
	e.Use(tokens.RequireUser(zap.NewNop()))
	e.GET("/protected", func(c echo.Context) error {
		claims := c.Get(ClaimsContextKey).(*JWTClaims)
		return c.String(http.StatusOK, claims.UserID)
	})

	cases := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"missing", "/protected", "", http.StatusUnauthorized},
		{"garbage", "/protected", "Bearer nope", http.StatusUnauthorized},
		{"device role", "/protected", "Bearer " + deviceToken, http.StatusForbidden},
		{"user header", "/protected", "Bearer " + userToken, http.StatusOK},
		{"user query", "/protected?token=" + userToken, "", http.StatusOK},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, c.target, nil)
			if c.header != "" {
				req.Header.Set(echo.HeaderAuthorization, c.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, c.want, rec.Code)
		})
	}
}

func TestRequireUser_Disabled(t *testing.T) {
	e := echo.New()
	e.Use(NewTokens("").RequireUser(zap.NewNop()))
	e.GET("/open", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
