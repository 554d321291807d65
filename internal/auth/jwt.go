package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
)

const (
	// RoleUser is the only role allowed on the transcription routes
	RoleUser = "user"

	// DefaultUserTokenTTL is the lifetime of a user token
	DefaultUserTokenTTL = 7 * 24 * time.Hour

	// ClaimsContextKey is where RequireUser stores the verified claims
	ClaimsContextKey = "auth.claims"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidRole  = errors.New("token role is not allowed")
)

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies bearer tokens with a shared secret. An empty
// secret disables verification; that is only meant for development.
type Tokens struct {
	secret []byte
}

// NewTokens creates a token service for secret
func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured
func (t *Tokens) Enabled() bool {
	return len(t.secret) > 0
}

// GenerateUserToken generates a JWT token for user authentication
func (t *Tokens) GenerateUserToken(userID string, ttl time.Duration) (string, error) {
	if !t.Enabled() {
		return "", errors.New("no signing secret configured")
	}
	if ttl <= 0 {
		ttl = DefaultUserTokenTTL
	}
	now := time.Now()
	claims := &JWTClaims{
		UserID: userID,
		Role:   RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken validates a JWT token and returns the claims
func (t *Tokens) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrTokenInvalidClaims
}

// bearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on websocket upgrades, so a token query parameter is
// accepted as well.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return c.QueryParam("token")
}

// Authenticate verifies the request's token and its role
func (t *Tokens) Authenticate(c echo.Context) (*JWTClaims, error) {
	token := bearerToken(c)
	if token == "" {
		return nil, ErrMissingToken
	}
	claims, err := t.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleUser {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, claims.Role)
	}
	return claims, nil
}

// RequireUser rejects requests without a valid user token. It lets every
// request through when no secret is configured.
func (t *Tokens) RequireUser(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !t.Enabled() {
			return next
		}
		return func(c echo.Context) error {
			claims, err := t.Authenticate(c)
			if err != nil {
				logger.Warn("Request rejected",
					zap.String("path", c.Path()),
					zap.Error(err))
				status, message := http.StatusUnauthorized, "Invalid or expired token"
				switch {
				case errors.Is(err, ErrMissingToken):
					message = "Bearer token is required"
				case errors.Is(err, ErrInvalidRole):
					status, message = http.StatusForbidden, "User token required"
				}
				return c.JSON(status, domain.Result{"success": false, "error": message})
			}
			c.Set(ClaimsContextKey, claims)
			return next(c)
		}
	}
}
