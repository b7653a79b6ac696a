package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/studyhost/studyhost/internal/types"
)

// Claims carried in the bearer token issued at login
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Auth issues and validates bearer tokens. Constructed once at startup and
// injected; there is no package-level secret.
type Auth struct {
	Secret []byte
	TTL    time.Duration
}

// NewAuth creates an Auth with the given signing secret and token lifetime
func NewAuth(secret string, ttl time.Duration) *Auth {
	return &Auth{Secret: []byte(secret), TTL: ttl}
}

// SignToken issues an HS256 token for the user
func (a *Auth) SignToken(uid, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:   uid,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

// ParseToken validates a token string and returns its claims
func (a *Auth) ParseToken(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// RequireUser validates the Authorization bearer token and stores the caller
// identity in context locals.
func (a *Auth) RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return &types.CustomError{
				Code:    fiber.StatusUnauthorized,
				Message: "No token provided",
				Type:    "auth.token.missing",
			}
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := a.ParseToken(token)
		if err != nil {
			return &types.CustomError{
				Code:    fiber.StatusUnauthorized,
				Message: "Invalid token",
				Type:    "auth.token.invalid",
			}
		}

		c.Locals("userID", claims.UID)
		c.Locals("userEmail", claims.Email)

		return c.Next()
	}
}
