// Package auth gates library mutations behind a single allow-listed identity. Callers
// present an HS256 bearer token whose subject names that identity.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

const DefaultTokenTTL = 30 * 24 * time.Hour

const subjectKey = "auth.subject"

type Gate struct {
	secret      []byte
	allowedUser string
	now         func() time.Time
}

func NewGate(secret string, allowedUser string) *Gate {
	return &Gate{
		secret:      []byte(secret),
		allowedUser: strings.TrimSpace(allowedUser),
		now:         time.Now,
	}
}

// Enabled is false when no secret or user is configured; every check then fails.
func (g *Gate) Enabled() bool {
	return len(g.secret) > 0 && g.allowedUser != ""
}

// Verify returns the token subject when it is valid and names the allowed user.
func (g *Gate) Verify(raw string) (string, error) {
	if !g.Enabled() {
		return "", fmt.Errorf("%w: authentication is not configured", ErrUnauthorized)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		raw,
		claims,
		func(*jwt.Token) (any, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if claims.Subject != g.allowedUser {
		return "", fmt.Errorf("%w: subject %q is not allowed", ErrUnauthorized, claims.Subject)
	}

	return claims.Subject, nil
}

// Issue mints a token for the allowed user.
func (g *Gate) Issue(ttl time.Duration) (string, error) {
	if !g.Enabled() {
		return "", fmt.Errorf("%w: authentication is not configured", ErrUnauthorized)
	}

	return IssueToken(g.secret, g.allowedUser, g.now(), ttl)
}

func IssueToken(secret []byte, subject string, issuedAt time.Time, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Middleware aborts with 401 unless the request carries a valid bearer token.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		subject, err := g.Verify(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(subjectKey, subject)
		c.Next()
	}
}

func Subject(c *gin.Context) string {
	return c.GetString(subjectKey)
}
