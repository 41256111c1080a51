package security

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ContextKeyUserEmail is the gin context key for the authenticated user's email.
	ContextKeyUserEmail = "userEmail"
	// ContextKeyUserName is the gin context key for the authenticated user's display name.
	ContextKeyUserName = "userName"
)

// Claims are the JWT claims issued by this service. The subject is the
// account email, lowercased.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates the service's bearer tokens.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokenIssuer builds a TokenIssuer with the given HMAC secret and
// token lifetime.
func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	return &TokenIssuer{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// Expiry returns the configured token lifetime.
func (t *TokenIssuer) Expiry() time.Duration { return t.expiry }

// Issue signs an access token for the account.
func (t *TokenIssuer) Issue(email, name string) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.expiry)
	claims := &Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(email),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	return signed, expiresAt, err
}

// Validate parses and verifies a token, returning its claims.
func (t *TokenIssuer) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return t.secret, nil
		})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// AuthMiddleware rejects requests without a valid bearer token and puts
// the caller's email and name on the gin context.
func AuthMiddleware(issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}
		claims, err := issuer.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(ContextKeyUserEmail, claims.Subject)
		c.Set(ContextKeyUserName, claims.Name)
		c.Next()
	}
}
