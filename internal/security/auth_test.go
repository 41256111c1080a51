package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestTokenIssueAndValidate(t *testing.T) {
	issuer := NewTokenIssuer("secret", 30*time.Minute)

	token, expiresAt, err := issuer.Issue("User@Example.com", "Ada")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, time.Minute)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", claims.Subject)
	require.Equal(t, "Ada", claims.Name)
}

func TestValidateRejectsBadTokens(t *testing.T) {
	issuer := NewTokenIssuer("secret", 30*time.Minute)

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Validate("not-a-token")
		require.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenIssuer("other-secret", 30*time.Minute)
		token, _, err := other.Issue("a@b.com", "")
		require.NoError(t, err)
		_, err = issuer.Validate(token)
		require.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewTokenIssuer("secret", 30*time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := past.Issue("a@b.com", "")
		require.NoError(t, err)
		_, err = issuer.Validate(token)
		require.Error(t, err)
	})
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := NewTokenIssuer("secret", 30*time.Minute)

	router := gin.New()
	router.GET("/protected", AuthMiddleware(issuer), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextKeyUserEmail))
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, _, err := issuer.Issue("a@b.com", "Ada")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "a@b.com", rec.Body.String())
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	require.NotEqual(t, "hunter22", hash)
	require.True(t, CheckPassword(hash, "hunter22"))
	require.False(t, CheckPassword(hash, "hunter23"))
}

func TestParseMetricsLabels(t *testing.T) {
	labels, err := ParseMetricsLabels("service=travel-service,env=dev")
	require.NoError(t, err)
	require.Equal(t, "travel-service", labels["service"])
	require.Equal(t, "dev", labels["env"])

	labels, err = ParseMetricsLabels("")
	require.NoError(t, err)
	require.Nil(t, labels)

	_, err = ParseMetricsLabels("novalue")
	require.Error(t, err)

	_, err = ParseMetricsLabels("bad key=x")
	require.Error(t, err)
}
