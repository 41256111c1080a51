package serve

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newCORSRouter(origins string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(corsMiddleware(origins))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestCORSAllowAny(t *testing.T) {
	r := newCORSRouter("*")

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSAllowList(t *testing.T) {
	r := newCORSRouter("http://a.com, http://b.com")

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "http://b.com")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, "http://b.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "http://evil.com")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSPreflight(t *testing.T) {
	r := newCORSRouter("*")

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "GET, POST, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestParseOrigins(t *testing.T) {
	require.Equal(t, map[string]bool{"*": true}, parseOrigins(""))
	require.Equal(t, map[string]bool{"http://a.com": true, "http://b.com": true},
		parseOrigins("http://a.com, http://b.com,"))
}
