package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tianwen-game/tw-account/internal/adapters/transport/http/middleware"
)

func limitedRouter(t *testing.T, limit, burst int, ttl time.Duration) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RateLimitPerIP(limit, burst, 100, ttl))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine, addr string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitPerIP_Basic(t *testing.T) {
	r := limitedRouter(t, 1, 1, time.Hour)

	require.Equal(t, http.StatusOK, hit(r, "1.2.3.4:12345"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "1.2.3.4:12345"))
}

func TestRateLimitPerIP_HostsIndependent(t *testing.T) {
	r := limitedRouter(t, 1, 1, time.Hour)

	require.Equal(t, http.StatusOK, hit(r, "10.0.0.1:1111"))
	require.Equal(t, http.StatusOK, hit(r, "10.0.0.2:2222"))
}

func TestRateLimitPerIP_TTLEvicts(t *testing.T) {
	ttl := 10 * time.Millisecond
	r := limitedRouter(t, 1, 1, ttl)

	require.Equal(t, http.StatusOK, hit(r, "127.0.0.1:5555"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "127.0.0.1:5555"))

	time.Sleep(ttl + 5*time.Millisecond)
	require.Equal(t, http.StatusOK, hit(r, "127.0.0.1:5555"))
}
