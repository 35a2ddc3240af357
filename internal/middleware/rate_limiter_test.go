package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func limitedRouter(config RateLimiterConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(config).RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hitFrom(r *gin.Engine, addr string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitBucketsPerClient(t *testing.T) {
	r := limitedRouter(RateLimiterConfig{Rate: rate.Limit(0.1), Burst: 1})

	assert.Equal(t, http.StatusOK, hitFrom(r, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, hitFrom(r, "10.0.0.1:1234"))

	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, hitFrom(r, "10.0.0.2:1234"))
}

func TestRateLimitRefillsWithinBurst(t *testing.T) {
	r := limitedRouter(RateLimiterConfig{Rate: rate.Limit(1000), Burst: 3})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hitFrom(r, "10.0.0.3:1234"))
	}
}
