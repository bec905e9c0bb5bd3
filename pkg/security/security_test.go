package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterAllow(t *testing.T) {
	l := NewRateLimiter(2, time.Hour)
	defer l.Stop()

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"))

	l.Update(3, time.Hour)
	assert.True(t, l.Allow("1.1.1.1"))
}

func TestRateLimiterHandler(t *testing.T) {
	l := NewRateLimiter(1, time.Hour)
	defer l.Stop()

	r := gin.New()
	r.Use(l.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORS(t *testing.T) {
	origins := NewOrigins([]string{"https://app.collegeorbit.test"})
	r := gin.New()
	r.Use(CORS(origins), Secure())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(method, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send(http.MethodGet, "https://app.collegeorbit.test")
	assert.Equal(t, "https://app.collegeorbit.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = send(http.MethodGet, "https://evil.test")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = send(http.MethodOptions, "https://app.collegeorbit.test")
	assert.Equal(t, http.StatusNoContent, w.Code)

	origins.Set([]string{"https://evil.test"})
	assert.True(t, origins.Allowed("https://evil.test"))
	assert.False(t, origins.Allowed("https://app.collegeorbit.test"))
}
