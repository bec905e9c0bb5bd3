package middleware

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/util"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-test-secret-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func protected(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims == nil {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": claims.UserID})
	})
	r.GET("/me", handlers...)
	return r
}

func token(t *testing.T, userID uint, key string) string {
	t.Helper()
	u := &model.User{Email: "ada@example.edu"}
	u.ID = userID
	tok, err := util.GenerateJWT(u, key, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := protected(AuthMiddleware(secret))

	tests := []struct {
		name   string
		setup  func(req *http.Request)
		target string
		status int
	}{
		{"missing token", func(*http.Request) {}, "/me", http.StatusUnauthorized},
		{"garbage token", func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }, "/me", http.StatusUnauthorized},
		{"wrong secret", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+token(t, 1, "another-secret-another-secret-xx"))
		}, "/me", http.StatusUnauthorized},
		{"bearer header", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token(t, 7, secret)) }, "/me", http.StatusOK},
		{"query token", func(*http.Request) {}, "/me?token=" + token(t, 7, secret), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestCronSecret(t *testing.T) {
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	r := gin.New()
	r.POST("/cron", CronSecret("s3cret"), ok)
	closed := gin.New()
	closed.POST("/cron", CronSecret(""), ok)

	send := func(engine *gin.Engine, header string) int {
		req := httptest.NewRequest(http.MethodPost, "/cron", nil)
		if header != "" {
			req.Header.Set(util.CronSecretHeader, header)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(r, ""))
	assert.Equal(t, http.StatusUnauthorized, send(r, "guess"))
	assert.Equal(t, http.StatusNoContent, send(r, "s3cret"))
	assert.Equal(t, http.StatusUnauthorized, send(closed, ""))
}

type recorder struct {
	mu   sync.Mutex
	done chan struct{}
	got  map[uint]int
}

func (r *recorder) UpdateTimezoneOffset(_ context.Context, userID uint, offset int) error {
	r.mu.Lock()
	r.got[userID] = offset
	r.mu.Unlock()
	close(r.done)
	return nil
}

func TestTimezoneMiddlewareRecordsHeader(t *testing.T) {
	rec := &recorder{done: make(chan struct{}), got: map[uint]int{}}
	r := protected(AuthMiddleware(secret), TimezoneMiddleware(rec))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 7, secret))
	req.Header.Set(TimezoneHeader, "-330")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timezone offset was not recorded")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, map[uint]int{7: -330}, rec.got)
}

func TestTimezoneMiddlewareIgnoresBadHeader(t *testing.T) {
	rec := &recorder{done: make(chan struct{}), got: map[uint]int{}}
	r := protected(AuthMiddleware(secret), TimezoneMiddleware(rec))

	for _, v := range []string{"abc", "5000"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, 7, secret))
		req.Header.Set(TimezoneHeader, v)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	select {
	case <-rec.done:
		t.Fatal("invalid offset should not be recorded")
	case <-time.After(50 * time.Millisecond):
	}
}
