package app

import (
	"bytes"
	"college_orbit_backend/internal/config"
	"college_orbit_backend/internal/testutil"
	"college_orbit_backend/internal/util"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	t     *testing.T
	app   *App
	token string
}

func newClient(t *testing.T, mutate ...func(*config.Config)) *client {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.LocalPath = t.TempDir()
	for _, m := range mutate {
		m(cfg)
	}
	a := New(cfg, testutil.DB(t), nil)
	t.Cleanup(a.limiter.Stop)
	return &client{t: t, app: a}
}

func (c *client) do(method, path string, body interface{}, headers ...string) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	c.app.Router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (c *client) login(email string) {
	c.t.Helper()
	code, _ := c.do(http.MethodPost, "/api/register", gin.H{"name": "Ada", "email": email, "password": "correct-horse"})
	require.Equal(c.t, http.StatusCreated, code)

	code, env := c.do(http.MethodPost, "/api/login", gin.H{"email": email, "password": "correct-horse"})
	require.Equal(c.t, http.StatusOK, code)
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(env.Data, &res))
	require.NotEmpty(c.t, res.Token)
	c.token = res.Token
}

func TestHealth(t *testing.T) {
	c := newClient(t)
	code, env := c.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, http.StatusOK, env.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	c := newClient(t)
	for _, path := range []string{"/api/profile", "/api/gamification", "/api/recurring-patterns"} {
		code, _ := c.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, code, path)
	}
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	c := newClient(t)
	c.login("ada@example.edu")

	code, _ := c.do(http.MethodPost, "/api/register", gin.H{"name": "Ada", "email": "ada@example.edu", "password": "correct-horse"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = c.do(http.MethodPost, "/api/register", gin.H{"name": "Bob", "email": "bob", "password": "correct-horse"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = c.do(http.MethodPost, "/api/login", gin.H{"email": "ada@example.edu", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestPatternLifecycleOverHTTP(t *testing.T) {
	c := newClient(t)
	c.login("ada@example.edu")

	code, env := c.do(http.MethodPost, "/api/recurring-patterns", gin.H{
		"itemType":        "deadline",
		"recurrenceType":  "weekly",
		"daysOfWeek":      []int{1, 3},
		"startDate":       "2026-01-05",
		"occurrenceCount": 4,
		"template":        gin.H{"title": "Problem set"},
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var created struct {
		ID       string `json:"id"`
		ItemType string `json:"itemType"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "deadline", created.ItemType)

	code, _ = c.do(http.MethodGet, "/api/recurring-patterns/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = c.do(http.MethodPatch, "/api/recurring-patterns/"+created.ID, gin.H{"isActive": false})
	assert.Equal(t, http.StatusOK, code)

	code, _ = c.do(http.MethodDelete, "/api/recurring-patterns", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = c.do(http.MethodDelete, "/api/recurring-patterns?id="+created.ID+"&deleteInstances=true", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = c.do(http.MethodGet, "/api/recurring-patterns/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreatePatternValidationOverHTTP(t *testing.T) {
	c := newClient(t)
	c.login("ada@example.edu")

	code, _ := c.do(http.MethodPost, "/api/recurring-patterns", gin.H{
		"itemType":       "task",
		"recurrenceType": "weekly",
		"startDate":      "2026-01-05",
		"template":       gin.H{"title": "Gym"},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = c.do(http.MethodPost, "/api/recurring-patterns", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCompleteWorkItemEarnsXP(t *testing.T) {
	c := newClient(t)
	c.login("ada@example.edu")

	code, env := c.do(http.MethodPost, "/api/work-items", gin.H{"title": "Reading response"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var item struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &item))

	code, env = c.do(http.MethodPatch, "/api/items/work_item/"+item.ID+"/complete?tz=0", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var res struct {
		Credited  bool `json:"credited"`
		XPAwarded int  `json:"xpAwarded"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Credited)
	assert.Equal(t, 15, res.XPAwarded)

	code, env = c.do(http.MethodGet, "/api/gamification?tz=0", nil)
	require.Equal(t, http.StatusOK, code)
	var summary struct {
		TotalXP int `json:"totalXp"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 15, summary.TotalXP)

	code, _ = c.do(http.MethodGet, "/api/gamification?tz=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCronRoutesRequireSecret(t *testing.T) {
	closed := newClient(t)
	code, _ := closed.do(http.MethodPost, "/api/cron/recurring/top-up", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	c := newClient(t, func(cfg *config.Config) { cfg.Cron.Secret = "cron-secret" })
	code, _ = c.do(http.MethodPost, "/api/cron/recurring/top-up", nil, util.CronSecretHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := c.do(http.MethodPost, "/api/cron/recurring/top-up", nil, util.CronSecretHeader, "cron-secret")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"patterns":0,"created":0,"failed":0}`, string(env.Data))

	code, _ = c.do(http.MethodPost, "/api/cron/reminders/deadlines", nil, util.CronSecretHeader, "cron-secret")
	assert.Equal(t, http.StatusOK, code)
}
