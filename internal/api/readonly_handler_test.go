package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/healthportal/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
	"github.com/taoyao-code/healthportal/internal/coordinator"
	"github.com/taoyao-code/healthportal/internal/health"
	"github.com/taoyao-code/healthportal/internal/probe/builtin"
	"github.com/taoyao-code/healthportal/internal/result"
	"github.com/taoyao-code/healthportal/internal/workerhub"
)

type staticWorkers []workerhub.WorkerInfo

func (s staticWorkers) Workers() []workerhub.WorkerInfo { return s }

func setupRouter(t *testing.T, auth middleware.AuthConfig) (*gin.Engine, *coordinator.Coordinator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	idx, err := coordinator.Build([]cfgpkg.EntityConfig{
		{Cls: coordinator.KindHost, Name: "db-1", Tab: "Servers", Healthchecks: []map[string]any{{"cls": "RamUsage"}, {"cls": "Uptime"}}},
		{Cls: coordinator.KindWebApp, Name: "site", Tab: "Web", URL: "https://example.org", Healthchecks: []map[string]any{{"cls": "HttpStatus"}}},
	}, builtin.Registry(), coordinator.BuildOptions{})
	require.NoError(t, err)
	c := coordinator.New(idx, nil, nil, nil, coordinator.Config{}, nil, nil)

	r := gin.New()
	RegisterReadOnlyRoutes(r, c, staticWorkers{{Name: "edge-1"}}, auth, nil)
	return r, c
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReadOnlyRoutes(t *testing.T) {
	r, c := setupRouter(t, middleware.AuthConfig{})
	checks := c.Checks()
	require.Len(t, checks, 3)
	_, err := c.ApplyResult(checks[0].ID, result.Healthy())
	require.NoError(t, err)
	_, err = c.ApplyResult(checks[2].ID, result.Unhealthy("Connection failed"))
	require.NoError(t, err)

	t.Run("分组", func(t *testing.T) {
		w := get(r, "/api/tabs")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"tabs":["Servers","Web"]}`, w.Body.String())
	})

	t.Run("分组下的实体", func(t *testing.T) {
		w := get(r, "/api/tabs/Web/entities")
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Entities []map[string]any `json:"entities"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Entities, 1)
		assert.Equal(t, "site", body.Entities[0]["name"])
		assert.Equal(t, false, body.Entities[0]["healthy"])

		assert.Equal(t, http.StatusNotFound, get(r, "/api/tabs/Nope/entities").Code)
	})

	t.Run("按状态过滤检查项", func(t *testing.T) {
		var body struct {
			Checks []coordinator.CheckView `json:"healthchecks"`
		}
		w := get(r, "/api/healthchecks?state=unhealthy")
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Checks, 1)
		assert.Equal(t, "Connection failed", body.Checks[0].Result.Reason)
		assert.Equal(t, health.StateUnhealthy, body.Checks[0].Healthy)

		w = get(r, "/api/healthchecks?state=healthy,unknown")
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Checks, 2)

		assert.Equal(t, http.StatusBadRequest, get(r, "/api/healthchecks?state=bogus").Code)
	})

	t.Run("未知状态的结果序列化为null", func(t *testing.T) {
		w := get(r, "/api/healthchecks/"+checks[1].ID)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"healthy":null`)
		assert.Contains(t, w.Body.String(), `"reason":"Waiting for check"`)
		assert.Equal(t, http.StatusNotFound, get(r, "/api/healthchecks/missing").Code)
	})

	t.Run("实体详情与过滤", func(t *testing.T) {
		w := get(r, "/api/entities?state=unknown")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"name":"db-1"`)
		assert.NotContains(t, w.Body.String(), `"name":"site"`)

		e := c.Entities(health.StateUnhealthy)
		require.Len(t, e, 1)
		w = get(r, "/api/entities/"+e[0].ID)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"healthchecks"`)
		assert.Equal(t, http.StatusNotFound, get(r, "/api/entities/missing").Code)
	})

	t.Run("汇总与worker", func(t *testing.T) {
		w := get(r, "/api/summary")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"healthchecks":{"healthy":1,"unhealthy":1,"unknown":1},"entities":{"healthy":0,"unhealthy":1,"unknown":1}}`, w.Body.String())

		w = get(r, "/api/workers")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"edge-1"`)
	})
}

func TestReadOnlyRoutesAuth(t *testing.T) {
	r, _ := setupRouter(t, middleware.AuthConfig{Enabled: true, APIKeys: []string{"k"}})
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/tabs").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/tabs", nil)
	req.Header.Set("X-API-Key", "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
