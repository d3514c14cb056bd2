package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
	appmetrics "github.com/taoyao-code/healthportal/internal/metrics"
)

func serve(srv *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthzReadyzMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := cfgpkg.HTTPConfig{Addr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second}
	reg := appmetrics.NewRegistry()
	appmetrics.NewAppMetrics(reg).Dropped(appmetrics.StageWorkFull)
	srv := New(cfg, Options{MetricsPath: "/metrics", MetricsHandler: appmetrics.Handler(reg), Ready: func() bool { return true }})

	assert.Equal(t, http.StatusOK, serve(srv, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(srv, "/readyz").Code)

	rr := serve(srv, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `healthportal_dropped_total{stage="work_full"} 1`)

	assert.Equal(t, http.StatusNotFound, serve(srv, "/debug/pprof/").Code, "pprof 默认关闭")
}

func TestReadyzNotReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := New(cfgpkg.HTTPConfig{Addr: ":0"}, Options{Ready: func() bool { return false }})
	assert.Equal(t, http.StatusServiceUnavailable, serve(srv, "/readyz").Code)
}

func TestRegisterAndPprof(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := New(cfgpkg.HTTPConfig{Addr: ":0", Pprof: cfgpkg.HTTPPprof{Enable: true}}, Options{})
	srv.Register(func(r *gin.Engine) {
		r.GET("/api/tabs", func(c *gin.Context) { c.String(http.StatusOK, "tabs") })
	})

	rr := serve(srv, "/api/tabs")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "tabs", rr.Body.String())
	assert.Equal(t, http.StatusOK, serve(srv, "/debug/pprof/").Code)
}
