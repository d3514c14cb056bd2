package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAPIKeyAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newEngine := func(cfg AuthConfig) *gin.Engine {
		r := gin.New()
		r.Use(APIKeyAuth(cfg, nil))
		r.GET("/api/tabs", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		return r
	}
	do := func(r *gin.Engine, header, value string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/tabs", nil)
		if header != "" {
			req.Header.Set(header, value)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	cfg := AuthConfig{Enabled: true, APIKeys: []string{"sk_live_0123456789"}}
	tests := []struct {
		name   string
		cfg    AuthConfig
		header string
		value  string
		want   int
	}{
		{"未启用直接放行", AuthConfig{}, "", "", http.StatusOK},
		{"缺少Key", cfg, "", "", http.StatusUnauthorized},
		{"X-API-Key有效", cfg, "X-API-Key", "sk_live_0123456789", http.StatusOK},
		{"Bearer有效", cfg, "Authorization", "Bearer sk_live_0123456789", http.StatusOK},
		{"无效Key", cfg, "X-API-Key", "nope", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(newEngine(tt.cfg), tt.header, tt.value))
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "sk_l****6789", maskAPIKey("sk_live_0123456789"))
}
