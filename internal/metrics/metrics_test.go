package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppMetrics_NilSafe(t *testing.T) {
	var m *AppMetrics
	assert.NotPanics(t, func() {
		m.Dropped(StageWorkFull)
		m.Dispatched("local")
		m.ResultApplied("local", "healthy")
		m.Malformed("remote")
		m.TimedOut()
		m.ObserveProbe("HttpStatus", time.Second)
		m.SetStateCounts(map[string]int{"healthy": 1}, nil)
		m.WorkerConnection("accepted", 1)
		m.SetWorkersOnline(0)
		m.Alert("sent")
	})
}

func TestAppMetrics_Counters(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.Dropped(StageWorkExpired)
	m.Dropped(StageWorkExpired)
	m.Dropped(StageResultFull)
	m.WorkerConnection("accepted", 3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `healthportal_dropped_total{stage="work_expired"} 2`), body)
	assert.True(t, strings.Contains(body, `healthportal_dropped_total{stage="result_full"} 1`), body)
	assert.True(t, strings.Contains(body, "healthportal_workers_connected 3"), body)
}
