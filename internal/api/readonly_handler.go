package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/healthportal/internal/coordinator"
	"github.com/taoyao-code/healthportal/internal/health"
	"github.com/taoyao-code/healthportal/internal/workerhub"
)

// Querier 协调器查询面
type Querier interface {
	Tabs() []string
	EntitiesByTab(tab string) []coordinator.EntityView
	Entity(id string) (coordinator.EntityView, bool)
	Check(id string) (coordinator.CheckView, bool)
	Checks(states ...health.State) []coordinator.CheckView
	Entities(states ...health.State) []coordinator.EntityView
	Summary() coordinator.Summary
}

// WorkerLister 远程 worker 列表
type WorkerLister interface {
	Workers() []workerhub.WorkerInfo
}

// ReadOnlyHandler 只读API处理器
type ReadOnlyHandler struct {
	q       Querier
	workers WorkerLister
	logger  *zap.Logger
}

// NewReadOnlyHandler 创建只读API处理器；workers 可为 nil
func NewReadOnlyHandler(q Querier, workers WorkerLister, logger *zap.Logger) *ReadOnlyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadOnlyHandler{q: q, workers: workers, logger: logger}
}

// ListTabs 查询分组（按定义顺序）
func (h *ReadOnlyHandler) ListTabs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tabs": h.q.Tabs()})
}

// ListTabEntities 查询分组下的实体
func (h *ReadOnlyHandler) ListTabEntities(c *gin.Context) {
	tab := c.Param("tab")
	for _, t := range h.q.Tabs() {
		if t == tab {
			c.JSON(http.StatusOK, gin.H{"tab": tab, "entities": h.q.EntitiesByTab(tab)})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "tab not found"})
}

// ListEntities 查询实体，可按 ?state=healthy,unhealthy,unknown 过滤
func (h *ReadOnlyHandler) ListEntities(c *gin.Context) {
	states, err := parseStates(c.Query("state"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entities": h.q.Entities(states...)})
}

// GetEntity 查询单个实体（含检查项）
func (h *ReadOnlyHandler) GetEntity(c *gin.Context) {
	e, ok := h.q.Entity(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
		return
	}
	c.JSON(http.StatusOK, e)
}

// ListChecks 查询检查项，可按 ?state= 过滤
func (h *ReadOnlyHandler) ListChecks(c *gin.Context) {
	states, err := parseStates(c.Query("state"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"healthchecks": h.q.Checks(states...)})
}

// GetCheck 查询单个检查项
func (h *ReadOnlyHandler) GetCheck(c *gin.Context) {
	chk, ok := h.q.Check(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "healthcheck not found"})
		return
	}
	c.JSON(http.StatusOK, chk)
}

// Summary 状态分布
func (h *ReadOnlyHandler) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, h.q.Summary())
}

// ListWorkers 远程 worker 在线情况
func (h *ReadOnlyHandler) ListWorkers(c *gin.Context) {
	list := []workerhub.WorkerInfo{}
	if h.workers != nil {
		list = h.workers.Workers()
	}
	c.JSON(http.StatusOK, gin.H{"workers": list})
}

// parseStates 解析逗号分隔的状态名；空串表示不过滤
func parseStates(raw string) ([]health.State, error) {
	if raw == "" {
		return nil, nil
	}
	var out []health.State
	for _, name := range strings.Split(raw, ",") {
		s, err := health.ParseState(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("invalid state filter: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
