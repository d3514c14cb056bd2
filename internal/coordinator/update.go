package coordinator

import (
	"slices"
	"time"

	"github.com/taoyao-code/healthportal/internal/health"
	"github.com/taoyao-code/healthportal/internal/result"
)

// Field 结果应用后发生变化的字段
type Field string

const (
	FieldResult        Field = "result"
	FieldLastFinish    Field = "last_finish"
	FieldEntityHealthy Field = "entity.healthy"
)

// Update 一次结果应用的变更集，供展示层增量同步
type Update struct {
	CheckID        string        `json:"check_id"`
	EntityID       string        `json:"entity_id"`
	Changed        []Field       `json:"changed"`
	Previous       health.State  `json:"previous"`
	Current        health.State  `json:"current"`
	EntityPrevious health.State  `json:"entity_previous"`
	EntityCurrent  health.State  `json:"entity_current"`
	Result         result.Result `json:"result"`
	At             time.Time     `json:"at"`
	Alert          string        `json:"alert,omitempty"` // 非空表示本次转为不健康并已触发告警
}

// Has 字段是否变化
func (u Update) Has(f Field) bool { return slices.Contains(u.Changed, f) }
