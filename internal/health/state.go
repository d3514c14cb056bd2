package health

import (
	"encoding/json"
	"fmt"
)

// State 三态健康状态
// 零值为 Unknown：未评估、执行器不可达或结果过期
type State int

const (
	StateUnknown   State = iota // 未知（null）
	StateHealthy                // 健康（true）
	StateUnhealthy              // 不健康（false）
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// FromBool 将可空布尔值映射为三态
func FromBool(b *bool) State {
	if b == nil {
		return StateUnknown
	}
	if *b {
		return StateHealthy
	}
	return StateUnhealthy
}

// Bool 返回可空布尔表示（Unknown -> nil）
func (s State) Bool() *bool {
	switch s {
	case StateHealthy:
		v := true
		return &v
	case StateUnhealthy:
		v := false
		return &v
	default:
		return nil
	}
}

// ParseState 解析查询参数中的状态名
func ParseState(name string) (State, error) {
	switch name {
	case "healthy":
		return StateHealthy, nil
	case "unhealthy":
		return StateUnhealthy, nil
	case "unknown":
		return StateUnknown, nil
	}
	return StateUnknown, fmt.Errorf("unknown health state %q", name)
}

// MarshalJSON 序列化为 true/false/null，与结果协议保持一致
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Bool())
}

// UnmarshalJSON 解析 true/false/null
func (s *State) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("decode health state: %w", err)
	}
	*s = FromBool(b)
	return nil
}

// Aggregate 聚合多个子状态
// 任一 Unhealthy => Unhealthy；否则任一 Unknown => Unknown；否则 Healthy。
// 确认的故障优先于未知状态。空输入返回 Healthy。
func Aggregate(states ...State) State {
	agg := StateHealthy
	for _, s := range states {
		switch s {
		case StateUnhealthy:
			return StateUnhealthy
		case StateUnknown:
			agg = StateUnknown
		}
	}
	return agg
}
