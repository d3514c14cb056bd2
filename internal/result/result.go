// Package result 定义探针结果协议：三态健康值与展示元数据
package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/taoyao-code/healthportal/internal/health"
)

// ErrMalformed 结果不符合协议（探针编写错误，不做静默修正）
var ErrMalformed = errors.New("malformed result")

// Result 单次探针结果（值类型）
//
//	healthy:     true | false | null
//	reason:      healthy=false 时必填；严格模式下 healthy=null 时也必填
//	value:       可选展示值（字符串或数字，原样透传）
//	bar_*:       进度条三元组，要么全有要么全无，bar_percent ∈ [0,100]
type Result struct {
	Healthy    *bool           `json:"healthy"`
	Reason     string          `json:"reason,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
	BarMin     *string         `json:"bar_min,omitempty"`
	BarMax     *string         `json:"bar_max,omitempty"`
	BarPercent *float64        `json:"bar_percent,omitempty"`
}

// Healthy 构造健康结果
func Healthy() Result { return Result{Healthy: health.StateHealthy.Bool()} }

// Unhealthy 构造不健康结果
func Unhealthy(reason string) Result {
	return Result{Healthy: health.StateUnhealthy.Bool(), Reason: reason}
}

// Unknown 构造未知结果（离线、超时、过期等由协调器合成的结果）
func Unknown(reason string) Result { return Result{Reason: reason} }

// FromState 按三态构造结果
func FromState(s health.State, reason string) Result {
	return Result{Healthy: s.Bool(), Reason: reason}
}

// State 返回三态健康值
func (r Result) State() health.State { return health.FromBool(r.Healthy) }

// WithReason 设置原因
func (r Result) WithReason(reason string) Result {
	r.Reason = reason
	return r
}

// WithValue 设置展示值；无法序列化的值会被忽略
func (r Result) WithValue(v any) Result {
	b, err := json.Marshal(v)
	if err != nil {
		return r
	}
	r.Value = b
	return r
}

// WithBar 设置进度条三元组，百分比截断到 [0,100]
func (r Result) WithBar(min, max string, percent float64) Result {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	r.BarMin, r.BarMax, r.BarPercent = &min, &max, &percent
	return r
}

// ValueString 返回展示值的文本形式
func (r Result) ValueString() string {
	if len(r.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Value, &s); err == nil {
		return s
	}
	return string(r.Value)
}

// Validate 基础校验
func (r Result) Validate() error {
	if r.Healthy != nil && !*r.Healthy && r.Reason == "" {
		return fmt.Errorf("%w: reason is required when healthy is false", ErrMalformed)
	}
	n := 0
	for _, set := range []bool{r.BarMin != nil, r.BarMax != nil, r.BarPercent != nil} {
		if set {
			n++
		}
	}
	if n != 0 && n != 3 {
		return fmt.Errorf("%w: bar_min, bar_max and bar_percent must be given together", ErrMalformed)
	}
	if r.BarPercent != nil && (*r.BarPercent < 0 || *r.BarPercent > 100) {
		return fmt.Errorf("%w: bar_percent %v out of range [0,100]", ErrMalformed, *r.BarPercent)
	}
	if len(r.Value) > 0 {
		switch r.Value[0] {
		case '{', '[':
			return fmt.Errorf("%w: value must be a scalar", ErrMalformed)
		}
	}
	return nil
}

// ValidateStrict 严格校验：在基础校验之上，healthy=null 时 reason 同样必填
func (r Result) ValidateStrict() error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Healthy == nil && r.Reason == "" {
		return fmt.Errorf("%w: reason is required when healthy is null", ErrMalformed)
	}
	return nil
}

// Equal 比较两个结果是否相同
func (r Result) Equal(o Result) bool {
	return r.State() == o.State() &&
		r.Reason == o.Reason &&
		bytes.Equal(r.Value, o.Value) &&
		eqPtr(r.BarMin, o.BarMin) &&
		eqPtr(r.BarMax, o.BarMax) &&
		eqPtr(r.BarPercent, o.BarPercent)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// UnmarshalJSON 解析结果，要求 healthy 字段必须存在；多余字段忽略
func (r *Result) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, ok := fields["healthy"]; !ok {
		return fmt.Errorf("%w: healthy is required", ErrMalformed)
	}
	type plain Result
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if string(p.Value) == "null" {
		p.Value = nil
	}
	*r = Result(p)
	return nil
}
