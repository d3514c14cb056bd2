// Package probe 探针注册表：名称 -> 无状态探针实现
//
// 注册表在启动时一次性构建，之后只读；引擎从不关心探针内部逻辑，
// 只通过 Run 以统一的异常包装方式调用。
package probe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/taoyao-code/healthportal/internal/result"
)

// DefaultInterval 探针默认执行间隔
const DefaultInterval = 60 * time.Second

var (
	// ErrUnknownProbe 探针类型未注册
	ErrUnknownProbe = errors.New("probe: unknown probe type")
	// ErrDuplicateProbe 重复注册
	ErrDuplicateProbe = errors.New("probe: duplicate probe type")
	// ErrInvalidDefinition 定义不完整
	ErrInvalidDefinition = errors.New("probe: invalid definition")
)

// CheckFunc 探针主体：必须无状态，可阻塞于I/O
type CheckFunc func(ctx context.Context, kw Kwargs) (result.Result, error)

// PrepareFunc 构建期参数补全（例如从实体URL继承 url/domain）
type PrepareFunc func(t Target, kw Kwargs) error

// Target 构建期可见的实体信息
type Target struct {
	Kind          string
	Name          string
	URL           string
	ServerVersion string
}

// Definition 探针定义
type Definition struct {
	Name        string
	Label       string
	Description string
	Interval    time.Duration
	Check       CheckFunc
	Prepare     PrepareFunc
}

// Registry 不可变注册表
type Registry struct {
	defs  map[string]Definition
	names []string
}

// NewRegistry 由固定定义列表构建注册表
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if d.Name == "" || d.Check == nil {
			return nil, fmt.Errorf("%w: name and check are required (%q)", ErrInvalidDefinition, d.Name)
		}
		if _, ok := r.defs[d.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProbe, d.Name)
		}
		if d.Interval <= 0 {
			d.Interval = DefaultInterval
		}
		if d.Label == "" {
			d.Label = d.Name
		}
		r.defs[d.Name] = d
		r.names = append(r.names, d.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// MustRegistry 同 NewRegistry，失败时 panic（仅用于固定内置表）
func MustRegistry(defs ...Definition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup 按名称查找
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names 已注册名称（有序）
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Run 按名称执行探针
func (r *Registry) Run(ctx context.Context, name string, kw Kwargs) (result.Result, error) {
	d, ok := r.defs[name]
	if !ok {
		return result.Result{}, fmt.Errorf("%w: %s", ErrUnknownProbe, name)
	}
	return Run(ctx, d, kw)
}
