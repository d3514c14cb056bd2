package coordinator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/result"
)

// 检查项配置中的保留键，其余键作为探针参数
const (
	keyCls      = "cls"
	keyInterval = "interval"
	keyWorker   = "worker"
	keyLabel    = "label"
)

// DefaultTab 未指定 tab 的实体归入此分组
const DefaultTab = "Default"

var (
	// ErrInvalidEntity 实体定义非法
	ErrInvalidEntity = errors.New("coordinator: invalid entity")
	// ErrInvalidCheck 检查项定义非法
	ErrInvalidCheck = errors.New("coordinator: invalid healthcheck")
)

// BuildOptions 构建选项
type BuildOptions struct {
	ServerVersion string
	MaxJitter     time.Duration     // 抖动上限，0 表示不抖动
	Workers       map[string]string // 非 nil 时校验检查项引用的 worker 已配置
	Rand          func(n int64) int64
}

// Build 启动时由静态配置一次性构建索引；未知实体类型或探针类型均为启动错误
func Build(entities []cfgpkg.EntityConfig, registry *probe.Registry, opts BuildOptions) (*Index, error) {
	if opts.Rand == nil {
		opts.Rand = rand.Int64N
	}
	idx := newIndex()
	for i, ec := range entities {
		e, err := buildEntity(ec)
		if err != nil {
			return nil, fmt.Errorf("entity #%d: %w", i, err)
		}
		for j, raw := range ec.Healthchecks {
			c, err := buildCheck(e, raw, registry, opts)
			if err != nil {
				return nil, fmt.Errorf("entity %q healthcheck #%d: %w", e.Name, j, err)
			}
			e.Checks = append(e.Checks, c)
		}
		idx.add(e)
	}
	return idx, nil
}

func buildEntity(ec cfgpkg.EntityConfig) (*Entity, error) {
	if ec.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidEntity)
	}
	switch ec.Cls {
	case KindHost:
	case KindWebApp:
		if ec.URL == "" {
			return nil, fmt.Errorf("%w: %s %q requires url", ErrInvalidEntity, ec.Cls, ec.Name)
		}
	default:
		return nil, fmt.Errorf("%w: unknown entity kind %q", ErrInvalidEntity, ec.Cls)
	}
	tab := ec.Tab
	if tab == "" {
		tab = DefaultTab
	}
	return &Entity{
		ID:          uuid.NewString(),
		Kind:        ec.Cls,
		Name:        ec.Name,
		Tab:         tab,
		Description: ec.Description,
		Worker:      normalizeWorker(ec.Worker),
		URL:         ec.URL,
	}, nil
}

func buildCheck(e *Entity, raw map[string]any, registry *probe.Registry, opts BuildOptions) (*HealthCheck, error) {
	kw := probe.Kwargs(raw).Clone()
	cls := kw.String(keyCls, "")
	if cls == "" {
		return nil, fmt.Errorf("%w: cls is required", ErrInvalidCheck)
	}
	def, ok := registry.Lookup(cls)
	if !ok {
		return nil, fmt.Errorf("%w: %s", probe.ErrUnknownProbe, cls)
	}

	interval := def.Interval
	if kw.Has(keyInterval) {
		d, err := probe.ParseDuration(kw[keyInterval])
		if err != nil {
			return nil, fmt.Errorf("%w: interval: %w", ErrInvalidCheck, err)
		}
		interval = d
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidCheck)
	}

	worker := e.Worker
	if kw.Has(keyWorker) {
		worker = normalizeWorker(kw.String(keyWorker, ""))
	}
	if worker != "" && opts.Workers != nil {
		if _, ok := opts.Workers[worker]; !ok {
			return nil, fmt.Errorf("%w: worker %q has no token configured", ErrInvalidCheck, worker)
		}
	}

	label := kw.String(keyLabel, def.Label)
	for _, k := range []string{keyCls, keyInterval, keyWorker, keyLabel} {
		delete(kw, k)
	}

	if def.Prepare != nil {
		t := probe.Target{Kind: e.Kind, Name: e.Name, URL: e.URL, ServerVersion: opts.ServerVersion}
		if err := def.Prepare(t, kw); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCheck, cls, err)
		}
	}

	var delay time.Duration
	if limit := min(interval, opts.MaxJitter); limit > 0 {
		delay = time.Duration(opts.Rand(int64(limit)))
	}

	return &HealthCheck{
		ID:          uuid.NewString(),
		Entity:      e,
		Cls:         cls,
		Label:       label,
		Description: def.Description,
		Worker:      worker,
		Kwargs:      kw,
		Interval:    interval,
		Timeout:     2 * interval,
		Delay:       delay,
		Result:      result.Unknown(ReasonWaiting),
	}, nil
}

// normalizeWorker 空或 "local" 表示本地执行池
func normalizeWorker(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "local" {
		return ""
	}
	return name
}
