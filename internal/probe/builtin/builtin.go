// Package builtin 内置探针的固定清单
//
// 协调器与远程 worker 使用同一份清单构建注册表，
// 因此 worker 能执行协调器下发的任意内置类型。
package builtin

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/taoyao-code/healthportal/internal/probe"
)

var errMissingParam = errors.New("missing parameter")

// Definitions 全部内置探针定义
func Definitions() []probe.Definition {
	return []probe.Definition{
		httpStatus,
		portCheck,
		dnsResolve,
		certificateExpiry,
		ramUsage,
		cpuUsage,
		diskUsage,
		uptime,
		systemd,
		workerVersion,
	}
}

// Registry 由内置清单构建注册表
func Registry() *probe.Registry {
	return probe.MustRegistry(Definitions()...)
}

func required(kw probe.Kwargs, key string) error {
	if kw.String(key, "") == "" {
		return fmt.Errorf("%w: %s", errMissingParam, key)
	}
	return nil
}

// inheritURL 缺省时从实体继承 url
func inheritURL(t probe.Target, kw probe.Kwargs) error {
	if !kw.Has("url") && t.URL != "" {
		kw["url"] = t.URL
	}
	return required(kw, "url")
}

// inheritDomain 缺省时从实体 url 的主机名派生 domain
func inheritDomain(t probe.Target, kw probe.Kwargs) error {
	if !kw.Has("domain") && t.URL != "" {
		u, err := url.Parse(t.URL)
		if err != nil {
			return fmt.Errorf("parse entity url: %w", err)
		}
		kw["domain"] = u.Hostname()
	}
	return required(kw, "domain")
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit*unit {
		return fmt.Sprintf("%.1f KB", float64(n)/unit)
	}
	if n < unit*unit*unit {
		return fmt.Sprintf("%.1f MB", float64(n)/(unit*unit))
	}
	if n < unit*unit*unit*unit {
		return fmt.Sprintf("%.1f GB", float64(n)/(unit*unit*unit))
	}
	return fmt.Sprintf("%.1f TB", float64(n)/(unit*unit*unit*unit))
}

// barPercent 将 value 映射到 [min,max] 区间的百分比
func barPercent(value, max, min float64) float64 {
	if max <= min {
		return 0
	}
	p := (value - min) / (max - min) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
