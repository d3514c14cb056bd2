package probe

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ErrBadDuration 无法解析的时长
var ErrBadDuration = errors.New("probe: bad duration")

var durationUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseDuration 解析时长：数字按秒处理，字符串支持 30s、5m、12h、2d、4w 简写
func ParseDuration(v any) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		return parseShort(strings.TrimSpace(t))
	}
	secs, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadDuration, v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func parseShort(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadDuration)
	}
	unit := time.Second
	if u, ok := durationUnits[s[len(s)-1]]; ok {
		unit = u
		s = s[:len(s)-1]
	}
	n, err := cast.ToFloat64E(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}
	return time.Duration(n * float64(unit)), nil
}

// HumanDuration 人类可读时长（例如 "3 days"）
func HumanDuration(d time.Duration) string {
	neg := d < 0
	if neg {
		d = -d
	}
	var s string
	switch {
	case d >= 7*24*time.Hour:
		s = plural(int(d/(7*24*time.Hour)), "week")
	case d >= 24*time.Hour:
		s = plural(int(d/(24*time.Hour)), "day")
	case d >= time.Hour:
		s = plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		s = plural(int(d/time.Minute), "minute")
	default:
		s = plural(int(d/time.Second), "second")
	}
	if neg {
		return "-" + s
	}
	return s
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
