package probe

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

// Kwargs 探针参数（构建后视为不可变，跨边界传递时使用 Clone）
type Kwargs map[string]any

// Clone 浅拷贝
func (k Kwargs) Clone() Kwargs {
	out := make(Kwargs, len(k))
	for key, v := range k {
		out[key] = v
	}
	return out
}

// Has 是否存在参数
func (k Kwargs) Has(key string) bool {
	_, ok := k[key]
	return ok
}

// String 读取字符串参数
func (k Kwargs) String(key, def string) string {
	if v, ok := k[key]; ok && v != nil {
		return cast.ToString(v)
	}
	return def
}

// Int 读取整数参数
func (k Kwargs) Int(key string, def int) int {
	if v, ok := k[key]; ok && v != nil {
		if n, err := cast.ToIntE(v); err == nil {
			return n
		}
	}
	return def
}

// Float 读取浮点参数
func (k Kwargs) Float(key string, def float64) float64 {
	if v, ok := k[key]; ok && v != nil {
		if f, err := cast.ToFloat64E(v); err == nil {
			return f
		}
	}
	return def
}

// Bool 读取布尔参数
func (k Kwargs) Bool(key string, def bool) bool {
	if v, ok := k[key]; ok && v != nil {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return def
}

// Duration 读取时长参数（秒数或 30s/5m/12h/2d/4w）
func (k Kwargs) Duration(key string, def time.Duration) time.Duration {
	if v, ok := k[key]; ok && v != nil {
		if d, err := ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Decode 将参数解码到探针参数结构体（字段标签 `kw`，弱类型）
func (k Kwargs) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       durationHook,
		WeaklyTypedInput: true,
		TagName:          "kw",
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(k)); err != nil {
		return fmt.Errorf("decode kwargs: %w", err)
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func durationHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	return ParseDuration(data)
}
