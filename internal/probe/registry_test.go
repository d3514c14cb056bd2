package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/healthportal/internal/health"
	"github.com/taoyao-code/healthportal/internal/result"
)

func okCheck(context.Context, Kwargs) (result.Result, error) {
	return result.Healthy(), nil
}

func TestNewRegistry(t *testing.T) {
	t.Run("默认值补全", func(t *testing.T) {
		r, err := NewRegistry(Definition{Name: "Noop", Check: okCheck})
		require.NoError(t, err)
		d, ok := r.Lookup("Noop")
		require.True(t, ok)
		assert.Equal(t, DefaultInterval, d.Interval)
		assert.Equal(t, "Noop", d.Label)
	})

	t.Run("重复注册", func(t *testing.T) {
		_, err := NewRegistry(
			Definition{Name: "Noop", Check: okCheck},
			Definition{Name: "Noop", Check: okCheck},
		)
		assert.ErrorIs(t, err, ErrDuplicateProbe)
	})

	t.Run("缺少实现", func(t *testing.T) {
		_, err := NewRegistry(Definition{Name: "Noop"})
		assert.ErrorIs(t, err, ErrInvalidDefinition)
	})

	t.Run("名称有序", func(t *testing.T) {
		r := MustRegistry(
			Definition{Name: "b", Check: okCheck},
			Definition{Name: "a", Check: okCheck},
		)
		assert.Equal(t, []string{"a", "b"}, r.Names())
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("错误转为不健康", func(t *testing.T) {
		d := Definition{Name: "Fail", Check: func(context.Context, Kwargs) (result.Result, error) {
			return result.Result{}, errors.New("connection refused")
		}}
		res, err := Run(ctx, d, nil)
		require.NoError(t, err)
		assert.Equal(t, health.StateUnhealthy, res.State())
		assert.Equal(t, "connection refused", res.Reason)
	})

	t.Run("panic转为不健康", func(t *testing.T) {
		d := Definition{Name: "Boom", Check: func(context.Context, Kwargs) (result.Result, error) {
			panic("index out of range")
		}}
		res, err := Run(ctx, d, Kwargs{})
		require.NoError(t, err)
		assert.Equal(t, health.StateUnhealthy, res.State())
		assert.Equal(t, "index out of range", res.Reason)
	})

	t.Run("非法结果报错", func(t *testing.T) {
		d := Definition{Name: "Bad", Check: func(context.Context, Kwargs) (result.Result, error) {
			return result.Result{Healthy: health.StateUnhealthy.Bool()}, nil
		}}
		_, err := Run(ctx, d, nil)
		assert.ErrorIs(t, err, result.ErrMalformed)
	})

	t.Run("严格模式下未知必须有原因", func(t *testing.T) {
		d := Definition{Name: "Bad", Check: func(context.Context, Kwargs) (result.Result, error) {
			return result.Result{}, nil
		}}
		_, err := Run(ctx, d, nil)
		assert.ErrorIs(t, err, result.ErrMalformed)
	})

	t.Run("注册表按名称执行", func(t *testing.T) {
		r := MustRegistry(Definition{Name: "Echo", Check: func(_ context.Context, kw Kwargs) (result.Result, error) {
			return result.Healthy().WithValue(kw.String("v", "")), nil
		}})
		res, err := r.Run(ctx, "Echo", Kwargs{"v": "hi"})
		require.NoError(t, err)
		assert.Equal(t, "hi", res.ValueString())

		_, err = r.Run(ctx, "Missing", nil)
		assert.ErrorIs(t, err, ErrUnknownProbe)
	})
}

func TestKwargs(t *testing.T) {
	kw := Kwargs{"port": "443", "ratio": 0.5, "age": "25h", "name": "web"}

	assert.Equal(t, 443, kw.Int("port", 0))
	assert.Equal(t, 7, kw.Int("missing", 7))
	assert.Equal(t, 0.5, kw.Float("ratio", 0))
	assert.Equal(t, 25*time.Hour, kw.Duration("age", 0))
	assert.Equal(t, "web", kw.String("name", ""))

	clone := kw.Clone()
	clone["name"] = "db"
	assert.Equal(t, "web", kw["name"])

	var params struct {
		Port int           `kw:"port"`
		Age  time.Duration `kw:"age"`
		Name string        `kw:"name"`
	}
	require.NoError(t, kw.Decode(&params))
	assert.Equal(t, 443, params.Port)
	assert.Equal(t, 25*time.Hour, params.Age)
	assert.Equal(t, "web", params.Name)
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   any
		want time.Duration
	}{
		{30, 30 * time.Second},
		{"30", 30 * time.Second},
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"12h", 12 * time.Hour},
		{"2d", 48 * time.Hour},
		{"4w", 28 * 24 * time.Hour},
		{1.5, 1500 * time.Millisecond},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.in)
		require.NoError(t, err, "%v", c.in)
		assert.Equal(t, c.want, got, "%v", c.in)
	}

	for _, bad := range []any{"", "abc", "-5m", []int{1}} {
		_, err := ParseDuration(bad)
		assert.ErrorIs(t, err, ErrBadDuration, "%v", bad)
	}
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "3 days", HumanDuration(3*24*time.Hour+time.Hour))
	assert.Equal(t, "1 hour", HumanDuration(time.Hour))
	assert.Equal(t, "2 weeks", HumanDuration(15*24*time.Hour))
	assert.Equal(t, "-5 minutes", HumanDuration(-5*time.Minute))
}
