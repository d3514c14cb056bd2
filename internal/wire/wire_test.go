package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/healthportal/internal/health"
	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/result"
)

func TestJob(t *testing.T) {
	t.Run("编码为三元组", func(t *testing.T) {
		b, err := json.Marshal(Job{Type: "HttpStatus", CheckID: "abc123", Kwargs: probe.Kwargs{"url": "http://x"}})
		require.NoError(t, err)
		assert.JSONEq(t, `["HttpStatus","abc123",{"url":"http://x"}]`, string(b))
	})

	t.Run("空参数编码为对象", func(t *testing.T) {
		b, err := json.Marshal(Job{Type: "Uptime", CheckID: "id"})
		require.NoError(t, err)
		assert.JSONEq(t, `["Uptime","id",{}]`, string(b))
	})

	t.Run("解码", func(t *testing.T) {
		var j Job
		require.NoError(t, json.Unmarshal([]byte(`["HttpStatus","abc123",{"url":"http://x"}]`), &j))
		assert.Equal(t, "HttpStatus", j.Type)
		assert.Equal(t, "abc123", j.CheckID)
		assert.Equal(t, "http://x", j.Kwargs["url"])
	})

	t.Run("错误结构", func(t *testing.T) {
		for _, in := range []string{`{}`, `["a","b"]`, `[1,"b",{}]`, `["","b",{}]`, `["a","b",[]]`} {
			var j Job
			assert.ErrorIs(t, json.Unmarshal([]byte(in), &j), ErrBadFrame, in)
		}
	})
}

func TestReply(t *testing.T) {
	t.Run("解码", func(t *testing.T) {
		var r Reply
		require.NoError(t, json.Unmarshal([]byte(`["abc123",{"healthy":true,"value":200}]`), &r))
		assert.Equal(t, "abc123", r.CheckID)
		assert.Equal(t, health.StateHealthy, r.Result.State())
		assert.JSONEq(t, `200`, string(r.Result.Value))
	})

	t.Run("编码往返", func(t *testing.T) {
		in := Reply{CheckID: "x", Result: result.Unknown("worker too busy")}
		b, err := json.Marshal(in)
		require.NoError(t, err)
		assert.JSONEq(t, `["x",{"healthy":null,"reason":"worker too busy"}]`, string(b))
	})

	t.Run("结果缺少healthy", func(t *testing.T) {
		var r Reply
		err := json.Unmarshal([]byte(`["abc123",{"value":200}]`), &r)
		assert.ErrorIs(t, err, result.ErrMalformed)
	})

	t.Run("错误结构", func(t *testing.T) {
		var r Reply
		assert.ErrorIs(t, json.Unmarshal([]byte(`["abc123"]`), &r), ErrBadFrame)
		assert.ErrorIs(t, json.Unmarshal([]byte(`[5,{"healthy":true}]`), &r), ErrBadFrame)
	})
}

func TestAuthHeader(t *testing.T) {
	token, err := ParseAuthHeader(AuthHeader("s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", token)

	token, err = ParseAuthHeader("token  abc ")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	for _, h := range []string{"", "Token", "Bearer abc", "Token "} {
		_, err := ParseAuthHeader(h)
		assert.ErrorIs(t, err, ErrBadAuth, h)
	}
}
