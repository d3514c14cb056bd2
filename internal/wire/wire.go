// Package wire 远程 worker 通信协议
//
//	握手:            Authorization: Token <key>
//	协调器 -> worker: ["<check_type>", "<check_id>", {kwargs}]
//	worker -> 协调器: ["<check_id>", {result}]
//
// 每条 websocket 文本消息承载一个 JSON 数组；结果与派发之间只靠 check_id 关联。
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/result"
)

// AuthScheme 握手认证方案
const AuthScheme = "Token"

var (
	// ErrBadFrame 消息不是约定的元组结构
	ErrBadFrame = errors.New("wire: bad frame")
	// ErrBadAuth 认证头缺失或格式错误
	ErrBadAuth = errors.New("wire: bad authorization header")
)

// Job 派发给执行者的任务
type Job struct {
	Type    string
	CheckID string
	Kwargs  probe.Kwargs
}

// MarshalJSON 编码为 [type, id, kwargs]
func (j Job) MarshalJSON() ([]byte, error) {
	kw := j.Kwargs
	if kw == nil {
		kw = probe.Kwargs{}
	}
	return json.Marshal([]any{j.Type, j.CheckID, kw})
}

// UnmarshalJSON 解码 [type, id, kwargs]
func (j *Job) UnmarshalJSON(data []byte) error {
	parts, err := tuple(data, 3)
	if err != nil {
		return err
	}
	var job Job
	if err := json.Unmarshal(parts[0], &job.Type); err != nil {
		return fmt.Errorf("%w: check type: %v", ErrBadFrame, err)
	}
	if err := json.Unmarshal(parts[1], &job.CheckID); err != nil {
		return fmt.Errorf("%w: check id: %v", ErrBadFrame, err)
	}
	if err := json.Unmarshal(parts[2], &job.Kwargs); err != nil {
		return fmt.Errorf("%w: kwargs: %v", ErrBadFrame, err)
	}
	if job.Type == "" || job.CheckID == "" {
		return fmt.Errorf("%w: empty check type or id", ErrBadFrame)
	}
	if job.Kwargs == nil {
		job.Kwargs = probe.Kwargs{}
	}
	*j = job
	return nil
}

// Reply 执行者返回的结果
type Reply struct {
	CheckID string
	Result  result.Result
}

// MarshalJSON 编码为 [id, result]
func (r Reply) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.CheckID, r.Result})
}

// UnmarshalJSON 解码 [id, result]；结果结构错误时返回 result.ErrMalformed
func (r *Reply) UnmarshalJSON(data []byte) error {
	parts, err := tuple(data, 2)
	if err != nil {
		return err
	}
	var reply Reply
	if err := json.Unmarshal(parts[0], &reply.CheckID); err != nil || reply.CheckID == "" {
		return fmt.Errorf("%w: check id", ErrBadFrame)
	}
	if err := json.Unmarshal(parts[1], &reply.Result); err != nil {
		return err
	}
	*r = reply
	return nil
}

func tuple(data []byte, n int) ([]json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if len(parts) != n {
		return nil, fmt.Errorf("%w: want %d elements, got %d", ErrBadFrame, n, len(parts))
	}
	return parts, nil
}

// AuthHeader 构造认证头
func AuthHeader(token string) string {
	return AuthScheme + " " + token
}

// ParseAuthHeader 解析认证头，返回 token
func ParseAuthHeader(h string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, AuthScheme) {
		return "", ErrBadAuth
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrBadAuth
	}
	return token, nil
}
