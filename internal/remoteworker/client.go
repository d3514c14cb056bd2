// Package remoteworker 远程 worker 侧：拨号协调器，执行下发的探针并回传结果
//
// 断线后按固定间隔无限重连；每次重连都是新通道，旧通道上未完成的任务不做补偿。
package remoteworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taoyao-code/healthportal/internal/localpool"
	"github.com/taoyao-code/healthportal/internal/metrics"
	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/wire"
)

// ErrRejected 协调器拒绝握手（token 错误或同名 worker 已在线）
var ErrRejected = errors.New("remoteworker: handshake rejected")

// Config worker 配置
type Config struct {
	Server           string        // ws(s)://host/worker-websocket
	Token            string
	Reconnect        time.Duration // 固定重连间隔
	HandshakeTimeout time.Duration
	ReadWait         time.Duration // 超过该时长未收到任何数据（含 ping）视为断线
	WriteWait        time.Duration
	Pool             localpool.Config
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Reconnect:        10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		ReadWait:         30 * time.Second,
		WriteWait:        5 * time.Second,
		Pool:             localpool.DefaultConfig(),
	}
}

// Client 远程 worker
type Client struct {
	cfg    Config
	pool   *localpool.Pool
	logger *zap.Logger
	dialer *websocket.Dialer

	attempts atomic.Int64
	sessions atomic.Int64
	jobs     atomic.Int64
	replies  atomic.Int64
	online   atomic.Bool
}

// New 创建 worker
func New(cfg Config, registry *probe.Registry, logger *zap.Logger, m *metrics.AppMetrics) *Client {
	def := DefaultConfig()
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = def.Reconnect
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.ReadWait <= 0 {
		cfg.ReadWait = def.ReadWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		pool:   localpool.New(registry, cfg.Pool, logger, m),
		logger: logger.With(zap.String("component", "remoteworker")),
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
	}
}

// Run 启动执行池并保持与协调器的连接，直到 ctx 取消
func (c *Client) Run(ctx context.Context) error {
	c.pool.Start(ctx)
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrRejected) {
			c.logger.Error("coordinator rejected worker", zap.Error(err))
		} else {
			c.logger.Warn("connection lost", zap.Error(err), zap.Duration("retry_in", c.cfg.Reconnect))
		}
		select {
		case <-time.After(c.cfg.Reconnect):
		case <-ctx.Done():
			return nil
		}
	}
}

// session 单次连接：读循环入队任务，写循环回传结果
func (c *Client) session(ctx context.Context) error {
	c.attempts.Add(1)
	header := http.Header{}
	header.Set("Authorization", wire.AuthHeader(c.cfg.Token))

	ws, resp, err := c.dialer.DialContext(ctx, c.cfg.Server, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %s", ErrRejected, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", c.cfg.Server, err)
	}
	c.sessions.Add(1)
	c.online.Store(true)
	defer c.online.Store(false)
	c.logger.Info("connected to coordinator", zap.String("server", c.cfg.Server))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return ws.Close()
	})
	g.Go(func() error { return c.readLoop(ws) })
	g.Go(func() error { return c.writeLoop(gctx, ws) })
	return g.Wait()
}

func (c *Client) readLoop(ws *websocket.Conn) error {
	_ = ws.SetReadDeadline(time.Now().Add(c.cfg.ReadWait))
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(c.cfg.ReadWait))
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.cfg.WriteWait))
	})
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		_ = ws.SetReadDeadline(time.Now().Add(c.cfg.ReadWait))
		if mt != websocket.TextMessage {
			continue
		}
		var job wire.Job
		if err := json.Unmarshal(data, &job); err != nil {
			c.logger.Warn("bad job frame", zap.ByteString("frame", data), zap.Error(err))
			continue
		}
		c.jobs.Add(1)
		// 队满由执行池记录，本周期丢弃
		_ = c.pool.Enqueue(job)
	}
}

func (c *Client) writeLoop(ctx context.Context, ws *websocket.Conn) error {
	for {
		reply, err := c.pool.Next(ctx)
		if err != nil {
			return err
		}
		b, err := json.Marshal(reply)
		if err != nil {
			c.logger.Error("encode reply failed", zap.String("check_id", reply.CheckID), zap.Error(err))
			continue
		}
		_ = ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		c.replies.Add(1)
	}
}

// Online 当前是否已连接
func (c *Client) Online() bool { return c.online.Load() }

// Stats 获取统计信息
func (c *Client) Stats() Stats {
	return Stats{
		Online:   c.Online(),
		Attempts: c.attempts.Load(),
		Sessions: c.sessions.Load(),
		Jobs:     c.jobs.Load(),
		Replies:  c.replies.Load(),
		Pool:     c.pool.Stats(),
	}
}

// Stats worker 统计信息
type Stats struct {
	Online   bool            `json:"online"`
	Attempts int64           `json:"attempts_total"`
	Sessions int64           `json:"sessions_total"`
	Jobs     int64           `json:"jobs_total"`
	Replies  int64           `json:"replies_total"`
	Pool     localpool.Stats `json:"pool"`
}
