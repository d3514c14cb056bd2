package workerhub

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taoyao-code/healthportal/internal/result"
	"github.com/taoyao-code/healthportal/internal/wire"
)

// Conn 单个 worker 的双工连接：读循环上送结果，写循环下发任务与心跳
type Conn struct {
	hub         *Hub
	name        string
	remoteAddr  string
	connectedAt time.Time

	wsMu      sync.Mutex
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	lastSeen atomic.Int64 // unix nano
	sent     atomic.Int64
	received atomic.Int64
}

func newConn(h *Hub, name, remoteAddr string) *Conn {
	c := &Conn{
		hub:         h,
		name:        name,
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
		send:        make(chan []byte, h.cfg.WriteQueue),
		done:        make(chan struct{}),
	}
	c.touch()
	return c
}

func (c *Conn) touch() { c.lastSeen.Store(time.Now().UnixNano()) }

// enqueue 编码并放入写队列（非阻塞）
func (c *Conn) enqueue(job wire.Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrWorkerOffline
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrWriteQueueFull
	}
}

// run 启动写循环并在当前 goroutine 执行读循环，阻塞直至连接结束
func (c *Conn) run(ws *websocket.Conn) {
	if !c.attach(ws) {
		_ = ws.Close()
		return
	}
	defer c.close()

	doneW := make(chan struct{})
	go func() {
		defer close(doneW)
		c.writeLoop()
	}()
	c.readLoop()
	c.close()
	<-doneW
}

func (c *Conn) readLoop() {
	cfg := c.hub.cfg
	c.ws.SetReadLimit(cfg.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.touch()
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Debug("worker read error", zap.String("worker", c.name), zap.Error(err))
			}
			return
		}
		c.touch()
		_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
		if mt != websocket.TextMessage {
			continue
		}

		var reply wire.Reply
		if err := json.Unmarshal(data, &reply); err != nil {
			c.rejectFrame(data, err)
			continue
		}
		c.received.Add(1)
		select {
		case c.hub.replies <- Inbound{Worker: c.name, Reply: reply}:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) rejectFrame(data []byte, err error) {
	if errors.Is(err, result.ErrMalformed) {
		c.hub.malformed.Add(1)
		c.hub.metrics.Malformed("remote")
		c.hub.logger.Error("worker sent malformed result",
			zap.String("worker", c.name), zap.ByteString("frame", truncate(data, 256)), zap.Error(err))
		return
	}
	c.hub.badFrames.Add(1)
	c.hub.logger.Warn("worker sent bad frame",
		zap.String("worker", c.name), zap.ByteString("frame", truncate(data, 256)), zap.Error(err))
}

func (c *Conn) writeLoop() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debug("worker write failed", zap.String("worker", c.name), zap.Error(err))
				c.close()
				return
			}
			c.sent.Add(1)
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

// attach 绑定升级后的连接；连接已被关闭时返回 false
func (c *Conn) attach(ws *websocket.Conn) bool {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	select {
	case <-c.done:
		return false
	default:
	}
	c.ws = ws
	return true
}

// close 幂等关闭；尽力发送关闭帧
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.wsMu.Lock()
		defer c.wsMu.Unlock()
		close(c.done)
		if c.ws != nil {
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			_ = c.ws.Close()
		}
	})
}

func (c *Conn) info() WorkerInfo {
	return WorkerInfo{
		Name:        c.name,
		RemoteAddr:  c.remoteAddr,
		ConnectedAt: c.connectedAt,
		LastSeen:    time.Unix(0, c.lastSeen.Load()),
		Sent:        c.sent.Load(),
		Received:    c.received.Load(),
		Pending:     len(c.send),
	}
}

// WorkerInfo 在线 worker 快照
type WorkerInfo struct {
	Name        string    `json:"name"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
	Sent        int64     `json:"sent_total"`
	Received    int64     `json:"received_total"`
	Pending     int       `json:"pending"`
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
