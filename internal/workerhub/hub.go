// Package workerhub 协调器侧的远程 worker 通道
//
// 每个 worker 名称最多一条活动连接；任务经写队列异步下发，结果经 Replies 通道上送。
// 断线（关闭、错误或心跳丢失）后连接从在线集合移除，已下发未应答的任务只由超时扫描兜底。
package workerhub

import (
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/healthportal/internal/metrics"
	"github.com/taoyao-code/healthportal/internal/wire"
)

var (
	// ErrWorkerOffline worker 未连接
	ErrWorkerOffline = errors.New("workerhub: worker offline")
	// ErrWriteQueueFull worker 写队列已满
	ErrWriteQueueFull = errors.New("workerhub: write queue full")
)

// Config 通道配置
type Config struct {
	PingInterval    time.Duration // 心跳间隔
	PongWait        time.Duration // 超过该时长未收到任何数据视为断线
	WriteWait       time.Duration // 单次写超时
	WriteQueue      int           // 每连接写队列长度
	ReplyBuffer     int           // 上行结果缓冲
	MaxMessageBytes int64
	HandshakeRate   int // 每秒握手数
	HandshakeBurst  int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		PingInterval:    10 * time.Second,
		PongWait:        25 * time.Second,
		WriteWait:       5 * time.Second,
		WriteQueue:      256,
		ReplyBuffer:     1024,
		MaxMessageBytes: 1 << 20,
		HandshakeRate:   20,
		HandshakeBurst:  40,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = def.PongWait
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = c.PingInterval * 5 / 2
	}
	if c.WriteWait <= 0 {
		c.WriteWait = def.WriteWait
	}
	if c.WriteQueue <= 0 {
		c.WriteQueue = def.WriteQueue
	}
	if c.ReplyBuffer <= 0 {
		c.ReplyBuffer = def.ReplyBuffer
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = def.MaxMessageBytes
	}
	if c.HandshakeRate <= 0 {
		c.HandshakeRate = def.HandshakeRate
	}
	if c.HandshakeBurst <= 0 {
		c.HandshakeBurst = c.HandshakeRate * 2
	}
	return c
}

// Inbound 某个 worker 上送的结果
type Inbound struct {
	Worker string
	Reply  wire.Reply
}

// Hub 远程 worker 连接集合
type Hub struct {
	cfg      Config
	tokens   map[string]string // token -> worker name
	logger   *zap.Logger
	metrics  *metrics.AppMetrics
	upgrader websocket.Upgrader

	// 握手令牌桶：协调器重启后所有 worker 会在同一重连周期内涌入
	handshakes *rate.Limiter
	now        func() time.Time

	mu    sync.RWMutex
	conns map[string]*Conn

	replies chan Inbound

	accepted  atomic.Int64
	rejected  atomic.Int64
	malformed atomic.Int64
	badFrames atomic.Int64
	throttled atomic.Int64
}

// New 创建 Hub；workers 为 worker 名称 -> token 的静态映射
func New(workers map[string]string, cfg Config, logger *zap.Logger, m *metrics.AppMetrics) *Hub {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := make(map[string]string, len(workers))
	for name, token := range workers {
		if token != "" {
			tokens[token] = name
		}
	}
	return &Hub{
		cfg:     cfg,
		tokens:  tokens,
		logger:  logger.With(zap.String("component", "workerhub")),
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		handshakes: rate.NewLimiter(rate.Limit(cfg.HandshakeRate), cfg.HandshakeBurst),
		now:        time.Now,
		conns:      make(map[string]*Conn),
		replies:    make(chan Inbound, cfg.ReplyBuffer),
	}
}

// Handler gin 路由处理器
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) { h.ServeHTTP(c.Writer, c.Request) }
}

// ServeHTTP 握手：限流 -> token 认证 -> 名称占用检查 -> 升级
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.handshakes.AllowN(h.now(), 1) {
		h.throttled.Add(1)
		h.reject(w, r, http.StatusTooManyRequests, "rate_limited", "Too many handshakes")
		return
	}
	token, err := wire.ParseAuthHeader(r.Header.Get("Authorization"))
	if err != nil {
		h.reject(w, r, http.StatusForbidden, "rejected_token", "Authorization Token required")
		return
	}
	name, ok := h.tokens[token]
	if !ok {
		h.reject(w, r, http.StatusForbidden, "rejected_token", "Incorrect token")
		return
	}

	c := newConn(h, name, r.RemoteAddr)
	if !h.reserve(c) {
		h.reject(w, r, http.StatusForbidden, "rejected_duplicate", "Worker already connected")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.release(c)
		h.logger.Warn("worker upgrade failed", zap.String("worker", name), zap.Error(err))
		return
	}

	h.accepted.Add(1)
	h.metrics.WorkerConnection("accepted", h.Online())
	h.logger.Info("worker connected", zap.String("worker", name), zap.String("remote_addr", r.RemoteAddr))

	c.run(ws)

	h.release(c)
	h.metrics.SetWorkersOnline(h.Online())
	h.logger.Info("worker disconnected", zap.String("worker", name),
		zap.Int64("sent", c.sent.Load()), zap.Int64("received", c.received.Load()))
}

func (h *Hub) reject(w http.ResponseWriter, r *http.Request, status int, reason, text string) {
	h.rejected.Add(1)
	h.metrics.WorkerConnection(reason, h.Online())
	h.logger.Warn("worker handshake rejected",
		zap.String("reason", reason),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)
	http.Error(w, text, status)
}

// reserve 占用 worker 名称；名称已有活动连接时失败
func (h *Hub) reserve(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.conns[c.name]; exists {
		return false
	}
	h.conns[c.name] = c
	return true
}

func (h *Hub) release(c *Conn) {
	c.close()
	h.mu.Lock()
	if h.conns[c.name] == c {
		delete(h.conns, c.name)
	}
	h.mu.Unlock()
}

// Send 非阻塞下发任务
func (h *Hub) Send(worker string, job wire.Job) error {
	h.mu.RLock()
	c, ok := h.conns[worker]
	h.mu.RUnlock()
	if !ok {
		return ErrWorkerOffline
	}
	err := c.enqueue(job)
	if errors.Is(err, ErrWriteQueueFull) {
		h.metrics.Dropped(metrics.StageRemoteWrite)
		h.logger.Warn("check dropped: worker write queue full",
			zap.String("worker", worker), zap.String("check_id", job.CheckID))
	}
	return err
}

// Replies 上行结果通道（由协调器循环消费）
func (h *Hub) Replies() <-chan Inbound { return h.replies }

// Connected worker 是否在线
func (h *Hub) Connected(worker string) bool {
	h.mu.RLock()
	_, ok := h.conns[worker]
	h.mu.RUnlock()
	return ok
}

// Online 在线 worker 数
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Known 已配置的 worker 数
func (h *Hub) Known() int { return len(h.tokens) }

// Workers 在线 worker 快照（按名称排序）
func (h *Hub) Workers() []WorkerInfo {
	h.mu.RLock()
	out := make([]WorkerInfo, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c.info())
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close 关闭全部连接（进程退出时调用）
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.close()
	}
}

// Stats 获取统计信息
func (h *Hub) Stats() Stats {
	return Stats{
		Known:     h.Known(),
		Online:    h.Online(),
		Accepted:  h.accepted.Load(),
		Rejected:  h.rejected.Load(),
		Malformed: h.malformed.Load(),
		BadFrames: h.badFrames.Load(),
		Throttled: h.throttled.Load(),
	}
}

// Stats Hub 统计信息
type Stats struct {
	Known     int   `json:"known"`
	Online    int   `json:"online"`
	Accepted  int64 `json:"accepted_total"`
	Rejected  int64 `json:"rejected_total"`
	Malformed int64 `json:"malformed_total"`
	BadFrames int64 `json:"bad_frames_total"`
	Throttled int64 `json:"throttled_total"` // 握手限流返回 429 的次数，同时计入 Rejected
}
