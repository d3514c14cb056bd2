package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvConfigPath 指定配置文件路径的环境变量
const EnvConfigPath = "HEALTHPORTAL_CONFIG"

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	Pprof        HTTPPprof     `mapstructure:"pprof"`
}

// HTTPPprof HTTP pprof 配置
type HTTPPprof struct {
	Enable bool   `mapstructure:"enable"`
	Prefix string `mapstructure:"prefix"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// RedisConfig Redis 连接配置（可选，用于跨重启保留告警节流窗口）
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// PoolConfig 本地执行池配置
type PoolConfig struct {
	Workers       int           `mapstructure:"workers"`
	QueueSize     int           `mapstructure:"queueSize"`
	QueueTTL      time.Duration `mapstructure:"queueTTL"`
	ProbeTimeout  time.Duration `mapstructure:"probeTimeout"`
	DrainInterval time.Duration `mapstructure:"drainInterval"`
}

// SchedulerConfig 调度配置
type SchedulerConfig struct {
	RemoteGrace   time.Duration `mapstructure:"remoteGrace"`   // 远程检查首次派发前等待 worker 重连
	SweepInterval time.Duration `mapstructure:"sweepInterval"` // 超时扫描周期
	MaxJitter     time.Duration `mapstructure:"maxJitter"`     // 首次派发随机延迟上限
}

// HubConfig 远程 worker 通道配置
type HubConfig struct {
	Path            string        `mapstructure:"path"`
	PingInterval    time.Duration `mapstructure:"pingInterval"`
	PongWait        time.Duration `mapstructure:"pongWait"`
	WriteWait       time.Duration `mapstructure:"writeWait"`
	WriteQueue      int           `mapstructure:"writeQueue"`
	ReplyBuffer     int           `mapstructure:"replyBuffer"`
	MaxMessageBytes int64         `mapstructure:"maxMessageBytes"`
	HandshakeRate   int           `mapstructure:"handshakeRate"`
	HandshakeBurst  int           `mapstructure:"handshakeBurst"`
}

// WebhookConfig 告警 webhook 通道；连续失败 BreakerThreshold 次后熔断 BreakerCooldown
type WebhookConfig struct {
	URL              string        `mapstructure:"url"`
	APIKey           string        `mapstructure:"apiKey"`
	Secret           string        `mapstructure:"secret"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Retries          int           `mapstructure:"retries"`
	BreakerThreshold int           `mapstructure:"breakerThreshold"`
	BreakerCooldown  time.Duration `mapstructure:"breakerCooldown"`
}

// AlerterConfig 告警配置
type AlerterConfig struct {
	Name         string        `mapstructure:"name"`
	Interval     time.Duration `mapstructure:"interval"`
	DeploySnooze time.Duration `mapstructure:"deploySnooze"`
	Store        string        `mapstructure:"store"` // memory | redis
	QueueSize    int           `mapstructure:"queueSize"`
	Log          bool          `mapstructure:"log"`
	Webhook      WebhookConfig `mapstructure:"webhook"`
}

// APIAuthConfig 查询接口 API Key 认证
type APIAuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"apiKeys"`
}

// APIConfig 查询接口配置
type APIConfig struct {
	Auth APIAuthConfig `mapstructure:"auth"`
}

// WorkerConfig 远程 worker 进程配置（cmd/worker）
type WorkerConfig struct {
	Server    string        `mapstructure:"server"`
	Token     string        `mapstructure:"token"`
	Reconnect time.Duration `mapstructure:"reconnect"`
}

// EntityConfig 静态实体定义
//
// healthchecks 每项为 {cls, interval?, worker?, label?, ...探针参数}，
// 探针参数原样透传给探针（键名会被统一为小写）。
type EntityConfig struct {
	Cls          string           `mapstructure:"cls"`
	Name         string           `mapstructure:"name"`
	Tab          string           `mapstructure:"tab"`
	Description  string           `mapstructure:"description"`
	Worker       string           `mapstructure:"worker"`
	URL          string           `mapstructure:"url"`
	Healthchecks []map[string]any `mapstructure:"healthchecks"`
}

// Config 顶层配置结构
type Config struct {
	App       AppConfig         `mapstructure:"app"`
	HTTP      HTTPConfig        `mapstructure:"http"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Pool      PoolConfig        `mapstructure:"pool"`
	Scheduler SchedulerConfig   `mapstructure:"scheduler"`
	Hub       HubConfig         `mapstructure:"hub"`
	Workers   map[string]string `mapstructure:"workers"` // worker 名称 -> token
	Alerter   AlerterConfig     `mapstructure:"alerter"`
	API       APIConfig         `mapstructure:"api"`
	Worker    WorkerConfig      `mapstructure:"worker"`
	Entities  []EntityConfig    `mapstructure:"entities"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 HEALTHPORTAL_CONFIG 读取；否则回退到 configs/healthportal.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("healthportal")
		v.SetConfigType("yaml")
	}

	// 默认值
	setDefaults(v)

	// 环境变量覆盖：前缀 HP_，并将点号替换为下划线
	v.SetEnvPrefix("HP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 首次运行允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// normalize worker 名称统一小写（viper 的 map 键本身大小写不敏感）
func (c *Config) normalize() {
	workers := make(map[string]string, len(c.Workers))
	for name, token := range c.Workers {
		workers[strings.ToLower(name)] = token
	}
	c.Workers = workers
	if c.Alerter.Name == "" {
		c.Alerter.Name = c.App.Name
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "healthportal")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.pprof.enable", false)
	v.SetDefault("http.pprof.prefix", "/debug/pprof")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/healthportal.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.readTimeout", "3s")
	v.SetDefault("redis.writeTimeout", "3s")

	v.SetDefault("pool.workers", 4)
	v.SetDefault("pool.queueSize", 1000)
	v.SetDefault("pool.queueTTL", "5s")
	v.SetDefault("pool.probeTimeout", "60s")
	v.SetDefault("pool.drainInterval", "10ms")

	v.SetDefault("scheduler.remoteGrace", "12s")
	v.SetDefault("scheduler.sweepInterval", "10s")
	v.SetDefault("scheduler.maxJitter", "60s")

	v.SetDefault("hub.path", "/worker-websocket")
	v.SetDefault("hub.pingInterval", "10s")
	v.SetDefault("hub.pongWait", "25s")
	v.SetDefault("hub.writeWait", "5s")
	v.SetDefault("hub.writeQueue", 256)
	v.SetDefault("hub.replyBuffer", 1024)
	v.SetDefault("hub.maxMessageBytes", 1<<20)
	v.SetDefault("hub.handshakeRate", 20)
	v.SetDefault("hub.handshakeBurst", 40)

	v.SetDefault("alerter.interval", "12h")
	v.SetDefault("alerter.deploySnooze", "1h")
	v.SetDefault("alerter.store", "memory")
	v.SetDefault("alerter.queueSize", 256)
	v.SetDefault("alerter.log", true)
	v.SetDefault("alerter.webhook.timeout", "5s")
	v.SetDefault("alerter.webhook.retries", 3)
	v.SetDefault("alerter.webhook.breakerThreshold", 5)
	v.SetDefault("alerter.webhook.breakerCooldown", "1m")

	v.SetDefault("api.auth.enabled", false)

	v.SetDefault("worker.server", "")
	v.SetDefault("worker.token", "")
	v.SetDefault("worker.reconnect", "10s")
}
