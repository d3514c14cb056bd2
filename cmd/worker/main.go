package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/healthportal/internal/buildinfo"
	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
	"github.com/taoyao-code/healthportal/internal/localpool"
	"github.com/taoyao-code/healthportal/internal/logging"
	"github.com/taoyao-code/healthportal/internal/probe/builtin"
	"github.com/taoyao-code/healthportal/internal/remoteworker"
)

type options struct {
	config    string
	processes int
	reconnect time.Duration
	logLevel  string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "healthportal-worker:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "healthportal-worker [server] [token]",
		Short: "远程 worker：连接协调器并执行下发的健康检查",
		Long: `远程 worker 通过 websocket 连接协调器，在本机执行其分配的探针并回传结果。

server 与 token 可由参数给出，否则取配置文件 worker 段或环境变量 HP_WORKER_SERVER / HP_WORKER_TOKEN。

示例:
  healthportal-worker wss://portal.example.org/worker-websocket s3cr3t
  healthportal-worker --config configs/worker.yaml`,
		Args:          cobra.MaximumNArgs(2),
		Version:       buildinfo.Get(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "配置文件路径（默认读取 "+cfgpkg.EnvConfigPath+"）")
	cmd.Flags().IntVarP(&opts.processes, "processes", "p", 0, "本地执行并发数（默认取配置 pool.workers）")
	cmd.Flags().DurationVar(&opts.reconnect, "reconnect", 0, "断线重连间隔（默认取配置 worker.reconnect）")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "日志级别 debug|info|warn|error")
	return cmd
}

func run(parent context.Context, opts *options, args []string) error {
	cfg, err := cfgpkg.Load(opts.config)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Worker.Server = args[0]
	}
	if len(args) > 1 {
		cfg.Worker.Token = args[1]
	}
	if opts.reconnect > 0 {
		cfg.Worker.Reconnect = opts.reconnect
	}
	if opts.processes > 0 {
		cfg.Pool.Workers = opts.processes
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if cfg.Worker.Server == "" || cfg.Worker.Token == "" {
		return fmt.Errorf("worker server and token are required")
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting worker", zap.String("server", cfg.Worker.Server), zap.String("version", buildinfo.Get()))
	client := remoteworker.New(remoteworker.Config{
		Server:    cfg.Worker.Server,
		Token:     cfg.Worker.Token,
		Reconnect: cfg.Worker.Reconnect,
		Pool: localpool.Config{
			Workers:      cfg.Pool.Workers,
			QueueSize:    cfg.Pool.QueueSize,
			QueueTTL:     cfg.Pool.QueueTTL,
			ProbeTimeout: cfg.Pool.ProbeTimeout,
		},
	}, builtin.Registry(), logger, nil)
	return client.Run(ctx)
}
