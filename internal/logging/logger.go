package logging

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
)

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger 初始化 zap 日志器（支持 lumberjack 滚动文件）
//
// file.filename 为空时只输出到控制台（远程 worker 常见部署方式）。
func InitLogger(cfg cfgpkg.LoggingConfig) (*zap.Logger, error) {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.Format(time.RFC3339Nano)) },
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if cfg.File.Filename != "" {
		// 文件输出（带滚动）
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}))
	}

	// 控制台 + 文件双写
	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), ParseLevel(cfg.Level))
	return zap.New(core, zap.AddCaller()), nil
}
