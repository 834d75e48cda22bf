package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 定义日志初始化配置
// Level 支持 debug/info/warn/error，Environment 为 prod 时输出 JSON
// File 非空时同时写入按大小轮转的日志文件
type Config struct {
	Level       string
	Environment string
	WithSource  bool
	File        string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
}

var (
	global *slog.Logger
	once   sync.Once
)

func levelFromString(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level: " + level)
	}
}

// New 根据配置创建新的 slog.Logger，不设置全局实例
func New(cfg Config) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg Config, out io.Writer) (*slog.Logger, error) {
	lvl, err := levelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}

	if cfg.File != "" {
		out = io.MultiWriter(out, rotatingWriter(cfg))
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl, AddSource: cfg.WithSource}
	var handler slog.Handler
	if strings.ToLower(cfg.Environment) == "prod" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(handler), nil
}

func rotatingWriter(cfg Config) *lumberjack.Logger {
	w := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    100, // MB
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
	}
	if cfg.MaxSizeMB > 0 {
		w.MaxSize = cfg.MaxSizeMB
	}
	if cfg.MaxBackups > 0 {
		w.MaxBackups = cfg.MaxBackups
	}
	if cfg.MaxAgeDays > 0 {
		w.MaxAge = cfg.MaxAgeDays
	}
	return w
}

// Init 初始化全局日志实例，重复调用将返回首次创建的 logger
func Init(cfg Config) (*slog.Logger, error) {
	var initErr error
	once.Do(func() {
		global, initErr = New(cfg)
		if initErr == nil {
			slog.SetDefault(global)
		}
	})
	return global, initErr
}

// LogRefresh 记录一次任务列表刷新的结构化日志
// trigger: startup/timer/visibility/manual
// outcome: ok/stale/canceled/transport/application/decode/network
func LogRefresh(logger *slog.Logger, trigger, outcome string, durationMs int64, err error) {
	attrs := []slog.Attr{
		slog.String("trigger", trigger),
		slog.String("outcome", outcome),
		slog.Int64("duration_ms", durationMs),
	}

	switch {
	case err != nil && outcome != "stale" && outcome != "canceled":
		attrs = append(attrs, slog.String("error", err.Error()))
		logger.LogAttrs(context.Background(), slog.LevelWarn, "Task list refresh failed", attrs...)
	case err != nil:
		logger.LogAttrs(context.Background(), slog.LevelDebug, "Task list refresh dropped", attrs...)
	default:
		logger.LogAttrs(context.Background(), slog.LevelDebug, "Task list refreshed", attrs...)
	}
}
