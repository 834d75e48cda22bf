package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/client"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/config"
	"github.com/houzhh15/vaconsole/pkg/logger"
)

// app 是各子命令共享的运行时组件
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	client *client.Client
}

// addGlobalFlags 为 root 命令添加全局标志
func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(config.FlagConfig, "", "配置文件路径 (env: VACONSOLE_CONFIG, 默认: ~/.vaconsole/config.yaml)")
	cmd.PersistentFlags().String(config.FlagServerURL, "", "后端 API 地址 (env: VACONSOLE_SERVER_URL, 默认: http://localhost:5000/api)")
	cmd.PersistentFlags().StringP(config.FlagOutput, "o", "", "输出格式: json / text (默认: text)")
	cmd.PersistentFlags().String(config.FlagLogLevel, "", "日志级别: debug/info/warn/error (env: VACONSOLE_LOG_LEVEL)")
	cmd.PersistentFlags().Duration(config.FlagTimeout, 0, "后端请求超时，0 表示不超时 (env: VACONSOLE_REQUEST_TIMEOUT)")
}

// addPollingFlags 为需要轮询的命令添加标志
func addPollingFlags(cmd *cobra.Command) {
	cmd.Flags().Int(config.FlagPageSize, 0, "每页任务数 (env: VACONSOLE_PAGE_SIZE, 默认: 10)")
	cmd.Flags().Duration(config.FlagInterval, 0, "自动刷新间隔 (env: VACONSOLE_REFRESH_INTERVAL, 默认: 3s)")
	cmd.Flags().Bool(config.FlagNoAutoRefresh, false, "关闭定时刷新，只在启动、重新可见和手动刷新时加载")
}

// newApp 加载配置、初始化日志并创建后端客户端
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Log.Environment,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.Path != "" {
		log.Debug("config loaded", "path", cfg.Path)
	}

	return &app{
		cfg:    cfg,
		log:    log,
		client: client.New(cfg.ServerURL, cfg.RequestTimeout, log.With("component", "client")),
	}, nil
}
