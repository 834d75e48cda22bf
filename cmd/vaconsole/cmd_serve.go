package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/config"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/events"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/notice"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/tasklist"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/upload"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/web"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 Web 控制台（任务列表 + 上传页面）",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a)
		},
	}
	cmd.Flags().String(config.FlagListen, "", "监听地址 (env: VACONSOLE_LISTEN, 默认: :8090)")
	addPollingFlags(cmd)
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	cfg := a.cfg

	notices := notice.NewBoard(cfg.NoticeDuration)
	bus := events.NewBus(a.log.With("component", "bus"))
	defer bus.Close()

	syncer := tasklist.NewSynchronizer(a.client, tasklist.Options{
		PageSize: cfg.PageSize,
		Notifier: notices,
		Logger:   a.log.With("component", "synchronizer"),
	})
	poller := tasklist.NewPoller(syncer, cfg.RefreshInterval, cfg.AutoRefresh, a.log.With("component", "poller"))
	uploads := upload.NewService(a.client, upload.NewValidator(int64(cfg.Upload.MaxVideoSize)), bus, a.log.With("component", "upload"))

	server, err := web.NewServer(web.Dependencies{
		Sync:        syncer,
		Poller:      poller,
		Notices:     notices,
		Uploads:     uploads,
		Backend:     a.client,
		Logger:      a.log,
		Env:         cfg.Log.Environment,
		Interval:    cfg.RefreshInterval,
		AutoRefresh: cfg.AutoRefresh,
	})
	if err != nil {
		return err
	}

	a.log.Info("vaconsole serve",
		"server_url", cfg.ServerURL,
		"listen", cfg.Listen,
		"page_size", cfg.PageSize,
		"refresh_interval", cfg.RefreshInterval,
		"auto_refresh", cfg.AutoRefresh,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Start(ctx)
		return nil
	})
	g.Go(func() error {
		return server.Run(ctx, cfg.Listen)
	})
	g.Go(func() error {
		refreshOnUpload(ctx, bus, poller)
		return nil
	})
	return g.Wait()
}

// refreshOnUpload 在收到 upload.completed 时触发一次手动刷新（回到第 1 页）
func refreshOnUpload(ctx context.Context, bus *events.Bus, poller *tasklist.Poller) {
	ch, cancel := bus.Subscribe(events.TopicUploadCompleted)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			poller.RefreshNow()
		}
	}
}
