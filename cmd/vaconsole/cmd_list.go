package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/config"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/tasklist"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/textview"
)

func newListCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "list",
		Short: "获取一次任务列表并输出指定页",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			page, _ := cmd.Flags().GetInt("page")
			return runList(cmd.Context(), a, page, os.Stdout)
		},
	}
	c.Flags().Int("page", 1, "页码")
	c.Flags().Int(config.FlagPageSize, 0, "每页任务数 (env: VACONSOLE_PAGE_SIZE, 默认: 10)")
	return c
}

func runList(ctx context.Context, a *app, page int, out io.Writer) error {
	syncer := tasklist.NewSynchronizer(a.client, tasklist.Options{
		PageSize: a.cfg.PageSize,
		Logger:   a.log,
	})
	if err := syncer.Refresh(ctx, true); err != nil {
		return fmt.Errorf("加载任务列表失败: %w", err)
	}
	if page != 1 && !syncer.SetPage(page) {
		return fmt.Errorf("page %d out of range (total pages: %d)", page, syncer.Snapshot().Pagination.TotalPages)
	}

	rendered := syncer.Render()
	if a.cfg.Output == "json" {
		return writeJSON(out, rendered)
	}
	if err := textview.RenderTable(out, rendered); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out, "\n"+textview.Footer(rendered))
	return err
}
