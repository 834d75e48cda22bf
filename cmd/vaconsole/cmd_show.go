package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/textview"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "查看单个任务的进度详情",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return runShow(cmd.Context(), a, args[0], os.Stdout)
		},
	}
}

func runShow(ctx context.Context, a *app, taskID string, out io.Writer) error {
	task, err := a.client.FetchTask(ctx, taskID)
	if err != nil {
		return err
	}
	if a.cfg.Output == "json" {
		return writeJSON(out, task)
	}
	return textview.RenderTask(out, *task)
}
