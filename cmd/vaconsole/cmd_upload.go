package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/client"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/upload"
)

// notifyTimeout 通知 Web 控制台刷新的超时
const notifyTimeout = 5 * time.Second

type uploadOptions struct {
	CourseName  string
	Teacher     string
	StudentType string
	VideoPath   string
	OutlinePath string
	NotifyURL   string
}

func newUploadCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "upload",
		Short: "上传课程视频（及可选教案）并创建分析任务",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			opts := uploadOptions{
				CourseName:  mustGetString(cmd, "course"),
				Teacher:     mustGetString(cmd, "teacher"),
				StudentType: mustGetString(cmd, "student-type"),
				VideoPath:   mustGetString(cmd, "video"),
				OutlinePath: mustGetString(cmd, "outline"),
				NotifyURL:   mustGetString(cmd, "notify-url"),
			}
			return runUpload(cmd.Context(), a, opts, os.Stdout, os.Stderr)
		},
	}
	c.Flags().String("course", "", "课程名称（必选，最多100字）")
	c.Flags().String("teacher", "", "授课教师（必选，最多50字）")
	c.Flags().String("student-type", "", "授课对象（必选，最多100字）")
	c.Flags().String("video", "", "视频文件路径（必选）: "+strings.Join(upload.VideoExtensions, ", "))
	c.Flags().String("outline", "", "教案文件路径（可选）: "+strings.Join(upload.OutlineExtensions, ", "))
	c.Flags().String("notify-url", "", "上传成功后通知正在运行的 Web 控制台刷新，例如 http://localhost:8090")
	return c
}

func mustGetString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func runUpload(ctx context.Context, a *app, opts uploadOptions, out, progressOut io.Writer) error {
	req := client.UploadRequest{
		CourseName:  opts.CourseName,
		Teacher:     opts.Teacher,
		StudentType: opts.StudentType,
	}

	if opts.VideoPath != "" {
		f, file, err := openUploadFile(opts.VideoPath)
		if err != nil {
			return err
		}
		defer f.Close()
		req.Video = file
	}
	if opts.OutlinePath != "" {
		f, file, err := openUploadFile(opts.OutlinePath)
		if err != nil {
			return err
		}
		defer f.Close()
		req.Outline = &file
	}

	if a.cfg.Output != "json" {
		req.OnProgress = progressPrinter(progressOut)
	}

	svc := upload.NewService(a.client, upload.NewValidator(int64(a.cfg.Upload.MaxVideoSize)), nil, a.log.With("component", "upload"))
	result, err := svc.Submit(ctx, req)
	if err != nil {
		var ve *upload.ValidationError
		if errors.As(err, &ve) {
			for _, fe := range ve.Fields {
				fmt.Fprintf(progressOut, "  %s: %s\n", fe.Field, fe.Message)
			}
		}
		return err
	}

	if opts.NotifyURL != "" {
		if err := notifyConsole(ctx, opts.NotifyURL); err != nil {
			a.log.Warn("notify web console failed", "url", opts.NotifyURL, "error", err)
		}
	}

	if a.cfg.Output == "json" {
		return writeJSON(out, result)
	}
	_, err = fmt.Fprintf(out, "上传成功！任务ID: %s\n", result.TaskID)
	return err
}

func openUploadFile(path string) (*os.File, client.UploadFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, client.UploadFile{}, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, client.UploadFile{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return f, client.UploadFile{Name: filepath.Base(path), Size: info.Size(), Reader: f}, nil
}

// progressPrinter 按整数百分比变化输出上传进度
func progressPrinter(w io.Writer) client.ProgressFunc {
	last := -1
	return func(sent, total int64) {
		if total <= 0 {
			return
		}
		pct := int(sent * 100 / total)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\r上传中 %s / %s (%d%%)", upload.FormatFileSize(sent), upload.FormatFileSize(total), pct)
		if sent >= total {
			fmt.Fprintln(w)
		}
	}
}

// notifyConsole 调用 Web 控制台的 POST /api/refresh
func notifyConsole(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(baseURL, "/")+"/api/refresh", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
