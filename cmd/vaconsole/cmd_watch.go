package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/notice"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/tasklist"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/textview"
)

// clearScreen 光标归位并清屏
const clearScreen = "\033[H\033[2J"

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "在终端实时查看任务列表（n/p 翻页，r 刷新，q 退出）",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, a, os.Stdin, os.Stdout, true)
		},
	}
	addPollingFlags(cmd)
	return cmd
}

// screen 串行化终端重绘
type screen struct {
	out     io.Writer
	clear   bool
	notices *notice.Board
	sync    *tasklist.Synchronizer

	mu sync.Mutex
}

func (s *screen) draw(page tasklist.RenderedPage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := textview.Screen{
		Page:       page,
		LastUpdate: s.sync.Snapshot().Refresh.LastSuccess,
		Hint:       true,
	}
	if n, ok := s.notices.Current(); ok {
		view.Notice = &n
	}
	if s.clear {
		io.WriteString(s.out, clearScreen)
	}
	textview.RenderScreen(s.out, view)
}

func (s *screen) redraw() {
	s.draw(s.sync.Render())
}

// screenNotifier 发布通知后立即重绘，使错误不必等到下一次刷新才可见
type screenNotifier struct {
	board  *notice.Board
	screen *screen
}

func (n *screenNotifier) Alert(msg string) {
	n.board.Alert(msg)
	n.screen.redraw()
}

func runWatch(ctx context.Context, a *app, in io.Reader, out io.Writer, clear bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scr := &screen{out: out, clear: clear, notices: notice.NewBoard(a.cfg.NoticeDuration)}
	scr.sync = tasklist.NewSynchronizer(a.client, tasklist.Options{
		PageSize: a.cfg.PageSize,
		Notifier: &screenNotifier{board: scr.notices, screen: scr},
		OnRender: scr.draw,
		Logger:   a.log.With("component", "synchronizer"),
	})
	// 终端没有可见性事件，视图始终可见
	poller := tasklist.NewPoller(scr.sync, a.cfg.RefreshInterval, a.cfg.AutoRefresh, a.log.With("component", "poller"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Start(gctx)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		var input <-chan string = lines
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-input:
				if !ok {
					// 输入结束（非终端或 </dev/null）后继续刷新，直到收到信号
					input = nil
					continue
				}
				if line == "q" {
					return nil
				}
				handleWatchCommand(line, scr, poller)
			}
		}
	})
	return g.Wait()
}

func handleWatchCommand(line string, scr *screen, poller *tasklist.Poller) {
	switch line {
	case "n":
		scr.sync.ChangePage(1)
	case "p":
		scr.sync.ChangePage(-1)
	case "r":
		poller.RefreshNow()
	case "":
		scr.redraw()
	default:
		if page, err := strconv.Atoi(line); err == nil {
			if !scr.sync.SetPage(page) {
				scr.redraw()
			}
			return
		}
		scr.notices.Show(notice.LevelInfo, "未知命令: "+line)
		scr.redraw()
	}
}
