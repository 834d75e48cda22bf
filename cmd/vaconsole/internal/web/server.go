// Package web serves the browser console: the task list page, the upload
// page and the JSON endpoints the list page uses to drive the Synchronizer.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/middleware"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/models"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/notice"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/tasklist"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/textview"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/upload"
)

//go:embed templates/*.html
var templateFS embed.FS

const shutdownTimeout = 10 * time.Second

// HealthChecker reports backend reachability for /readiness.
type HealthChecker interface {
	Health(ctx context.Context) (*models.BackendHealth, error)
}

// Dependencies 是 Web 控制台需要的全部组件
type Dependencies struct {
	Sync     *tasklist.Synchronizer
	Poller   *tasklist.Poller
	Notices  *notice.Board
	Uploads  *upload.Service
	Backend  HealthChecker
	Logger   *slog.Logger
	Env      string
	Interval time.Duration
	// AutoRefresh 控制列表页是否定时重绘
	AutoRefresh bool
}

// Server 是 gin 实现的 Web 控制台
type Server struct {
	deps    Dependencies
	engine  *gin.Engine
	viewers *viewers
	visMu   sync.Mutex
	started time.Time
}

// NewServer 解析模板并注册路由
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Sync == nil || deps.Poller == nil || deps.Notices == nil || deps.Uploads == nil {
		return nil, errors.New("web: synchronizer, poller, notices and uploads are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = tasklist.DefaultInterval
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(deps.Logger, "/metrics", "/health", "/fragment/view"))
	engine.SetHTMLTemplate(tmpl)

	s := &Server{deps: deps, engine: engine, viewers: newViewers(), started: time.Now()}
	s.routes()
	return s, nil
}

var templateFuncs = template.FuncMap{
	"placeholder": models.OrPlaceholder,
	"percent":     textview.FormatPercent,
	"fileSize":    upload.FormatFileSize,
	"add":         func(a, b int) int { return a + b },
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/", s.handleList)
	r.GET("/fragment/view", s.handleViewFragment)
	r.GET("/upload", s.handleUploadForm)
	r.POST("/upload", s.handleUploadSubmit)

	api := r.Group("/api")
	api.GET("/view", s.handleView)
	api.POST("/page/:page", s.handlePage)
	api.POST("/refresh", s.handleRefresh)
	api.POST("/visibility", s.handleVisibility)
	api.DELETE("/notice/:id", s.handleDismissNotice)

	r.GET("/health", s.handleHealth)
	r.GET("/readiness", s.handleReadiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler 返回 HTTP 处理器，供测试和自定义 http.Server 使用
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 监听 addr 直到 ctx 取消，然后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("web console starting", "addr", addr, "env", s.deps.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("web console: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.deps.Logger.Info("shutting down web console...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web console shutdown: %w", err)
	}
	s.deps.Logger.Info("web console shutdown complete")
	return nil
}
