package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/client"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/middleware"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/notice"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/tasklist"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/upload"
)

// readinessTimeout 就绪检查访问后端的超时
const readinessTimeout = 3 * time.Second

// outlineSlack 请求体上限在视频上限之外为教案和表单字段预留的空间
const outlineSlack = 64 << 20

// multipartMemory 超出部分的文件写入临时目录
const multipartMemory = 32 << 20

// ViewResponse 是 /api/view 的响应
type ViewResponse struct {
	Page       tasklist.RenderedPage `json:"page"`
	Notice     *notice.Notice        `json:"notice,omitempty"`
	LastUpdate *time.Time            `json:"last_update,omitempty"`
	InFlight   int                   `json:"in_flight"`
	Visible    bool                  `json:"visible"`
	Viewers    int                   `json:"viewers"`
}

// listView 是列表页模板的数据
type listView struct {
	ViewResponse
	ClientID       string
	LastUpdateText string
	IntervalMS     int64
	AutoRefresh    bool
}

func (s *Server) view() ViewResponse {
	st := s.deps.Sync.Snapshot()
	resp := ViewResponse{
		Page:     tasklist.Render(st.Tasks, st.Pagination),
		InFlight: st.Refresh.InFlight,
		Visible:  s.deps.Poller.Visible(),
		Viewers:  s.viewers.count(),
	}
	if n, ok := s.deps.Notices.Current(); ok {
		resp.Notice = &n
	}
	if !st.Refresh.LastSuccess.IsZero() {
		t := st.Refresh.LastSuccess
		resp.LastUpdate = &t
	}
	return resp
}

func (s *Server) listView() listView {
	v := listView{
		ViewResponse:   s.view(),
		LastUpdateText: "--:--:--",
		IntervalMS:     s.deps.Interval.Milliseconds(),
		AutoRefresh:    s.deps.AutoRefresh,
	}
	if v.LastUpdate != nil {
		v.LastUpdateText = v.LastUpdate.Format("15:04:05")
	}
	return v
}

// handleList 渲染列表页。每次加载登记一个新的可见页面，
// 页码是所有页面共享的状态，只能通过 POST /api/page 修改
func (s *Server) handleList(c *gin.Context) {
	id := uuid.NewString()
	s.applyVisibility(func() bool { return s.viewers.report(id, true) })

	v := s.listView()
	v.ClientID = id
	c.HTML(http.StatusOK, "list", v)
}

func (s *Server) handleViewFragment(c *gin.Context) {
	if id := c.Query("client"); id != "" {
		s.applyVisibility(func() bool { return s.viewers.touch(id) })
	}
	c.HTML(http.StatusOK, "view", s.listView())
}

// applyVisibility 串行化“更新页面状态 + 通知 Poller”，保证 Poller 看到的是最后一次汇总结果
func (s *Server) applyVisibility(update func() bool) bool {
	s.visMu.Lock()
	defer s.visMu.Unlock()
	visible := update()
	s.deps.Poller.SetVisible(visible)
	return visible
}

func (s *Server) handleView(c *gin.Context) {
	c.JSON(http.StatusOK, s.view())
}

// handlePage 处理 /api/page/:page，:page 为页码或 next/prev
// 越界页码不报错，changed=false 表示状态未变
func (s *Server) handlePage(c *gin.Context) {
	var changed bool
	switch p := c.Param("page"); p {
	case "next":
		changed = s.deps.Sync.ChangePage(1)
	case "prev":
		changed = s.deps.Sync.ChangePage(-1)
	default:
		n, err := strconv.Atoi(p)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page: " + p})
			return
		}
		changed = s.deps.Sync.SetPage(n)
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed, "page": s.deps.Sync.Render()})
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.deps.Poller.RefreshNow()
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

type visibilityRequest struct {
	ClientID string `json:"client_id"`
	Visible  *bool  `json:"visible" binding:"required"`
}

func (s *Server) handleVisibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	id := req.ClientID
	if id == "" {
		id = defaultViewerID
	}
	anyVisible := s.applyVisibility(func() bool { return s.viewers.report(id, *req.Visible) })
	c.JSON(http.StatusOK, gin.H{"visible": *req.Visible, "any_visible": anyVisible})
}

func (s *Server) handleDismissNotice(c *gin.Context) {
	if !s.deps.Notices.Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notice not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// uploadView 是上传页模板的数据
type uploadView struct {
	CourseName   string
	Teacher      string
	StudentType  string
	Errors       map[string]string
	Error        string
	MaxVideoSize int64
	VideoExts    []string
	OutlineExts  []string
}

func (s *Server) newUploadView() uploadView {
	return uploadView{
		Errors:       map[string]string{},
		MaxVideoSize: s.deps.Uploads.Validator().MaxVideoSize(),
		VideoExts:    upload.VideoExtensions,
		OutlineExts:  upload.OutlineExtensions,
	}
}

func (s *Server) handleUploadForm(c *gin.Context) {
	c.HTML(http.StatusOK, "upload", s.newUploadView())
}

func (s *Server) handleUploadSubmit(c *gin.Context) {
	limit := s.deps.Uploads.Validator().MaxVideoSize() + outlineSlack
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	view := s.newUploadView()
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		if tooLarge(err) {
			s.renderUploadError(c, view, http.StatusRequestEntityTooLarge,
				"文件大小不能超过"+upload.FormatFileSize(s.deps.Uploads.Validator().MaxVideoSize()))
			return
		}
		s.renderUploadError(c, view, http.StatusBadRequest, "表单解析失败: "+err.Error())
		return
	}
	view.CourseName = c.PostForm(client.FieldCourseName)
	view.Teacher = c.PostForm(client.FieldTeacher)
	view.StudentType = c.PostForm(client.FieldStudentType)

	req := client.UploadRequest{
		CourseName:  view.CourseName,
		Teacher:     view.Teacher,
		StudentType: view.StudentType,
	}

	if fh, err := c.FormFile(client.FieldVideo); err == nil {
		f, err := fh.Open()
		if err != nil {
			s.renderUploadError(c, view, http.StatusBadRequest, "读取视频文件失败: "+err.Error())
			return
		}
		defer f.Close()
		req.Video = client.UploadFile{Name: fh.Filename, Size: fh.Size, Reader: f}
	}

	if fh, err := c.FormFile(client.FieldOutline); err == nil {
		f, err := fh.Open()
		if err != nil {
			s.renderUploadError(c, view, http.StatusBadRequest, "读取教案文件失败: "+err.Error())
			return
		}
		defer f.Close()
		req.Outline = &client.UploadFile{Name: fh.Filename, Size: fh.Size, Reader: f}
	}

	result, err := s.deps.Uploads.Submit(c.Request.Context(), req)
	if err != nil {
		var ve *upload.ValidationError
		if errors.As(err, &ve) {
			for _, fe := range ve.Fields {
				view.Errors[fe.Field] = fe.Message
			}
			c.HTML(http.StatusBadRequest, "upload", view)
			return
		}
		s.deps.Logger.Warn("web upload failed",
			"request_id", middleware.RequestID(c),
			"course", req.CourseName,
			"error", err,
		)
		s.renderUploadError(c, view, http.StatusBadGateway, "上传失败: "+err.Error())
		return
	}

	s.deps.Logger.Info("web upload accepted", "request_id", middleware.RequestID(c), "task_id", result.TaskID)

	s.deps.Notices.Show(notice.LevelSuccess, "上传成功！任务ID: "+result.TaskID)
	c.HTML(http.StatusOK, "success", gin.H{
		"TaskID":     result.TaskID,
		"CourseName": req.CourseName,
	})
}

func (s *Server) renderUploadError(c *gin.Context, view uploadView, status int, msg string) {
	view.Error = msg
	c.HTML(status, "upload", view)
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

// HealthResponse 是 /health 的响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
	Env       string    `json:"env"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   "vaconsole",
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now(),
		Env:       s.deps.Env,
	})
}

// ReadinessCheck 单项就绪检查
type ReadinessCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok" or "fail"
	Error  string `json:"error,omitempty"`
}

// ReadinessResponse 是 /readiness 的响应
type ReadinessResponse struct {
	Ready     bool             `json:"ready"`
	Checks    []ReadinessCheck `json:"checks"`
	Timestamp time.Time        `json:"timestamp"`
}

func (s *Server) handleReadiness(c *gin.Context) {
	ready := true
	checks := []ReadinessCheck{}

	backend := ReadinessCheck{Name: "backend", Status: "ok"}
	if s.deps.Backend == nil {
		backend.Status = "fail"
		backend.Error = "backend client not configured"
		ready = false
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()
		if _, err := s.deps.Backend.Health(ctx); err != nil {
			backend.Status = "fail"
			backend.Error = err.Error()
			ready = false
		}
	}
	checks = append(checks, backend)

	// 尚未成功加载过列表只作提示，不影响就绪状态
	cache := ReadinessCheck{Name: "task_cache", Status: "ok"}
	if s.deps.Sync.Snapshot().Refresh.LastSuccess.IsZero() {
		cache.Status = "fail"
		cache.Error = "task list not loaded yet"
	}
	checks = append(checks, cache)

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, ReadinessResponse{Ready: ready, Checks: checks, Timestamp: time.Now()})
}
