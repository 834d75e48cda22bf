package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/client"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/config"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/events"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/models"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/tasklist"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/upload"
)

// syncBuffer 可被渲染 goroutine 和断言同时访问
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func makeTasks(n int) []models.TaskSummary {
	tasks := make([]models.TaskSummary, n)
	for i := range tasks {
		tasks[i] = models.TaskSummary{
			TaskID:      fmt.Sprintf("%06d", i),
			CourseName:  fmt.Sprintf("课程 %d", i),
			Teacher:     "王老师",
			StudentType: "大一",
			UploadTime:  "2024-03-01 09:30:00",
			Status:      models.StatusAnalyzing,
			Progress: models.Progress{
				CurrentStep: 2, CurrentStepName: "语音识别", TotalSteps: 5,
				ProgressPercentage: 40, EstimatedRemaining: "3分钟",
			},
		}
	}
	return tasks
}

// backend 模拟分析服务的 REST 接口
type backend struct {
	t     *testing.T
	tasks []models.TaskSummary

	mu      sync.Mutex
	uploads []map[string]string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/tasks":
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": b.tasks})
	case strings.HasPrefix(r.URL.Path, "/api/tasks/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
		for _, task := range b.tasks {
			if task.TaskID == id {
				json.NewEncoder(w).Encode(map[string]any{"success": true, "data": task})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"success":false,"message":"任务不存在"}`)
	case r.URL.Path == "/api/upload" && r.Method == http.MethodPost:
		if !assert.NoError(b.t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fields := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		for k, fh := range r.MultipartForm.File {
			fields[k+".filename"] = fh[0].Filename
		}
		b.mu.Lock()
		b.uploads = append(b.uploads, fields)
		b.mu.Unlock()
		io.WriteString(w, `{"success":true,"message":"上传成功，开始分析","data":{"task_id":"246810"}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestApp(t *testing.T, b *backend) *app {
	t.Helper()
	b.t = t
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.ServerURL = srv.URL + "/api"
	cfg.AutoRefresh = false
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &app{cfg: cfg, log: log, client: client.New(cfg.ServerURL, 0, log)}
}

func TestRunList(t *testing.T) {
	a := newTestApp(t, &backend{tasks: makeTasks(25)})

	var out bytes.Buffer
	require.NoError(t, runList(context.Background(), a, 2, &out))
	text := out.String()
	assert.Contains(t, text, "000010")
	assert.Contains(t, text, "000019")
	assert.NotContains(t, text, "000020")
	assert.Contains(t, text, "第 2 页，共 3 页")
	assert.Contains(t, text, "共 25 个任务")

	err := runList(context.Background(), a, 4, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestRunListJSON(t *testing.T) {
	a := newTestApp(t, &backend{tasks: makeTasks(12)})
	a.cfg.Output = "json"

	var out bytes.Buffer
	require.NoError(t, runList(context.Background(), a, 2, &out))

	var page struct {
		CurrentPage int                  `json:"current_page"`
		TotalPages  int                  `json:"total_pages"`
		Rows        []models.TaskSummary `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &page))
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Rows, 2)
}

func TestRunListBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	a := newTestApp(t, &backend{})
	a.client = client.New(srv.URL, 0, a.log)

	err := runList(context.Background(), a, 1, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "加载任务列表失败")
	assert.Contains(t, err.Error(), "500")
}

func TestRunShow(t *testing.T) {
	a := newTestApp(t, &backend{tasks: makeTasks(3)})

	var out bytes.Buffer
	require.NoError(t, runShow(context.Background(), a, "000002", &out))
	assert.Contains(t, out.String(), "课程 2")
	assert.Contains(t, out.String(), "语音识别 步骤 2/5")
	assert.Contains(t, out.String(), "3分钟")

	err := runShow(context.Background(), a, "999999", &out)
	var te *client.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.Status)
}

func TestRunWatch(t *testing.T) {
	a := newTestApp(t, &backend{tasks: makeTasks(25)})
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	out := &syncBuffer{}

	done := make(chan error, 1)
	go func() { done <- runWatch(context.Background(), a, pr, out, false) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "第 1 页，共 3 页")
	}, 2*time.Second, 10*time.Millisecond)

	io.WriteString(pw, "2\n")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "第 2 页，共 3 页")
	}, 2*time.Second, 10*time.Millisecond)

	io.WriteString(pw, "bogus\n")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "未知命令: bogus")
	}, 2*time.Second, 10*time.Millisecond)

	io.WriteString(pw, "q\n")
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not exit on q")
	}
}

func TestRunWatchKeepsPollingAfterEOF(t *testing.T) {
	a := newTestApp(t, &backend{tasks: makeTasks(3)})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}

	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, a, strings.NewReader(""), out, false) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "课程 2")
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case <-done:
		t.Fatal("watch exited when input ended")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not exit on cancel")
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunUpload(t *testing.T) {
	b := &backend{}
	a := newTestApp(t, b)

	var notified sync.WaitGroup
	notified.Add(1)
	console := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/refresh", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
		notified.Done()
	}))
	defer console.Close()

	opts := uploadOptions{
		CourseName:  "  高等数学 ",
		Teacher:     "王老师",
		StudentType: "大一",
		VideoPath:   writeTempFile(t, "lecture.mp4", strings.Repeat("v", 4096)),
		OutlinePath: writeTempFile(t, "plan.pdf", "outline"),
		NotifyURL:   console.URL + "/",
	}

	var out, progress bytes.Buffer
	require.NoError(t, runUpload(context.Background(), a, opts, &out, &progress))
	notified.Wait()

	assert.Equal(t, "上传成功！任务ID: 246810\n", out.String())
	assert.Contains(t, progress.String(), "100%")

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.uploads, 1)
	assert.Equal(t, "高等数学", b.uploads[0][client.FieldCourseName])
	assert.Equal(t, "lecture.mp4", b.uploads[0][client.FieldVideo+".filename"])
	assert.Equal(t, "plan.pdf", b.uploads[0][client.FieldOutline+".filename"])
}

func TestRunUploadValidation(t *testing.T) {
	b := &backend{}
	a := newTestApp(t, b)

	opts := uploadOptions{
		CourseName:  "高等数学",
		Teacher:     "王老师",
		StudentType: "大一",
		VideoPath:   writeTempFile(t, "lecture.txt", "x"),
	}

	var out, messages bytes.Buffer
	err := runUpload(context.Background(), a, opts, &out, &messages)
	var ve *upload.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.NotEmpty(t, ve.Message(client.FieldVideo))
	assert.Contains(t, messages.String(), ve.Message(client.FieldVideo))
	assert.Empty(t, out.String())
	assert.Empty(t, b.uploads)
}

func TestRunUploadMissingFile(t *testing.T) {
	a := newTestApp(t, &backend{})
	err := runUpload(context.Background(), a, uploadOptions{
		CourseName:  "高等数学",
		Teacher:     "王老师",
		StudentType: "大一",
		VideoPath:   filepath.Join(t.TempDir(), "missing.mp4"),
	}, io.Discard, io.Discard)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "watch", "list", "show", "upload"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

type recordingRefresher struct {
	mu     sync.Mutex
	resets []bool
}

func (r *recordingRefresher) Refresh(ctx context.Context, resetPage bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, resetPage)
	return nil
}

func (r *recordingRefresher) calls() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.resets...)
}

func TestRefreshOnUpload(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.NewBus(log)
	defer bus.Close()

	r := &recordingRefresher{}
	poller := tasklist.NewPoller(r, time.Hour, false, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pollerDone := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(pollerDone)
	}()
	require.Eventually(t, func() bool { return len(r.calls()) == 1 }, time.Second, 5*time.Millisecond)

	listenerDone := make(chan struct{})
	go func() {
		refreshOnUpload(ctx, bus, poller)
		close(listenerDone)
	}()

	require.Eventually(t, func() bool {
		return bus.Publish(events.TopicUploadCompleted, events.UploadCompleted{TaskID: "246810"}) > 0
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(r.calls()) >= 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, r.calls()[1], "upload refresh returns to page 1")

	cancel()
	<-listenerDone
	<-pollerDone
}
