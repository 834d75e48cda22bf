package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/models"
)

// defaultUnknownMessage 后端 success=false 但未给出 message 时的提示
const defaultUnknownMessage = "未知错误"

// Client 封装对视频分析后端的 HTTP 调用
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	logger     *slog.Logger
}

// New 创建新的 API 客户端；timeout 为 0 时沿用 http.Client 默认行为（不设超时）
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchTasks 获取全部任务；成功时总是返回非 nil 切片
func (c *Client) FetchTasks(ctx context.Context) ([]models.TaskSummary, error) {
	data, err := c.getData(ctx, "/tasks")
	if err != nil {
		return nil, err
	}
	tasks := []models.TaskSummary{}
	if isNull(data) {
		return tasks, nil
	}
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("data is not a task list: %w", err)}
	}
	return tasks, nil
}

// FetchTask 获取单个任务详情
func (c *Client) FetchTask(ctx context.Context, taskID string) (*models.TaskSummary, error) {
	if taskID == "" {
		return nil, errors.New("task id is required")
	}
	data, err := c.getData(ctx, "/tasks/"+url.PathEscape(taskID))
	if err != nil {
		return nil, err
	}
	if isNull(data) {
		return nil, &DecodeError{Err: errors.New("missing data")}
	}
	var task models.TaskSummary
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &task, nil
}

// Health 调用后端 /health，该接口不使用统一外壳
func (c *Client) Health(ctx context.Context) (*models.BackendHealth, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &TransportError{Status: status}
	}
	var health models.BackendHealth
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &health, nil
}

// getData 发送 GET 请求并拆开 {success, data, message} 外壳
func (c *Client) getData(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return unwrapEnvelope(status, body)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// do 执行请求并读取完整响应体
func (c *Client) do(req *http.Request) ([]byte, int, error) {
	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed (check server_url=%s): %w", c.BaseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("backend_request",
		"rid", req.Header.Get("X-Request-ID"),
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return data, resp.StatusCode, nil
}

// envelope 后端统一响应外壳 {success, data, message}，success 用指针区分缺失
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func unwrapEnvelope(status int, body []byte) (json.RawMessage, error) {
	if status < 200 || status > 299 {
		te := &TransportError{Status: status}
		var env envelope
		if json.Unmarshal(body, &env) == nil {
			te.Message = env.Message
		}
		return nil, te
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if env.Success == nil {
		return nil, &DecodeError{Err: errors.New("missing success flag")}
	}
	if !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = defaultUnknownMessage
		}
		return nil, &ApplicationError{Message: msg}
	}
	return env.Data, nil
}

func isNull(data json.RawMessage) bool {
	s := strings.TrimSpace(string(data))
	return s == "" || s == "null"
}
