package models

import (
	"strings"
	"time"
)

// TaskStatus 任务生命周期状态（后端原样返回的中文状态串）
type TaskStatus string

const (
	StatusPending   TaskStatus = "等待开始"
	StatusAnalyzing TaskStatus = "分析中"
	StatusCompleted TaskStatus = "分析完成"
	StatusFailed    TaskStatus = "分析失败"
	StatusUnknown   TaskStatus = "未知"
)

// Class 返回状态对应的样式类名，未知状态统一为 unknown
func (s TaskStatus) Class() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAnalyzing:
		return "analyzing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress 任务进度快照
type Progress struct {
	CurrentStep        int     `json:"current_step"`
	CurrentStepName    string  `json:"current_step_name"`
	TotalSteps         int     `json:"total_steps"`
	ProgressPercentage float64 `json:"progress_percentage"` // 0-100，后端保留一位小数
	EstimatedRemaining string  `json:"estimated_remaining"` // 已格式化的剩余时间，例如 "3分钟"
}

// ClampedPercentage 返回限制在 [0,100] 内的百分比，用于进度条宽度
func (p Progress) ClampedPercentage() float64 {
	switch {
	case p.ProgressPercentage < 0:
		return 0
	case p.ProgressPercentage > 100:
		return 100
	default:
		return p.ProgressPercentage
	}
}

// TaskSummary 任务列表中的一行
type TaskSummary struct {
	TaskID      string     `json:"task_id"`
	CourseName  string     `json:"course_name"`
	Teacher     string     `json:"teacher"`
	StudentType string     `json:"student_type"`
	UploadTime  string     `json:"upload_time"`
	Progress    Progress   `json:"progress"`
	Status      TaskStatus `json:"status"`
}

var uploadTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParsedUploadTime 按后端可能使用的格式解析上传时间
func (t TaskSummary) ParsedUploadTime() (time.Time, bool) {
	s := strings.TrimSpace(t.UploadTime)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range uploadTimeLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// DisplayUploadTime 格式化为 YYYY-MM-DD HH:MM；无法解析时原样返回，空值返回 "--"
func (t TaskSummary) DisplayUploadTime() string {
	if strings.TrimSpace(t.UploadTime) == "" {
		return Placeholder
	}
	ts, ok := t.ParsedUploadTime()
	if !ok {
		return t.UploadTime
	}
	return ts.Format("2006-01-02 15:04")
}

// Placeholder 空字段的占位显示
const Placeholder = "--"

// OrPlaceholder 空字符串替换为占位符
func OrPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

// UploadResult 上传接口 data 字段
type UploadResult struct {
	TaskID      string `json:"task_id"`
	CourseName  string `json:"course_name,omitempty"`
	Teacher     string `json:"teacher,omitempty"`
	StudentType string `json:"student_type,omitempty"`
}

// BackendHealth 后端 /health 响应
type BackendHealth struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	TotalTasks  int    `json:"total_tasks"`
	ActiveTasks int    `json:"active_tasks"`
}
