// Package notice holds the single dismissible, auto-expiring message shown
// above the task list.
package notice

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDuration is how long a notice stays visible unless dismissed.
const DefaultDuration = 5 * time.Second

// Level 通知级别，决定展示样式
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice 一条用户可见的通知
type Notice struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether n is past its expiry at now.
func (n Notice) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// Board 保存当前通知；新通知覆盖旧通知
type Board struct {
	duration time.Duration
	now      func() time.Time

	mu      sync.Mutex
	current *Notice
}

// NewBoard 创建通知板，duration<=0 时使用 DefaultDuration
func NewBoard(duration time.Duration) *Board {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Board{duration: duration, now: time.Now}
}

// WithClock 替换时钟，供测试使用
func (b *Board) WithClock(now func() time.Time) *Board {
	b.now = now
	return b
}

// Show 发布一条通知并返回它
func (b *Board) Show(level Level, message string) Notice {
	created := b.now()
	n := Notice{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: created,
		ExpiresAt: created.Add(b.duration),
	}

	b.mu.Lock()
	b.current = &n
	b.mu.Unlock()
	return n
}

// Alert 发布错误通知，满足 tasklist.Notifier
func (b *Board) Alert(message string) {
	b.Show(LevelError, message)
}

// Current 返回仍在有效期内的通知
func (b *Board) Current() (Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return Notice{}, false
	}
	if b.current.Expired(b.now()) {
		b.current = nil
		return Notice{}, false
	}
	return *b.current, true
}

// Dismiss 按 ID 关闭通知；ID 不匹配当前通知时返回 false
func (b *Board) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil || b.current.ID != id {
		return false
	}
	b.current = nil
	return true
}
