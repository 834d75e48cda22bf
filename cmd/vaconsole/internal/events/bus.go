// Package events is a small in-process publish/subscribe hub used to let the
// upload surface tell the task list that a new task exists.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// TopicUploadCompleted is published after the backend accepted an upload.
const TopicUploadCompleted = "upload.completed"

// defaultBuffer 订阅通道缓冲大小
const defaultBuffer = 16

// Event 总线上传递的事件
type Event struct {
	Topic   string
	Payload any
	At      time.Time
}

// UploadCompleted is the payload of TopicUploadCompleted.
type UploadCompleted struct {
	TaskID     string
	CourseName string
}

// Bus 按主题广播事件；发布不阻塞，订阅者通道满时丢弃事件
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	closed bool
}

// NewBus 创建事件总线
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe 订阅主题，返回只读通道和取消函数；取消后通道被关闭
func (b *Bus) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, defaultBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan Event]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	count := len(b.subs[topic])
	b.mu.Unlock()

	b.logger.Debug("Bus: subscriber registered", "topic", topic, "subscribers", count)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[topic][ch]; ok {
				delete(b.subs[topic], ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish 向主题的全部订阅者投递事件，返回成功投递的数量
func (b *Bus) Publish(topic string, payload any) int {
	ev := Event{Topic: topic, Payload: payload, At: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for ch := range b.subs[topic] {
		select {
		case ch <- ev:
			delivered++
		default:
			b.logger.Warn("Bus: subscriber buffer full, dropping event", "topic", topic)
		}
	}
	b.logger.Debug("Bus: event published", "topic", topic, "delivered", delivered)
	return delivered
}

// Close 关闭所有订阅通道，之后的 Subscribe 返回已关闭的通道
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, topic)
	}
}
