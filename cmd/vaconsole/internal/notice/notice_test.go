package notice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBoardExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := NewBoard(0).WithClock(clock.now)

	_, ok := b.Current()
	assert.False(t, ok)

	b.Alert("加载任务列表失败: HTTP错误: 500")
	n, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, LevelError, n.Level)
	assert.Contains(t, n.Message, "500")
	assert.Equal(t, DefaultDuration, n.ExpiresAt.Sub(n.CreatedAt))

	clock.advance(DefaultDuration - time.Millisecond)
	_, ok = b.Current()
	assert.True(t, ok)

	clock.advance(time.Millisecond)
	_, ok = b.Current()
	assert.False(t, ok)
}

func TestBoardShowReplaces(t *testing.T) {
	b := NewBoard(time.Minute)
	first := b.Show(LevelInfo, "first")
	second := b.Show(LevelSuccess, "second")
	assert.NotEqual(t, first.ID, second.ID)

	n, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, "second", n.Message)

	assert.False(t, b.Dismiss(first.ID), "stale id must not dismiss the newer notice")
	assert.True(t, b.Dismiss(second.ID))
	_, ok = b.Current()
	assert.False(t, ok)
	assert.False(t, b.Dismiss(second.ID))
}
