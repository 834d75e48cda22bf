package web

import (
	"sync"
	"time"
)

// viewerTTL 超过该时间没有请求的列表页视为已关闭
// 隐藏页面的定时器可能被浏览器降到每分钟一次，心跳间隔必须小于它
const viewerTTL = 2 * time.Minute

// defaultViewerID 未携带 client_id 的可见性上报共用此 ID
const defaultViewerID = "default"

type viewer struct {
	visible  bool
	lastSeen time.Time
}

// viewers 记录每个打开的列表页的可见性
// 任一页面可见即视为可见；没有已知页面时也视为可见（与 Poller 的初始状态一致）
type viewers struct {
	mu   sync.Mutex
	now  func() time.Time
	byID map[string]viewer
}

func newViewers() *viewers {
	return &viewers{now: time.Now, byID: make(map[string]viewer)}
}

// report 记录 id 的可见性并返回汇总结果
func (v *viewers) report(id string, visible bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byID[id] = viewer{visible: visible, lastSeen: v.now()}
	return v.anyVisibleLocked()
}

// touch 刷新已知页面的最后活动时间，未知 id 不登记
func (v *viewers) touch(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if vw, ok := v.byID[id]; ok {
		vw.lastSeen = v.now()
		v.byID[id] = vw
	}
	return v.anyVisibleLocked()
}

// count 返回未过期的页面数
func (v *viewers) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pruneLocked()
	return len(v.byID)
}

func (v *viewers) anyVisibleLocked() bool {
	v.pruneLocked()
	if len(v.byID) == 0 {
		return true
	}
	for _, vw := range v.byID {
		if vw.visible {
			return true
		}
	}
	return false
}

func (v *viewers) pruneLocked() {
	cutoff := v.now().Add(-viewerTTL)
	for id, vw := range v.byID {
		if vw.lastSeen.Before(cutoff) {
			delete(v.byID, id)
		}
	}
}
