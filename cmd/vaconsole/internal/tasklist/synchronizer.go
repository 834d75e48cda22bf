// Package tasklist keeps a local, paginated copy of the backend task list.
//
// A Synchronizer owns the cached collection, the pagination state and the
// render trigger. A Poller decides when the Synchronizer refreshes: on a timer
// while the view is visible, once when the view becomes visible again, and on
// manual request.
package tasklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/models"
	"github.com/houzhh15/vaconsole/pkg/metrics"
)

// ErrSuperseded is returned by Refresh when its response arrived after a newer
// response had already been applied. The stale collection is discarded; a
// stale failure is wrapped together with the fetch error and not alerted.
var ErrSuperseded = errors.New("task list response superseded by a newer refresh")

// Fetcher loads the full task collection from the backend.
type Fetcher interface {
	FetchTasks(ctx context.Context) ([]models.TaskSummary, error)
}

// Notifier surfaces non-fatal errors to the user.
type Notifier interface {
	Alert(message string)
}

// RefreshState describes fetch activity; it never affects what is rendered.
type RefreshState struct {
	LastSuccess time.Time `json:"last_success"`
	InFlight    int       `json:"in_flight"`
}

// State is a point-in-time copy of everything the Synchronizer owns.
type State struct {
	Tasks      []models.TaskSummary `json:"tasks"`
	Pagination Pagination           `json:"pagination"`
	Refresh    RefreshState         `json:"refresh"`
}

// Options configures a Synchronizer. Zero values are usable.
type Options struct {
	PageSize int
	Notifier Notifier
	// OnRender is called after every state change that alters the rendered
	// page. Calls are serialized and ordered; the callback must not call
	// SetPage or Refresh synchronously.
	OnRender func(RenderedPage)
	Logger   *slog.Logger
	Now      func() time.Time
}

// Synchronizer caches the task collection and its pagination.
//
// Thread-safety: all methods are safe for concurrent use. The state lock is
// never held across a fetch.
type Synchronizer struct {
	fetcher  Fetcher
	notifier Notifier
	onRender func(RenderedPage)
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	tasks      []models.TaskSummary
	pagination Pagination
	refresh    RefreshState
	issued     uint64 // sequence number of the last issued fetch
	applied    uint64 // sequence number of the last applied response

	emitMu sync.Mutex
}

// NewSynchronizer creates a Synchronizer with an empty collection on page 1.
func NewSynchronizer(fetcher Fetcher, opts Options) *Synchronizer {
	s := &Synchronizer{
		fetcher:    fetcher,
		notifier:   opts.Notifier,
		onRender:   opts.OnRender,
		logger:     opts.Logger,
		now:        opts.Now,
		tasks:      []models.TaskSummary{},
		pagination: NewPagination(opts.PageSize),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Refresh fetches the full collection and, on success, replaces the cached
// one. With resetPage the view returns to page 1; otherwise the current page
// is kept and clamped if the collection shrank. On failure the cached state is
// left untouched and the error is surfaced through the Notifier.
func (s *Synchronizer) Refresh(ctx context.Context, resetPage bool) error {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.refresh.InFlight++
	s.mu.Unlock()

	start := time.Now()
	tasks, err := s.fetcher.FetchTasks(ctx)
	metrics.RecordFetchDuration(time.Since(start).Seconds())

	s.mu.Lock()
	s.refresh.InFlight--

	if err != nil {
		superseded := seq < s.applied
		s.mu.Unlock()
		if superseded {
			// 更新的数据已在展示，旧请求的失败不再提示
			s.logger.Debug("superseded task list request failed", "seq", seq, "error", err)
			return fmt.Errorf("%w: %w", ErrSuperseded, err)
		}
		if !errors.Is(err, context.Canceled) {
			s.alert("加载任务列表失败: " + err.Error())
		}
		return err
	}

	if seq < s.applied {
		// A newer response is already on screen. Honour a page reset anyway
		// so a manual refresh still lands on page 1.
		if resetPage && s.pagination.CurrentPage != 1 {
			s.pagination.CurrentPage = 1
			s.emitLocked()
			return ErrSuperseded
		}
		applied := s.applied
		s.mu.Unlock()
		s.logger.Debug("discarding stale task list response", "seq", seq, "applied", applied)
		return ErrSuperseded
	}

	if tasks == nil {
		tasks = []models.TaskSummary{}
	}
	s.applied = seq
	s.tasks = tasks
	s.pagination = s.pagination.Resize(len(tasks))
	if resetPage {
		s.pagination.CurrentPage = 1
	}
	s.refresh.LastSuccess = s.now()
	metrics.SetCachedTasks(len(tasks))
	s.emitLocked()
	return nil
}

// SetPage moves to page and re-renders without refetching. It returns false
// and changes nothing when page is outside [1, TotalPages].
func (s *Synchronizer) SetPage(page int) bool {
	s.mu.Lock()
	if !s.pagination.Contains(page) {
		s.mu.Unlock()
		return false
	}
	s.pagination.CurrentPage = page
	s.emitLocked()
	return true
}

// ChangePage moves delta pages from the current one.
func (s *Synchronizer) ChangePage(delta int) bool {
	s.mu.Lock()
	target := s.pagination.CurrentPage + delta
	s.mu.Unlock()
	return s.SetPage(target)
}

// Render returns the current page.
func (s *Synchronizer) Render() RenderedPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Render(s.tasks, s.pagination)
}

// Snapshot returns a copy of the cached state.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]models.TaskSummary, len(s.tasks))
	copy(tasks, s.tasks)
	return State{Tasks: tasks, Pagination: s.pagination, Refresh: s.refresh}
}

// emitLocked renders under s.mu, releases it, and delivers the page to
// OnRender. emitMu keeps deliveries in state order.
func (s *Synchronizer) emitLocked() {
	page := Render(s.tasks, s.pagination)
	if s.onRender == nil {
		s.mu.Unlock()
		return
	}
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	s.onRender(page)
}

func (s *Synchronizer) alert(msg string) {
	if s.notifier != nil {
		s.notifier.Alert(msg)
	}
}
