package tasklist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/client"
	"github.com/houzhh15/vaconsole/pkg/logger"
	"github.com/houzhh15/vaconsole/pkg/metrics"
)

// DefaultInterval is the auto-refresh period of the original list page.
const DefaultInterval = 3 * time.Second

// Trigger names what caused a refresh.
type Trigger string

const (
	TriggerStartup    Trigger = "startup"
	TriggerTimer      Trigger = "timer"
	TriggerVisibility Trigger = "visibility"
	TriggerManual     Trigger = "manual"
)

// Refresher is the part of Synchronizer the Poller drives.
type Refresher interface {
	Refresh(ctx context.Context, resetPage bool) error
}

// Poller schedules refreshes of a Refresher.
//
// Policy:
//   - one refresh at Start
//   - every interval while visible (ticks while hidden are dropped, not queued)
//   - one refresh each time the view goes from hidden to visible
//   - a page-resetting refresh on RefreshNow
//
// Every refresh runs on its own goroutine, so a tick never waits for a slow
// fetch; overlapping completions are resolved by the Synchronizer.
type Poller struct {
	target      Refresher
	interval    time.Duration
	autoRefresh bool
	logger      *slog.Logger

	mu      sync.Mutex
	visible bool
	ctx     context.Context
	closed  bool // set once Start returns; later refreshes are dropped

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewPoller creates a Poller. The view starts out visible.
// With autoRefresh false the timer is disabled and only startup, visibility
// and manual refreshes happen.
func NewPoller(target Refresher, interval time.Duration, autoRefresh bool, log *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		target:      target,
		interval:    interval,
		autoRefresh: autoRefresh,
		logger:      log,
		visible:     true,
		ctx:         context.Background(),
		stopChan:    make(chan struct{}),
	}
}

// Start performs the initial refresh and then runs the timer loop. It blocks
// until Stop is called or ctx is cancelled, then waits for dispatched
// refreshes to finish. A Poller cannot be restarted.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.wg.Wait()
	}()

	p.dispatch(TriggerStartup, false)

	var tick <-chan time.Time
	if p.autoRefresh {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			p.tick()
		case <-p.stopChan:
			p.logger.Info("Poller: stopped")
			return
		case <-ctx.Done():
			p.logger.Info("Poller: context cancelled")
			return
		}
	}
}

func (p *Poller) tick() {
	if !p.Visible() {
		metrics.RecordSkippedTick()
		p.logger.Debug("Poller: view hidden, skipping tick")
		return
	}
	p.dispatch(TriggerTimer, false)
}

// SetVisible records the visibility of the view. A hidden-to-visible
// transition triggers exactly one immediate refresh.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	regained := visible && !p.visible
	p.visible = visible
	p.mu.Unlock()

	if regained {
		p.dispatch(TriggerVisibility, false)
	}
}

// Visible reports the last recorded visibility.
func (p *Poller) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// RefreshNow issues a manual refresh that returns the view to page 1.
func (p *Poller) RefreshNow() {
	p.dispatch(TriggerManual, true)
}

// Wait blocks until all dispatched refreshes have completed.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// Stop terminates the timer loop. It is safe to call Stop multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
}

func (p *Poller) dispatch(trigger Trigger, resetPage bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Debug("Poller: stopped, dropping refresh", "trigger", trigger)
		return
	}
	ctx := p.ctx
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		start := time.Now()
		err := p.target.Refresh(ctx, resetPage)
		outcome := Outcome(err)
		metrics.RecordRefresh(string(trigger), outcome)
		logger.LogRefresh(p.logger, string(trigger), outcome, time.Since(start).Milliseconds(), err)
	}()
}

// Outcome classifies a Refresh result for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSuperseded):
		return "stale"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return client.Kind(err)
	}
}
