package agent

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wbridge/wbridge/internal/history"
	"github.com/wbridge/wbridge/internal/runloop"
	"github.com/wbridge/wbridge/internal/selection"
)

// minPollInterval is the floor for the selection poll cadence.
const minPollInterval = 50 * time.Millisecond

// Monitor polls both selection channels from the run loop and records
// changes into history. Polling is the only change source; nothing
// pushes selection events into the daemon.
type Monitor struct {
	loop     *runloop.Loop
	backend  selection.Backend
	history  *history.Store
	interval atomic.Int64 // nanoseconds, retunable while running

	// Touched only by poll tasks on the loop goroutine.
	last   map[string]string
	warned bool
}

func NewMonitor(loop *runloop.Loop, backend selection.Backend, store *history.Store, interval time.Duration) *Monitor {
	m := &Monitor{
		loop:    loop,
		backend: backend,
		history: store,
		last:    make(map[string]string),
	}
	m.SetInterval(interval)
	return m
}

// SetInterval retunes the poll cadence, clamped to the floor. The new
// value takes effect after the next tick.
func (m *Monitor) SetInterval(d time.Duration) {
	if d < minPollInterval {
		d = minPollInterval
	}
	m.interval.Store(int64(d))
	slog.Debug("selection poll interval set", "interval", d)
}

func (m *Monitor) Interval() time.Duration {
	return time.Duration(m.interval.Load())
}

// Run blocks until ctx is cancelled, enqueueing one poll task per tick.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.Interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.loop.Enqueue(m.poll)
			if cur := m.Interval(); cur != interval {
				interval = cur
				ticker.Reset(interval)
			}
		}
	}
}

// poll runs on the loop goroutine.
func (m *Monitor) poll() {
	for _, which := range []string{selection.Clipboard, selection.Primary} {
		text, err := m.backend.Read(which)
		if err != nil {
			if !m.warned {
				m.warned = true
				slog.Warn("selection backend unavailable", "backend", m.backend.Name(), "error", err)
			}
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if text == m.last[which] {
			continue
		}
		m.last[which] = text
		m.history.Add(which, text)
	}
}
