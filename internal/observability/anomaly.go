package observability

import (
	"log/slog"
	"sync"
	"time"
)

// BlockRateMonitor watches per-base-command block rates over a sliding
// window. A burst of blocked attempts against one base command usually means
// a caller is probing the policy; the monitor logs a warning so operators
// see it without scraping metrics.
type BlockRateMonitor struct {
	mu        sync.Mutex
	blocked   map[string]*slidingWindow
	executed  map[string]*slidingWindow
	window    time.Duration
	threshold float64
	logger    *slog.Logger
}

type slidingWindow struct {
	entries []time.Time
	window  time.Duration
}

// NewBlockRateMonitor creates a monitor. window <= 0 defaults to five
// minutes, threshold <= 0 to 0.5 (half of recent attempts blocked).
func NewBlockRateMonitor(window time.Duration, threshold float64, logger *slog.Logger) *BlockRateMonitor {
	if window <= 0 {
		window = 5 * time.Minute
	}
	if threshold <= 0 {
		threshold = 0.5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BlockRateMonitor{
		blocked:   make(map[string]*slidingWindow),
		executed:  make(map[string]*slidingWindow),
		window:    window,
		threshold: threshold,
		logger:    logger,
	}
}

// RecordBlocked notes a blocked attempt and checks the rate.
func (m *BlockRateMonitor) RecordBlocked(base string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(m.blocked, base).add()
	m.checkRate(base)
}

// RecordExecuted notes an attempt that passed validation.
func (m *BlockRateMonitor) RecordExecuted(base string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(m.executed, base).add()
}

// checkRate must be called with m.mu held.
func (m *BlockRateMonitor) checkRate(base string) {
	blocked := m.getOrCreate(m.blocked, base).count()
	executed := m.getOrCreate(m.executed, base).count()
	total := blocked + executed

	if total < 5 {
		return // Not enough data.
	}

	rate := float64(blocked) / float64(total)
	if rate > m.threshold {
		m.logger.Warn("high block rate for base command",
			slog.String("base", base),
			slog.Float64("block_rate", rate),
			slog.Float64("threshold", m.threshold),
			slog.Int("blocked", blocked),
			slog.Int("total", total),
		)
	}
}

func (m *BlockRateMonitor) getOrCreate(windows map[string]*slidingWindow, base string) *slidingWindow {
	w, ok := windows[base]
	if !ok {
		w = &slidingWindow{window: m.window}
		windows[base] = w
	}
	return w
}

func (w *slidingWindow) add() {
	now := time.Now()
	w.entries = append(w.entries, now)
	w.prune(now)
}

func (w *slidingWindow) count() int {
	w.prune(time.Now())
	return len(w.entries)
}

// prune removes entries older than the window duration.
func (w *slidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.entries) && w.entries[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.entries = w.entries[i:]
	}
}
