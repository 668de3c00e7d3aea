package spread

import (
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"reboundtrader/src/model"
)

// Monitor tracks the quoted spread from the live tick stream. Entries are
// held back while the spread is wider than the configured maximum, which
// happens around news and at session boundaries. Safe for concurrent use:
// the stream goroutine writes, the trading loop reads.
type Monitor struct {
	maxPts float64

	mu      sync.RWMutex
	current float64
	average float64
	samples int64
	updated time.Time
}

// NewMonitor creates a monitor. maxPts zero disables the width guard.
func NewMonitor(maxPts float64) *Monitor {
	return &Monitor{maxPts: maxPts}
}

func (m *Monitor) Observe(tk model.Tick) {
	s := tk.Spread()
	if s < 0 {
		return // crossed quote, ignore
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = s
	m.samples++
	m.average += (s - m.average) / float64(m.samples)
	m.updated = tk.Timestamp

	if m.maxPts > 0 && s > m.maxPts {
		logger.WithFields(logger.Fields{
			"spread": s,
			"max":    m.maxPts,
		}).Debug("spread above entry threshold")
	}
}

// Current returns the most recently observed spread in points.
func (m *Monitor) Current() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Average returns the running mean spread since start.
func (m *Monitor) Average() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.average
}

// TooWide reports whether new entries should be suppressed.
func (m *Monitor) TooWide() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxPts > 0 && m.current > m.maxPts
}

// LastUpdate returns the timestamp of the latest observed tick.
func (m *Monitor) LastUpdate() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updated
}
