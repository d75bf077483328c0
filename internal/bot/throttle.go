package bot

import (
	"math"
	"sync"
	"time"
)

const (
	// renderInterval is the minimum wall-clock gap between progress renders.
	renderInterval = 3 * time.Second
	// renderDelta is the percentage-point change that forces a render early.
	renderDelta = 5.0
)

// progressThrottle gates status-message edits during a transfer so the chat
// API is not hammered with one edit per progress callback. A render goes out
// when enough time has passed since the last one, or when progress jumped far
// enough that waiting would hide it.
type progressThrottle struct {
	mu          sync.Mutex
	minInterval time.Duration
	minDelta    float64
	now         func() time.Time

	rendered bool
	lastAt   time.Time
	lastPct  float64
}

func newProgressThrottle() *progressThrottle {
	return &progressThrottle{
		minInterval: renderInterval,
		minDelta:    renderDelta,
		now:         time.Now,
	}
}

// shouldRender reports whether a progress update at pct warrants an edit and,
// when it does, records it as the last rendered frame. The first call always
// renders.
func (t *progressThrottle) shouldRender(pct float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rendered &&
		t.now().Sub(t.lastAt) < t.minInterval &&
		math.Abs(pct-t.lastPct) < t.minDelta {
		return false
	}

	t.rendered = true
	t.lastAt = t.now()
	t.lastPct = pct
	return true
}
