package bot

import (
	"testing"
	"time"
)

func TestThrottle_FirstCallAlwaysRenders(t *testing.T) {
	th := newProgressThrottle()
	if !th.shouldRender(0) {
		t.Error("first call should render")
	}
}

func TestThrottle_DeltaBoundsBurst(t *testing.T) {
	// Every callback lands at the same instant, so only the 5-point delta
	// can let a render through: 0, 5, 10, ..., 100 -> 21 renders.
	th := newProgressThrottle()
	fixed := time.Now()
	th.now = func() time.Time { return fixed }

	renders := 0
	for pct := 0; pct <= 100; pct++ {
		if th.shouldRender(float64(pct)) {
			renders++
		}
	}

	if renders != 21 {
		t.Errorf("renders = %d, want 21", renders)
	}
}

func TestThrottle_TimePassesSmallDelta(t *testing.T) {
	th := newProgressThrottle()
	clock := time.Now()
	th.now = func() time.Time { return clock }

	if !th.shouldRender(10) {
		t.Fatal("first render suppressed")
	}
	if th.shouldRender(11) {
		t.Error("1-point change inside the interval should be suppressed")
	}

	clock = clock.Add(renderInterval)
	if !th.shouldRender(11) {
		t.Error("render after the interval elapsed should go through")
	}
}

func TestThrottle_BackwardsJumpRenders(t *testing.T) {
	// Percent can regress when a second stream starts; a big jump in either
	// direction is worth showing.
	th := newProgressThrottle()
	fixed := time.Now()
	th.now = func() time.Time { return fixed }

	th.shouldRender(90)
	if !th.shouldRender(10) {
		t.Error("large backwards jump should render")
	}
}
