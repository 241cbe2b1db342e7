package volume

import "time"

// warmup is how long listening must run before the first feedback nudge.
const warmup = 2 * time.Second

// Feedback debounces level-change notifications for the UI. The monitor
// itself reports every sample; this policy decides which changes are worth
// surfacing: one nudge after two seconds of sustained listening, then again
// only when the level swings between low and excellent.
type Feedback struct {
	started   time.Time
	announced bool
	last      Level
}

func NewFeedback(started time.Time) *Feedback {
	return &Feedback{started: started}
}

// Observe records a sampled level and reports whether the UI should be
// nudged about it.
func (f *Feedback) Observe(level Level, now time.Time) bool {
	if !f.announced {
		if now.Sub(f.started) < warmup {
			return false
		}
		f.announced = true
		f.last = level
		return true
	}
	swing := (f.last == LevelLow && level == LevelExcellent) ||
		(f.last == LevelExcellent && level == LevelLow)
	if swing {
		f.last = level
		return true
	}
	return false
}
