package caption

import "time"

// Role distinguishes the most recent record from the rest of the window.
type Role int

const (
	RoleCurrent Role = iota
	RoleOlder
)

const (
	// maxAge is the karaoke-style eviction horizon.
	maxAge = 15 * time.Second
	// fadeStart is how long a record holds its initial opacity.
	fadeStart = 3 * time.Second

	initialOpacity = 0.9
	floorOpacity   = 0.4
)

// ProjectionOptions controls the visibility projection. MaxAge <= 0 disables
// age eviction (the notes-style display, which relies on scrolling instead);
// MaxLines <= 0 disables truncation.
type ProjectionOptions struct {
	MaxAge   time.Duration
	MaxLines int
	Now      time.Time
}

// Project derives the visible window from the authoritative list: final
// records younger than MaxAge, plus the single most recent interim record
// regardless of age so the user always sees what is currently being said,
// truncated to the most recent MaxLines entries. Projecting twice with the
// same clock yields the same result.
func Project(list []Caption, opts ProjectionOptions) []Caption {
	visible := make([]Caption, 0, len(list))
	var interim *Caption
	for i := range list {
		c := list[i]
		if !c.IsFinal {
			interim = &list[i]
			continue
		}
		if opts.MaxAge > 0 && opts.Now.Sub(c.Timestamp) >= opts.MaxAge {
			continue
		}
		visible = append(visible, c)
	}
	if interim != nil {
		visible = append(visible, *interim)
	}
	if opts.MaxLines > 0 && len(visible) > opts.MaxLines {
		visible = visible[len(visible)-opts.MaxLines:]
	}
	return visible
}

// Opacity is the presentation policy for caption aging. The current record
// always renders fully opaque; older records hold 0.9 for their first three
// seconds, then fade linearly to a floor of 0.4 by the fifteen-second
// horizon, at which point they are evicted.
func Opacity(age time.Duration, role Role) float64 {
	if role == RoleCurrent {
		return 1
	}
	if age >= maxAge {
		return 0
	}
	if age <= fadeStart {
		return initialOpacity
	}
	progress := float64(age-fadeStart) / float64(maxAge-fadeStart)
	opacity := initialOpacity - progress*(initialOpacity-floorOpacity)
	if opacity < floorOpacity {
		return floorOpacity
	}
	return opacity
}

// RoleOf reports the display role for the record at index i of a projected
// window of n records. The latest record is current; everything else ages.
func RoleOf(i, n int) Role {
	if i == n-1 {
		return RoleCurrent
	}
	return RoleOlder
}
