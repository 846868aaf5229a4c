package reward

import "time"

// CalendarDay returns local midnight of the day containing t.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DaysBetween returns the number of calendar days from a to b in loc.
// It compares dates, not durations, so DST transitions do not shift it.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// NextStreak applies the day-boundary policy to a session completed at now.
//
//	no prior activity      → 1, first of day
//	prior was yesterday    → current+1, first of day
//	prior was today        → current, not first of day
//	prior older than that  → 1, first of day
//
// A prior date after today (clock skew) counts as today.
func NextStreak(last, now time.Time, loc *time.Location, current int) (streak int, firstOfDay bool) {
	if current < 0 {
		current = 0
	}
	if last.IsZero() {
		return 1, true
	}

	gap := DaysBetween(last, now, loc)
	switch {
	case gap <= 0:
		return current, false
	case gap == 1:
		return current + 1, true
	default:
		return 1, true
	}
}

// EffectiveStreak is the streak that is still alive at now: the stored
// streak when the last activity was today or yesterday, otherwise 0.
func EffectiveStreak(last, now time.Time, loc *time.Location, current int) int {
	if last.IsZero() || current <= 0 {
		return 0
	}
	if DaysBetween(last, now, loc) > 1 {
		return 0
	}
	return current
}
