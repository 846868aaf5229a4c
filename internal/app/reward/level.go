package reward

// NextLevelThreshold returns the cumulative XP at which a user at level
// leaves it: (level+1) × 100.
func NextLevelThreshold(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(level+1) * 100
}

// levelFloor is the cumulative XP at which level was reached.
func levelFloor(level int) int64 {
	if level <= 1 {
		return 0
	}
	return NextLevelThreshold(level - 1)
}

// ApplyXP adds gained XP to the cumulative total and steps the level.
// A level-up happens iff the new total reaches the next threshold, and the
// level moves by at most one per call even when several thresholds are crossed.
func ApplyXP(xp int64, level int, gained int64) (newXP int64, newLevel int, leveledUp bool) {
	if level < 1 {
		level = 1
	}
	if gained < 0 {
		gained = 0
	}
	newXP = xp + gained
	newLevel = level
	if newXP >= NextLevelThreshold(level) {
		newLevel++
		leveledUp = true
	}
	return newXP, newLevel, leveledUp
}

// XPToNextLevel returns XP remaining until the next threshold.
func XPToNextLevel(xp int64, level int) int64 {
	remaining := NextLevelThreshold(level) - xp
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// ProgressPct returns progress toward the next level (0.0–100.0).
func ProgressPct(xp int64, level int) float64 {
	floor := levelFloor(level)
	span := NextLevelThreshold(level) - floor
	if span <= 0 {
		return 100.0
	}
	progress := float64(xp-floor) / float64(span) * 100.0
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return progress
}

// LevelProgress summarizes where a user stands within their level.
type LevelProgress struct {
	Level       int     `json:"level"`
	XP          int64   `json:"xp"`
	NextLevelXP int64   `json:"next_level_xp"`
	XPToNext    int64   `json:"xp_to_next"`
	ProgressPct float64 `json:"progress_pct"`
}

// Progress returns the level summary for a cumulative XP total.
func Progress(xp int64, level int) LevelProgress {
	return LevelProgress{
		Level:       level,
		XP:          xp,
		NextLevelXP: NextLevelThreshold(level),
		XPToNext:    XPToNextLevel(xp, level),
		ProgressPct: ProgressPct(xp, level),
	}
}
