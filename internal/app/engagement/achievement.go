package engagement

import (
	"github.com/glow-labs/glow/internal/domain"
)

// AchievementService evaluates the achievement catalog against a user's
// progression. Each achievement is a predicate over ProgressionState and
// grants tokens once.
type AchievementService struct {
	definitions []domain.AchievementDef
	byID        map[string]domain.AchievementDef
}

// NewAchievementService creates an achievement service with all definitions.
func NewAchievementService() *AchievementService {
	return newAchievementService(AllAchievements())
}

func newAchievementService(defs []domain.AchievementDef) *AchievementService {
	byID := make(map[string]domain.AchievementDef, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}
	return &AchievementService{definitions: defs, byID: byID}
}

// Check returns the achievements state satisfies that are not in unlocked,
// in catalog order.
func (a *AchievementService) Check(state domain.ProgressionState, unlocked map[string]bool) []domain.AchievementDef {
	var fresh []domain.AchievementDef
	for _, def := range a.definitions {
		if unlocked[def.ID] {
			continue
		}
		if def.Predicate != nil && def.Predicate(state) {
			fresh = append(fresh, def)
		}
	}
	return fresh
}

// Lookup returns the definition for id.
func (a *AchievementService) Lookup(id string) (domain.AchievementDef, bool) {
	d, ok := a.byID[id]
	return d, ok
}

// TotalCount returns the total number of defined achievements.
func (a *AchievementService) TotalCount() int {
	return len(a.definitions)
}

// Definitions returns all achievement definitions (for display).
func (a *AchievementService) Definitions() []domain.AchievementDef {
	return a.definitions
}

// ─── Achievement Definitions ────────────────────────────────────────────────

// AllAchievements returns the full achievement catalog.
func AllAchievements() []domain.AchievementDef {
	return []domain.AchievementDef{
		// ── Practice ───────────────────────────────────────────────────
		{
			ID: "first_session", Name: "First Breath", Category: domain.CatPractice, RewardCr: 10,
			Predicate: func(s domain.ProgressionState) bool { return s.TotalSessions >= 1 },
		},
		{
			ID: "sessions_10", Name: "Settling In", Category: domain.CatPractice, RewardCr: 20,
			Predicate: func(s domain.ProgressionState) bool { return s.TotalSessions >= 10 },
		},
		{
			ID: "sessions_100", Name: "Centered", Category: domain.CatPractice, RewardCr: 100,
			Predicate: func(s domain.ProgressionState) bool { return s.TotalSessions >= 100 },
		},
		{
			ID: "minutes_1000", Name: "Thousand Minutes", Category: domain.CatPractice, RewardCr: 150,
			Predicate: func(s domain.ProgressionState) bool { return s.TotalMinutes >= 1000 },
		},

		// ── Streaks ────────────────────────────────────────────────────
		{
			ID: "streak_7", Name: "Week of Calm", Category: domain.CatStreaks, RewardCr: 50,
			Predicate: func(s domain.ProgressionState) bool { return s.StreakDays >= 7 },
		},
		{
			ID: "streak_30", Name: "Monthly Glow", Category: domain.CatStreaks, RewardCr: 200,
			Predicate: func(s domain.ProgressionState) bool { return s.StreakDays >= 30 },
		},
		{
			ID: "streak_100", Name: "Hundred Days", Category: domain.CatStreaks, RewardCr: 1000,
			Predicate: func(s domain.ProgressionState) bool { return s.StreakDays >= 100 },
		},

		// ── Levels ─────────────────────────────────────────────────────
		{
			ID: "level_5", Name: "Rising Light", Category: domain.CatLevels, RewardCr: 50,
			Predicate: func(s domain.ProgressionState) bool { return s.Level >= 5 },
		},
		{
			ID: "level_10", Name: "Steady Flame", Category: domain.CatLevels, RewardCr: 150,
			Predicate: func(s domain.ProgressionState) bool { return s.Level >= 10 },
		},

		// ── Loot ───────────────────────────────────────────────────────
		{
			ID: "saver_kept", Name: "Safety Net", Category: domain.CatLoot, RewardCr: 15,
			Predicate: func(s domain.ProgressionState) bool { return s.StreakSavers >= 1 },
		},
		{
			ID: "rare_bag", Name: "Lucky Find", Category: domain.CatLoot, RewardCr: 25,
			Predicate: func(s domain.ProgressionState) bool { return s.RareBags >= 1 },
		},
	}
}
