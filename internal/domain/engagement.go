// Package domain holds the types shared by the reward engine, the engagement
// service and the store adapters. Nothing here performs I/O.
package domain

import (
	"fmt"
	"time"
)

// ─── Activity ───────────────────────────────────────────────────────────────

// ActivityType is the kind of meditation session.
type ActivityType string

const (
	ActivityCalm  ActivityType = "calm"
	ActivityFocus ActivityType = "focus"
	ActivitySleep ActivityType = "sleep"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityCalm, ActivityFocus, ActivitySleep:
		return true
	}
	return false
}

// ParseActivityType converts a user-supplied string into an ActivityType.
func ParseActivityType(s string) (ActivityType, error) {
	t := ActivityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown activity type %q", ErrInvalidInput, s)
	}
	return t, nil
}

// ActivityRecord is a completed session as reported by the client.
// It is transient input and never persisted as-is.
type ActivityRecord struct {
	Type               ActivityType `json:"type"`
	DurationMinutes    int          `json:"duration_minutes"`
	BreathScore        int          `json:"breath_score"`
	UsedBreathTracking bool         `json:"used_breath_tracking"`
}

// ─── Progression ────────────────────────────────────────────────────────────

// ProgressionState is the persisted reward state of one user.
// LastActivityDate is the zero time when the user never completed a session.
type ProgressionState struct {
	UserID           string    `json:"user_id"`
	XP               int64     `json:"xp"`
	Level            int       `json:"level"`
	Tokens           int64     `json:"tokens"`
	StreakDays       int       `json:"streak_days"`
	LongestStreak    int       `json:"longest_streak"`
	LastActivityDate time.Time `json:"last_activity_date"`
	StreakSavers     int       `json:"streak_savers"`
	CommonBags       int       `json:"common_bags"`
	RareBags         int       `json:"rare_bags"`
	GlowCards        int       `json:"glow_cards"`
	TotalSessions    int       `json:"total_sessions"`
	TotalMinutes     int       `json:"total_minutes"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewProgressionState returns the state of a freshly enrolled user.
func NewProgressionState(userID string, now time.Time) ProgressionState {
	return ProgressionState{
		UserID:    userID,
		Level:     1,
		UpdatedAt: now,
	}
}

// HasActivity reports whether the user completed at least one session.
func (s ProgressionState) HasActivity() bool {
	return !s.LastActivityDate.IsZero()
}

// Validate checks the state invariants.
func (s ProgressionState) Validate() error {
	switch {
	case s.UserID == "":
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	case s.XP < 0:
		return fmt.Errorf("%w: xp %d < 0", ErrInvalidInput, s.XP)
	case s.Level < 1:
		return fmt.Errorf("%w: level %d < 1", ErrInvalidInput, s.Level)
	case s.Tokens < 0:
		return fmt.Errorf("%w: tokens %d < 0", ErrInvalidInput, s.Tokens)
	case s.StreakDays < 0:
		return fmt.Errorf("%w: streak %d < 0", ErrInvalidInput, s.StreakDays)
	case s.StreakSavers < 0 || s.CommonBags < 0 || s.RareBags < 0 || s.GlowCards < 0:
		return fmt.Errorf("%w: negative inventory", ErrInvalidInput)
	}
	return nil
}

// RewardOutcome is the result of one completed session.
type RewardOutcome struct {
	XPGained             int64   `json:"xp_gained"`
	TokensEarned         int64   `json:"tokens_earned"`
	NewStreak            int     `json:"new_streak"`
	LeveledUp            bool    `json:"leveled_up"`
	IsFirstActivityOfDay bool    `json:"is_first_activity_of_day"`
	BaseXP               int64   `json:"base_xp"`
	BreathBonus          int64   `json:"breath_bonus"`
	StreakMultiplier     float64 `json:"streak_multiplier"`
	NewLevel             int     `json:"new_level"`
	NewXP                int64   `json:"new_xp"`
	SaverUsed            bool    `json:"saver_used"`
}

// ─── Loot ───────────────────────────────────────────────────────────────────

// LootKind is the category of a glow-card draw.
type LootKind string

const (
	LootTokens      LootKind = "tokens"
	LootCommonBag   LootKind = "common_bag"
	LootRareBag     LootKind = "rare_bag"
	LootStreakSaver LootKind = "streak_saver"
	LootExtraPick   LootKind = "extra_pick"
)

// LootDraw is a single weighted selection. Amount is set for token draws
// and for streak savers that overflowed into tokens.
type LootDraw struct {
	Kind      LootKind `json:"kind"`
	Amount    int64    `json:"amount,omitempty"`
	Converted bool     `json:"converted,omitempty"`
}

// CardReveal is the resolved result of opening one glow card.
type CardReveal struct {
	Draws         []LootDraw `json:"draws"`
	Picks         int        `json:"picks"`
	TokensGranted int64      `json:"tokens_granted"`
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// TxType categorizes a token grant.
type TxType string

const (
	TxSessionReward TxType = "session_reward"
	TxLootTokens    TxType = "loot_tokens"
	TxSaverOverflow TxType = "saver_overflow"
	TxAchievement   TxType = "achievement"
)

// LedgerEntry records one token grant and the user's balance after it.
type LedgerEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        TxType    `json:"type"`
	Amount      int64     `json:"amount"`
	Balance     int64     `json:"balance"`
	Ref         string    `json:"ref,omitempty"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ─── Achievements ───────────────────────────────────────────────────────────

// AchievementCategory groups achievements by theme.
type AchievementCategory string

const (
	CatPractice AchievementCategory = "practice"
	CatStreaks  AchievementCategory = "streaks"
	CatLevels   AchievementCategory = "levels"
	CatLoot     AchievementCategory = "loot"
)

// AchievementDef defines an achievement and the token reward it grants.
// Achievements never grant XP so level-ups stay tied to sessions.
type AchievementDef struct {
	ID        string                      `json:"id"`
	Name      string                      `json:"name"`
	Category  AchievementCategory         `json:"category"`
	RewardCr  int64                       `json:"reward_tokens"`
	Predicate func(ProgressionState) bool `json:"-"`
}

// UnlockedAchievement records when a user earned an achievement.
type UnlockedAchievement struct {
	UserID     string    `json:"user_id"`
	ID         string    `json:"id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationType categorizes notifications.
type NotificationType string

const (
	NotifyLevelUp     NotificationType = "level_up"
	NotifyAchievement NotificationType = "achievement"
	NotifyStreakSaved NotificationType = "streak_saved"
)

// Notification is a user-facing message waiting to be shown.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
	Shown     bool             `json:"shown"`
}

// NotificationPolicy governs how often a user is notified.
type NotificationPolicy struct {
	MaxPerDay  int    `json:"max_per_day"`
	QuietStart string `json:"quiet_start"` // "22:00"
	QuietEnd   string `json:"quiet_end"`   // "08:00"
}

// DefaultNotificationPolicy returns one notification per day outside 22:00–08:00.
func DefaultNotificationPolicy() NotificationPolicy {
	return NotificationPolicy{
		MaxPerDay:  1,
		QuietStart: "22:00",
		QuietEnd:   "08:00",
	}
}
