package reward

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/glow-labs/glow/internal/domain"
)

// Config tunes the engine. The zero value uses the defaults.
type Config struct {
	Location  *time.Location
	Durations []int
	Loot      LootConfig
}

// Engine binds the pure reward functions to a clock, a location for
// calendar days and the configured loot rules.
type Engine struct {
	clock domain.Clock
	cfg   Config
}

// NewEngine creates an engine. A nil clock uses the system clock.
func NewEngine(clock domain.Clock, cfg Config) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if len(cfg.Durations) == 0 {
		cfg.Durations = DefaultDurations
	}
	cfg.Durations = slices.Clone(cfg.Durations)
	if cfg.Loot == (LootConfig{}) {
		cfg.Loot = DefaultLootConfig()
	}
	return &Engine{clock: clock, cfg: cfg}
}

// Now returns the engine clock's time in the engine location.
func (e *Engine) Now() time.Time { return e.clock.Now().In(e.cfg.Location) }

// Location returns the timezone used for calendar days.
func (e *Engine) Location() *time.Location { return e.cfg.Location }

// LootConfig returns the loot rules.
func (e *Engine) LootConfig() LootConfig { return e.cfg.Loot }

// Preview computes the reward for a session at the given streak using the
// engine's accepted durations. Nothing is applied.
func (e *Engine) Preview(a domain.ActivityRecord, currentStreak int) (domain.RewardOutcome, error) {
	return sessionReward(a, currentStreak, e.cfg.Durations)
}

// Evaluate computes the outcome of a session completed now and the state
// after applying it. The input state is not modified.
//
// The streak multiplier uses the streak that is still alive today, so a
// lapsed streak earns no bonus on the session that resets it. A user who
// missed exactly one day and holds a streak saver spends it here, as if
// the missed day had been yesterday.
func (e *Engine) Evaluate(state domain.ProgressionState, a domain.ActivityRecord) (domain.RewardOutcome, domain.ProgressionState, error) {
	if err := state.Validate(); err != nil {
		return domain.RewardOutcome{}, state, err
	}

	now := e.Now()
	last, saverUsed := e.rescueStreak(state, now)
	live := EffectiveStreak(last, now, e.cfg.Location, state.StreakDays)

	out, err := sessionReward(a, live, e.cfg.Durations)
	if err != nil {
		return domain.RewardOutcome{}, state, err
	}

	streak, first := NextStreak(last, now, e.cfg.Location, state.StreakDays)
	xp, level, up := ApplyXP(state.XP, state.Level, out.XPGained)

	out.NewStreak = streak
	out.IsFirstActivityOfDay = first
	out.LeveledUp = up
	out.NewLevel = level
	out.NewXP = xp
	out.SaverUsed = saverUsed

	next := state
	if saverUsed {
		next.StreakSavers--
	}
	next.XP = xp
	next.Level = level
	next.Tokens += out.TokensEarned
	next.StreakDays = streak
	if streak > next.LongestStreak {
		next.LongestStreak = streak
	}
	next.LastActivityDate = now
	next.TotalSessions++
	next.TotalMinutes += a.DurationMinutes
	if first {
		next.GlowCards++
	}
	next.UpdatedAt = now

	return out, next, nil
}

// CanRescue reports whether a streak saver would keep state's streak alive
// at now: the streak is positive, a saver is held and exactly one calendar
// day was missed.
func (e *Engine) CanRescue(state domain.ProgressionState, now time.Time) bool {
	return state.StreakDays > 0 && state.StreakSavers > 0 && state.HasActivity() &&
		DaysBetween(state.LastActivityDate, now, e.cfg.Location) == 2
}

// rescueStreak returns the last activity date the streak rules should see.
func (e *Engine) rescueStreak(state domain.ProgressionState, now time.Time) (time.Time, bool) {
	if !e.CanRescue(state, now) {
		return state.LastActivityDate, false
	}
	return CalendarDay(now, e.cfg.Location).AddDate(0, 0, -1), true
}

// Reveal opens one glow card for state using the engine's loot rules.
func (e *Engine) Reveal(rng domain.RandomSource, state domain.ProgressionState) (domain.CardReveal, domain.ProgressionState, error) {
	reveal, next, err := Reveal(rng, state, e.cfg.Loot)
	if err != nil {
		return reveal, state, err
	}
	next.UpdatedAt = e.Now()
	return reveal, next, nil
}

// ─── Clock & Randomness ─────────────────────────────────────────────────────

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a settable clock for tests and replays.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock returns a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{t: t} }

// Now returns the frozen time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// NewRandom returns a deterministic source for a seed.
func NewRandom(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// LockedRandom makes a *rand.Rand safe to share between requests.
type LockedRandom struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedRandom wraps rng. A nil rng draws a seed from the runtime source.
func NewLockedRandom(rng *rand.Rand) *LockedRandom {
	if rng == nil {
		rng = NewRandom(rand.Uint64())
	}
	return &LockedRandom{rng: rng}
}

// Float64 returns a uniform draw in [0,1).
func (r *LockedRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// IntN returns a uniform draw in [0,n).
func (r *LockedRandom) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}
