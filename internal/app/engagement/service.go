// Package engagement orchestrates the reward engine with persistence:
// sessions, card reveals, achievements, notifications and the nightly
// streak-saver sweep. It wires domain logic with infrastructure, never the
// reverse.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glow-labs/glow/internal/app/credit"
	"github.com/glow-labs/glow/internal/app/reward"
	"github.com/glow-labs/glow/internal/domain"
	"github.com/glow-labs/glow/internal/infra/metrics"
)

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Engine *reward.Engine
	Random domain.RandomSource
	Policy *domain.NotificationPolicy
	Logger *zap.Logger
}

// Service is the application entry point for per-user progression.
type Service struct {
	store        domain.Store
	engine       *reward.Engine
	rng          domain.RandomSource
	achievements *AchievementService
	notifier     *NotificationService
	ledger       *credit.Service
	log          *zap.Logger
	locks        *userLocks
}

// NewService creates the engagement service.
func NewService(store domain.Store, opts Options) *Service {
	if opts.Engine == nil {
		opts.Engine = reward.NewEngine(nil, reward.Config{})
	}
	if opts.Random == nil {
		opts.Random = reward.NewLockedRandom(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	policy := domain.DefaultNotificationPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	eng := opts.Engine
	return &Service{
		store:        store,
		engine:       eng,
		rng:          opts.Random,
		achievements: NewAchievementService(),
		notifier:     NewNotificationService(store, policy, eng.Location(), eng, opts.Logger),
		ledger:       credit.NewService(store),
		log:          opts.Logger,
		locks:        newUserLocks(),
	}
}

// Engine returns the reward engine the service applies.
func (s *Service) Engine() *reward.Engine { return s.engine }

// SessionResult is what RecordSession applied.
type SessionResult struct {
	Outcome      domain.RewardOutcome    `json:"outcome"`
	Progression  domain.ProgressionState `json:"progression"`
	Achievements []domain.AchievementDef `json:"achievements"`
	Ledger       []domain.LedgerEntry    `json:"ledger"`
}

// RevealResult is what RevealCard applied.
type RevealResult struct {
	Reveal       domain.CardReveal       `json:"reveal"`
	Progression  domain.ProgressionState `json:"progression"`
	Achievements []domain.AchievementDef `json:"achievements"`
	Ledger       []domain.LedgerEntry    `json:"ledger"`
}

// AchievementStatus pairs a catalog entry with the user's unlock time.
type AchievementStatus struct {
	domain.AchievementDef
	Unlocked   bool      `json:"unlocked"`
	UnlockedAt time.Time `json:"unlocked_at,omitempty"`
}

// ─── Enrollment ─────────────────────────────────────────────────────────────

func validUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", domain.ErrInvalidInput)
	}
	if len(userID) > 128 {
		return fmt.Errorf("%w: user id longer than 128 bytes", domain.ErrInvalidInput)
	}
	return nil
}

// Enroll creates a level-1 record for userID. Enrolling twice is a no-op;
// created reports whether a record was written.
func (s *Service) Enroll(ctx context.Context, userID string) (state *domain.ProgressionState, created bool, err error) {
	if err := validUserID(userID); err != nil {
		return nil, false, err
	}
	created, err = s.store.CreateProgression(ctx, domain.NewProgressionState(userID, s.engine.Now()))
	if err != nil {
		return nil, false, fmt.Errorf("enroll %s: %w", userID, err)
	}
	state, err = s.store.GetProgression(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("enroll %s: %w", userID, err)
	}
	if created {
		s.log.Info("user enrolled", zap.String("user", userID))
	}
	return state, created, nil
}

// Progression returns the user's state, or domain.ErrNotFound.
func (s *Service) Progression(ctx context.Context, userID string) (*domain.ProgressionState, error) {
	if err := validUserID(userID); err != nil {
		return nil, err
	}
	return s.store.GetProgression(ctx, userID)
}

// Preview computes a session reward without touching any user state.
func (s *Service) Preview(a domain.ActivityRecord, currentStreak int) (domain.RewardOutcome, error) {
	return s.engine.Preview(a, currentStreak)
}

// ─── Sessions ───────────────────────────────────────────────────────────────

// RecordSession applies a completed session to the user's progression.
// Outcome, ledger entries and achievements persist together or not at all;
// notifications follow on a best-effort basis.
func (s *Service) RecordSession(ctx context.Context, userID string, a domain.ActivityRecord) (*SessionResult, error) {
	if err := validUserID(userID); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	state, unlocked, err := s.load(ctx, userID)
	if err != nil {
		metrics.SessionsRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, fmt.Errorf("record session: %w", err)
	}

	outcome, next, err := s.engine.Evaluate(*state, a)
	if err != nil {
		metrics.SessionsRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, fmt.Errorf("record session: %w", err)
	}

	now := next.UpdatedAt
	b := credit.NewBuilder(userID, state.Tokens, "session-"+uuid.NewString(), now)
	if err := b.Add(domain.TxSessionReward, outcome.TokensEarned,
		fmt.Sprintf("%s %dm", a.Type, a.DurationMinutes)); err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}
	fresh, records, err := s.grantAchievements(&next, unlocked, b, now)
	if err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	if err := s.save(ctx, domain.Commit{State: next, Ledger: b.Entries(), Achievements: records}); err != nil {
		metrics.SessionsRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, fmt.Errorf("record session: %w", err)
	}

	metrics.SessionsRecorded.WithLabelValues(string(a.Type)).Inc()
	metrics.SessionMinutes.WithLabelValues(string(a.Type)).Add(float64(a.DurationMinutes))
	metrics.XPGranted.Add(float64(outcome.XPGained))
	observeLedger(b.Entries())
	if outcome.IsFirstActivityOfDay {
		metrics.StreakLength.Observe(float64(outcome.NewStreak))
	}

	s.log.Info("session recorded",
		zap.String("user", userID),
		zap.String("type", string(a.Type)),
		zap.Int("minutes", a.DurationMinutes),
		zap.Int64("xp", outcome.XPGained),
		zap.Int64("tokens", outcome.TokensEarned),
		zap.Int("streak", outcome.NewStreak),
		zap.Bool("leveled_up", outcome.LeveledUp),
		zap.Bool("saver_used", outcome.SaverUsed))

	if outcome.SaverUsed {
		s.streakSaved(ctx, userID, outcome.NewStreak-1)
	}
	if outcome.LeveledUp {
		metrics.LevelUps.Inc()
		s.notify(ctx, domain.Notification{
			UserID: userID,
			Type:   domain.NotifyLevelUp,
			Title:  fmt.Sprintf("Level %d", outcome.NewLevel),
			Body:   fmt.Sprintf("You reached level %d. Keep glowing!", outcome.NewLevel),
		})
	}
	s.notifyAchievements(ctx, userID, fresh)

	return &SessionResult{Outcome: outcome, Progression: next, Achievements: fresh, Ledger: b.Entries()}, nil
}

// ─── Glow Cards ─────────────────────────────────────────────────────────────

// RevealCard opens one of the user's glow cards.
func (s *Service) RevealCard(ctx context.Context, userID string) (*RevealResult, error) {
	if err := validUserID(userID); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	state, unlocked, err := s.load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reveal card: %w", err)
	}

	reveal, next, err := s.engine.Reveal(s.rng, *state)
	if err != nil {
		return nil, fmt.Errorf("reveal card: %w", err)
	}

	now := next.UpdatedAt
	b := credit.NewBuilder(userID, state.Tokens, "reveal-"+uuid.NewString(), now)
	for _, d := range reveal.Draws {
		switch {
		case d.Converted && d.Kind == domain.LootStreakSaver:
			err = b.Add(domain.TxSaverOverflow, d.Amount, "streak saver overflow")
		case d.Converted:
			err = b.Add(domain.TxLootTokens, d.Amount, "extra pick overflow")
		case d.Kind == domain.LootTokens:
			err = b.Add(domain.TxLootTokens, d.Amount, "glow card tokens")
		}
		if err != nil {
			return nil, fmt.Errorf("reveal card: %w", err)
		}
	}
	fresh, records, err := s.grantAchievements(&next, unlocked, b, now)
	if err != nil {
		return nil, fmt.Errorf("reveal card: %w", err)
	}

	if err := s.save(ctx, domain.Commit{State: next, Ledger: b.Entries(), Achievements: records}); err != nil {
		return nil, fmt.Errorf("reveal card: %w", err)
	}

	metrics.CardsRevealed.Inc()
	for _, d := range reveal.Draws {
		metrics.LootDraws.WithLabelValues(string(d.Kind)).Inc()
	}
	observeLedger(b.Entries())

	s.log.Info("glow card revealed",
		zap.String("user", userID),
		zap.Int("picks", reveal.Picks),
		zap.Int64("tokens", reveal.TokensGranted))
	s.notifyAchievements(ctx, userID, fresh)

	return &RevealResult{Reveal: reveal, Progression: next, Achievements: fresh, Ledger: b.Entries()}, nil
}

// ─── Streak Savers ──────────────────────────────────────────────────────────

// ApplyStreakSavers keeps alive the streaks of users who missed yesterday
// and hold a streak saver: one saver is consumed and the last activity moves
// to yesterday, so a session today continues the streak.
// Returns how many users were saved. Per-user failures are joined.
func (s *Service) ApplyStreakSavers(ctx context.Context) (int, error) {
	now := s.engine.Now()
	loc := s.engine.Location()
	today := reward.CalendarDay(now, loc)
	yesterday := today.AddDate(0, 0, -1)
	missed := today.AddDate(0, 0, -2)

	candidates, err := s.store.ListLapsing(ctx, missed)
	if err != nil {
		return 0, fmt.Errorf("streak savers: %w", err)
	}

	saved := 0
	var errs []error
	for _, c := range candidates {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		ok, err := s.applySaver(ctx, c.UserID, now, yesterday)
		if err != nil {
			s.log.Warn("streak saver failed", zap.String("user", c.UserID), zap.Error(err))
			errs = append(errs, fmt.Errorf("user %s: %w", c.UserID, err))
			continue
		}
		if ok {
			saved++
		}
	}

	s.log.Info("streak saver sweep",
		zap.Int("candidates", len(candidates)),
		zap.Int("saved", saved))
	return saved, errors.Join(errs...)
}

func (s *Service) applySaver(ctx context.Context, userID string, now, yesterday time.Time) (bool, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	state, err := s.store.GetProgression(ctx, userID)
	if err != nil {
		return false, err
	}
	// The user may have meditated since the candidate list was read.
	if !s.engine.CanRescue(*state, now) {
		return false, nil
	}

	next := *state
	next.StreakSavers--
	next.LastActivityDate = yesterday
	next.UpdatedAt = now
	if err := s.save(ctx, domain.Commit{State: next}); err != nil {
		return false, err
	}

	s.streakSaved(ctx, userID, next.StreakDays)
	return true, nil
}

func (s *Service) streakSaved(ctx context.Context, userID string, days int) {
	metrics.StreakSaversUsed.Inc()
	s.notify(ctx, domain.Notification{
		UserID: userID,
		Type:   domain.NotifyStreakSaved,
		Title:  "Streak saved",
		Body:   fmt.Sprintf("A streak saver kept your %d-day streak alive.", days),
	})
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Ledger returns the user's recent token grants, newest first.
func (s *Service) Ledger(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if _, err := s.Progression(ctx, userID); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, userID, limit)
}

// VerifyLedger reconciles the user's ledger against their token balance.
func (s *Service) VerifyLedger(ctx context.Context, userID string) error {
	return s.ledger.Verify(ctx, userID)
}

// Achievements lists the whole catalog with the user's unlock state.
func (s *Service) Achievements(ctx context.Context, userID string) ([]AchievementStatus, error) {
	if _, err := s.Progression(ctx, userID); err != nil {
		return nil, err
	}
	unlocked, err := s.store.UnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	at := make(map[string]time.Time, len(unlocked))
	for _, u := range unlocked {
		at[u.ID] = u.UnlockedAt
	}
	out := make([]AchievementStatus, 0, s.achievements.TotalCount())
	for _, def := range s.achievements.Definitions() {
		t, ok := at[def.ID]
		out = append(out, AchievementStatus{AchievementDef: def, Unlocked: ok, UnlockedAt: t})
	}
	return out, nil
}

// Notifications returns the user's unshown notifications.
func (s *Service) Notifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if _, err := s.Progression(ctx, userID); err != nil {
		return nil, err
	}
	return s.notifier.Pending(ctx, userID, limit)
}

// MarkNotificationShown acknowledges a notification.
func (s *Service) MarkNotificationShown(ctx context.Context, userID string, id int64) error {
	if err := validUserID(userID); err != nil {
		return err
	}
	return s.notifier.MarkShown(ctx, userID, id)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Service) load(ctx context.Context, userID string) (*domain.ProgressionState, map[string]bool, error) {
	start := time.Now()
	state, err := s.store.GetProgression(ctx, userID)
	metrics.StoreLatency.WithLabelValues("get_progression").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, nil, err
	}
	list, err := s.store.UnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	unlocked := make(map[string]bool, len(list))
	for _, u := range list {
		unlocked[u.ID] = true
	}
	return state, unlocked, nil
}

func (s *Service) save(ctx context.Context, c domain.Commit) error {
	start := time.Now()
	err := s.store.SaveProgression(ctx, c)
	metrics.StoreLatency.WithLabelValues("save_progression").Observe(time.Since(start).Seconds())
	return err
}

// grantAchievements adds newly satisfied achievements to state and the
// ledger. Achievements grant tokens only.
func (s *Service) grantAchievements(state *domain.ProgressionState, unlocked map[string]bool, b *credit.Builder, now time.Time) ([]domain.AchievementDef, []domain.UnlockedAchievement, error) {
	fresh := s.achievements.Check(*state, unlocked)
	records := make([]domain.UnlockedAchievement, 0, len(fresh))
	for _, def := range fresh {
		if err := b.Add(domain.TxAchievement, def.RewardCr, def.Name); err != nil {
			return nil, nil, err
		}
		state.Tokens += def.RewardCr
		records = append(records, domain.UnlockedAchievement{UserID: state.UserID, ID: def.ID, UnlockedAt: now})
	}
	return fresh, records, nil
}

func (s *Service) notifyAchievements(ctx context.Context, userID string, fresh []domain.AchievementDef) {
	for _, def := range fresh {
		metrics.AchievementsUnlocked.WithLabelValues(string(def.Category)).Inc()
		s.notify(ctx, domain.Notification{
			UserID: userID,
			Type:   domain.NotifyAchievement,
			Title:  def.Name,
			Body:   fmt.Sprintf("Achievement unlocked: %s (+%d tokens)", def.Name, def.RewardCr),
		})
	}
}

// notify never fails the caller; the reward is already committed.
func (s *Service) notify(ctx context.Context, n domain.Notification) {
	if _, err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("notification failed",
			zap.String("user", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err))
	}
}

func observeLedger(entries []domain.LedgerEntry) {
	for _, e := range entries {
		metrics.TokensGranted.WithLabelValues(string(e.Type)).Add(float64(e.Amount))
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "upstream"
	}
}
