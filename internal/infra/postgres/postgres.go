// Package postgres implements domain.Store on PostgreSQL through a pgxpool
// connection pool, for deployments that run more than one daemon.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glow-labs/glow/internal/domain"
)

//go:embed schema.sql
var schema string

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// Store is a PostgreSQL-backed domain.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and applies the schema.
func Open(ctx context.Context, dsn string, pc PoolConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if pc.MaxConns > 0 {
		poolConfig.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		poolConfig.MinConns = pc.MinConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return domain.Upstream("ping postgres", s.pool.Ping(ctx))
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ─── Progression ────────────────────────────────────────────────────────────

const progressionColumns = `user_id, xp, level, tokens, streak_days, longest_streak, last_activity,
	streak_savers, common_bags, rare_bags, glow_cards, total_sessions, total_minutes, updated_at`

func (s *Store) GetProgression(ctx context.Context, userID string) (*domain.ProgressionState, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+progressionColumns+` FROM progression WHERE user_id = $1`, userID)
	st, err := scanProgression(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("progression %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.Upstream("get progression", err)
	}
	return st, nil
}

func (s *Store) CreateProgression(ctx context.Context, st domain.ProgressionState) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO progression (`+progressionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (user_id) DO NOTHING`,
		progressionArgs(st)...,
	)
	if err != nil {
		return false, domain.Upstream("create progression", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SaveProgression writes the commit in one transaction. Ledger and
// achievement rows go out as a single batch.
func (s *Store) SaveProgression(ctx context.Context, c domain.Commit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Upstream("begin save", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO progression (`+progressionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (user_id) DO UPDATE SET
			xp = EXCLUDED.xp,
			level = EXCLUDED.level,
			tokens = EXCLUDED.tokens,
			streak_days = EXCLUDED.streak_days,
			longest_streak = EXCLUDED.longest_streak,
			last_activity = EXCLUDED.last_activity,
			streak_savers = EXCLUDED.streak_savers,
			common_bags = EXCLUDED.common_bags,
			rare_bags = EXCLUDED.rare_bags,
			glow_cards = EXCLUDED.glow_cards,
			total_sessions = EXCLUDED.total_sessions,
			total_minutes = EXCLUDED.total_minutes,
			updated_at = EXCLUDED.updated_at`,
		progressionArgs(c.State)...,
	); err != nil {
		return domain.Upstream("upsert progression", err)
	}

	batch := &pgx.Batch{}
	for _, e := range c.Ledger {
		batch.Queue(
			`INSERT INTO token_ledger (id, user_id, type, amount, balance, ref, description, timestamp)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.UserID, string(e.Type), e.Amount, e.Balance, e.Ref, e.Description, e.Timestamp,
		)
	}
	for _, a := range c.Achievements {
		batch.Queue(
			`INSERT INTO achievements (user_id, id, unlocked_at) VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, id) DO NOTHING`,
			a.UserID, a.ID, a.UnlockedAt,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return domain.Upstream("append ledger", err)
		}
	}

	return domain.Upstream("commit save", tx.Commit(ctx))
}

func (s *Store) ListLapsing(ctx context.Context, lastActive time.Time) ([]domain.ProgressionState, error) {
	y, m, d := lastActive.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, lastActive.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := s.pool.Query(ctx,
		`SELECT `+progressionColumns+` FROM progression
		 WHERE streak_days > 0 AND streak_savers > 0
		   AND last_activity >= $1 AND last_activity < $2
		 ORDER BY user_id`, start, end,
	)
	if err != nil {
		return nil, domain.Upstream("list lapsing", err)
	}
	defer rows.Close()

	var out []domain.ProgressionState
	for rows.Next() {
		st, err := scanProgression(rows)
		if err != nil {
			return nil, domain.Upstream("scan progression", err)
		}
		out = append(out, *st)
	}
	return out, domain.Upstream("list lapsing", rows.Err())
}

func progressionArgs(st domain.ProgressionState) []any {
	var last *time.Time
	if !st.LastActivityDate.IsZero() {
		last = &st.LastActivityDate
	}
	return []any{
		st.UserID, st.XP, st.Level, st.Tokens, st.StreakDays, st.LongestStreak,
		last, st.StreakSavers, st.CommonBags, st.RareBags,
		st.GlowCards, st.TotalSessions, st.TotalMinutes, st.UpdatedAt,
	}
}

func scanProgression(row pgx.Row) (*domain.ProgressionState, error) {
	var st domain.ProgressionState
	var last *time.Time
	err := row.Scan(&st.UserID, &st.XP, &st.Level, &st.Tokens, &st.StreakDays, &st.LongestStreak,
		&last, &st.StreakSavers, &st.CommonBags, &st.RareBags, &st.GlowCards,
		&st.TotalSessions, &st.TotalMinutes, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if last != nil {
		st.LastActivityDate = *last
	}
	return &st, nil
}

// ─── Ledger & Achievements ──────────────────────────────────────────────────

func (s *Store) LedgerEntries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, type, amount, balance, ref, description, timestamp
		 FROM token_ledger WHERE user_id = $1 ORDER BY seq DESC LIMIT $2`,
		userID, lim,
	)
	if err != nil {
		return nil, domain.Upstream("query ledger", err)
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		var e domain.LedgerEntry
		var typ string
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &e.Amount, &e.Balance, &e.Ref, &e.Description, &e.Timestamp); err != nil {
			return nil, domain.Upstream("scan ledger", err)
		}
		e.Type = domain.TxType(typ)
		entries = append(entries, e)
	}
	return entries, domain.Upstream("query ledger", rows.Err())
}

func (s *Store) UnlockedAchievements(ctx context.Context, userID string) ([]domain.UnlockedAchievement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, id, unlocked_at FROM achievements
		 WHERE user_id = $1 ORDER BY unlocked_at DESC, id`, userID,
	)
	if err != nil {
		return nil, domain.Upstream("query achievements", err)
	}
	defer rows.Close()

	out := []domain.UnlockedAchievement{}
	for rows.Next() {
		var a domain.UnlockedAchievement
		if err := rows.Scan(&a.UserID, &a.ID, &a.UnlockedAt); err != nil {
			return nil, domain.Upstream("scan achievement", err)
		}
		out = append(out, a)
	}
	return out, domain.Upstream("query achievements", rows.Err())
}

// ─── Notifications ──────────────────────────────────────────────────────────

func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, type, title, body, created_at, shown)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		n.UserID, string(n.Type), n.Title, n.Body, n.CreatedAt, n.Shown,
	).Scan(&id)
	return id, domain.Upstream("insert notification", err)
}

func (s *Store) CountNotificationsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&count)
	return count, domain.Upstream("count notifications", err)
}

func (s *Store) PendingNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, type, title, body, created_at, shown
		 FROM notifications WHERE user_id = $1 AND NOT shown
		 ORDER BY created_at, id LIMIT $2`, userID, lim,
	)
	if err != nil {
		return nil, domain.Upstream("query notifications", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Body, &n.CreatedAt, &n.Shown); err != nil {
			return nil, domain.Upstream("scan notification", err)
		}
		n.Type = domain.NotificationType(typ)
		out = append(out, n)
	}
	return out, domain.Upstream("query notifications", rows.Err())
}

func (s *Store) MarkNotificationShown(ctx context.Context, userID string, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET shown = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return domain.Upstream("mark notification", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

var _ domain.Store = (*Store)(nil)
