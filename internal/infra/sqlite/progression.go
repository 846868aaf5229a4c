package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/glow-labs/glow/internal/domain"
)

// ─── Progression ────────────────────────────────────────────────────────────

const progressionColumns = `user_id, xp, level, tokens, streak_days, longest_streak, last_activity,
	streak_savers, common_bags, rare_bags, glow_cards, total_sessions, total_minutes, updated_at`

// GetProgression returns the user's state or domain.ErrNotFound.
func (d *DB) GetProgression(ctx context.Context, userID string) (*domain.ProgressionState, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+progressionColumns+` FROM progression WHERE user_id = ?`, userID)
	st, err := scanProgression(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("progression %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.Upstream("get progression", err)
	}
	return st, nil
}

// CreateProgression inserts state unless the user already has a record.
func (d *DB) CreateProgression(ctx context.Context, st domain.ProgressionState) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO progression (`+progressionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		progressionArgs(st)...,
	)
	if err != nil {
		return false, domain.Upstream("create progression", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// SaveProgression upserts the state and appends ledger entries and
// achievements in a single transaction.
func (d *DB) SaveProgression(ctx context.Context, c domain.Commit) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Upstream("begin save", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO progression (`+progressionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			xp=excluded.xp,
			level=excluded.level,
			tokens=excluded.tokens,
			streak_days=excluded.streak_days,
			longest_streak=excluded.longest_streak,
			last_activity=excluded.last_activity,
			streak_savers=excluded.streak_savers,
			common_bags=excluded.common_bags,
			rare_bags=excluded.rare_bags,
			glow_cards=excluded.glow_cards,
			total_sessions=excluded.total_sessions,
			total_minutes=excluded.total_minutes,
			updated_at=excluded.updated_at`,
		progressionArgs(c.State)...,
	); err != nil {
		return domain.Upstream("upsert progression", err)
	}

	for _, e := range c.Ledger {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO token_ledger (id, user_id, type, amount, balance, ref, description, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.UserID, string(e.Type), e.Amount, e.Balance, e.Ref, e.Description, e.Timestamp.Unix(),
		); err != nil {
			return domain.Upstream("append ledger", err)
		}
	}

	for _, a := range c.Achievements {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO achievements (user_id, id, unlocked_at) VALUES (?, ?, ?)`,
			a.UserID, a.ID, a.UnlockedAt.Unix(),
		); err != nil {
			return domain.Upstream("insert achievement", err)
		}
	}

	return domain.Upstream("commit save", tx.Commit())
}

// ListLapsing returns users with a live streak and a saver whose last
// activity fell on lastActive's calendar day.
func (d *DB) ListLapsing(ctx context.Context, lastActive time.Time) ([]domain.ProgressionState, error) {
	start, end := dayBounds(lastActive)
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+progressionColumns+` FROM progression
		 WHERE streak_days > 0 AND streak_savers > 0
		   AND last_activity >= ? AND last_activity < ?
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
	return []any{
		st.UserID, st.XP, st.Level, st.Tokens, st.StreakDays, st.LongestStreak,
		nullableUnix(st.LastActivityDate), st.StreakSavers, st.CommonBags, st.RareBags,
		st.GlowCards, st.TotalSessions, st.TotalMinutes, st.UpdatedAt.Unix(),
	}
}

func scanProgression(s scanner) (*domain.ProgressionState, error) {
	var st domain.ProgressionState
	var last sql.NullInt64
	var updated int64
	err := s.Scan(&st.UserID, &st.XP, &st.Level, &st.Tokens, &st.StreakDays, &st.LongestStreak,
		&last, &st.StreakSavers, &st.CommonBags, &st.RareBags, &st.GlowCards,
		&st.TotalSessions, &st.TotalMinutes, &updated)
	if err != nil {
		return nil, err
	}
	st.LastActivityDate = fromUnix(last)
	st.UpdatedAt = time.Unix(updated, 0).UTC()
	return &st, nil
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// LedgerEntries returns up to limit entries, newest first. limit <= 0 means all.
func (d *DB) LedgerEntries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, type, amount, balance, ref, description, timestamp
		 FROM token_ledger WHERE user_id = ? ORDER BY seq DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, domain.Upstream("query ledger", err)
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		var e domain.LedgerEntry
		var ts int64
		var typ string
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &e.Amount, &e.Balance, &e.Ref, &e.Description, &ts); err != nil {
			return nil, domain.Upstream("scan ledger", err)
		}
		e.Type = domain.TxType(typ)
		e.Timestamp = time.Unix(ts, 0).UTC()
		entries = append(entries, e)
	}
	return entries, domain.Upstream("query ledger", rows.Err())
}

// ─── Achievements ───────────────────────────────────────────────────────────

// UnlockedAchievements returns the user's achievements, newest first.
func (d *DB) UnlockedAchievements(ctx context.Context, userID string) ([]domain.UnlockedAchievement, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, id, unlocked_at FROM achievements
		 WHERE user_id = ? ORDER BY unlocked_at DESC, rowid DESC`, userID,
	)
	if err != nil {
		return nil, domain.Upstream("query achievements", err)
	}
	defer rows.Close()

	out := []domain.UnlockedAchievement{}
	for rows.Next() {
		var a domain.UnlockedAchievement
		var at int64
		if err := rows.Scan(&a.UserID, &a.ID, &at); err != nil {
			return nil, domain.Upstream("scan achievement", err)
		}
		a.UnlockedAt = time.Unix(at, 0).UTC()
		out = append(out, a)
	}
	return out, domain.Upstream("query achievements", rows.Err())
}
