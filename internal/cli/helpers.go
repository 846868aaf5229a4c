package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/glow-labs/glow/internal/app/engagement"
	"github.com/glow-labs/glow/internal/app/reward"
	"github.com/glow-labs/glow/internal/daemon"
	"github.com/glow-labs/glow/internal/domain"
	"github.com/glow-labs/glow/internal/logging"
)

// configSource returns the --config flag value.
type configSource func() string

func (c configSource) load() (daemon.Config, error) {
	if path := c(); path != "" {
		return daemon.LoadConfigFile(path)
	}
	return daemon.LoadConfig()
}

// openService opens the configured store and wraps it in the engagement
// service, without starting the server or jobs.
func openService(ctx context.Context, src configSource) (*engagement.Service, func(), error) {
	cfg, err := src.load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	store, err := daemon.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	svc, err := daemon.NewEngagement(cfg, store, log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return svc, func() {
		store.Close()
		_ = log.Sync()
	}, nil
}

func printState(w io.Writer, st *domain.ProgressionState) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "User:\t%s\n", st.UserID)
	p := reward.Progress(st.XP, st.Level)
	fmt.Fprintf(tw, "Level:\t%d (%d XP, next at %d)\n", p.Level, p.XP, p.NextLevelXP)
	fmt.Fprintf(tw, "Progress:\t%.0f%% (%d XP to go)\n", p.ProgressPct, p.XPToNext)
	fmt.Fprintf(tw, "Tokens:\t%d\n", st.Tokens)
	fmt.Fprintf(tw, "Streak:\t%d days (longest %d)\n", st.StreakDays, st.LongestStreak)
	if st.HasActivity() {
		fmt.Fprintf(tw, "Last session:\t%s\n", st.LastActivityDate.Format("2006-01-02 15:04"))
	} else {
		fmt.Fprintf(tw, "Last session:\tnever\n")
	}
	fmt.Fprintf(tw, "Glow cards:\t%d\n", st.GlowCards)
	fmt.Fprintf(tw, "Streak savers:\t%d\n", st.StreakSavers)
	fmt.Fprintf(tw, "Bags:\t%d common, %d rare\n", st.CommonBags, st.RareBags)
	fmt.Fprintf(tw, "Sessions:\t%d (%d minutes)\n", st.TotalSessions, st.TotalMinutes)
	return tw.Flush()
}

func printOutcome(w io.Writer, out domain.RewardOutcome) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Base XP:\t%d\n", out.BaseXP)
	fmt.Fprintf(tw, "Breath bonus:\t%d\n", out.BreathBonus)
	fmt.Fprintf(tw, "Streak multiplier:\t%.1fx\n", out.StreakMultiplier)
	fmt.Fprintf(tw, "XP gained:\t%d\n", out.XPGained)
	fmt.Fprintf(tw, "Tokens earned:\t%d\n", out.TokensEarned)
	return tw.Flush()
}

func describeDraw(d domain.LootDraw) string {
	switch {
	case d.Converted:
		return fmt.Sprintf("%s -> %d tokens", d.Kind, d.Amount)
	case d.Kind == domain.LootTokens:
		return fmt.Sprintf("%d tokens", d.Amount)
	}
	return string(d.Kind)
}
