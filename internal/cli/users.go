package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newEnrollCmd(src configSource) *cobra.Command {
	return &cobra.Command{
		Use:   "enroll USER",
		Short: "Create a level-1 progression record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd.Context(), src)
			if err != nil {
				return err
			}
			defer closeFn()

			_, created, err := svc.Enroll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "enrolled %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already enrolled\n", args[0])
			}
			return nil
		},
	}
}

func newRecordCmd(src configSource) *cobra.Command {
	var act activityFlags
	cmd := &cobra.Command{
		Use:   "record USER",
		Short: "Record a completed session and apply its reward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := act.record()
			if err != nil {
				return err
			}
			svc, closeFn, err := openService(cmd.Context(), src)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.RecordSession(cmd.Context(), args[0], a)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			out := res.Outcome
			fmt.Fprintf(w, "+%d XP  +%d tokens  streak %d\n", out.XPGained, out.TokensEarned, out.NewStreak)
			if out.SaverUsed {
				fmt.Fprintln(w, "streak saver used: streak kept alive")
			}
			if out.LeveledUp {
				fmt.Fprintf(w, "level up! now level %d\n", out.NewLevel)
			}
			if out.IsFirstActivityOfDay {
				fmt.Fprintln(w, "first session today: +1 glow card")
			}
			for _, ach := range res.Achievements {
				fmt.Fprintf(w, "achievement unlocked: %s (+%d tokens)\n", ach.Name, ach.RewardCr)
			}
			return nil
		},
	}
	act.register(cmd)
	return cmd
}

func newRevealCmd(src configSource) *cobra.Command {
	return &cobra.Command{
		Use:   "reveal USER",
		Short: "Open one of the user's glow cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd.Context(), src)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.RevealCard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for i, d := range res.Reveal.Draws {
				fmt.Fprintf(w, "pick %d: %s\n", i+1, describeDraw(d))
			}
			fmt.Fprintf(w, "%d picks, %d tokens, %d cards left\n",
				res.Reveal.Picks, res.Reveal.TokensGranted, res.Progression.GlowCards)
			return nil
		},
	}
}

func newStatusCmd(src configSource) *cobra.Command {
	return &cobra.Command{
		Use:   "status USER",
		Short: "Show a user's progression and achievements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd.Context(), src)
			if err != nil {
				return err
			}
			defer closeFn()

			st, err := svc.Progression(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if err := printState(w, st); err != nil {
				return err
			}

			list, err := svc.Achievements(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			unlocked := 0
			for _, a := range list {
				if a.Unlocked {
					unlocked++
				}
			}
			fmt.Fprintf(w, "\nAchievements: %d/%d\n", unlocked, len(list))
			for _, a := range list {
				if a.Unlocked {
					fmt.Fprintf(w, "  %s  %s\n", a.UnlockedAt.Format("2006-01-02"), a.Name)
				}
			}
			return nil
		},
	}
}

func newLedgerCmd(src configSource) *cobra.Command {
	var (
		limit  int
		verify bool
	)
	cmd := &cobra.Command{
		Use:   "ledger USER",
		Short: "List a user's token grants, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd.Context(), src)
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := svc.Ledger(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "No token grants yet.")
			} else {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tTYPE\tAMOUNT\tBALANCE\tDESCRIPTION")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t+%d\t%d\t%s\n",
						e.Timestamp.Format("2006-01-02 15:04"), e.Type, e.Amount, e.Balance, e.Description)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if verify {
				if err := svc.VerifyLedger(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("ledger mismatch: %w", err)
				}
				fmt.Fprintln(w, "ledger balances reconcile")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	cmd.Flags().BoolVar(&verify, "verify", false, "Check the ledger against the stored balance")
	return cmd
}

func newSaversCmd(src configSource) *cobra.Command {
	return &cobra.Command{
		Use:   "apply-savers",
		Short: "Run the streak-saver sweep now",
		Long:  `Consume a streak saver for every user who missed yesterday and holds one.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd.Context(), src)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := svc.ApplyStreakSavers(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d streaks\n", n)
			return err
		},
	}
}
