package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glow-labs/glow/internal/app/reward"
	"github.com/glow-labs/glow/internal/daemon"
	"github.com/glow-labs/glow/internal/domain"
)

// activityFlags are shared by preview and record.
type activityFlags struct {
	typ     string
	minutes int
	breath  int
	tracked bool
}

func (f *activityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.typ, "type", "t", "calm", "Activity type: calm, focus or sleep")
	cmd.Flags().IntVarP(&f.minutes, "minutes", "m", 10, "Session length in minutes")
	cmd.Flags().IntVar(&f.breath, "breath", 0, "Breath score 0-100")
	cmd.Flags().BoolVar(&f.tracked, "tracked", false, "Breath tracking was used")
}

func (f *activityFlags) record() (domain.ActivityRecord, error) {
	typ, err := domain.ParseActivityType(f.typ)
	if err != nil {
		return domain.ActivityRecord{}, err
	}
	return domain.ActivityRecord{
		Type:               typ,
		DurationMinutes:    f.minutes,
		BreathScore:        f.breath,
		UsedBreathTracking: f.tracked,
	}, nil
}

func newPreviewCmd(src configSource) *cobra.Command {
	var (
		act    activityFlags
		streak int
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the reward a session would earn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := src.load()
			if err != nil {
				return err
			}
			eng, err := daemon.NewEngine(cfg)
			if err != nil {
				return err
			}
			a, err := act.record()
			if err != nil {
				return err
			}
			out, err := eng.Preview(a, streak)
			if err != nil {
				return err
			}
			return printOutcome(cmd.OutOrStdout(), out)
		},
	}
	act.register(cmd)
	cmd.Flags().IntVar(&streak, "streak", 0, "Current streak in days")
	return cmd
}

func newSimulateCmd(src configSource) *cobra.Command {
	var (
		cards int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Open many glow cards for one synthetic user and report the loot",
		Long: `Reveal glow cards with a seeded random source and print how often each
kind was drawn next to the share the loot table expects. Streak savers accumulate, so overflow shows up once the cap
is reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cards <= 0 {
				return fmt.Errorf("%w: --cards must be positive", domain.ErrInvalidInput)
			}
			cfg, err := src.load()
			if err != nil {
				return err
			}
			eng, err := daemon.NewEngine(cfg)
			if err != nil {
				return err
			}

			rng := reward.NewRandom(seed)
			state := domain.NewProgressionState("simulated", eng.Now())
			state.GlowCards = cards

			kinds := map[domain.LootKind]int{}
			converted := map[domain.LootKind]int{}
			picks, draws := 0, 0
			for i := 0; i < cards; i++ {
				var reveal domain.CardReveal
				reveal, state, err = eng.Reveal(rng, state)
				if err != nil {
					return err
				}
				picks += reveal.Picks
				for _, d := range reveal.Draws {
					draws++
					kinds[d.Kind]++
					if d.Converted {
						converted[d.Kind]++
					}
				}
			}

			weights := reward.Weights(reward.DefaultLootTable)
			names := make([]string, 0, len(weights))
			for k := range weights {
				names = append(names, string(k))
			}
			sort.Strings(names)

			w := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tCOUNT\tCONVERTED\tSHARE\tEXPECTED")
			for _, name := range names {
				k := domain.LootKind(name)
				fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\t%.1f%%\n", k, kinds[k], converted[k],
					100*float64(kinds[k])/float64(draws), 100*weights[k])
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(w, "\ncards: %d  draws: %d  avg picks: %.2f\n", cards, draws, float64(picks)/float64(cards))
			fmt.Fprintf(w, "tokens: %d  savers: %d  bags: %d common, %d rare\n",
				state.Tokens, state.StreakSavers, state.CommonBags, state.RareBags)
			return nil
		},
	}
	cmd.Flags().IntVarP(&cards, "cards", "n", 1000, "Number of cards to reveal")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
	return cmd
}
