package reward

import (
	"fmt"

	"github.com/glow-labs/glow/internal/domain"
)

// LootEntry is one row of the cumulative draw table: a uniform draw r in
// [0,1) selects the first entry with r < Upper.
type LootEntry struct {
	Upper float64
	Kind  domain.LootKind
}

// DefaultLootTable is the glow-card table. The final rare-bag row stands
// in for a rarer tier that does not exist yet.
var DefaultLootTable = []LootEntry{
	{Upper: 0.45, Kind: domain.LootTokens},
	{Upper: 0.65, Kind: domain.LootCommonBag},
	{Upper: 0.75, Kind: domain.LootRareBag},
	{Upper: 0.85, Kind: domain.LootStreakSaver},
	{Upper: 0.95, Kind: domain.LootExtraPick},
	{Upper: 1.00, Kind: domain.LootRareBag},
}

// TokenAmounts are the equally likely token grants of a token draw.
var TokenAmounts = []int64{25, 35, 50}

// LootConfig tunes how draws are applied to a user's state.
type LootConfig struct {
	StreakSaverCap int   `toml:"streak_saver_cap" split_words:"true"`
	OverflowTokens int64 `toml:"overflow_tokens" split_words:"true"`
	MaxPicks       int   `toml:"max_picks" split_words:"true"`
}

// DefaultLootConfig caps savers at 3, converts overflow into 25 tokens and
// resolves at most 10 picks per card.
func DefaultLootConfig() LootConfig {
	return LootConfig{
		StreakSaverCap: 3,
		OverflowTokens: 25,
		MaxPicks:       10,
	}
}

// Weights returns the probability of each kind in a table.
func Weights(table []LootEntry) map[domain.LootKind]float64 {
	w := make(map[domain.LootKind]float64)
	lower := 0.0
	for _, e := range table {
		w[e.Kind] += e.Upper - lower
		lower = e.Upper
	}
	return w
}

// ComputeLootDraw performs one weighted draw over DefaultLootTable.
func ComputeLootDraw(rng domain.RandomSource) domain.LootDraw {
	return drawFrom(DefaultLootTable, rng)
}

func drawFrom(table []LootEntry, rng domain.RandomSource) domain.LootDraw {
	r := rng.Float64()
	kind := table[len(table)-1].Kind
	for _, e := range table {
		if r < e.Upper {
			kind = e.Kind
			break
		}
	}
	if kind == domain.LootTokens {
		return domain.LootDraw{Kind: kind, Amount: TokenAmounts[rng.IntN(len(TokenAmounts))]}
	}
	return domain.LootDraw{Kind: kind}
}

// ApplyLoot applies a non-pick draw to state and returns the draw as granted.
// A streak saver over the cap becomes an overflow token grant.
func ApplyLoot(state *domain.ProgressionState, d domain.LootDraw, cfg LootConfig) domain.LootDraw {
	switch d.Kind {
	case domain.LootTokens:
		state.Tokens += d.Amount
	case domain.LootCommonBag:
		state.CommonBags++
	case domain.LootRareBag:
		state.RareBags++
	case domain.LootStreakSaver:
		if state.StreakSavers < cfg.StreakSaverCap {
			state.StreakSavers++
			return d
		}
		d.Amount = cfg.OverflowTokens
		d.Converted = true
		state.Tokens += d.Amount
	}
	return d
}

// Reveal opens one glow card. The card starts with a single pick; an extra
// pick adds another pick instead of a reward, and the reveal is complete
// only when no picks remain. Picks beyond cfg.MaxPicks turn into overflow
// tokens so the loop always ends.
func Reveal(rng domain.RandomSource, state domain.ProgressionState, cfg LootConfig) (domain.CardReveal, domain.ProgressionState, error) {
	if state.GlowCards <= 0 {
		return domain.CardReveal{}, state, domain.ErrNoGlowCards
	}
	if cfg.MaxPicks < 1 {
		return domain.CardReveal{}, state, fmt.Errorf("%w: max picks %d < 1", domain.ErrInvalidInput, cfg.MaxPicks)
	}

	state.GlowCards--
	var reveal domain.CardReveal

	picks := 1
	for picks > 0 {
		picks--
		reveal.Picks++

		d := ComputeLootDraw(rng)
		if d.Kind == domain.LootExtraPick {
			if reveal.Picks+picks < cfg.MaxPicks {
				picks++
				reveal.Draws = append(reveal.Draws, d)
				continue
			}
			d.Amount = cfg.OverflowTokens
			d.Converted = true
			state.Tokens += d.Amount
		} else {
			d = ApplyLoot(&state, d, cfg)
		}

		reveal.TokensGranted += d.Amount
		reveal.Draws = append(reveal.Draws, d)
	}

	return reveal, state, nil
}
