package reward

import (
	"errors"
	"testing"

	"github.com/glow-labs/glow/internal/domain"
)

// ─── Session Reward ─────────────────────────────────────────────────────────

func TestComputeSessionReward_FocusExample(t *testing.T) {
	a := domain.ActivityRecord{
		Type:               domain.ActivityFocus,
		DurationMinutes:    10,
		BreathScore:        80,
		UsedBreathTracking: true,
	}

	out, err := ComputeSessionReward(a, 4)
	if err != nil {
		t.Fatalf("ComputeSessionReward() error: %v", err)
	}
	if out.BaseXP != 55 {
		t.Errorf("BaseXP = %d, want 55", out.BaseXP)
	}
	if out.BreathBonus != 8 {
		t.Errorf("BreathBonus = %d, want 8", out.BreathBonus)
	}
	if out.StreakMultiplier != 1.0 {
		t.Errorf("StreakMultiplier = %v, want 1.0", out.StreakMultiplier)
	}
	if out.XPGained != 63 {
		t.Errorf("XPGained = %d, want 63", out.XPGained)
	}
	if out.TokensEarned != 7 {
		t.Errorf("TokensEarned = %d, want 7", out.TokensEarned)
	}
}

func TestComputeSessionReward_Table(t *testing.T) {
	tests := []struct {
		name       string
		activity   domain.ActivityRecord
		streak     int
		wantXP     int64
		wantTokens int64
	}{
		{"calm 20 streak 10", domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: 20}, 10, 123, 13},
		{"sleep 5 streak 50 capped", domain.ActivityRecord{Type: domain.ActivitySleep, DurationMinutes: 5}, 50, 50, 6},
		{"sleep 5 streak 0", domain.ActivityRecord{Type: domain.ActivitySleep, DurationMinutes: 5}, 0, 25, 3},
		{"focus 15 breath 99", domain.ActivityRecord{Type: domain.ActivityFocus, DurationMinutes: 15, BreathScore: 99, UsedBreathTracking: true}, 0, 89, 9},
		{"breath ignored without tracking", domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: 10, BreathScore: 100}, 0, 53, 6},
		{"streak 5 first block", domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: 10}, 5, 58, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ComputeSessionReward(tt.activity, tt.streak)
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if out.XPGained != tt.wantXP {
				t.Errorf("XPGained = %d, want %d", out.XPGained, tt.wantXP)
			}
			if out.TokensEarned != tt.wantTokens {
				t.Errorf("TokensEarned = %d, want %d", out.TokensEarned, tt.wantTokens)
			}
		})
	}
}

func TestComputeSessionReward_AlwaysRewards(t *testing.T) {
	types := []domain.ActivityType{domain.ActivityCalm, domain.ActivityFocus, domain.ActivitySleep}
	for _, typ := range types {
		for _, d := range DefaultDurations {
			for streak := 0; streak <= 120; streak++ {
				for _, tracked := range []bool{false, true} {
					a := domain.ActivityRecord{Type: typ, DurationMinutes: d, BreathScore: 0, UsedBreathTracking: tracked}
					out, err := ComputeSessionReward(a, streak)
					if err != nil {
						t.Fatalf("%+v streak %d: %v", a, streak, err)
					}
					if out.XPGained < 1 || out.TokensEarned < 1 {
						t.Fatalf("%+v streak %d: xp=%d tokens=%d, want both >= 1", a, streak, out.XPGained, out.TokensEarned)
					}
				}
			}
		}
	}
}

func TestComputeSessionReward_Idempotent(t *testing.T) {
	a := domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: 15, BreathScore: 42, UsedBreathTracking: true}
	first, err := ComputeSessionReward(a, 17)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := ComputeSessionReward(a, 17)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first != second {
		t.Errorf("outcomes differ: %+v vs %+v", first, second)
	}
}

func TestComputeSessionReward_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		activity domain.ActivityRecord
		streak   int
	}{
		{"unknown type", domain.ActivityRecord{Type: "walk", DurationMinutes: 10}, 0},
		{"empty type", domain.ActivityRecord{DurationMinutes: 10}, 0},
		{"duration not offered", domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: 7}, 0},
		{"negative duration", domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: -5}, 0},
		{"breath above 100", domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: 5, BreathScore: 101}, 0},
		{"negative breath", domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: 5, BreathScore: -1}, 0},
		{"negative streak", domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: 5}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeSessionReward(tt.activity, tt.streak)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestStreakMultiplier(t *testing.T) {
	tests := []struct {
		streak int
		want   float64
	}{
		{0, 1.0}, {4, 1.0}, {5, 1.1}, {9, 1.1}, {10, 1.2},
		{49, 1.9}, {50, 2.0}, {100, 2.0}, {-3, 1.0},
	}
	for _, tt := range tests {
		if got := StreakMultiplier(tt.streak); got != tt.want {
			t.Errorf("StreakMultiplier(%d) = %v, want %v", tt.streak, got, tt.want)
		}
	}
}

func TestValidateActivity_CustomDurations(t *testing.T) {
	a := domain.ActivityRecord{Type: domain.ActivitySleep, DurationMinutes: 30}
	if err := ValidateActivity(a, []int{30, 45}); err != nil {
		t.Errorf("30 minutes with custom set: %v", err)
	}
	if err := ValidateActivity(a, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("30 minutes with default set: got %v, want ErrInvalidInput", err)
	}
}
