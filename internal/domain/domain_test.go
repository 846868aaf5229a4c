package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseActivityType(t *testing.T) {
	tests := []struct {
		in      string
		want    ActivityType
		wantErr bool
	}{
		{"calm", ActivityCalm, false},
		{"focus", ActivityFocus, false},
		{"sleep", ActivitySleep, false},
		{"Calm", "", true},
		{"yoga", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseActivityType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseActivityType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ParseActivityType(%q) error = %v, want ErrInvalidInput", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseActivityType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewProgressionState(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	s := NewProgressionState("u1", now)
	if s.Level != 1 || s.XP != 0 || s.StreakDays != 0 {
		t.Errorf("new state = %+v", s)
	}
	if s.HasActivity() {
		t.Error("new state should have no activity")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestProgressionState_Validate(t *testing.T) {
	ok := NewProgressionState("u1", time.Now())
	tests := []struct {
		name string
		mut  func(*ProgressionState)
	}{
		{"empty user", func(s *ProgressionState) { s.UserID = "" }},
		{"negative xp", func(s *ProgressionState) { s.XP = -1 }},
		{"level zero", func(s *ProgressionState) { s.Level = 0 }},
		{"negative tokens", func(s *ProgressionState) { s.Tokens = -3 }},
		{"negative streak", func(s *ProgressionState) { s.StreakDays = -1 }},
		{"negative savers", func(s *ProgressionState) { s.StreakSavers = -1 }},
		{"negative cards", func(s *ProgressionState) { s.GlowCards = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ok
			tt.mut(&s)
			if err := s.Validate(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Validate() = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestUpstream(t *testing.T) {
	if Upstream("op", nil) != nil {
		t.Error("Upstream(nil) should be nil")
	}

	cause := errors.New("connection refused")
	err := Upstream("save progression", cause)
	if !errors.Is(err, ErrUpstream) || !errors.Is(err, cause) {
		t.Errorf("Upstream() = %v, want both ErrUpstream and cause", err)
	}

	nf := fmt.Errorf("progression u1: %w", ErrNotFound)
	if got := Upstream("get", nf); got != nf {
		t.Errorf("Upstream(not found) = %v, want passthrough", got)
	}
	if errors.Is(Upstream("get", nf), ErrUpstream) {
		t.Error("not-found error must not become an upstream failure")
	}
}

func TestSentinelHierarchy(t *testing.T) {
	if !errors.Is(ErrNoGlowCards, ErrInvalidInput) {
		t.Error("ErrNoGlowCards should match ErrInvalidInput")
	}
	if !errors.Is(ErrNotificationNotFound, ErrNotFound) {
		t.Error("ErrNotificationNotFound should match ErrNotFound")
	}
}
