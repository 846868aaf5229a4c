package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/glow-labs/glow/internal/app/reward"
	"github.com/glow-labs/glow/internal/domain"
)

const maxBodyBytes = 64 << 10

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
	}
	return n, nil
}

// ─── Preview ────────────────────────────────────────────────────────────────

type previewRequest struct {
	Activity      domain.ActivityRecord `json:"activity"`
	CurrentStreak int                   `json:"current_streak"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out, err := s.svc.Preview(req.Activity, req.CurrentStreak)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ─── Users ──────────────────────────────────────────────────────────────────

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	state, created, err := s.svc.Enroll(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, state)
}

// progressionView is a user's state plus where they stand in their level.
type progressionView struct {
	*domain.ProgressionState
	LevelProgress reward.LevelProgress `json:"level_progress"`
}

func (s *Server) handleProgression(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.Progression(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progressionView{
		ProgressionState: state,
		LevelProgress:    reward.Progress(state.XP, state.Level),
	})
}

func (s *Server) handleRecordSession(w http.ResponseWriter, r *http.Request) {
	var a domain.ActivityRecord
	if err := decodeJSON(w, r, &a); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.svc.RecordSession(r.Context(), chi.URLParam(r, "userID"), a)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRevealCard(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.RevealCard(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	entries, err := s.svc.Ledger(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Achievements(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": list})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	list, err := s.svc.Notifications(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (s *Server) handleNotificationShown(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("%w: notification id", domain.ErrInvalidInput))
		return
	}
	if err := s.svc.MarkNotificationShown(r.Context(), chi.URLParam(r, "userID"), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
