package api

import (
	"errors"
	"net/http"

	"github.com/lumenlearn/backend/internal/streak"
)

// ── Response types ──────────────────────────────────────────────────────────

type StreakStatusResponse struct {
	CurrentStreak  int     `json:"current_streak"`
	LongestStreak  int     `json:"longest_streak"`
	ActiveToday    bool    `json:"active_today"`
	AtRisk         bool    `json:"at_risk"`
	HoursRemaining float64 `json:"hours_remaining,omitempty"`
	Freezes        int     `json:"freezes"`
}

// getStreak returns the user's streak projected onto the current instant in
// their timezone (tz query parameter, defaults to UTC).
func (h *Handler) getStreak(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := h.reviews.StreakStatus(ctx, r.PathValue("userID"), r.URL.Query().Get("tz"))
	if h.handleStoreError(w, err, "streak") {
		return
	}

	respondJSON(w, http.StatusOK, StreakStatusResponse{
		CurrentStreak:  status.CurrentStreak,
		LongestStreak:  status.LongestStreak,
		ActiveToday:    status.ActiveToday,
		AtRisk:         status.AtRisk,
		HoursRemaining: status.HoursRemaining,
		Freezes:        status.Freezes,
	})
}

type UseFreezeResponse struct {
	CurrentStreak int `json:"current_streak"`
	Freezes       int `json:"freezes"`
}

// useStreakFreeze consumes a freeze token to keep the streak alive across a
// missed day.
func (h *Handler) useStreakFreeze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.reviews.UseStreakFreeze(ctx, r.PathValue("userID"), r.URL.Query().Get("tz"))
	if errors.Is(err, streak.ErrNoFreezes) || errors.Is(err, streak.ErrFreezeCooldown) {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if h.handleStoreError(w, err, "streak") {
		return
	}

	respondJSON(w, http.StatusOK, UseFreezeResponse{
		CurrentStreak: rec.CurrentStreak,
		Freezes:       rec.Freezes,
	})
}
