package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/lumenlearn/backend/internal/evaluation"
	"github.com/lumenlearn/backend/internal/scheduler"
	"github.com/lumenlearn/backend/internal/service"
)

// ── Request / Response types ────────────────────────────────────────────────

type SubmitReviewRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	CardID   string `json:"card_id,omitempty"`
	Question string `json:"question,omitempty"`
	Expected string `json:"expected_answer,omitempty"`
	Answer   string `json:"answer"`
	Rating   int    `json:"rating,omitempty" validate:"omitempty,min=1,max=4"`
	Timezone string `json:"timezone,omitempty"`
}

type SubmitReviewResponse struct {
	Correct      bool   `json:"correct"`
	Score        int    `json:"score"`
	Feedback     string `json:"feedback,omitempty"`
	Method       string `json:"method"`
	XPAwarded    int    `json:"xp_awarded"`
	NextDue      string `json:"next_due,omitempty"` // RFC 3339, only for card reviews
	CardState    string `json:"card_state,omitempty"`
	StreakLength int    `json:"streak_length"`
	Milestone    int    `json:"milestone,omitempty"`
}

// submitReview grades an answer and applies the scheduling and streak
// updates that follow from the verdict.
func (h *Handler) submitReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SubmitReviewRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.CardID == "" && (req.Question == "" || req.Expected == "") {
		respondError(w, http.StatusBadRequest, "card_id or question and expected_answer are required")
		return
	}

	result, err := h.reviews.SubmitReview(ctx, service.SubmitRequest{
		UserID:   req.UserID,
		CardID:   req.CardID,
		Question: req.Question,
		Expected: req.Expected,
		Answer:   req.Answer,
		Rating:   scheduler.Rating(req.Rating),
		Timezone: req.Timezone,
	})
	if errors.Is(err, evaluation.ErrInvalidRequest) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.handleStoreError(w, err, "card") {
		return
	}

	resp := SubmitReviewResponse{
		Correct:      result.Evaluation.Correct,
		Score:        result.Evaluation.Score,
		Feedback:     result.Evaluation.Feedback,
		Method:       string(result.Evaluation.Method),
		XPAwarded:    result.XPAwarded,
		StreakLength: result.Streak.CurrentStreak,
		Milestone:    result.StreakResult.Milestone,
	}
	if result.Card != nil {
		resp.NextDue = result.NewDue.Format(time.RFC3339)
		resp.CardState = string(result.Card.State)
	}

	respondJSON(w, http.StatusOK, resp)
}
