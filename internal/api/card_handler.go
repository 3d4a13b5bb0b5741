package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/lumenlearn/backend/internal/domain/card"
)

// ── Request / Response types ────────────────────────────────────────────────

type CreateCardRequest struct {
	UserID            string   `json:"user_id" validate:"required"`
	CourseID          *string  `json:"course_id,omitempty"`
	Front             string   `json:"front" validate:"required"`
	Back              string   `json:"back" validate:"required"`
	AcceptableAnswers []string `json:"acceptable_answers,omitempty"`
}

type CardResponse struct {
	ID                string   `json:"id"`
	UserID            string   `json:"user_id"`
	CourseID          *string  `json:"course_id,omitempty"`
	Front             string   `json:"front"`
	Back              string   `json:"back"`
	AcceptableAnswers []string `json:"acceptable_answers,omitempty"`
	State             string   `json:"state"`
	IntervalSeconds   int64    `json:"interval_seconds"`
	Ease              float64  `json:"ease"`
	LapseCount        int      `json:"lapse_count"`
	Due               string   `json:"due,omitempty"` // RFC 3339, empty for new cards
}

func cardResponse(c *card.ReviewCard) CardResponse {
	resp := CardResponse{
		ID:                c.ID,
		UserID:            c.UserID,
		CourseID:          c.CourseID,
		Front:             c.Front,
		Back:              c.Back,
		AcceptableAnswers: c.AcceptableAnswers,
		State:             string(c.State),
		IntervalSeconds:   int64(c.Interval.Seconds()),
		Ease:              c.Ease,
		LapseCount:        c.LapseCount,
	}
	if !c.Due.IsZero() {
		resp.Due = c.Due.Format(time.RFC3339)
	}
	return resp
}

// createCard registers a new review card in the "new" state.
func (h *Handler) createCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateCardRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if req.CourseID != nil {
		_, err := h.store.GetCourse(ctx, *req.CourseID)
		if h.handleStoreError(w, err, "course") {
			return
		}
	}

	c, err := card.New(req.UserID, req.Front, req.Back)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.CourseID = req.CourseID
	c.AcceptableAnswers = req.AcceptableAnswers

	if err := h.store.CreateCard(ctx, c); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save card")
		return
	}

	respondJSON(w, http.StatusCreated, cardResponse(c))
}

// getCard returns a single card.
func (h *Handler) getCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.store.GetCard(ctx, r.PathValue("cardID"))
	if h.handleStoreError(w, err, "card") {
		return
	}
	respondJSON(w, http.StatusOK, cardResponse(c))
}

type DueCardsResponse struct {
	Cards []CardResponse `json:"cards"`
	Total int            `json:"total"` // total due, may exceed len(Cards) when limited
}

// listDueCards returns the user's cards that are due for review now.
func (h *Handler) listDueCards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	now := time.Now().UTC()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	cards, err := h.store.ListDueCards(ctx, userID, now, limit)
	if h.handleStoreError(w, err, "cards") {
		return
	}
	total, err := h.store.CountDueCards(ctx, userID, now)
	if h.handleStoreError(w, err, "cards") {
		return
	}

	resp := DueCardsResponse{Cards: make([]CardResponse, len(cards)), Total: total}
	for i, c := range cards {
		resp.Cards[i] = cardResponse(c)
	}
	respondJSON(w, http.StatusOK, resp)
}
