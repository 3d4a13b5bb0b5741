package api

import (
	"net/http"
	"time"

	"github.com/lumenlearn/backend/internal/domain/course"
)

// ── Request / Response types ────────────────────────────────────────────────

type CreateCourseRequest struct {
	Name string `json:"name" validate:"required"`
}

type CourseResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	DueCards int    `json:"due_cards"`
}

// createCourse registers a new course.
func (h *Handler) createCourse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateCourseRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	c, err := course.New(req.Name)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.CreateCourse(ctx, c); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save course")
		return
	}

	respondJSON(w, http.StatusCreated, CourseResponse{ID: c.ID, Name: c.Name})
}

// listCourses lists all courses with their pending review load.
func (h *Handler) listCourses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courses, err := h.store.ListCourses(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load courses")
		return
	}

	now := time.Now().UTC()
	response := make([]CourseResponse, len(courses))
	for i, c := range courses {
		due, err := h.store.CountDueCardsByCourse(ctx, c.ID, now)
		if err != nil {
			h.logger.Error("failed to count due cards", "course_id", c.ID, "error", err)
		}
		response[i] = CourseResponse{
			ID:       c.ID,
			Name:     c.Name,
			DueCards: due,
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// getCourse returns a single course.
func (h *Handler) getCourse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.store.GetCourse(ctx, r.PathValue("courseID"))
	if h.handleStoreError(w, err, "course") {
		return
	}

	due, err := h.store.CountDueCardsByCourse(ctx, c.ID, time.Now().UTC())
	if h.handleStoreError(w, err, "course") {
		return
	}
	respondJSON(w, http.StatusOK, CourseResponse{ID: c.ID, Name: c.Name, DueCards: due})
}
