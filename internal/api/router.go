// internal/api/router.go
package api

import "net/http"

// RegisterRoutes wires every handler onto the mux.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Courses
	mux.HandleFunc("POST /courses", h.createCourse)
	mux.HandleFunc("GET /courses", h.listCourses)
	mux.HandleFunc("GET /courses/{courseID}", h.getCourse)

	// Cards
	mux.HandleFunc("POST /cards", h.createCard)
	mux.HandleFunc("GET /cards/{cardID}", h.getCard)
	mux.HandleFunc("GET /users/{userID}/due", h.listDueCards)

	// Reviews
	mux.HandleFunc("POST /reviews", h.submitReview)

	// Streaks
	mux.HandleFunc("GET /users/{userID}/streak", h.getStreak)
	mux.HandleFunc("POST /users/{userID}/streak/freeze", h.useStreakFreeze)
}
