package card

import (
	"errors"
	"time"

	"github.com/lumenlearn/backend/internal/id"
)

// State is the scheduling state of a review card. Transitions are handled
// exclusively by the scheduler: new → learning → review, review → relearning
// on a lapse, relearning → review on recovery. No transition skips learning
// on the first success from new.
type State string

const (
	StateNew        State = "new"
	StateLearning   State = "learning"
	StateReview     State = "review"
	StateRelearning State = "relearning"
)

// Valid reports whether s is one of the defined card states.
func (s State) Valid() bool {
	switch s {
	case StateNew, StateLearning, StateReview, StateRelearning:
		return true
	}
	return false
}

// DefaultEase is the ease factor assigned to freshly created cards.
const DefaultEase = 2.5

// ReviewCard is a single fact or question a user is drilling.
// Scheduling fields are mutated only by the scheduler in response to a
// graded review.
type ReviewCard struct {
	ID                string
	UserID            string
	CourseID          *string // nil for cards outside any course
	Front             string  // prompt text
	Back              string  // answer text
	AcceptableAnswers []string

	State      State
	Interval   time.Duration // current interval; sub-day during learning
	Ease       float64
	LapseCount int
	Due        time.Time // zero until the first review
	LastReview time.Time // zero until the first review

	// Version supports optimistic concurrency in the store; the engine
	// never reads it.
	Version int64
}

// New creates a card in the new state. A never-reviewed card has no due
// date requirement and is treated as due immediately.
func New(userID, front, back string) (*ReviewCard, error) {
	if userID == "" {
		return nil, errors.New("card user id cannot be empty")
	}
	if front == "" {
		return nil, errors.New("card front cannot be empty")
	}
	if back == "" {
		return nil, errors.New("card back cannot be empty")
	}
	return &ReviewCard{
		ID:     id.NewPrefixed("card"),
		UserID: userID,
		Front:  front,
		Back:   back,
		State:  StateNew,
		Ease:   DefaultEase,
	}, nil
}

// IsDue reports whether the card should be shown at the given instant.
// New cards are always due.
func (c *ReviewCard) IsDue(now time.Time) bool {
	if c.State == StateNew || c.Due.IsZero() {
		return true
	}
	return !c.Due.After(now)
}

// Reviewed reports whether the card has been graded at least once.
func (c *ReviewCard) Reviewed() bool {
	return !c.LastReview.IsZero()
}
