package store

import (
	"context"
	"errors"
	"time"

	"github.com/lumenlearn/backend/internal/domain/card"
	"github.com/lumenlearn/backend/internal/domain/course"
	"github.com/lumenlearn/backend/internal/streak"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a conditional write lost a read-compute-write race;
	// the caller should re-read and retry once.
	ErrConflict = errors.New("version conflict")
)

// Attempt is one logged evaluation outcome. Attempts are append-only and
// exist for reconciliation and analytics, not for engine decisions.
type Attempt struct {
	ID        string
	UserID    string
	CardID    *string // nil for standalone questions
	Method    string
	Correct   bool
	Score     int
	Feedback  string
	Elapsed   time.Duration
	CreatedAt time.Time
}

// Store is the persistence boundary of the review engine. Card and streak
// rows are per-user; each update is a row-level all-or-nothing write with
// optimistic concurrency.
type Store interface {
	CreateCourse(ctx context.Context, c *course.Course) error
	GetCourse(ctx context.Context, id string) (*course.Course, error)
	ListCourses(ctx context.Context) ([]*course.Course, error)
	CountDueCardsByCourse(ctx context.Context, courseID string, now time.Time) (int, error)

	CreateCard(ctx context.Context, c *card.ReviewCard) error
	GetCard(ctx context.Context, id string) (*card.ReviewCard, error)
	// UpdateCard writes the card only if the stored version still matches
	// c.Version; on success c.Version is advanced. Returns ErrConflict when
	// a concurrent writer got there first.
	UpdateCard(ctx context.Context, c *card.ReviewCard) error
	ListDueCards(ctx context.Context, userID string, now time.Time, limit int) ([]*card.ReviewCard, error)
	CountDueCards(ctx context.Context, userID string, now time.Time) (int, error)

	GetStreak(ctx context.Context, userID string) (streak.Record, int64, error)
	CreateStreak(ctx context.Context, rec streak.Record) error
	UpdateStreak(ctx context.Context, rec streak.Record, version int64) error
	ListStreakUsers(ctx context.Context) ([]string, error)

	InsertAttempt(ctx context.Context, a *Attempt) error

	Close() error
}
