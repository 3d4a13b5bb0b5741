package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"github.com/lumenlearn/backend/internal/domain/card"
	"github.com/lumenlearn/backend/internal/domain/course"
	"github.com/lumenlearn/backend/internal/streak"
)

const schema = `
CREATE TABLE IF NOT EXISTS courses (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    course_id TEXT,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    acceptable_answers TEXT NOT NULL DEFAULT '[]',
    state TEXT NOT NULL,
    interval_sec INTEGER NOT NULL DEFAULT 0,
    ease REAL NOT NULL,
    lapse_count INTEGER NOT NULL DEFAULT 0,
    due_ts INTEGER NOT NULL DEFAULT 0,
    last_review_ts INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_cards_user_due ON cards(user_id, due_ts);

CREATE TABLE IF NOT EXISTS streaks (
    user_id TEXT PRIMARY KEY,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date TEXT NOT NULL DEFAULT '',
    freezes INTEGER NOT NULL DEFAULT 0,
    last_freeze_used TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS attempts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    card_id TEXT,
    method TEXT NOT NULL,
    correct INTEGER NOT NULL,
    score INTEGER NOT NULL,
    feedback TEXT NOT NULL DEFAULT '',
    elapsed_ms INTEGER NOT NULL DEFAULT 0,
    created_ts INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_user ON attempts(user_id, created_ts);
`

// SQLiteStore implements Store on a single SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// Compile-time check: *SQLiteStore satisfies the Store interface.
var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (and if needed initializes) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Courses
// ============================================================================

func (s *SQLiteStore) CreateCourse(ctx context.Context, c *course.Course) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO courses (id, name) VALUES (?, ?)`, c.ID, c.Name)
	return err
}

func (s *SQLiteStore) GetCourse(ctx context.Context, id string) (*course.Course, error) {
	var c course.Course
	err := s.db.GetContext(ctx, &c, `SELECT id, name FROM courses WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) ListCourses(ctx context.Context) ([]*course.Course, error) {
	var courses []*course.Course
	err := s.db.SelectContext(ctx, &courses, `SELECT id, name FROM courses ORDER BY name`)
	return courses, err
}

func (s *SQLiteStore) CountDueCardsByCourse(ctx context.Context, courseID string, now time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM cards
		WHERE course_id = ? AND (due_ts = 0 OR due_ts <= ?)`,
		courseID, now.Unix())
	return count, err
}

// ============================================================================
// Cards
// ============================================================================

type cardRow struct {
	ID                string         `db:"id"`
	UserID            string         `db:"user_id"`
	CourseID          sql.NullString `db:"course_id"`
	Front             string         `db:"front"`
	Back              string         `db:"back"`
	AcceptableAnswers string         `db:"acceptable_answers"`
	State             string         `db:"state"`
	IntervalSec       int64          `db:"interval_sec"`
	Ease              float64        `db:"ease"`
	LapseCount        int            `db:"lapse_count"`
	DueTs             int64          `db:"due_ts"`
	LastReviewTs      int64          `db:"last_review_ts"`
	Version           int64          `db:"version"`
}

func toCardRow(c *card.ReviewCard) (cardRow, error) {
	accepted, err := json.Marshal(c.AcceptableAnswers)
	if err != nil {
		return cardRow{}, err
	}
	row := cardRow{
		ID:                c.ID,
		UserID:            c.UserID,
		Front:             c.Front,
		Back:              c.Back,
		AcceptableAnswers: string(accepted),
		State:             string(c.State),
		IntervalSec:       int64(c.Interval / time.Second),
		Ease:              c.Ease,
		LapseCount:        c.LapseCount,
		Version:           c.Version,
	}
	if c.CourseID != nil {
		row.CourseID = sql.NullString{String: *c.CourseID, Valid: true}
	}
	if !c.Due.IsZero() {
		row.DueTs = c.Due.Unix()
	}
	if !c.LastReview.IsZero() {
		row.LastReviewTs = c.LastReview.Unix()
	}
	return row, nil
}

func (r cardRow) toCard() (*card.ReviewCard, error) {
	var accepted []string
	if r.AcceptableAnswers != "" {
		if err := json.Unmarshal([]byte(r.AcceptableAnswers), &accepted); err != nil {
			return nil, err
		}
	}
	c := &card.ReviewCard{
		ID:                r.ID,
		UserID:            r.UserID,
		Front:             r.Front,
		Back:              r.Back,
		AcceptableAnswers: accepted,
		State:             card.State(r.State),
		Interval:          time.Duration(r.IntervalSec) * time.Second,
		Ease:              r.Ease,
		LapseCount:        r.LapseCount,
		Version:           r.Version,
	}
	if r.CourseID.Valid {
		c.CourseID = &r.CourseID.String
	}
	if r.DueTs != 0 {
		c.Due = time.Unix(r.DueTs, 0).UTC()
	}
	if r.LastReviewTs != 0 {
		c.LastReview = time.Unix(r.LastReviewTs, 0).UTC()
	}
	return c, nil
}

func (s *SQLiteStore) CreateCard(ctx context.Context, c *card.ReviewCard) error {
	if c.Version == 0 {
		c.Version = 1
	}
	row, err := toCardRow(c)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO cards (id, user_id, course_id, front, back, acceptable_answers,
		                   state, interval_sec, ease, lapse_count, due_ts, last_review_ts, version)
		VALUES (:id, :user_id, :course_id, :front, :back, :acceptable_answers,
		        :state, :interval_sec, :ease, :lapse_count, :due_ts, :last_review_ts, :version)`,
		row)
	return err
}

func (s *SQLiteStore) GetCard(ctx context.Context, id string) (*card.ReviewCard, error) {
	var row cardRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM cards WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toCard()
}

// UpdateCard performs a conditional write: the row is overwritten only if
// its version still matches the version the caller read.
func (s *SQLiteStore) UpdateCard(ctx context.Context, c *card.ReviewCard) error {
	row, err := toCardRow(c)
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE cards
		SET state = :state, interval_sec = :interval_sec, ease = :ease,
		    lapse_count = :lapse_count, due_ts = :due_ts, last_review_ts = :last_review_ts,
		    front = :front, back = :back, acceptable_answers = :acceptable_answers,
		    version = version + 1
		WHERE id = :id AND version = :version`,
		row)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	c.Version++
	return nil
}

func (s *SQLiteStore) ListDueCards(ctx context.Context, userID string, now time.Time, limit int) ([]*card.ReviewCard, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []cardRow
	// due_ts = 0 means never reviewed: due immediately.
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM cards
		WHERE user_id = ? AND (due_ts = 0 OR due_ts <= ?)
		ORDER BY due_ts ASC
		LIMIT ?`,
		userID, now.Unix(), limit)
	if err != nil {
		return nil, err
	}

	cards := make([]*card.ReviewCard, 0, len(rows))
	for _, r := range rows {
		c, err := r.toCard()
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func (s *SQLiteStore) CountDueCards(ctx context.Context, userID string, now time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM cards
		WHERE user_id = ? AND (due_ts = 0 OR due_ts <= ?)`,
		userID, now.Unix())
	return count, err
}

// ============================================================================
// Streaks
// ============================================================================

type streakRow struct {
	UserID           string `db:"user_id"`
	CurrentStreak    int    `db:"current_streak"`
	LongestStreak    int    `db:"longest_streak"`
	LastActivityDate string `db:"last_activity_date"`
	Freezes          int    `db:"freezes"`
	LastFreezeUsed   string `db:"last_freeze_used"`
	Version          int64  `db:"version"`
}

func (r streakRow) toRecord() streak.Record {
	return streak.Record{
		UserID:           r.UserID,
		CurrentStreak:    r.CurrentStreak,
		LongestStreak:    r.LongestStreak,
		LastActivityDate: r.LastActivityDate,
		Freezes:          r.Freezes,
		LastFreezeUsed:   r.LastFreezeUsed,
	}
}

// GetStreak returns the record and its stored version for a later
// conditional write. ErrNotFound means the user has no streak row yet;
// streak rows are created lazily on first activity.
func (s *SQLiteStore) GetStreak(ctx context.Context, userID string) (streak.Record, int64, error) {
	var row streakRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM streaks WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return streak.Record{}, 0, ErrNotFound
	}
	if err != nil {
		return streak.Record{}, 0, err
	}
	return row.toRecord(), row.Version, nil
}

// isUniqueViolation reports whether err is a SQLite primary-key or unique
// constraint failure (result codes 19, 1555, 2067).
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case 19, 1555, 2067:
		return true
	}
	return false
}

// CreateStreak inserts the user's first streak row. When two first-activity
// writers race, the loser's insert hits the primary key and comes back as
// ErrConflict, so the standard conflict retry covers lazy creation.
func (s *SQLiteStore) CreateStreak(ctx context.Context, rec streak.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO streaks (user_id, current_streak, longest_streak, last_activity_date, freezes, last_freeze_used, version)
		VALUES (?, ?, ?, ?, ?, ?, 1)`,
		rec.UserID, rec.CurrentStreak, rec.LongestStreak, rec.LastActivityDate, rec.Freezes, rec.LastFreezeUsed)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *SQLiteStore) UpdateStreak(ctx context.Context, rec streak.Record, version int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE streaks
		SET current_streak = ?, longest_streak = ?, last_activity_date = ?,
		    freezes = ?, last_freeze_used = ?, version = version + 1
		WHERE user_id = ? AND version = ?`,
		rec.CurrentStreak, rec.LongestStreak, rec.LastActivityDate,
		rec.Freezes, rec.LastFreezeUsed, rec.UserID, version)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *SQLiteStore) ListStreakUsers(ctx context.Context) ([]string, error) {
	var users []string
	err := s.db.SelectContext(ctx, &users, `SELECT user_id FROM streaks ORDER BY user_id`)
	return users, err
}

// ============================================================================
// Attempts
// ============================================================================

func (s *SQLiteStore) InsertAttempt(ctx context.Context, a *Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var cardID sql.NullString
	if a.CardID != nil {
		cardID = sql.NullString{String: *a.CardID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, user_id, card_id, method, correct, score, feedback, elapsed_ms, created_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, cardID, a.Method, a.Correct, a.Score, a.Feedback,
		a.Elapsed.Milliseconds(), a.CreatedAt.Unix())
	return err
}
