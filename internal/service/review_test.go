package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/backend/internal/domain/card"
	"github.com/lumenlearn/backend/internal/domain/course"
	"github.com/lumenlearn/backend/internal/evaluation"
	"github.com/lumenlearn/backend/internal/mastery"
	"github.com/lumenlearn/backend/internal/scheduler"
	"github.com/lumenlearn/backend/internal/store"
	"github.com/lumenlearn/backend/internal/streak"
	"github.com/lumenlearn/backend/internal/timezone"
)

// fakeStore is an in-memory Store with programmable failure injection.
type fakeStore struct {
	courses map[string]*course.Course
	cards   map[string]*card.ReviewCard
	streaks map[string]streak.Record
	streakV map[string]int64

	attempts []*store.Attempt

	cardConflicts     int // fail this many UpdateCard calls with ErrConflict
	streakConflicts   int // same for UpdateStreak
	createStreakLoses int // CreateStreak loses this many first-activity races
	getCardErrOnCall  int // 1-based GetCard call number that fails
	attemptErr        error

	updateCardCalls   int
	updateStreakCalls int
	getCardCalls      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		courses: make(map[string]*course.Course),
		cards:   make(map[string]*card.ReviewCard),
		streaks: make(map[string]streak.Record),
		streakV: make(map[string]int64),
	}
}

func (f *fakeStore) CreateCourse(_ context.Context, c *course.Course) error {
	f.courses[c.ID] = c
	return nil
}

func (f *fakeStore) GetCourse(_ context.Context, id string) (*course.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ListCourses(_ context.Context) ([]*course.Course, error) {
	var out []*course.Course
	for _, c := range f.courses {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) CountDueCardsByCourse(_ context.Context, courseID string, now time.Time) (int, error) {
	count := 0
	for _, c := range f.cards {
		if c.CourseID != nil && *c.CourseID == courseID && c.IsDue(now) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CreateCard(_ context.Context, c *card.ReviewCard) error {
	f.cards[c.ID] = c
	return nil
}

func (f *fakeStore) GetCard(_ context.Context, id string) (*card.ReviewCard, error) {
	f.getCardCalls++
	if f.getCardErrOnCall == f.getCardCalls {
		return nil, errors.New("read failed")
	}
	c, ok := f.cards[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) UpdateCard(_ context.Context, c *card.ReviewCard) error {
	f.updateCardCalls++
	if f.cardConflicts > 0 {
		f.cardConflicts--
		return store.ErrConflict
	}
	c.Version++
	cp := *c
	f.cards[c.ID] = &cp
	return nil
}

func (f *fakeStore) ListDueCards(_ context.Context, userID string, now time.Time, limit int) ([]*card.ReviewCard, error) {
	var due []*card.ReviewCard
	for _, c := range f.cards {
		if c.UserID == userID && c.IsDue(now) {
			cp := *c
			due = append(due, &cp)
		}
	}
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakeStore) CountDueCards(_ context.Context, userID string, now time.Time) (int, error) {
	due, _ := f.ListDueCards(context.Background(), userID, now, 0)
	return len(due), nil
}

func (f *fakeStore) GetStreak(_ context.Context, userID string) (streak.Record, int64, error) {
	rec, ok := f.streaks[userID]
	if !ok {
		return streak.Record{}, 0, store.ErrNotFound
	}
	return rec, f.streakV[userID], nil
}

func (f *fakeStore) CreateStreak(_ context.Context, rec streak.Record) error {
	if f.createStreakLoses > 0 {
		// A concurrent first activity won the insert race.
		f.createStreakLoses--
		f.streaks[rec.UserID] = streak.Record{
			UserID:           rec.UserID,
			CurrentStreak:    1,
			LongestStreak:    1,
			LastActivityDate: timezone.DateIn(time.Now().UTC(), time.UTC),
		}
		f.streakV[rec.UserID] = 1
		return store.ErrConflict
	}
	f.streaks[rec.UserID] = rec
	f.streakV[rec.UserID] = 1
	return nil
}

func (f *fakeStore) UpdateStreak(_ context.Context, rec streak.Record, version int64) error {
	f.updateStreakCalls++
	if f.streakConflicts > 0 {
		f.streakConflicts--
		return store.ErrConflict
	}
	if f.streakV[rec.UserID] != version {
		return store.ErrConflict
	}
	f.streaks[rec.UserID] = rec
	f.streakV[rec.UserID] = version + 1
	return nil
}

func (f *fakeStore) ListStreakUsers(_ context.Context) ([]string, error) {
	var users []string
	for u := range f.streaks {
		users = append(users, u)
	}
	return users, nil
}

func (f *fakeStore) InsertAttempt(_ context.Context, a *store.Attempt) error {
	if f.attemptErr != nil {
		return f.attemptErr
	}
	f.attempts = append(f.attempts, a)
	return nil
}

func (f *fakeStore) Close() error { return nil }

var _ store.Store = (*fakeStore)(nil)

func newTestService(f *fakeStore) *ReviewService {
	return NewReviewService(f, mastery.New(evaluation.New(nil, nil)), nil)
}

func seedCard(t *testing.T, f *fakeStore, userID string) *card.ReviewCard {
	t.Helper()
	c, err := card.New(userID, "capital of France?", "Paris")
	require.NoError(t, err)
	c.Version = 1
	require.NoError(t, f.CreateCard(context.Background(), c))
	return c
}

func TestSubmitReviewCardFlow(t *testing.T) {
	f := newFakeStore()
	c := seedCard(t, f, "user-1")
	svc := newTestService(f)

	result, err := svc.SubmitReview(context.Background(), SubmitRequest{
		UserID: "user-1",
		CardID: c.ID,
		Answer: "paris",
		Rating: scheduler.RatingGood,
	})
	require.NoError(t, err)

	assert.True(t, result.Evaluation.Correct)
	assert.Equal(t, evaluation.MethodExact, result.Evaluation.Method)

	stored := f.cards[c.ID]
	assert.Equal(t, card.StateLearning, stored.State)
	assert.Equal(t, int64(2), stored.Version)

	rec := f.streaks["user-1"]
	assert.Equal(t, 1, rec.CurrentStreak)

	require.Len(t, f.attempts, 1)
	assert.Equal(t, c.ID, *f.attempts[0].CardID)
	assert.True(t, f.attempts[0].Correct)
}

func TestSubmitReviewStandaloneQuestion(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)

	result, err := svc.SubmitReview(context.Background(), SubmitRequest{
		UserID:   "user-1",
		Question: "2 + 2?",
		Expected: "4",
		Answer:   "4",
	})
	require.NoError(t, err)

	assert.True(t, result.Evaluation.Correct)
	assert.Nil(t, result.Card)
	assert.Equal(t, 1, f.streaks["user-1"].CurrentStreak)
	assert.Zero(t, f.updateCardCalls)
}

func TestSubmitReviewRejectsForeignCard(t *testing.T) {
	f := newFakeStore()
	c := seedCard(t, f, "owner")
	svc := newTestService(f)

	_, err := svc.SubmitReview(context.Background(), SubmitRequest{
		UserID: "intruder",
		CardID: c.ID,
		Answer: "Paris",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, f.attempts)
}

func TestSubmitReviewRequiresUser(t *testing.T) {
	svc := newTestService(newFakeStore())
	_, err := svc.SubmitReview(context.Background(), SubmitRequest{Answer: "x"})
	assert.ErrorIs(t, err, evaluation.ErrInvalidRequest)
}

func TestSubmitReviewRetriesOnConflict(t *testing.T) {
	f := newFakeStore()
	c := seedCard(t, f, "user-1")
	f.cardConflicts = 1
	svc := newTestService(f)

	result, err := svc.SubmitReview(context.Background(), SubmitRequest{
		UserID: "user-1",
		CardID: c.ID,
		Answer: "Paris",
		Rating: scheduler.RatingGood,
	})
	require.NoError(t, err)

	assert.True(t, result.Evaluation.Correct)
	// First write conflicted, retry re-read and succeeded.
	assert.Equal(t, 2, f.updateCardCalls)
	assert.Equal(t, 2, f.getCardCalls)
	assert.Equal(t, card.StateLearning, f.cards[c.ID].State)
}

func TestSubmitReviewStreakConflictDoesNotRescheduleCard(t *testing.T) {
	f := newFakeStore()
	c := seedCard(t, f, "user-1")
	require.NoError(t, f.CreateStreak(context.Background(), streak.Record{
		UserID:           "user-1",
		CurrentStreak:    5,
		LongestStreak:    5,
		LastActivityDate: timezone.PrevDate(timezone.DateIn(time.Now().UTC(), time.UTC)),
	}))
	f.streakConflicts = 1
	svc := newTestService(f)

	result, err := svc.SubmitReview(context.Background(), SubmitRequest{
		UserID: "user-1",
		CardID: c.ID,
		Answer: "Paris",
		Rating: scheduler.RatingGood,
	})
	require.NoError(t, err)

	// One review is one transition: the streak retry must not touch the
	// card row or run the scheduler a second time.
	assert.Equal(t, 1, f.updateCardCalls)
	assert.Equal(t, 1, f.getCardCalls)
	assert.Equal(t, card.StateLearning, f.cards[c.ID].State)
	assert.Equal(t, card.StateLearning, result.Card.State)

	assert.Equal(t, 2, f.updateStreakCalls)
	assert.Equal(t, 6, f.streaks["user-1"].CurrentStreak)
	assert.Equal(t, 6, result.Streak.CurrentStreak)
}

func TestSubmitReviewStreakCreateRace(t *testing.T) {
	f := newFakeStore()
	f.createStreakLoses = 1
	svc := newTestService(f)

	result, err := svc.SubmitReview(context.Background(), SubmitRequest{
		UserID:   "user-1",
		Question: "2 + 2?",
		Expected: "4",
		Answer:   "4",
	})
	require.NoError(t, err)

	// The losing insert retries as an update of the winner's row; the
	// same-day re-application keeps the streak at 1 without a second
	// daily reward.
	assert.Equal(t, 1, f.streaks["user-1"].CurrentStreak)
	assert.Equal(t, 1, result.Streak.CurrentStreak)
	assert.Zero(t, result.StreakResult.DailyXP)
	assert.Equal(t, 1, f.updateStreakCalls)
}

func TestSubmitReviewRetryReloadFailureStillDeliversVerdict(t *testing.T) {
	f := newFakeStore()
	c := seedCard(t, f, "user-1")
	f.cardConflicts = 1
	f.getCardErrOnCall = 2 // the conflict-retry re-read fails
	svc := newTestService(f)

	result, err := svc.SubmitReview(context.Background(), SubmitRequest{
		UserID: "user-1",
		CardID: c.ID,
		Answer: "Paris",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Evaluation.Correct)
	require.Len(t, f.attempts, 1, "the verdict is still logged")
}

func TestSubmitReviewDoubleConflict(t *testing.T) {
	f := newFakeStore()
	c := seedCard(t, f, "user-1")
	f.cardConflicts = 2
	svc := newTestService(f)

	_, err := svc.SubmitReview(context.Background(), SubmitRequest{
		UserID: "user-1",
		CardID: c.ID,
		Answer: "Paris",
	})
	assert.ErrorIs(t, err, ErrTryAgain)
}

func TestSubmitReviewSurvivesAttemptLogFailure(t *testing.T) {
	f := newFakeStore()
	c := seedCard(t, f, "user-1")
	svc := newTestService(f)

	// The attempt log must never block a verdict.
	f.attemptErr = errors.New("disk full")

	result, err := svc.SubmitReview(context.Background(), SubmitRequest{
		UserID: "user-1",
		CardID: c.ID,
		Answer: "Paris",
	})
	require.NoError(t, err)
	assert.True(t, result.Evaluation.Correct)
	assert.Empty(t, f.attempts)
}

func TestUseStreakFreeze(t *testing.T) {
	f := newFakeStore()
	require.NoError(t, f.CreateStreak(context.Background(), streak.Record{
		UserID:           "user-1",
		CurrentStreak:    5,
		LongestStreak:    5,
		LastActivityDate: "2026-08-29",
		Freezes:          2,
	}))
	svc := newTestService(f)

	rec, err := svc.UseStreakFreeze(context.Background(), "user-1", "UTC")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Freezes)
	assert.Equal(t, 1, f.streaks["user-1"].Freezes)
}

func TestUseStreakFreezeUnknownUser(t *testing.T) {
	svc := newTestService(newFakeStore())
	_, err := svc.UseStreakFreeze(context.Background(), "ghost", "UTC")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStreakStatusNewUser(t *testing.T) {
	svc := newTestService(newFakeStore())
	status, err := svc.StreakStatus(context.Background(), "fresh", "UTC")
	require.NoError(t, err)
	assert.Zero(t, status.CurrentStreak)
	assert.False(t, status.AtRisk)
}
