// Package service is the caller layer above the mastery coordinator: it
// owns the read-compute-write cycle against the store, including the
// one-shot retry on optimistic-concurrency conflicts.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumenlearn/backend/internal/domain/card"
	"github.com/lumenlearn/backend/internal/evaluation"
	"github.com/lumenlearn/backend/internal/mastery"
	"github.com/lumenlearn/backend/internal/scheduler"
	"github.com/lumenlearn/backend/internal/store"
	"github.com/lumenlearn/backend/internal/streak"
	"github.com/lumenlearn/backend/internal/timezone"
)

// ErrTryAgain is returned when both the initial write and its retry lost a
// concurrent-update race before anything was committed. The condition is
// transient; the client should simply resubmit.
var ErrTryAgain = errors.New("concurrent update, try again")

// SubmitRequest is one answer submission.
type SubmitRequest struct {
	UserID   string
	CardID   string // empty for standalone questions
	Question string // required when CardID is empty
	Expected string // required when CardID is empty
	Answer   string
	Rating   scheduler.Rating
	Timezone string
}

// ReviewService processes answer submissions end to end: evaluate, update
// scheduling and streak state, persist, log the attempt.
type ReviewService struct {
	store  store.Store
	coord  *mastery.Coordinator
	logger *slog.Logger
}

// NewReviewService creates a ReviewService.
func NewReviewService(s store.Store, coord *mastery.Coordinator, logger *slog.Logger) *ReviewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{store: s, coord: coord, logger: logger}
}

// SubmitReview grades the answer and persists the resulting card and streak
// state. The card row and the streak row are independent conflict domains:
// each write gets at most one retry against a re-read of its own row, and a
// retry never touches the other row. Evaluation always wins over
// persistence: once a verdict exists, a failed write is logged for
// reconciliation and the verdict is still returned. The exception is a
// double conflict before anything was committed, which surfaces as
// ErrTryAgain.
func (rs *ReviewService) SubmitReview(ctx context.Context, req SubmitRequest) (*mastery.Result, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", evaluation.ErrInvalidRequest)
	}

	now := time.Now().UTC()

	in, streakVersion, err := rs.loadState(ctx, req, now)
	if err != nil {
		return nil, err
	}

	result, err := rs.coord.Process(ctx, in)
	if err != nil {
		return nil, err
	}

	// Card write, retried once against a fresh read of the card row.
	if result.Card != nil {
		if err := rs.store.UpdateCard(ctx, result.Card); err != nil {
			if !errors.Is(err, store.ErrConflict) {
				return rs.deliverUnpersisted(ctx, req, result, "failed to persist card", err)
			}

			fresh, lerr := rs.loadCard(ctx, req)
			if lerr != nil {
				return rs.deliverUnpersisted(ctx, req, result, "failed to reload card after conflict", lerr)
			}
			in.Card = fresh
			reapplied, aerr := rs.coord.Apply(result.Evaluation, in)
			if aerr != nil {
				return rs.deliverUnpersisted(ctx, req, result, "failed to reapply review after conflict", aerr)
			}
			if err := rs.store.UpdateCard(ctx, reapplied.Card); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return nil, ErrTryAgain
				}
				return rs.deliverUnpersisted(ctx, req, reapplied, "failed to persist card", err)
			}
			result = reapplied
		}
	}

	// Streak write, retried once against a fresh read of the streak row.
	// The card write above is already committed, so the retry re-applies
	// only the streak side and never reschedules the card.
	if err := rs.persistStreak(ctx, result.Streak, streakVersion); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			rs.logger.Error("failed to persist streak",
				"user_id", req.UserID, "error", err)
		} else if rerr := rs.retryStreak(ctx, req, &result, now); rerr != nil {
			if errors.Is(rerr, store.ErrConflict) && result.Card == nil {
				// Nothing was committed; the client can simply resubmit.
				return nil, ErrTryAgain
			}
			rs.logger.Error("failed to persist streak after conflict",
				"user_id", req.UserID, "error", rerr)
		}
	}

	rs.logAttempt(ctx, req, result.Evaluation)
	return &result, nil
}

// retryStreak re-reads the streak row, re-applies only the streak side of
// the already-evaluated attempt (same-day re-application is a no-op), and
// writes it back. One review is one card transition: the card is never
// rescheduled here.
func (rs *ReviewService) retryStreak(ctx context.Context, req SubmitRequest, result *mastery.Result, now time.Time) error {
	rec, version, err := rs.loadStreak(ctx, req.UserID)
	if err != nil {
		return err
	}
	reapplied, err := rs.coord.Apply(result.Evaluation, mastery.Input{
		Streak:   rec,
		Timezone: req.Timezone,
		Now:      now,
	})
	if err != nil {
		return err
	}
	if err := rs.persistStreak(ctx, reapplied.Streak, version); err != nil {
		return err
	}
	result.Streak = reapplied.Streak
	result.StreakResult = reapplied.StreakResult
	result.XPAwarded = reapplied.XPAwarded
	return nil
}

// deliverUnpersisted returns a verdict whose state writes failed: the
// failure is logged for reconciliation and the user still sees their grade.
func (rs *ReviewService) deliverUnpersisted(ctx context.Context, req SubmitRequest, result mastery.Result, msg string, err error) (*mastery.Result, error) {
	rs.logger.Error(msg, "user_id", req.UserID, "card_id", req.CardID, "error", err)
	rs.logAttempt(ctx, req, result.Evaluation)
	return &result, nil
}

// loadState reads the card (if any) and the streak record for one
// compute-write cycle.
func (rs *ReviewService) loadState(ctx context.Context, req SubmitRequest, now time.Time) (mastery.Input, int64, error) {
	in := mastery.Input{
		Question:       req.Question,
		ExpectedAnswer: req.Expected,
		UserAnswer:     req.Answer,
		Rating:         req.Rating,
		Timezone:       req.Timezone,
		Now:            now,
	}

	if req.CardID != "" {
		c, err := rs.loadCard(ctx, req)
		if err != nil {
			return mastery.Input{}, 0, err
		}
		in.Card = c
		in.Question = c.Front
		in.ExpectedAnswer = c.Back
		in.AcceptableAnswers = c.AcceptableAnswers
	}

	rec, version, err := rs.loadStreak(ctx, req.UserID)
	if err != nil {
		return mastery.Input{}, 0, err
	}
	in.Streak = rec

	return in, version, nil
}

// loadCard fetches the card and enforces ownership.
func (rs *ReviewService) loadCard(ctx context.Context, req SubmitRequest) (*card.ReviewCard, error) {
	c, err := rs.store.GetCard(ctx, req.CardID)
	if err != nil {
		return nil, fmt.Errorf("load card %s: %w", req.CardID, err)
	}
	if c.UserID != req.UserID {
		return nil, store.ErrNotFound
	}
	return c, nil
}

// loadStreak fetches the streak row and its version. A missing row maps to
// a fresh record with version 0; streak rows are created lazily.
func (rs *ReviewService) loadStreak(ctx context.Context, userID string) (streak.Record, int64, error) {
	rec, version, err := rs.store.GetStreak(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return streak.Record{UserID: userID}, 0, nil
	}
	if err != nil {
		return streak.Record{}, 0, fmt.Errorf("load streak for %s: %w", userID, err)
	}
	return rec, version, nil
}

// persistStreak writes the streak row. Version 0 means the row does not
// exist yet and is inserted.
func (rs *ReviewService) persistStreak(ctx context.Context, rec streak.Record, version int64) error {
	if version == 0 {
		return rs.store.CreateStreak(ctx, rec)
	}
	return rs.store.UpdateStreak(ctx, rec, version)
}

// logAttempt records the evaluation for reconciliation. Failures here are
// logged and swallowed: the attempt log must never block a verdict.
func (rs *ReviewService) logAttempt(ctx context.Context, req SubmitRequest, eval evaluation.Result) {
	attempt := &store.Attempt{
		UserID:   req.UserID,
		Method:   string(eval.Method),
		Correct:  eval.Correct,
		Score:    eval.Score,
		Feedback: eval.Feedback,
		Elapsed:  eval.Elapsed,
	}
	if req.CardID != "" {
		attempt.CardID = &req.CardID
	}
	if err := rs.store.InsertAttempt(ctx, attempt); err != nil {
		rs.logger.Error("failed to log attempt", "user_id", req.UserID, "error", err)
	}
}

// UseStreakFreeze consumes one freeze token for the user, preserving the
// streak across a missed day.
func (rs *ReviewService) UseStreakFreeze(ctx context.Context, userID, tz string) (streak.Record, error) {
	rec, version, err := rs.store.GetStreak(ctx, userID)
	if err != nil {
		return streak.Record{}, err
	}

	loc, _ := timezone.Parse(tz)
	updated, err := streak.UseFreeze(rec, loc, time.Now().UTC())
	if err != nil {
		return streak.Record{}, err
	}

	if err := rs.store.UpdateStreak(ctx, updated, version); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return streak.Record{}, ErrTryAgain
		}
		return streak.Record{}, err
	}
	return updated, nil
}

// StreakStatus projects the user's streak onto the current instant.
func (rs *ReviewService) StreakStatus(ctx context.Context, userID, tz string) (streak.Status, error) {
	rec, _, err := rs.store.GetStreak(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		rec = streak.Record{UserID: userID}
	} else if err != nil {
		return streak.Status{}, err
	}

	loc, _ := timezone.Parse(tz)
	return streak.GetStatus(rec, loc, time.Now().UTC()), nil
}
