// Package scheduler computes the next scheduling state for a review card
// after a graded review. The computation is deterministic: identical card
// state and identical review outcome always produce identical output, and
// the only clock input is the "now" passed in by the caller.
package scheduler

import (
	"fmt"
	"time"

	"github.com/lumenlearn/backend/internal/domain/card"
)

// Rating is the optional 4-point quality rating attached to a review.
type Rating int

const (
	RatingNone  Rating = 0 // not supplied; derived from correctness
	RatingAgain Rating = 1
	RatingHard  Rating = 2
	RatingGood  Rating = 3
	RatingEasy  Rating = 4
)

// Valid reports whether r is a defined rating value.
func (r Rating) Valid() bool {
	return r >= RatingNone && r <= RatingEasy
}

// Review is one graded outcome fed to the scheduler.
type Review struct {
	Correct bool
	Rating  Rating
}

// Params holds the interval-growth policy. The exact constants are
// configuration, validated by monotonicity and bounds properties rather
// than by particular magic numbers.
type Params struct {
	LearningStep       time.Duration // interval for cards in learning
	GraduatingInterval time.Duration // minimum interval on promotion to review
	RelearningStep     time.Duration // interval while relearning after a lapse
	RelearningBase     time.Duration // conservative restart interval on recovery
	MaxInterval        time.Duration

	MinEase          float64
	EaseLapsePenalty float64 // subtracted from ease on a lapse
	EaseHardPenalty  float64 // subtracted on a hard success
	EaseEasyBonus    float64 // added on an easy success

	HardMultiplier float64 // interval growth for hard successes, floored at 1.0
	EasyBonus      float64 // extra growth factor for easy successes
}

// DefaultParams returns the baseline scheduling policy.
func DefaultParams() *Params {
	return &Params{
		LearningStep:       10 * time.Minute,
		GraduatingInterval: 24 * time.Hour,
		RelearningStep:     10 * time.Minute,
		RelearningBase:     24 * time.Hour,
		MaxInterval:        365 * 24 * time.Hour,
		MinEase:            1.3,
		EaseLapsePenalty:   0.2,
		EaseHardPenalty:    0.15,
		EaseEasyBonus:      0.15,
		HardMultiplier:     1.2,
		EasyBonus:          1.3,
	}
}

// Schedule returns a copy of the card with its next state, interval, and
// due date applied. It never mutates the input. A card state outside the
// defined enum is a contract violation and fails loudly rather than
// defaulting: silently guessing a state could corrupt scheduling for that
// card indefinitely.
func (p *Params) Schedule(c card.ReviewCard, rev Review, now time.Time) (card.ReviewCard, error) {
	if !rev.Rating.Valid() {
		return card.ReviewCard{}, fmt.Errorf("invalid quality rating %d", rev.Rating)
	}
	rating := effectiveRating(rev)

	next := c
	next.LastReview = now

	switch c.State {
	case card.StateNew:
		// First review always enters learning, pass or fail. Even an easy
		// first answer does not skip the learning step.
		next.State = card.StateLearning
		next.Interval = p.LearningStep

	case card.StateLearning:
		if rev.Correct {
			next.State = card.StateReview
			next.Interval = p.capInterval(p.growFromLearning(c))
		} else {
			next.Interval = p.LearningStep
		}

	case card.StateReview:
		if rev.Correct {
			next.Ease = p.adjustEaseOnSuccess(c.Ease, rating)
			next.Interval = p.capInterval(p.growOnSuccess(c.Interval, next.Ease, rating))
		} else {
			next.State = card.StateRelearning
			next.LapseCount = c.LapseCount + 1
			next.Ease = maxFloat(p.MinEase, c.Ease-p.EaseLapsePenalty)
			next.Interval = p.RelearningStep
		}

	case card.StateRelearning:
		if rev.Correct {
			// Restart from a conservative base, not the pre-lapse interval,
			// to rebuild confidence gradually.
			next.State = card.StateReview
			next.Interval = p.RelearningBase
		} else {
			next.Interval = p.RelearningStep
		}

	default:
		return card.ReviewCard{}, fmt.Errorf("card %s has undefined state %q", c.ID, c.State)
	}

	if next.Interval <= 0 {
		next.Interval = time.Minute
	}
	next.Due = now.Add(next.Interval)
	return next, nil
}

// effectiveRating derives a rating when none was supplied and forces a
// failed review to Again regardless of any supplied rating.
func effectiveRating(rev Review) Rating {
	if !rev.Correct {
		return RatingAgain
	}
	if rev.Rating == RatingNone || rev.Rating == RatingAgain {
		return RatingGood
	}
	return rev.Rating
}

// growFromLearning computes the graduation interval: ease-scaled growth
// bounded below by the graduating interval.
func (p *Params) growFromLearning(c card.ReviewCard) time.Duration {
	grown := time.Duration(float64(c.Interval) * c.Ease)
	if grown < p.GraduatingInterval {
		return p.GraduatingInterval
	}
	return grown
}

// growOnSuccess grows a review-state interval. The result is never shorter
// than the prior interval: a successful review must not bring a card back
// sooner.
func (p *Params) growOnSuccess(prior time.Duration, ease float64, rating Rating) time.Duration {
	var mult float64
	switch rating {
	case RatingHard:
		mult = maxFloat(1.0, p.HardMultiplier)
	case RatingEasy:
		mult = ease * p.EasyBonus
	default:
		mult = ease
	}

	grown := time.Duration(float64(prior) * mult)
	if grown < prior {
		return prior
	}
	return grown
}

func (p *Params) adjustEaseOnSuccess(ease float64, rating Rating) float64 {
	switch rating {
	case RatingHard:
		ease -= p.EaseHardPenalty
	case RatingEasy:
		ease += p.EaseEasyBonus
	}
	return maxFloat(p.MinEase, ease)
}

func (p *Params) capInterval(d time.Duration) time.Duration {
	if p.MaxInterval > 0 && d > p.MaxInterval {
		return p.MaxInterval
	}
	return d
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
