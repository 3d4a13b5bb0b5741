// Package mastery glues the answer evaluator, the spaced-repetition
// scheduler, and the streak tracker into one update per graded attempt.
// The coordinator is pure orchestration: it persists nothing, so a caller
// that aborts after evaluation has no state to roll back.
package mastery

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenlearn/backend/internal/domain/card"
	"github.com/lumenlearn/backend/internal/evaluation"
	"github.com/lumenlearn/backend/internal/scheduler"
	"github.com/lumenlearn/backend/internal/streak"
	"github.com/lumenlearn/backend/internal/timezone"
)

// XPPolicy controls how much XP a graded attempt earns before streak
// rewards. A correct exact match is never penalized; very easy fuzzy
// matches earn slightly less.
type XPPolicy struct {
	CorrectXP      int // exact or semantic correct
	FuzzyCorrectXP int // correct via typo-tolerant match
	AttemptXP      int // any graded attempt, correct or not
}

// DefaultXPPolicy returns the baseline reward policy.
func DefaultXPPolicy() XPPolicy {
	return XPPolicy{
		CorrectXP:      20,
		FuzzyCorrectXP: 15,
		AttemptXP:      5,
	}
}

// Input is one attempt to process. Card is nil when the target is a
// standalone practice question with no scheduling state.
type Input struct {
	Card              *card.ReviewCard
	Question          string
	ExpectedAnswer    string
	AcceptableAnswers []string
	UserAnswer        string
	Context           string
	Rating            scheduler.Rating
	Streak            streak.Record
	Timezone          string // IANA identifier; invalid or empty falls back to UTC
	Now               time.Time
}

// Result is the aggregate outcome the caller persists and returns to the
// user.
type Result struct {
	Evaluation   evaluation.Result
	Card         *card.ReviewCard // updated copy; nil when no card was involved
	NewDue       time.Time        // zero when no card was involved
	Streak       streak.Record
	StreakResult streak.UpdateResult
	XPAwarded    int
}

// Coordinator wires the three engines together.
type Coordinator struct {
	evaluator *evaluation.Evaluator
	params    *scheduler.Params
	xp        XPPolicy
}

// New creates a Coordinator with the default scheduling and XP policies.
func New(e *evaluation.Evaluator) *Coordinator {
	return &Coordinator{
		evaluator: e,
		params:    scheduler.DefaultParams(),
		xp:        DefaultXPPolicy(),
	}
}

// NewWithPolicies creates a Coordinator with explicit policies.
func NewWithPolicies(e *evaluation.Evaluator, params *scheduler.Params, xp XPPolicy) *Coordinator {
	return &Coordinator{evaluator: e, params: params, xp: xp}
}

// Process evaluates the answer, then applies the scheduling and streak
// updates. Only the evaluation can suspend (the semantic tier's outbound
// call); everything after it is synchronous and pure.
func (c *Coordinator) Process(ctx context.Context, in Input) (Result, error) {
	eval, err := c.evaluator.Evaluate(ctx, evaluation.Request{
		Question:          in.Question,
		ExpectedAnswer:    in.ExpectedAnswer,
		UserAnswer:        in.UserAnswer,
		AcceptableAnswers: in.AcceptableAnswers,
		Context:           in.Context,
	})
	if err != nil {
		return Result{}, err
	}
	return c.Apply(eval, in)
}

// Apply runs the scheduling and streak updates for an already-evaluated
// attempt. Callers retrying a persistence conflict use Apply directly so
// the (possibly expensive) evaluation is not repeated.
func (c *Coordinator) Apply(eval evaluation.Result, in Input) (Result, error) {
	res := Result{Evaluation: eval}

	if in.Card != nil {
		next, err := c.params.Schedule(*in.Card, scheduler.Review{
			Correct: eval.Correct,
			Rating:  in.Rating,
		}, in.Now)
		if err != nil {
			return Result{}, fmt.Errorf("schedule card %s: %w", in.Card.ID, err)
		}
		res.Card = &next
		res.NewDue = next.Due
	}

	// Any graded attempt counts as activity, correct or not.
	loc, _ := timezone.Parse(in.Timezone) // falls back to UTC on bad input
	res.Streak, res.StreakResult = streak.CheckAndUpdate(in.Streak, loc, in.Now)

	res.XPAwarded = c.xpFor(eval) + res.StreakResult.DailyXP + res.StreakResult.BonusXP
	return res, nil
}

func (c *Coordinator) xpFor(eval evaluation.Result) int {
	if !eval.Correct {
		return c.xp.AttemptXP
	}
	if eval.Method == evaluation.MethodFuzzy {
		return c.xp.FuzzyCorrectXP
	}
	return c.xp.CorrectXP
}
