package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/lumenlearn/backend/internal/judge"
)

// Method tags how a verdict was reached.
type Method string

const (
	MethodExact Method = "exact"
	MethodFuzzy Method = "fuzzy"
	MethodAI    Method = "ai"
)

// ErrInvalidRequest marks a request rejected before any tier ran.
var ErrInvalidRequest = errors.New("invalid evaluation request")

// Request is one answer to evaluate.
type Request struct {
	Question          string
	ExpectedAnswer    string
	UserAnswer        string
	AcceptableAnswers []string // alternative accepted forms, may be empty
	Context           string   // optional course/topic context for the judge
}

// Result is the verdict for a single attempt. It is ephemeral; the caller
// may log it, but it is never persisted as its own entity.
type Result struct {
	Correct  bool          `json:"correct"`
	Score    int           `json:"score"` // 0-100
	Feedback string        `json:"feedback"`
	Method   Method        `json:"method"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Config holds the tunable evaluation policy.
type Config struct {
	FullMatchThreshold    float64
	PartialMatchThreshold float64
	// LowSimilarityPenalty scales the similarity score when the semantic
	// tier was unavailable and similarity fell below the partial threshold.
	// Deliberately conservative so near-misses are not over-credited when
	// no semantic check ran.
	LowSimilarityPenalty float64
	JudgeTimeout         time.Duration
}

// DefaultConfig returns the standard evaluation policy.
func DefaultConfig() Config {
	return Config{
		FullMatchThreshold:    FullMatchThreshold,
		PartialMatchThreshold: PartialMatchThreshold,
		LowSimilarityPenalty:  0.5,
		JudgeTimeout:          5 * time.Second,
	}
}

// Evaluator runs the tiered answer cascade: exact match, fuzzy match, then
// an external semantic judge with an unconditional fuzzy fallback. It holds
// no mutable state and is safe for concurrent use.
type Evaluator struct {
	judge  judge.Judge // nil disables the semantic tier
	config Config
	logger *slog.Logger
}

// New creates an Evaluator with the default policy.
func New(j judge.Judge, logger *slog.Logger) *Evaluator {
	return NewWithConfig(j, DefaultConfig(), logger)
}

// NewWithConfig creates an Evaluator with a custom policy.
func NewWithConfig(j judge.Judge, cfg Config, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{judge: j, config: cfg, logger: logger}
}

// Evaluate produces a verdict for the request. A well-formed request always
// gets a verdict: judge failures degrade to the fuzzy fallback and never
// surface as an error. The only error case is a malformed request.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Result{}, fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.ExpectedAnswer) == "" {
		return Result{}, fmt.Errorf("%w: expected answer is required", ErrInvalidRequest)
	}

	start := time.Now()
	result := e.evaluate(ctx, req)
	result.Elapsed = time.Since(start)
	return result, nil
}

func (e *Evaluator) evaluate(ctx context.Context, req Request) Result {
	// Tier 0: empty-answer guard. Nothing else runs.
	if strings.TrimSpace(req.UserAnswer) == "" {
		return Result{
			Correct:  false,
			Score:    0,
			Feedback: "No answer was provided.",
			Method:   MethodExact,
		}
	}

	accepted := append([]string{req.ExpectedAnswer}, req.AcceptableAnswers...)

	// Tier 1: exact match after normalization.
	normUser := Normalize(req.UserAnswer)
	for _, a := range accepted {
		if normUser == Normalize(a) {
			return Result{
				Correct:  true,
				Score:    100,
				Feedback: "Correct!",
				Method:   MethodExact,
			}
		}
	}

	// Tier 2: fuzzy match. The match is kept around for the fallback path.
	match := BestMatch(req.UserAnswer, accepted)
	if match.Ratio >= e.config.FullMatchThreshold {
		return Result{
			Correct:  true,
			Score:    roundScore(match.Ratio * 100),
			Feedback: "Correct, with minor differences from the expected answer.",
			Method:   MethodFuzzy,
		}
	}

	// Tier 3: semantic judge, bounded by the timeout budget.
	if e.judge != nil {
		judgeCtx, cancel := context.WithTimeout(ctx, e.config.JudgeTimeout)
		defer cancel()

		verdict, err := e.judge.Grade(judgeCtx, judge.Input{
			Question:       req.Question,
			ExpectedAnswer: req.ExpectedAnswer,
			UserAnswer:     req.UserAnswer,
			Context:        req.Context,
		})
		if err == nil {
			return Result{
				Correct:  verdict.Correct,
				Score:    clamp(verdict.Score, 0, 100),
				Feedback: verdict.Feedback,
				Method:   MethodAI,
			}
		}
		e.logger.Warn("semantic judge unavailable, using fuzzy fallback", "error", err)
	}

	// Fallback: grade from the similarity computed in tier 2.
	return e.fuzzyFallback(match)
}

// fuzzyFallback grades an answer when the semantic tier produced no verdict.
func (e *Evaluator) fuzzyFallback(match Match) Result {
	if match.Ratio >= e.config.PartialMatchThreshold {
		return Result{
			Correct:  false,
			Score:    roundScore(match.Ratio * 100),
			Feedback: "Partially correct. Compare your answer with the expected one.",
			Method:   MethodFuzzy,
		}
	}
	return Result{
		Correct:  false,
		Score:    roundScore(match.Ratio * 100 * e.config.LowSimilarityPenalty),
		Feedback: "Your answer differs from the expected one. Reviewing the material is advised.",
		Method:   MethodFuzzy,
	}
}

func roundScore(f float64) int {
	return clamp(int(math.Round(f)), 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
