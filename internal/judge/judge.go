package judge

import (
	"context"
	"fmt"
)

// Input carries everything a judge needs to grade one free-form answer.
type Input struct {
	Question       string
	ExpectedAnswer string
	UserAnswer     string
	Context        string // optional course/topic context
}

// Verdict is the structured grading output of a semantic judge.
type Verdict struct {
	Correct  bool   `json:"correct"`
	Score    int    `json:"score"` // 0-100, clamped by implementations
	Feedback string `json:"feedback"`
}

// Judge grades free-form educational answers with partial credit.
// Implementations may call an LLM or return canned results (for tests).
// A Judge is fallible and slow by contract: callers must bound it with a
// context deadline and treat any error as "no verdict available".
type Judge interface {
	Grade(ctx context.Context, in Input) (Verdict, error)
}

// GradeError is returned when grading fails so the caller can distinguish
// between "judge returned a bad verdict" and "judge was unreachable."
type GradeError struct {
	Reason  string
	Wrapped error
}

func (e *GradeError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("grading failed: %s: %v", e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("grading failed: %s", e.Reason)
}

func (e *GradeError) Unwrap() error {
	return e.Wrapped
}
