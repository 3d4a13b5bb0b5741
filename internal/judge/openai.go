package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Config holds the LLM judge configuration.
type Config struct {
	BaseURL string // OpenAI-compatible endpoint; empty = api.openai.com
	APIKey  string
	Model   string // e.g. "gpt-4o-mini", "qwen3-8b"
}

// OpenAIJudge grades answers by calling an OpenAI-compatible chat endpoint
// (OpenAI, Ollama, LM Studio, vLLM, etc.).
type OpenAIJudge struct {
	client *openai.Client
	model  string
}

// Compile-time check: *OpenAIJudge satisfies the Judge interface.
var _ Judge = (*OpenAIJudge)(nil)

// NewOpenAIJudge creates a judge that calls the configured LLM endpoint.
func NewOpenAIJudge(cfg Config) *OpenAIJudge {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIJudge{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

const maxAttempts = 2

// Grade sends the answer to the LLM and parses a Verdict out of its reply.
// It retries once on parse failure (small models sometimes need a second
// try). The ctx deadline bounds the total call; a timeout surfaces as a
// GradeError like any other failure.
func (j *OpenAIJudge) Grade(ctx context.Context, in Input) (Verdict, error) {
	prompt := buildPrompt(in)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		raw, err := j.callLLM(ctx, prompt)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break // deadline hit, retrying cannot help
			}
			continue
		}

		jsonStr := extractJSON(raw)
		if jsonStr == "" {
			lastErr = &GradeError{Reason: "no JSON object found in LLM response"}
			continue
		}

		// Pointer fields distinguish "absent" from zero values: a reply
		// that omits any contract field is not a verdict.
		var parsed struct {
			Correct  *bool   `json:"correct"`
			Score    *int    `json:"score"`
			Feedback *string `json:"feedback"`
		}
		if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
			lastErr = &GradeError{Reason: "invalid JSON from LLM", Wrapped: err}
			continue
		}
		if parsed.Correct == nil || parsed.Score == nil || parsed.Feedback == nil {
			lastErr = &GradeError{Reason: "LLM response missing verdict fields"}
			continue
		}

		return Verdict{
			Correct:  *parsed.Correct,
			Score:    clampScore(*parsed.Score),
			Feedback: strings.TrimSpace(*parsed.Feedback),
		}, nil
	}

	return Verdict{}, &GradeError{
		Reason:  fmt.Sprintf("failed after %d attempts", maxAttempts),
		Wrapped: lastErr,
	}
}

// callLLM sends a single chat completion request and returns the raw text.
func (j *OpenAIJudge) callLLM(ctx context.Context, prompt string) (string, error) {
	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("LLM request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("LLM returned empty content")
	}
	return content, nil
}

// buildPrompt creates a short, directive grading prompt. The JSON schema
// comes last so it is the final thing the model sees.
func buildPrompt(in Input) string {
	contextBlock := ""
	if in.Context != "" {
		contextBlock = fmt.Sprintf("CONTEXT:\n%s\n\n", in.Context)
	}

	return fmt.Sprintf(`You are grading a student's answer to a study question. Award partial credit for partially correct answers.

RULES:
- The answer is correct if it expresses the same idea as the expected answer, even with different wording or synonyms.
- Score 0-100 reflecting how complete and accurate the answer is.
- Feedback must be one short sentence the student can act on.

%sQUESTION:
%s

EXPECTED ANSWER:
%s

STUDENT'S ANSWER:
%s

Respond with ONLY this JSON, no explanation, no markdown:
{"correct": true/false, "score": 0-100, "feedback": "one sentence"}`,
		contextBlock, in.Question, in.ExpectedAnswer, in.UserAnswer)
}

// clampScore forces a score into the 0-100 contract range.
func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// extractJSON finds the outermost JSON object in a string.
// It handles nested braces correctly and skips braces inside quoted strings.
func extractJSON(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, ch := range s {
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			depth--
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
