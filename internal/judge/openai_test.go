package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"correct": true}`, `{"correct": true}`},
		{"surrounded by prose", `Sure! Here you go: {"score": 80} Hope that helps.`, `{"score": 80}`},
		{"nested braces", `{"a": {"b": 1}}`, `{"a": {"b": 1}}`},
		{"brace inside string", `{"feedback": "use {} carefully"}`, `{"feedback": "use {} carefully"}`},
		{"escaped quote inside string", `{"feedback": "say \"hi\" {ok}"}`, `{"feedback": "say \"hi\" {ok}"}`},
		{"no object", `no json here`, ""},
		{"unclosed object", `{"a": 1`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, clampScore(-5))
	assert.Equal(t, 0, clampScore(0))
	assert.Equal(t, 73, clampScore(73))
	assert.Equal(t, 100, clampScore(100))
	assert.Equal(t, 100, clampScore(250))
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt(Input{
		Question:       "What is osmosis?",
		ExpectedAnswer: "Movement of water across a membrane",
		UserAnswer:     "Water moving through a membrane",
		Context:        "Biology, chapter 3",
	})

	assert.Contains(t, p, "What is osmosis?")
	assert.Contains(t, p, "Movement of water across a membrane")
	assert.Contains(t, p, "Water moving through a membrane")
	assert.Contains(t, p, "Biology, chapter 3")
	// Schema comes last so the model sees it right before answering.
	assert.True(t, strings.HasSuffix(strings.TrimSpace(p), `{"correct": true/false, "score": 0-100, "feedback": "one sentence"}`))
}

// chatResponse builds a minimal OpenAI chat completion payload whose
// message content is the given string.
func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	}
}

func TestOpenAIJudge_Grade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse(`{"correct": true, "score": 140, "feedback": " Nice work. "}`))
	}))
	defer srv.Close()

	j := NewOpenAIJudge(Config{BaseURL: srv.URL, APIKey: "test", Model: "test-model"})

	v, err := j.Grade(context.Background(), Input{
		Question:       "Capital of France?",
		ExpectedAnswer: "Paris",
		UserAnswer:     "The capital is Paris",
	})
	require.NoError(t, err)
	assert.True(t, v.Correct)
	assert.Equal(t, 100, v.Score, "score above 100 must be clamped")
	assert.Equal(t, "Nice work.", v.Feedback)
}

func TestOpenAIJudge_Grade_RetriesOnGarbage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			json.NewEncoder(w).Encode(chatResponse("I cannot grade this."))
			return
		}
		json.NewEncoder(w).Encode(chatResponse(`{"correct": false, "score": 40, "feedback": "Half right."}`))
	}))
	defer srv.Close()

	j := NewOpenAIJudge(Config{BaseURL: srv.URL, APIKey: "test", Model: "test-model"})

	v, err := j.Grade(context.Background(), Input{Question: "q", ExpectedAnswer: "a", UserAnswer: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.False(t, v.Correct)
	assert.Equal(t, 40, v.Score)
}

func TestOpenAIJudge_Grade_MissingFieldsIsNotAVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse(`{"unrelated": 1}`))
	}))
	defer srv.Close()

	j := NewOpenAIJudge(Config{BaseURL: srv.URL, APIKey: "test", Model: "test-model"})

	// Valid JSON with none of the contract fields must not pass as a
	// zero-valued verdict.
	_, err := j.Grade(context.Background(), Input{Question: "q", ExpectedAnswer: "a", UserAnswer: "b"})
	require.Error(t, err)

	var gradeErr *GradeError
	require.ErrorAs(t, err, &gradeErr)
}

func TestOpenAIJudge_Grade_RetriesOnMissingFields(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			json.NewEncoder(w).Encode(chatResponse(`{"correct": true, "score": 90}`))
			return
		}
		json.NewEncoder(w).Encode(chatResponse(`{"correct": true, "score": 90, "feedback": "Good."}`))
	}))
	defer srv.Close()

	j := NewOpenAIJudge(Config{BaseURL: srv.URL, APIKey: "test", Model: "test-model"})

	v, err := j.Grade(context.Background(), Input{Question: "q", ExpectedAnswer: "a", UserAnswer: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "incomplete reply must consume a retry, not return")
	assert.Equal(t, 90, v.Score)
}

func TestOpenAIJudge_Grade_FailsAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("still no json"))
	}))
	defer srv.Close()

	j := NewOpenAIJudge(Config{BaseURL: srv.URL, APIKey: "test", Model: "test-model"})

	_, err := j.Grade(context.Background(), Input{Question: "q", ExpectedAnswer: "a", UserAnswer: "b"})
	require.Error(t, err)

	var gradeErr *GradeError
	require.ErrorAs(t, err, &gradeErr)
	assert.Contains(t, gradeErr.Error(), "failed after 2 attempts")
}
