package biz

import (
	"strings"
	"testing"

	"ExitLane/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestBuildTurnPromptIncludesQuestionAndAnswer(t *testing.T) {
	q := &model.Question{ID: 1, Text: "Why are you leaving?"}
	prompt := buildTurnPrompt(q, nil, "I found a role closer to home.")

	assert.Contains(t, prompt, "Why are you leaving?")
	assert.Contains(t, prompt, "I found a role closer to home.")
}

func TestBuildTurnPromptIncludesHistory(t *testing.T) {
	q := &model.Question{ID: 2, Text: "What could we have done better?"}
	history := []model.Turn{
		{Question: "Why are you leaving?", EmployeeText: "The commute."},
	}

	prompt := buildTurnPrompt(q, history, "More remote days.")
	assert.Contains(t, prompt, "The commute.")
	assert.Contains(t, prompt, "Conversation so far:")
}

func TestBuildTurnPromptDropsOldestHistoryUnderBudget(t *testing.T) {
	q := &model.Question{ID: 3, Text: "Anything else?"}

	long := strings.Repeat("word ", 1500)
	history := []model.Turn{
		{Question: "old question", EmployeeText: long},
		{Question: "recent question", EmployeeText: "short recent answer"},
	}

	prompt := buildTurnPrompt(q, history, "no")
	assert.Contains(t, prompt, "short recent answer", "newest history is kept")
	assert.NotContains(t, prompt, long, "oldest oversized history is dropped")
	assert.LessOrEqual(t, countTokens(prompt), promptTokenBudget+64)
}

func TestCountTokensNonZero(t *testing.T) {
	assert.Greater(t, countTokens("hello world"), 0)
	assert.Greater(t, countTokens("x"), 0)
}
