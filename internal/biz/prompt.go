package biz

import (
	"strings"
	"sync"

	"ExitLane/internal/model"

	"github.com/tiktoken-go/tokenizer"
)

// promptTokenBudget bounds the size of the turn prompt. History beyond the
// budget is dropped oldest-first; the active question and the new employee
// message are always included.
const promptTokenBudget = 2000

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// countTokens counts BPE tokens with the cl100k vocabulary, falling back to
// the rough chars/4 estimate when the tokenizer is unavailable.
func countTokens(text string) int {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			codec = c
		}
	})

	if codec != nil {
		if ids, _, err := codec.Encode(text); err == nil {
			return len(ids)
		}
	}

	// 1 token ~ 4 characters for English text
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// buildTurnPrompt combines the active question, as much prior history as the
// token budget allows, and the new employee message.
func buildTurnPrompt(active *model.Question, history []model.Turn, employeeText string) string {
	var b strings.Builder
	b.WriteString("You are a considerate exit-interview assistant. Respond to the employee's answer with a brief, empathetic acknowledgement. Do not ask a new question.\n\n")
	b.WriteString("Current question: ")
	b.WriteString(active.Text)
	b.WriteString("\n")

	base := countTokens(b.String()) + countTokens(employeeText)
	budget := promptTokenBudget - base

	// Walk history newest-first, keeping what fits, then emit oldest-first.
	var kept []string
	for i := len(history) - 1; i >= 0; i-- {
		turn := history[i]
		line := "Q: " + turn.Question + "\nA: " + turn.EmployeeText + "\n"
		cost := countTokens(line)
		if cost > budget {
			break
		}
		budget -= cost
		kept = append(kept, line)
	}

	if len(kept) > 0 {
		b.WriteString("\nConversation so far:\n")
		for i := len(kept) - 1; i >= 0; i-- {
			b.WriteString(kept[i])
		}
	}

	b.WriteString("\nEmployee's answer: ")
	b.WriteString(employeeText)
	return b.String()
}
