package biz

import (
	"strings"

	"ExitLane/internal/model"
)

// noFollowUpSentinel is the literal the follow-up prompt instructs the model
// to answer when no follow-up is warranted.
const noFollowUpSentinel = "NONE"

// buildFollowUpPrompt asks the model for either the sentinel or one follow-up
// question, nothing else, so parsing stays a single comparison.
func buildFollowUpPrompt(q *model.Question, employeeText string) string {
	var b strings.Builder
	b.WriteString("You are conducting an exit interview. The question was:\n")
	b.WriteString(q.Text)
	b.WriteString("\n\nThe employee answered:\n")
	b.WriteString(employeeText)
	b.WriteString("\n\nIf the answer is incomplete or raises something worth one clarifying question, reply with that single follow-up question. Otherwise reply with exactly ")
	b.WriteString(noFollowUpSentinel)
	b.WriteString(".")
	return b.String()
}

// ParseFollowUpDecision converts the raw upstream text into a tagged decision.
// Parsing happens once here at the boundary; the orchestrator never compares
// sentinel strings itself.
func ParseFollowUpDecision(raw string) model.FollowUpDecision {
	text := strings.TrimSpace(raw)
	text = strings.Trim(text, `"'`)

	if text == "" {
		return model.FollowUpDecision{Action: model.ActionAdvance}
	}

	// Models occasionally wrap or decorate the sentinel ("NONE.", "none").
	head := strings.ToUpper(strings.TrimRight(text, ".!"))
	if head == noFollowUpSentinel {
		return model.FollowUpDecision{Action: model.ActionAdvance}
	}

	// Anything else is treated as the candidate follow-up question. Only the
	// first line counts; some models append explanations.
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}

	return model.FollowUpDecision{
		Action:   model.ActionStay,
		Question: text,
	}
}
