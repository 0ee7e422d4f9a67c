package biz

import (
	"context"
	"fmt"
	"strings"

	"ExitLane/internal/model"
)

const fallbackSummary = "Summary unavailable. The interview completed normally; see the transcript for details."

func buildSummaryPrompt(state *model.ConversationState) string {
	var b strings.Builder
	b.WriteString("Summarize the following exit interview in 3-5 sentences for an HR reviewer. Cover the main reasons for leaving, overall sentiment, and any actionable feedback. Be factual and neutral.\n\n")
	for _, turn := range state.Turns {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", turn.Question, turn.EmployeeText)
	}
	return b.String()
}

// summarize produces the HR-facing summary for a finished interview. A
// degraded upstream yields a fixed placeholder rather than an error so
// completion never blocks on the model.
func (uc *ConversationUseCase) summarize(ctx context.Context, state *model.ConversationState) string {
	if len(state.Turns) == 0 {
		return fallbackSummary
	}

	res := uc.lm.GenerateResponse(ctx, buildSummaryPrompt(state), state.InterviewID, "summary")
	if !res.OK() {
		uc.logger.Warnw("msg", "summary generation degraded, using placeholder",
			"type", "interview",
			"interview_id", state.InterviewID,
			"error", res.Error)
		return fallbackSummary
	}
	return strings.TrimSpace(res.Text)
}
