// Package model holds the shared domain types of the interview conversation.
package model

import "time"

// InterviewStatus is the lifecycle state of an interview.
type InterviewStatus string

const (
	StatusInProgress InterviewStatus = "in_progress"
	StatusCompleted  InterviewStatus = "completed"
	StatusAbandoned  InterviewStatus = "abandoned"
)

// Question is one entry of the ordered interview catalog.
type Question struct {
	ID       int64
	Position int32
	Text     string
}

// Turn is one completed exchange within an interview.
type Turn struct {
	QuestionID   int64
	Question     string
	EmployeeText string
	BotText      string
	Sentiment    float64
	CreatedAt    time.Time
}

// ConversationState is the per-interview turn state, owned exclusively by the
// orchestrator for the duration of one ProcessTurn call.
//
// Invariants: FollowUpsAskedForCurrent never exceeds the configured cap before
// advancement is forced; CurrentQuestionIndex is monotonically non-decreasing;
// IsComplete becomes true exactly when the index passes the question count.
type ConversationState struct {
	InterviewID              string
	CurrentQuestionIndex     int32
	FollowUpsAskedForCurrent int32
	Turns                    []Turn
	IsComplete               bool
}

// FollowUpAction tags the outcome of the follow-up decision invocation.
type FollowUpAction int

const (
	// ActionAdvance moves the conversation to the next catalog question.
	ActionAdvance FollowUpAction = iota
	// ActionStay keeps the current question and asks the follow-up.
	ActionStay
)

// FollowUpDecision is the parsed follow-up outcome. The raw upstream text is
// parsed once at the boundary; internal logic never re-parses strings.
type FollowUpDecision struct {
	Action   FollowUpAction
	Question string
}

// TurnResult is returned to the caller of ProcessTurn.
type TurnResult struct {
	BotText      string
	NextQuestion *Question
	Sentiment    float64
	IsComplete   bool
}
