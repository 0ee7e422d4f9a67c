package biz

import (
	"context"
	"time"

	"ExitLane/internal/model"
)

// InterviewRepo defines persistence operations for interviews and their turns.
// Following Kratos v2 DDD architecture, interfaces are defined in the biz layer
// and implemented in the data layer. No transactional guarantee is assumed
// beyond "the write happened before the call returns".
type InterviewRepo interface {
	// CreateInterview creates the interview row with optional metadata JSON.
	// Creating an interview that already exists is not an error.
	CreateInterview(ctx context.Context, interviewID string, metadataJSON string) error

	// LoadConversationState loads the full per-interview turn state.
	LoadConversationState(ctx context.Context, interviewID string) (*model.ConversationState, error)

	// AppendTurn persists one completed exchange.
	AppendTurn(ctx context.Context, interviewID string, turn *model.Turn) error

	// UpdateProgress persists the question index and follow-up counter.
	UpdateProgress(ctx context.Context, interviewID string, questionIndex, followUps int32) error

	// MarkComplete sets status "completed" and stores the closing summary.
	MarkComplete(ctx context.Context, interviewID string, summary string) error

	// MarkAbandonedBefore marks in-progress interviews idle since before the
	// cutoff as abandoned. Returns the number affected.
	MarkAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// AcquireTurnLock takes the per-interview turn serialization lock.
	// Returns false when another turn for the same interview is in flight.
	AcquireTurnLock(ctx context.Context, interviewID string, ttl time.Duration) (bool, error)

	// ReleaseTurnLock releases the per-interview lock (best effort).
	ReleaseTurnLock(ctx context.Context, interviewID string) error
}

// QuestionCatalog provides the ordered interview questions. Static or
// slowly-changing reference data; implementations may cache.
type QuestionCatalog interface {
	ListOrdered(ctx context.Context) ([]model.Question, error)
}
