package biz

import (
	"context"
	"time"

	"ExitLane/internal/conf"
	"ExitLane/internal/model"
	"ExitLane/pkg/llm"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// LMClient is the resilient invocation surface the orchestrator depends on.
// The concrete implementation is the cached, retried, circuit-broken client in
// pkg/llm; tests substitute a scripted fake.
type LMClient interface {
	GenerateResponse(ctx context.Context, prompt string, extra ...string) llm.ResponseResult
	AnalyzeSentiment(ctx context.Context, text string) float64
}

// closingMessage is shown to the employee once all questions are exhausted.
const closingMessage = "Thank you for taking the time to share your feedback. Your responses have been recorded and will help us improve. We wish you all the best in your next role."

// ConversationUseCase owns the per-interview turn state machine: active
// question resolution, follow-up budget, history, completion detection. It
// holds ConversationState only for the duration of one call; persistence is
// delegated to InterviewRepo.
type ConversationUseCase struct {
	repo    InterviewRepo
	catalog QuestionCatalog
	lm      LMClient

	maxFollowUps int32
	turnLockTTL  time.Duration
	staleAge     time.Duration

	logger *log.Helper
}

// NewConversationUseCase creates the conversation orchestrator.
func NewConversationUseCase(c *conf.Interview, repo InterviewRepo, catalog QuestionCatalog, lm LMClient, logger log.Logger) *ConversationUseCase {
	maxFollowUps := int32(2)
	turnLockTTL := 90 * time.Second
	staleAge := 72 * time.Hour
	if c != nil {
		if c.MaxFollowUps > 0 {
			maxFollowUps = c.MaxFollowUps
		}
		if c.TurnLockTtl.AsDuration() > 0 {
			turnLockTTL = c.TurnLockTtl.AsDuration()
		}
		if c.StaleAge.AsDuration() > 0 {
			staleAge = c.StaleAge.AsDuration()
		}
	}

	return &ConversationUseCase{
		repo:         repo,
		catalog:      catalog,
		lm:           lm,
		maxFollowUps: maxFollowUps,
		turnLockTTL:  turnLockTTL,
		staleAge:     staleAge,
		logger:       log.NewHelper(logger),
	}
}

// newTurnConflictError reports a concurrent turn for the same interview.
func newTurnConflictError(interviewID string) error {
	return errors.New(409, "TURN_IN_PROGRESS",
		"another turn for interview "+interviewID+" is still being processed")
}

// ProcessTurn handles one employee message for the given interview.
//
// Turns for the same interview are serialized via a per-interview lock; a
// second concurrent submission is rejected rather than queued. An empty
// employee message is processed as a valid turn, not rejected.
func (uc *ConversationUseCase) ProcessTurn(ctx context.Context, interviewID, employeeText string, questionID *int64) (*model.TurnResult, error) {
	acquired, err := uc.repo.AcquireTurnLock(ctx, interviewID, uc.turnLockTTL)
	if err != nil {
		// Lock storage down: proceed without serialization rather than
		// blocking the conversation.
		uc.logger.Warnw("msg", "turn lock unavailable, proceeding unserialized",
			"type", "interview",
			"interview_id", interviewID,
			"error", err.Error())
	} else if !acquired {
		return nil, newTurnConflictError(interviewID)
	}
	defer func() {
		_ = uc.repo.ReleaseTurnLock(ctx, interviewID)
	}()

	state, err := uc.repo.LoadConversationState(ctx, interviewID)
	if err != nil {
		return nil, err
	}

	questions, err := uc.catalog.ListOrdered(ctx)
	if err != nil {
		return nil, err
	}

	// No active question remains: close out the interview.
	if state.IsComplete || int(state.CurrentQuestionIndex) >= len(questions) {
		return uc.complete(ctx, state)
	}

	active, err := uc.resolveActiveQuestion(state, questions, questionID)
	if err != nil {
		return nil, err
	}

	// Bot reply and sentiment for this turn. The interview ID participates in
	// the cache key so identical answers in different interviews do not share
	// bot replies.
	prompt := buildTurnPrompt(active, state.Turns, employeeText)
	botRes := uc.lm.GenerateResponse(ctx, prompt, interviewID)
	sentiment := uc.lm.AnalyzeSentiment(ctx, employeeText)

	turn := &model.Turn{
		QuestionID:   active.ID,
		Question:     active.Text,
		EmployeeText: employeeText,
		BotText:      botRes.Text,
		Sentiment:    sentiment,
		CreatedAt:    time.Now(),
	}

	// The turn is persisted unconditionally, before the follow-up decision:
	// even if the same question is re-asked, this exchange happened.
	if err := uc.repo.AppendTurn(ctx, interviewID, turn); err != nil {
		return nil, err
	}
	state.Turns = append(state.Turns, *turn)

	result := &model.TurnResult{
		BotText:   botRes.Text,
		Sentiment: sentiment,
	}

	// Follow-up decision, only while budget remains for the active question.
	if state.FollowUpsAskedForCurrent < uc.maxFollowUps {
		decision := uc.decideFollowUp(ctx, interviewID, active, employeeText)
		if decision.Action == model.ActionStay {
			state.FollowUpsAskedForCurrent++
			if err := uc.repo.UpdateProgress(ctx, interviewID, state.CurrentQuestionIndex, state.FollowUpsAskedForCurrent); err != nil {
				return nil, err
			}

			followUp := *active
			followUp.Text = decision.Question
			result.NextQuestion = &followUp

			uc.logger.Infow("msg", "follow-up issued",
				"type", "interview",
				"interview_id", interviewID,
				"question_id", active.ID,
				"follow_ups_used", state.FollowUpsAskedForCurrent)
			return result, nil
		}
	}

	// Advance to the next catalog question, resetting the follow-up budget.
	state.CurrentQuestionIndex++
	state.FollowUpsAskedForCurrent = 0
	if err := uc.repo.UpdateProgress(ctx, interviewID, state.CurrentQuestionIndex, 0); err != nil {
		return nil, err
	}

	if int(state.CurrentQuestionIndex) >= len(questions) {
		completed, err := uc.complete(ctx, state)
		if err != nil {
			return nil, err
		}
		// The bot reply for this turn still stands; completion only adds the
		// closing message and final status.
		result.IsComplete = true
		result.BotText = botRes.Text + "\n\n" + completed.BotText
		return result, nil
	}

	next := questions[state.CurrentQuestionIndex]
	result.NextQuestion = &next
	return result, nil
}

// resolveActiveQuestion picks the explicit question when an ID is supplied,
// otherwise the first unanswered question in sequence.
func (uc *ConversationUseCase) resolveActiveQuestion(state *model.ConversationState, questions []model.Question, questionID *int64) (*model.Question, error) {
	if questionID == nil {
		q := questions[state.CurrentQuestionIndex]
		return &q, nil
	}

	for i := range questions {
		if questions[i].ID == *questionID {
			return &questions[i], nil
		}
	}
	return nil, errors.New(404, "QUESTION_NOT_FOUND", "question not found in catalog")
}

// decideFollowUp issues the distinct "should follow up" invocation and parses
// its outcome once at the boundary. A degraded upstream answer advances the
// conversation instead of burning follow-up budget on an apology.
func (uc *ConversationUseCase) decideFollowUp(ctx context.Context, interviewID string, active *model.Question, employeeText string) model.FollowUpDecision {
	res := uc.lm.GenerateResponse(ctx, buildFollowUpPrompt(active, employeeText), interviewID, "follow-up")
	if !res.OK() {
		return model.FollowUpDecision{Action: model.ActionAdvance}
	}
	return ParseFollowUpDecision(res.Text)
}

// complete marks the interview finished, generating and persisting the
// closing summary, and returns the fixed closing message.
func (uc *ConversationUseCase) complete(ctx context.Context, state *model.ConversationState) (*model.TurnResult, error) {
	summary := uc.summarize(ctx, state)

	if err := uc.repo.MarkComplete(ctx, state.InterviewID, summary); err != nil {
		return nil, err
	}
	state.IsComplete = true

	uc.logger.Infow("msg", "interview completed",
		"type", "interview",
		"interview_id", state.InterviewID,
		"turns", len(state.Turns))

	return &model.TurnResult{
		BotText:    closingMessage,
		IsComplete: true,
	}, nil
}

// StartInterview creates the interview record and returns the opening
// question of the catalog.
func (uc *ConversationUseCase) StartInterview(ctx context.Context, interviewID, metadataJSON string) (*model.Question, error) {
	questions, err := uc.catalog.ListOrdered(ctx)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, errors.New(500, "EMPTY_CATALOG", "no interview questions configured")
	}

	if err := uc.repo.CreateInterview(ctx, interviewID, metadataJSON); err != nil {
		return nil, err
	}

	q := questions[0]
	return &q, nil
}

// ExpireStaleInterviews marks interviews idle past the configured age as
// abandoned. Called by the maintenance cron.
func (uc *ConversationUseCase) ExpireStaleInterviews(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-uc.staleAge)

	n, err := uc.repo.MarkAbandonedBefore(ctx, cutoff)
	if err != nil {
		uc.logger.Errorw("msg", "stale interview expiry failed",
			"type", "scheduler",
			"error", err.Error())
		return 0, err
	}

	if n > 0 {
		uc.logger.Infow("msg", "stale interviews marked abandoned",
			"type", "scheduler",
			"count", n)
	}
	return n, nil
}
