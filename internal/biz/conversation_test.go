package biz

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ExitLane/internal/conf"
	"ExitLane/internal/model"
	"ExitLane/pkg/llm"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"
)

// fakeRepo is an in-memory InterviewRepo recording every mutation.
type fakeRepo struct {
	state *model.ConversationState

	appended     []model.Turn
	progress     [][2]int32
	createdID    string
	createdMeta  string
	completedID  string
	summary      string
	lockHeld     bool
	lockDenied   bool
	lockErr      error
	releaseCalls int
}

func (r *fakeRepo) CreateInterview(ctx context.Context, interviewID string, metadataJSON string) error {
	r.createdID = interviewID
	r.createdMeta = metadataJSON
	return nil
}

func (r *fakeRepo) LoadConversationState(ctx context.Context, interviewID string) (*model.ConversationState, error) {
	if r.state == nil {
		return &model.ConversationState{InterviewID: interviewID}, nil
	}
	cp := *r.state
	cp.Turns = append([]model.Turn(nil), r.state.Turns...)
	return &cp, nil
}

func (r *fakeRepo) AppendTurn(ctx context.Context, interviewID string, turn *model.Turn) error {
	r.appended = append(r.appended, *turn)
	return nil
}

func (r *fakeRepo) UpdateProgress(ctx context.Context, interviewID string, questionIndex, followUps int32) error {
	r.progress = append(r.progress, [2]int32{questionIndex, followUps})
	return nil
}

func (r *fakeRepo) MarkComplete(ctx context.Context, interviewID string, summary string) error {
	r.completedID = interviewID
	r.summary = summary
	return nil
}

func (r *fakeRepo) MarkAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeRepo) AcquireTurnLock(ctx context.Context, interviewID string, ttl time.Duration) (bool, error) {
	if r.lockErr != nil {
		return false, r.lockErr
	}
	if r.lockDenied {
		return false, nil
	}
	r.lockHeld = true
	return true, nil
}

func (r *fakeRepo) ReleaseTurnLock(ctx context.Context, interviewID string) error {
	r.releaseCalls++
	r.lockHeld = false
	return nil
}

type fakeCatalog struct {
	questions []model.Question
}

func (c *fakeCatalog) ListOrdered(ctx context.Context) ([]model.Question, error) {
	return c.questions, nil
}

// fakeLM scripts responses per invocation kind, keyed off the extra tags the
// orchestrator attaches.
type fakeLM struct {
	turnText string

	followUpText     string
	followUpDegraded bool

	summaryText string

	sentiment float64

	turnCalls     int
	followUpCalls int
	summaryCalls  int
}

func (f *fakeLM) GenerateResponse(ctx context.Context, prompt string, extra ...string) llm.ResponseResult {
	kind := ""
	if len(extra) > 1 {
		kind = extra[1]
	}
	switch kind {
	case "follow-up":
		f.followUpCalls++
		if f.followUpDegraded {
			return llm.ResponseResult{Text: llm.DegradedRetryExhaustedText, Error: "retries exhausted"}
		}
		return llm.ResponseResult{Text: f.followUpText, DurationMs: 5}
	case "summary":
		f.summaryCalls++
		return llm.ResponseResult{Text: f.summaryText, DurationMs: 5}
	default:
		f.turnCalls++
		return llm.ResponseResult{Text: f.turnText, DurationMs: 5}
	}
}

func (f *fakeLM) AnalyzeSentiment(ctx context.Context, text string) float64 {
	return f.sentiment
}

func twoQuestions() []model.Question {
	return []model.Question{
		{ID: 1, Position: 1, Text: "Why are you leaving?"},
		{ID: 2, Position: 2, Text: "What could we have done better?"},
	}
}

func newTestUseCase(repo *fakeRepo, catalog *fakeCatalog, lm LMClient) *ConversationUseCase {
	c := &conf.Interview{
		MaxFollowUps: 2,
		TurnLockTtl:  durationpb.New(90 * time.Second),
		StaleAge:     durationpb.New(72 * time.Hour),
	}
	return NewConversationUseCase(c, repo, catalog, lm, log.NewStdLogger(testWriter{}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestProcessTurnAdvancesToNextQuestion(t *testing.T) {
	repo := &fakeRepo{}
	lm := &fakeLM{turnText: "Thanks for sharing that.", followUpText: "NONE", sentiment: -0.4}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, lm)

	res, err := uc.ProcessTurn(context.Background(), "iv-1", "Better pay elsewhere.", nil)
	require.NoError(t, err)

	assert.Equal(t, "Thanks for sharing that.", res.BotText)
	assert.False(t, res.IsComplete)
	require.NotNil(t, res.NextQuestion)
	assert.Equal(t, int64(2), res.NextQuestion.ID)
	assert.InDelta(t, -0.4, res.Sentiment, 1e-9)

	// The turn was persisted and progress advanced with the counter reset.
	require.Len(t, repo.appended, 1)
	assert.Equal(t, "Better pay elsewhere.", repo.appended[0].EmployeeText)
	require.Len(t, repo.progress, 1)
	assert.Equal(t, [2]int32{1, 0}, repo.progress[0])
	assert.Equal(t, 1, repo.releaseCalls)
}

func TestProcessTurnIssuesFollowUp(t *testing.T) {
	repo := &fakeRepo{}
	lm := &fakeLM{turnText: "I see.", followUpText: "What specifically about the pay?"}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, lm)

	res, err := uc.ProcessTurn(context.Background(), "iv-1", "The pay.", nil)
	require.NoError(t, err)

	require.NotNil(t, res.NextQuestion)
	assert.Equal(t, int64(1), res.NextQuestion.ID, "stays on the same question")
	assert.Equal(t, "What specifically about the pay?", res.NextQuestion.Text)

	// Index unchanged, follow-up counter incremented.
	require.Len(t, repo.progress, 1)
	assert.Equal(t, [2]int32{0, 1}, repo.progress[0])

	// Turn persisted before the follow-up decision.
	require.Len(t, repo.appended, 1)
}

func TestProcessTurnFollowUpBudgetExhausted(t *testing.T) {
	repo := &fakeRepo{state: &model.ConversationState{
		InterviewID:              "iv-1",
		CurrentQuestionIndex:     0,
		FollowUpsAskedForCurrent: 2,
	}}
	lm := &fakeLM{turnText: "Understood.", followUpText: "One more thing?"}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, lm)

	res, err := uc.ProcessTurn(context.Background(), "iv-1", "Still the pay.", nil)
	require.NoError(t, err)

	// Budget spent: no follow-up invocation at all, advance regardless.
	assert.Equal(t, 0, lm.followUpCalls)
	require.NotNil(t, res.NextQuestion)
	assert.Equal(t, int64(2), res.NextQuestion.ID)
	assert.Equal(t, [2]int32{1, 0}, repo.progress[0])
}

func TestProcessTurnDegradedFollowUpAdvances(t *testing.T) {
	repo := &fakeRepo{}
	lm := &fakeLM{turnText: "Noted.", followUpDegraded: true}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, lm)

	res, err := uc.ProcessTurn(context.Background(), "iv-1", "Commute.", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, lm.followUpCalls)
	require.NotNil(t, res.NextQuestion)
	assert.Equal(t, int64(2), res.NextQuestion.ID, "degraded decision must advance, not re-ask")
}

func TestProcessTurnCompletesInterview(t *testing.T) {
	repo := &fakeRepo{state: &model.ConversationState{
		InterviewID:          "iv-9",
		CurrentQuestionIndex: 1,
		Turns: []model.Turn{
			{QuestionID: 1, Question: "Why are you leaving?", EmployeeText: "Pay."},
		},
	}}
	lm := &fakeLM{turnText: "Appreciated.", followUpText: "NONE", summaryText: "Left over compensation."}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, lm)

	res, err := uc.ProcessTurn(context.Background(), "iv-9", "Nothing, it was fine.", nil)
	require.NoError(t, err)

	assert.True(t, res.IsComplete)
	assert.Nil(t, res.NextQuestion)
	assert.True(t, strings.HasPrefix(res.BotText, "Appreciated."))
	assert.Contains(t, res.BotText, closingMessage)

	assert.Equal(t, "iv-9", repo.completedID)
	assert.Equal(t, "Left over compensation.", repo.summary)
	assert.Equal(t, 1, lm.summaryCalls)
}

func TestProcessTurnAlreadyComplete(t *testing.T) {
	repo := &fakeRepo{state: &model.ConversationState{
		InterviewID: "iv-2",
		IsComplete:  true,
		Turns:       []model.Turn{{QuestionID: 1, EmployeeText: "Pay."}},
	}}
	lm := &fakeLM{summaryText: "Done."}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, lm)

	res, err := uc.ProcessTurn(context.Background(), "iv-2", "hello again", nil)
	require.NoError(t, err)

	assert.True(t, res.IsComplete)
	assert.Equal(t, closingMessage, res.BotText)
	assert.Equal(t, 0, lm.turnCalls, "no bot reply generated for a finished interview")
	assert.Empty(t, repo.appended)
}

func TestProcessTurnEmptyMessageIsValid(t *testing.T) {
	repo := &fakeRepo{}
	lm := &fakeLM{turnText: "Take your time.", followUpText: "NONE"}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, lm)

	res, err := uc.ProcessTurn(context.Background(), "iv-1", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "Take your time.", res.BotText)
	require.Len(t, repo.appended, 1)
	assert.Equal(t, "", repo.appended[0].EmployeeText)
}

func TestProcessTurnExplicitQuestionID(t *testing.T) {
	repo := &fakeRepo{}
	lm := &fakeLM{turnText: "Got it.", followUpText: "NONE"}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, lm)

	qid := int64(2)
	_, err := uc.ProcessTurn(context.Background(), "iv-1", "More flexibility.", &qid)
	require.NoError(t, err)

	require.Len(t, repo.appended, 1)
	assert.Equal(t, int64(2), repo.appended[0].QuestionID)
}

func TestProcessTurnUnknownQuestionID(t *testing.T) {
	repo := &fakeRepo{}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, &fakeLM{})

	qid := int64(99)
	_, err := uc.ProcessTurn(context.Background(), "iv-1", "text", &qid)
	require.Error(t, err)

	ke := kerrors.FromError(err)
	assert.Equal(t, int32(404), ke.Code)
	assert.Equal(t, "QUESTION_NOT_FOUND", ke.Reason)
}

func TestProcessTurnConcurrentRejected(t *testing.T) {
	repo := &fakeRepo{lockDenied: true}
	lm := &fakeLM{}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, lm)

	_, err := uc.ProcessTurn(context.Background(), "iv-1", "text", nil)
	require.Error(t, err)

	ke := kerrors.FromError(err)
	assert.Equal(t, int32(409), ke.Code)
	assert.Equal(t, "TURN_IN_PROGRESS", ke.Reason)
	assert.Equal(t, 0, lm.turnCalls)
	assert.Empty(t, repo.appended)
}

func TestProcessTurnLockStorageDownProceeds(t *testing.T) {
	repo := &fakeRepo{lockErr: errors.New("redis: connection refused")}
	lm := &fakeLM{turnText: "OK.", followUpText: "NONE"}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, lm)

	res, err := uc.ProcessTurn(context.Background(), "iv-1", "text", nil)
	require.NoError(t, err)
	assert.Equal(t, "OK.", res.BotText)
}

func TestStartInterview(t *testing.T) {
	repo := &fakeRepo{}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, &fakeLM{})

	q, err := uc.StartInterview(context.Background(), "iv-7", `{"department":"Engineering"}`)
	require.NoError(t, err)

	assert.Equal(t, int64(1), q.ID)
	assert.Equal(t, "iv-7", repo.createdID)
	assert.Equal(t, `{"department":"Engineering"}`, repo.createdMeta)
}

func TestStartInterviewEmptyCatalog(t *testing.T) {
	uc := newTestUseCase(&fakeRepo{}, &fakeCatalog{}, &fakeLM{})

	_, err := uc.StartInterview(context.Background(), "iv-7", "")
	require.Error(t, err)
	assert.Equal(t, "EMPTY_CATALOG", kerrors.FromError(err).Reason)
}

func TestSummarizeDegradedFallback(t *testing.T) {
	repo := &fakeRepo{}
	lm := &degradedSummaryLM{}
	uc := newTestUseCase(repo, &fakeCatalog{questions: twoQuestions()}, lm)

	state := &model.ConversationState{
		InterviewID: "iv-3",
		Turns:       []model.Turn{{Question: "Why?", EmployeeText: "Pay."}},
	}
	assert.Equal(t, fallbackSummary, uc.summarize(context.Background(), state))
}

func TestSummarizeNoTurns(t *testing.T) {
	uc := newTestUseCase(&fakeRepo{}, &fakeCatalog{}, &fakeLM{})
	assert.Equal(t, fallbackSummary, uc.summarize(context.Background(), &model.ConversationState{InterviewID: "iv"}))
}

// degradedSummaryLM makes every generation degraded.
type degradedSummaryLM struct{}

func (degradedSummaryLM) GenerateResponse(ctx context.Context, prompt string, extra ...string) llm.ResponseResult {
	return llm.ResponseResult{Text: llm.DegradedCircuitOpenText, Error: llm.ErrCircuitOpen}
}

func (degradedSummaryLM) AnalyzeSentiment(ctx context.Context, text string) float64 { return 0 }
