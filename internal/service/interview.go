// Package service exposes the HTTP-facing application services.
package service

import (
	"context"

	"ExitLane/internal/biz"
	"ExitLane/internal/model"
	"ExitLane/pkg/llm"
	"ExitLane/pkg/metadata"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// TurnRequest is the body of POST /v1/interviews/{id}/turns.
type TurnRequest struct {
	// Message is the employee's message. An empty message is a valid turn.
	Message string `json:"message"`
	// QuestionID optionally pins the turn to a specific catalog question.
	QuestionID *int64 `json:"question_id,omitempty"`
}

// QuestionReply is a catalog question as returned to clients.
type QuestionReply struct {
	ID       int64  `json:"id"`
	Position int32  `json:"position"`
	Text     string `json:"text"`
}

// TurnReply is the response for a processed turn.
type TurnReply struct {
	BotText      string         `json:"bot_text"`
	NextQuestion *QuestionReply `json:"next_question,omitempty"`
	Sentiment    float64        `json:"sentiment"`
	IsComplete   bool           `json:"is_complete"`
}

// StartRequest is the body of POST /v1/interviews.
type StartRequest struct {
	// Metadata carries optional HR context for the interview.
	Metadata *metadata.InterviewMetadata `json:"metadata,omitempty"`
}

// StartReply is the response for a newly started interview.
type StartReply struct {
	InterviewID   string                      `json:"interview_id"`
	FirstQuestion *QuestionReply              `json:"first_question"`
	Metadata      *metadata.InterviewMetadata `json:"metadata,omitempty"`
}

// GenerateRequest is the body of POST /v1/llm/generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateReply carries the resilient invocation outcome.
type GenerateReply struct {
	Text       string `json:"text"`
	DurationMs int64  `json:"duration_ms"`
	Degraded   bool   `json:"degraded"`
}

// SentimentRequest is the body of POST /v1/llm/sentiment.
type SentimentRequest struct {
	Text string `json:"text"`
}

// SentimentReply carries the sentiment score in [-1, 1].
type SentimentReply struct {
	Score float64 `json:"score"`
}

// HealthReply reports service liveness and breaker state.
type HealthReply struct {
	Status       string `json:"status"`
	BreakerOpen  bool   `json:"breaker_open"`
	FailureCount int32  `json:"failure_count"`
}

// InterviewService handles the interview and LLM HTTP operations.
type InterviewService struct {
	uc     *biz.ConversationUseCase
	lm     *llm.Client
	logger *log.Helper
}

// NewInterviewService creates a new InterviewService instance.
func NewInterviewService(uc *biz.ConversationUseCase, lm *llm.Client, logger log.Logger) *InterviewService {
	return &InterviewService{
		uc:     uc,
		lm:     lm,
		logger: log.NewHelper(logger),
	}
}

// StartInterview allocates a fresh interview ID, records any HR metadata,
// and returns the opening question.
func (s *InterviewService) StartInterview(ctx context.Context, req *StartRequest) (*StartReply, error) {
	metadataJSON := ""
	if req != nil && req.Metadata != nil {
		if err := req.Metadata.Validate(); err != nil {
			return nil, errors.BadRequest("INVALID_METADATA", err.Error())
		}
		metadataJSON = req.Metadata.String()
	}

	id := uuid.NewString()

	first, err := s.uc.StartInterview(ctx, id, metadataJSON)
	if err != nil {
		s.logger.Errorw("msg", "failed to start interview", "error", err)
		return nil, err
	}

	s.logger.Infow("msg", "interview started", "type", "interview", "interview_id", id)

	reply := &StartReply{
		InterviewID:   id,
		FirstQuestion: toQuestionReply(first),
	}
	if req != nil && req.Metadata != nil {
		reply.Metadata = req.Metadata.MaskSensitive()
	}
	return reply, nil
}

// ProcessTurn handles one employee message for the given interview.
func (s *InterviewService) ProcessTurn(ctx context.Context, interviewID string, req *TurnRequest) (*TurnReply, error) {
	result, err := s.uc.ProcessTurn(ctx, interviewID, req.Message, req.QuestionID)
	if err != nil {
		s.logger.Errorw("msg", "failed to process turn",
			"interview_id", interviewID, "error", err)
		return nil, err
	}

	return &TurnReply{
		BotText:      result.BotText,
		NextQuestion: toQuestionReply(result.NextQuestion),
		Sentiment:    result.Sentiment,
		IsComplete:   result.IsComplete,
	}, nil
}

// Generate invokes the resilient LLM pipeline directly. Degraded outcomes are
// reported in-band, never as transport errors.
func (s *InterviewService) Generate(ctx context.Context, req *GenerateRequest) (*GenerateReply, error) {
	res := s.lm.GenerateResponse(ctx, req.Prompt)
	return &GenerateReply{
		Text:       res.Text,
		DurationMs: res.DurationMs,
		Degraded:   !res.OK(),
	}, nil
}

// Sentiment scores a single piece of text.
func (s *InterviewService) Sentiment(ctx context.Context, req *SentimentRequest) (*SentimentReply, error) {
	return &SentimentReply{Score: s.lm.AnalyzeSentiment(ctx, req.Text)}, nil
}

// Health reports liveness plus the breaker state for dashboards.
func (s *InterviewService) Health(ctx context.Context) (*HealthReply, error) {
	breaker := s.lm.Breaker()
	return &HealthReply{
		Status:       "ok",
		BreakerOpen:  breaker.IsOpen(),
		FailureCount: int32(breaker.FailureCount()),
	}, nil
}

func toQuestionReply(q *model.Question) *QuestionReply {
	if q == nil {
		return nil
	}
	return &QuestionReply{
		ID:       q.ID,
		Position: q.Position,
		Text:     q.Text,
	}
}
