package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ExitLane/internal/biz"
	"ExitLane/internal/conf"
	"ExitLane/internal/model"
	"ExitLane/pkg/crypto"
	pkgerrors "ExitLane/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// Interview is the GORM model for the interviews table.
type Interview struct {
	ID                   string     `gorm:"primaryKey;column:id;size:64"`
	Status               string     `gorm:"column:status;type:enum('in_progress','completed','abandoned');default:'in_progress';not null"`
	CurrentQuestionIndex int32      `gorm:"column:current_question_index;default:0;not null"`
	FollowUpsAsked       int32      `gorm:"column:follow_ups_asked;default:0;not null"` // for the current question
	Summary              *string    `gorm:"column:summary;type:text"`
	Metadata             *string    `gorm:"column:metadata;type:json"` // JSON string (pointer for NULL support)
	CompletedAt          *time.Time `gorm:"column:completed_at"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Interview) TableName() string {
	return "interviews"
}

// InterviewTurn is the GORM model for the interview_turns table.
// The employee's message is AES-256-GCM encrypted at rest.
type InterviewTurn struct {
	ID                    int64     `gorm:"primaryKey;autoIncrement;column:id"`
	InterviewID           string    `gorm:"column:interview_id;size:64;index;not null"`
	QuestionID            int64     `gorm:"column:question_id;not null"`
	QuestionText          string    `gorm:"column:question_text;type:text"`
	EmployeeTextEncrypted string    `gorm:"column:employee_text_encrypted;type:text"`
	BotText               string    `gorm:"column:bot_text;type:text"`
	Sentiment             float64   `gorm:"column:sentiment;default:0;not null"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (InterviewTurn) TableName() string {
	return "interview_turns"
}

// interviewRepo implements biz.InterviewRepo backed by MySQL with a Redis
// cache-aside for conversation state and Redis SETNX turn locks.
type interviewRepo struct {
	db     *gorm.DB
	data   *Data
	crypto *crypto.AESCrypto
	log    *log.Helper
}

// NewInterviewRepo creates the interview repository. The encryption key comes
// from conf.Auth and must be 32 bytes for AES-256.
func NewInterviewRepo(db *gorm.DB, d *Data, bc *conf.Bootstrap, logger log.Logger) (biz.InterviewRepo, error) {
	if bc.Auth == nil || bc.Auth.Encryption == nil || bc.Auth.Encryption.Key == "" {
		return nil, fmt.Errorf("encryption key is required")
	}

	aes, err := crypto.NewAESCrypto([]byte(bc.Auth.Encryption.Key))
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}

	return &interviewRepo{
		db:     db,
		data:   d,
		crypto: aes,
		log:    log.NewHelper(logger),
	}, nil
}

// CreateInterview creates the interview row with optional metadata JSON.
// Losing the creation race to a concurrent caller is not an error.
func (r *interviewRepo) CreateInterview(ctx context.Context, interviewID string, metadataJSON string) error {
	iv := Interview{ID: interviewID, Status: string(model.StatusInProgress)}
	if metadataJSON != "" {
		iv.Metadata = &metadataJSON
	}

	if err := r.db.WithContext(ctx).Create(&iv).Error; err != nil {
		if pkgerrors.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("create interview %s: %w", interviewID, err)
	}
	return nil
}

// LoadConversationState loads the per-interview turn state, creating the
// interview row on first contact. Cache-aside: Redis first, MySQL on miss.
func (r *interviewRepo) LoadConversationState(ctx context.Context, interviewID string) (*model.ConversationState, error) {
	cacheKey := BuildCacheKey(CacheKeyState, interviewID)

	var cached model.ConversationState
	if err := r.data.GetCache().Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheUnavailable) {
		r.log.Warnf("state cache read failed for %s: %v", interviewID, err)
	}

	var iv Interview
	err := r.db.WithContext(ctx).First(&iv, "id = ?", interviewID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// First turn for this interview: create the row.
		iv = Interview{ID: interviewID, Status: string(model.StatusInProgress)}
		if err := r.db.WithContext(ctx).Create(&iv).Error; err != nil {
			if pkgerrors.IsDuplicateKeyError(err) {
				// Lost the creation race to a concurrent first turn.
				if err := r.db.WithContext(ctx).First(&iv, "id = ?", interviewID).Error; err != nil {
					return nil, fmt.Errorf("reload interview %s: %w", interviewID, err)
				}
			} else {
				return nil, fmt.Errorf("create interview %s: %w", interviewID, err)
			}
		}
	} else if err != nil {
		return nil, fmt.Errorf("load interview %s: %w", interviewID, err)
	}

	var rows []InterviewTurn
	if err := r.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load turns for %s: %w", interviewID, err)
	}

	state := &model.ConversationState{
		InterviewID:              interviewID,
		CurrentQuestionIndex:     iv.CurrentQuestionIndex,
		FollowUpsAskedForCurrent: iv.FollowUpsAsked,
		IsComplete:               iv.Status == string(model.StatusCompleted),
		Turns:                    make([]model.Turn, 0, len(rows)),
	}

	for _, row := range rows {
		text, err := r.crypto.Decrypt(row.EmployeeTextEncrypted)
		if err != nil {
			// A corrupt row must not sink the whole conversation.
			r.log.Warnf("failed to decrypt turn %d of interview %s: %v", row.ID, interviewID, err)
			text = ""
		}
		state.Turns = append(state.Turns, model.Turn{
			QuestionID:   row.QuestionID,
			Question:     row.QuestionText,
			EmployeeText: text,
			BotText:      row.BotText,
			Sentiment:    row.Sentiment,
			CreatedAt:    row.CreatedAt,
		})
	}

	if err := r.data.GetCache().Set(ctx, cacheKey, state, TTLState); err != nil && !errors.Is(err, ErrCacheUnavailable) {
		r.log.Warnf("state cache write failed for %s: %v", interviewID, err)
	}

	return state, nil
}

// AppendTurn persists one completed exchange, encrypting the employee's
// message before it reaches MySQL.
func (r *interviewRepo) AppendTurn(ctx context.Context, interviewID string, turn *model.Turn) error {
	encrypted, err := r.crypto.Encrypt(turn.EmployeeText)
	if err != nil {
		return fmt.Errorf("encrypt employee text: %w", err)
	}

	row := InterviewTurn{
		InterviewID:           interviewID,
		QuestionID:            turn.QuestionID,
		QuestionText:          turn.Question,
		EmployeeTextEncrypted: encrypted,
		BotText:               turn.BotText,
		Sentiment:             turn.Sentiment,
		CreatedAt:             turn.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append turn for %s: %w", interviewID, err)
	}

	r.invalidateState(ctx, interviewID)
	return nil
}

// UpdateProgress persists the question index and follow-up counter.
func (r *interviewRepo) UpdateProgress(ctx context.Context, interviewID string, questionIndex, followUps int32) error {
	res := r.db.WithContext(ctx).Model(&Interview{}).
		Where("id = ?", interviewID).
		Updates(map[string]interface{}{
			"current_question_index": questionIndex,
			"follow_ups_asked":       followUps,
		})
	if res.Error != nil {
		return fmt.Errorf("update progress for %s: %w", interviewID, res.Error)
	}

	r.invalidateState(ctx, interviewID)
	return nil
}

// MarkComplete sets status "completed" and stores the closing summary.
func (r *interviewRepo) MarkComplete(ctx context.Context, interviewID string, summary string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&Interview{}).
		Where("id = ?", interviewID).
		Updates(map[string]interface{}{
			"status":       string(model.StatusCompleted),
			"summary":      summary,
			"completed_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("mark complete %s: %w", interviewID, res.Error)
	}

	r.invalidateState(ctx, interviewID)
	return nil
}

// MarkAbandonedBefore marks in-progress interviews idle since before the
// cutoff as abandoned. State caches for affected rows expire via TTL.
func (r *interviewRepo) MarkAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Interview{}).
		Where("status = ? AND updated_at < ?", string(model.StatusInProgress), cutoff).
		Update("status", string(model.StatusAbandoned))
	if res.Error != nil {
		return 0, fmt.Errorf("mark abandoned: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// AcquireTurnLock takes the per-interview turn serialization lock via SETNX.
func (r *interviewRepo) AcquireTurnLock(ctx context.Context, interviewID string, ttl time.Duration) (bool, error) {
	return r.data.GetCache().SetNX(ctx, BuildCacheKey(CacheKeyLock, interviewID), 1, ttl)
}

// ReleaseTurnLock releases the per-interview lock (best effort).
func (r *interviewRepo) ReleaseTurnLock(ctx context.Context, interviewID string) error {
	err := r.data.GetCache().Delete(ctx, BuildCacheKey(CacheKeyLock, interviewID))
	if errors.Is(err, ErrCacheUnavailable) {
		return nil
	}
	return err
}

// invalidateState drops the cached conversation state after a write.
func (r *interviewRepo) invalidateState(ctx context.Context, interviewID string) {
	err := r.data.GetCache().Delete(ctx, BuildCacheKey(CacheKeyState, interviewID))
	if err != nil && !errors.Is(err, ErrCacheUnavailable) {
		r.log.Warnf("state cache invalidation failed for %s: %v", interviewID, err)
	}
}
