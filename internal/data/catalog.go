package data

import (
	"context"
	"fmt"
	"time"

	"ExitLane/internal/biz"
	"ExitLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"
)

// InterviewQuestion is the GORM model for the interview_questions table.
type InterviewQuestion struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Position  int32     `gorm:"column:position;uniqueIndex;not null"`
	Text      string    `gorm:"column:text;type:text;not null"`
	Active    bool      `gorm:"column:active;default:true;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (InterviewQuestion) TableName() string {
	return "interview_questions"
}

// questionCatalog implements biz.QuestionCatalog with an in-process expirable
// LRU in front of MySQL. The catalog changes rarely; a short TTL is enough to
// pick up edits without a restart.
type questionCatalog struct {
	db  *gorm.DB
	lru *expirable.LRU[string, []model.Question]
	log *log.Helper
}

// NewQuestionCatalog creates the question catalog repository.
func NewQuestionCatalog(db *gorm.DB, logger log.Logger) biz.QuestionCatalog {
	return &questionCatalog{
		db:  db,
		lru: expirable.NewLRU[string, []model.Question](4, nil, TTLCatalog),
		log: log.NewHelper(logger),
	}
}

// ListOrdered returns the active questions in position order.
func (c *questionCatalog) ListOrdered(ctx context.Context) ([]model.Question, error) {
	if cached, ok := c.lru.Get(CacheKeyCatalog); ok {
		return cached, nil
	}

	var rows []InterviewQuestion
	if err := c.db.WithContext(ctx).
		Where("active = ?", true).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load question catalog: %w", err)
	}

	questions := make([]model.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, model.Question{
			ID:       row.ID,
			Position: row.Position,
			Text:     row.Text,
		})
	}

	c.lru.Add(CacheKeyCatalog, questions)
	return questions, nil
}
