package data

import (
	"context"
	"testing"
	"time"

	"ExitLane/internal/conf"
	"ExitLane/internal/model"
	"ExitLane/pkg/crypto"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

// setupTestDB creates a test database connection with sqlmock
func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	cleanup := func() {
		sqlDB.Close()
	}

	return gormDB, mock, cleanup
}

// setupTestData creates a Data instance backed by miniredis
func setupTestData(t *testing.T) (*Data, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	d := &Data{
		redisClient: rdb,
		cache:       NewCacheClient(rdb),
	}

	cleanup := func() {
		rdb.Close()
		mr.Close()
	}

	return d, mr, cleanup
}

func setupInterviewRepo(t *testing.T) (*interviewRepo, sqlmock.Sqlmock, *miniredis.Miniredis, func()) {
	gormDB, mock, dbCleanup := setupTestDB(t)
	d, mr, dataCleanup := setupTestData(t)

	bc := &conf.Bootstrap{
		Auth: &conf.Auth{Encryption: &conf.Auth_Encryption{Key: testEncryptionKey}},
	}

	repo, err := NewInterviewRepo(gormDB, d, bc, log.DefaultLogger)
	require.NoError(t, err)

	cleanup := func() {
		dataCleanup()
		dbCleanup()
	}

	return repo.(*interviewRepo), mock, mr, cleanup
}

func TestNewInterviewRepoRequiresKey(t *testing.T) {
	gormDB, _, dbCleanup := setupTestDB(t)
	defer dbCleanup()
	d, _, dataCleanup := setupTestData(t)
	defer dataCleanup()

	_, err := NewInterviewRepo(gormDB, d, &conf.Bootstrap{Auth: &conf.Auth{}}, log.DefaultLogger)
	require.Error(t, err)

	_, err = NewInterviewRepo(gormDB, d, &conf.Bootstrap{
		Auth: &conf.Auth{Encryption: &conf.Auth_Encryption{Key: "too-short"}},
	}, log.DefaultLogger)
	require.Error(t, err)
}

func TestLoadConversationStateExisting(t *testing.T) {
	repo, mock, _, cleanup := setupInterviewRepo(t)
	defer cleanup()

	aes, err := crypto.NewAESCrypto([]byte(testEncryptionKey))
	require.NoError(t, err)
	encrypted, err := aes.Encrypt("The commute was too long.")
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery("SELECT \\* FROM `interviews`").
		WithArgs("iv-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "status", "current_question_index", "follow_ups_asked", "summary", "completed_at", "created_at", "updated_at",
		}).AddRow("iv-1", "in_progress", int32(1), int32(0), nil, nil, now, now))

	mock.ExpectQuery("SELECT \\* FROM `interview_turns`").
		WithArgs("iv-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "interview_id", "question_id", "question_text", "employee_text_encrypted", "bot_text", "sentiment", "created_at",
		}).AddRow(int64(1), "iv-1", int64(1), "Why are you leaving?", encrypted, "Understood.", -0.5, now))

	state, err := repo.LoadConversationState(context.Background(), "iv-1")
	require.NoError(t, err)

	assert.Equal(t, "iv-1", state.InterviewID)
	assert.Equal(t, int32(1), state.CurrentQuestionIndex)
	assert.False(t, state.IsComplete)
	require.Len(t, state.Turns, 1)
	assert.Equal(t, "The commute was too long.", state.Turns[0].EmployeeText, "employee text is decrypted on load")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadConversationStateCacheHit(t *testing.T) {
	repo, mock, _, cleanup := setupInterviewRepo(t)
	defer cleanup()

	ctx := context.Background()
	cached := &model.ConversationState{InterviewID: "iv-2", CurrentQuestionIndex: 3}
	require.NoError(t, repo.data.GetCache().Set(ctx, BuildCacheKey(CacheKeyState, "iv-2"), cached, TTLState))

	// No sqlmock expectations: the cached state must satisfy the load.
	state, err := repo.LoadConversationState(ctx, "iv-2")
	require.NoError(t, err)
	assert.Equal(t, int32(3), state.CurrentQuestionIndex)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadConversationStateCreatesNewInterview(t *testing.T) {
	repo, mock, _, cleanup := setupInterviewRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `interviews`").
		WithArgs("iv-new", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `interviews`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT \\* FROM `interview_turns`").
		WithArgs("iv-new").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "interview_id", "question_id", "question_text", "employee_text_encrypted", "bot_text", "sentiment", "created_at",
		}))

	state, err := repo.LoadConversationState(context.Background(), "iv-new")
	require.NoError(t, err)
	assert.Equal(t, int32(0), state.CurrentQuestionIndex)
	assert.Empty(t, state.Turns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendTurnEncryptsAndInvalidates(t *testing.T) {
	repo, mock, mr, cleanup := setupInterviewRepo(t)
	defer cleanup()

	ctx := context.Background()

	// Pre-existing cached state must be dropped by the write.
	stateKey := BuildCacheKey(CacheKeyState, "iv-1")
	require.NoError(t, repo.data.GetCache().Set(ctx, stateKey, &model.ConversationState{InterviewID: "iv-1"}, TTLState))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `interview_turns`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	turn := &model.Turn{
		QuestionID:   1,
		Question:     "Why are you leaving?",
		EmployeeText: "Better pay elsewhere.",
		BotText:      "Thanks for sharing.",
		Sentiment:    -0.2,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, repo.AppendTurn(ctx, "iv-1", turn))

	assert.False(t, mr.Exists(stateKey), "state cache invalidated after write")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProgress(t *testing.T) {
	repo, mock, _, cleanup := setupInterviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `interviews`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateProgress(context.Background(), "iv-1", 2, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkComplete(t *testing.T) {
	repo, mock, _, cleanup := setupInterviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `interviews`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarkComplete(context.Background(), "iv-1", "Left over compensation."))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAbandonedBefore(t *testing.T) {
	repo, mock, _, cleanup := setupInterviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `interviews`").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := repo.MarkAbandonedBefore(context.Background(), time.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTurnLockLifecycle(t *testing.T) {
	repo, _, _, cleanup := setupInterviewRepo(t)
	defer cleanup()

	ctx := context.Background()

	ok, err := repo.AcquireTurnLock(ctx, "iv-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AcquireTurnLock(ctx, "iv-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "concurrent turn must not get the lock")

	// Locks are per interview.
	ok, err = repo.AcquireTurnLock(ctx, "iv-other", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.ReleaseTurnLock(ctx, "iv-1"))

	ok, err = repo.AcquireTurnLock(ctx, "iv-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTurnLockWithoutRedis(t *testing.T) {
	gormDB, _, dbCleanup := setupTestDB(t)
	defer dbCleanup()

	d := &Data{cache: NewCacheClient(nil)}
	bc := &conf.Bootstrap{
		Auth: &conf.Auth{Encryption: &conf.Auth_Encryption{Key: testEncryptionKey}},
	}
	repo, err := NewInterviewRepo(gormDB, d, bc, log.DefaultLogger)
	require.NoError(t, err)

	_, err = repo.AcquireTurnLock(context.Background(), "iv-1", time.Minute)
	assert.Error(t, err, "caller decides how to degrade without lock storage")

	assert.NoError(t, repo.ReleaseTurnLock(context.Background(), "iv-1"))
}
