package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassifyDBError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType DatabaseErrorType
		wantCode uint16
	}{
		{
			name:     "nil error",
			err:      nil,
			wantType: ErrorTypeUnknown,
		},
		{
			name:     "record not found",
			err:      gorm.ErrRecordNotFound,
			wantType: ErrorTypeNotFound,
		},
		{
			name:     "wrapped record not found",
			err:      fmt.Errorf("load interview iv-1: %w", gorm.ErrRecordNotFound),
			wantType: ErrorTypeNotFound,
		},
		{
			name:     "duplicate key",
			err:      &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'iv-1' for key 'PRIMARY'"},
			wantType: ErrorTypeDuplicateKey,
			wantCode: 1062,
		},
		{
			name:     "data too long",
			err:      &mysql.MySQLError{Number: 1406, Message: "Data too long for column 'employee_text_encrypted'"},
			wantType: ErrorTypeDataTooLong,
			wantCode: 1406,
		},
		{
			name:     "deadlock",
			err:      &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"},
			wantType: ErrorTypeDeadlock,
			wantCode: 1213,
		},
		{
			name:     "null column",
			err:      &mysql.MySQLError{Number: 1048, Message: "Column 'question_id' cannot be null"},
			wantType: ErrorTypeInvalidValue,
			wantCode: 1048,
		},
		{
			name:     "unknown mysql error",
			err:      &mysql.MySQLError{Number: 9999, Message: "mystery"},
			wantType: ErrorTypeUnknown,
			wantCode: 9999,
		},
		{
			name:     "connection refused",
			err:      errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"),
			wantType: ErrorTypeConnectionError,
		},
		{
			name:     "plain error",
			err:      errors.New("something else"),
			wantType: ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbErr := ClassifyDBError(tt.err)
			if tt.err == nil {
				assert.Nil(t, dbErr)
				return
			}
			require.NotNil(t, dbErr)
			assert.Equal(t, tt.wantType, dbErr.Type)
			assert.Equal(t, tt.wantCode, dbErr.MySQLErrCode)
		})
	}
}

func TestDatabaseErrorUnwrap(t *testing.T) {
	inner := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	dbErr := ClassifyDBError(inner)

	var unwrapped *mysql.MySQLError
	assert.True(t, errors.As(dbErr, &unwrapped))
	assert.Equal(t, uint16(1062), unwrapped.Number)
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsDuplicateKeyError(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsDuplicateKeyError(gorm.ErrRecordNotFound))

	assert.True(t, IsNotFoundError(gorm.ErrRecordNotFound))
	assert.False(t, IsNotFoundError(&mysql.MySQLError{Number: 1062}))

	assert.True(t, IsDeadlockError(&mysql.MySQLError{Number: 1213}))
	assert.True(t, IsConnectionError(errors.New("read tcp: connection reset by peer")))
	assert.False(t, IsConnectionError(errors.New("syntax error")))
}

func TestDatabaseErrorMessage(t *testing.T) {
	dbErr := ClassifyDBError(&mysql.MySQLError{Number: 1406, Message: "Data too long"})
	assert.Contains(t, dbErr.Error(), "1406")
	assert.Contains(t, dbErr.Error(), "data too long for column")
}
