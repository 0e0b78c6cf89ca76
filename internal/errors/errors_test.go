package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_WrapAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, ErrCodeUnavailable, "queue unavailable")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "queue unavailable: boom", err.Error())
	assert.True(t, IsUnavailable(fmt.Errorf("submit: %w", err)))
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "x"))
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrCodeNotFound.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, ErrCodeValidation.HTTPStatus())
	assert.Equal(t, http.StatusRequestEntityTooLarge, ErrCodeTooLarge.HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, ErrCodeUnavailable.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, ErrorCode("").HTTPStatus())
}

func TestHelpers(t *testing.T) {
	err := ValidationField("days", "days must be between 1 and 30")
	assert.True(t, IsValidation(err))
	assert.Equal(t, "days", GetField(err))
	assert.Equal(t, ErrCodeValidation, GetCode(err))
	assert.Equal(t, "days must be between 1 and 30", PublicMessage(err))

	assert.True(t, IsNotFound(NotFoundf("task %s not found", "abc")))
	assert.Equal(t, "internal server error", PublicMessage(errors.New("secret detail")))
	assert.Empty(t, GetCode(errors.New("plain")))
	assert.Empty(t, GetField(errors.New("plain")))
}

func TestMapDBError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  ErrorCode
		field string
	}{
		{name: "pgx no rows", err: pgx.ErrNoRows, code: ErrCodeNotFound},
		{name: "sql no rows", err: fmt.Errorf("get: %w", sql.ErrNoRows), code: ErrCodeNotFound},
		{name: "deadline", err: context.DeadlineExceeded, code: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, code: ErrCodeCanceled},
		{
			name:  "unique from detail",
			err:   &pgconn.PgError{Code: pgerrcode.UniqueViolation, Detail: "Key (task_id)=(abc) already exists."},
			code:  ErrCodeConflict,
			field: "task_id",
		},
		{
			name:  "check violation",
			err:   &pgconn.PgError{Code: pgerrcode.CheckViolation, ColumnName: "verdict"},
			code:  ErrCodeValidation,
			field: "verdict",
		},
		{name: "too many connections", err: &pgconn.PgError{Code: pgerrcode.TooManyConnections}, code: ErrCodeUnavailable},
		{name: "other pg error", err: &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, code: ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapDBError(tt.err)
			assert.Equal(t, tt.code, GetCode(mapped))
			assert.Equal(t, tt.field, GetField(mapped))
			require.ErrorIs(t, mapped, tt.err)
		})
	}

	plain := errors.New("plain")
	assert.Same(t, plain, MapDBError(plain))
	assert.NoError(t, MapDBError(nil))
}
