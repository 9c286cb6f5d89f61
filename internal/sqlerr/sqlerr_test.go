package sqlerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/posts-api/internal/errs"
)

func fkViolation() error {
	return fmt.Errorf("insert post: %w", &pgconn.PgError{
		Severity:       "ERROR",
		Code:           "23503",
		Message:        `insert or update on table "posts" violates foreign key constraint "posts_user_id_fkey"`,
		TableName:      "posts",
		ConstraintName: "posts_user_id_fkey",
	})
}

func TestMapCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, NotNullViolation, MapCode("23502"))
	require.Equal(t, ForeignKeyViolation, MapCode("23503"))
	require.Equal(t, UniqueViolation, MapCode("23505"))
	require.Equal(t, CheckViolation, MapCode("23514"))
	require.Equal(t, Other, MapCode("40001"))
}

func TestMapSeverity(t *testing.T) {
	t.Parallel()

	require.Equal(t, SeverityFatal, MapSeverity("FATAL"))
	require.Equal(t, SeverityUnknown, MapSeverity("LOUD"))
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	require.Nil(t, Describe(nil))
	require.Nil(t, Describe(errors.New("connection reset")))

	e := Describe(fkViolation())
	require.NotNil(t, e)
	require.Equal(t, ForeignKeyViolation, e.Code)
	require.Equal(t, "posts", e.TableName)

	var pgErr *pgconn.PgError
	require.True(t, errors.As(e, &pgErr))
	require.Equal(t, ForeignKeyViolation, ErrCode(Wrap(fkViolation())))
	require.Equal(t, Other, ErrCode(errors.New("boom")))
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *Error
		wantMsg  string
		wantCode string
	}{
		{
			name:     "foreign key from constraint name",
			err:      Describe(fkViolation()),
			wantMsg:  "The referenced user does not exist",
			wantCode: "USER_NOT_FOUND",
		},
		{
			name:     "unique with key suffix",
			err:      &Error{Code: UniqueViolation, TableName: "users", ConstraintName: "users_email_key"},
			wantMsg:  "A user with this email already exists",
			wantCode: "USER_ALREADY_EXISTS",
		},
		{
			name:     "not null",
			err:      &Error{Code: NotNullViolation, TableName: "posts", ColumnName: "content"},
			wantMsg:  "The Content is required",
			wantCode: "POST_REQUIRED",
		},
		{
			name:     "check without column",
			err:      &Error{Code: CheckViolation, TableName: "posts"},
			wantMsg:  "One or more values do not meet required conditions",
			wantCode: "POST_INVALID",
		},
		{
			name:     "other",
			err:      &Error{Code: Other},
			wantMsg:  "An error occurred while processing your request",
			wantCode: "RECORD_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.wantMsg, UserMessage(tt.err))
			require.Equal(t, tt.wantCode, ErrorCode(tt.err))
		})
	}
}

func TestHandleError(t *testing.T) {
	t.Parallel()

	t.Run("http errors pass through", func(t *testing.T) {
		t.Parallel()
		in := errs.NewUnauthorizedError("Unauthorized", false)
		require.Same(t, in, HandleError(in))
	})

	t.Run("foreign key becomes bad request", func(t *testing.T) {
		t.Parallel()
		var httpErr *errs.HTTPError
		require.True(t, errors.As(HandleError(fkViolation()), &httpErr))
		require.Equal(t, http.StatusBadRequest, httpErr.Status)
		require.Equal(t, "USER_NOT_FOUND", httpErr.Code)
	})

	t.Run("not null carries field error", func(t *testing.T) {
		t.Parallel()
		var httpErr *errs.HTTPError
		err := HandleError(&pgconn.PgError{Code: "23502", TableName: "posts", ColumnName: "content"})
		require.True(t, errors.As(err, &httpErr))
		require.Equal(t, []errs.FieldError{{Field: "content", Error: "is required"}}, httpErr.Errors)
	})

	t.Run("no rows becomes not found", func(t *testing.T) {
		t.Parallel()
		var httpErr *errs.HTTPError
		require.True(t, errors.As(HandleError(pgx.ErrNoRows), &httpErr))
		require.Equal(t, http.StatusNotFound, httpErr.Status)
	})

	t.Run("unknown becomes internal", func(t *testing.T) {
		t.Parallel()
		var httpErr *errs.HTTPError
		require.True(t, errors.As(HandleError(errors.New("boom")), &httpErr))
		require.Equal(t, http.StatusInternalServerError, httpErr.Status)
	})
}
