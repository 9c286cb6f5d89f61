package sqlerr

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/deppfellow/posts-api/internal/errs"
)

var uniqueKeyPattern = regexp.MustCompile(`_([^_]+)_(?:key|ukey)$`)

// ErrorCode builds a machine-readable code such as POST_ALREADY_EXISTS
// or USER_NOT_FOUND.
func ErrorCode(e *Error) string {
	domain := "RECORD"
	switch {
	case e.Code == ForeignKeyViolation && referencedColumn(e) != "":
		domain = strings.TrimSuffix(strings.ToUpper(referencedColumn(e)), "_ID")
	case e.TableName != "":
		domain = singular(strings.ToUpper(e.TableName), "S")
	}

	action := "ERROR"
	switch e.Code {
	case ForeignKeyViolation:
		action = "NOT_FOUND"
	case UniqueViolation:
		action = "ALREADY_EXISTS"
	case NotNullViolation:
		action = "REQUIRED"
	case CheckViolation:
		action = "INVALID"
	}

	return fmt.Sprintf("%s_%s", domain, action)
}

// UserMessage returns a message that is safe to show to API clients.
func UserMessage(e *Error) string {
	switch e.Code {
	case ForeignKeyViolation:
		return fmt.Sprintf("The referenced %s does not exist", strings.ToLower(entityName(e.TableName, referencedColumn(e))))

	case UniqueViolation:
		entity := strings.ToLower(entityName(e.TableName, ""))
		if column := extractColumnForUniqueViolation(e.ConstraintName); column != "" {
			return fmt.Sprintf("A %s with this %s already exists", entity, strings.ToLower(humanizeText(column)))
		}
		return fmt.Sprintf("A %s with this identifier already exists", entity)

	case NotNullViolation:
		fieldName := humanizeText(e.ColumnName)
		if fieldName == "" {
			fieldName = "field"
		}
		return fmt.Sprintf("The %s is required", fieldName)

	case CheckViolation:
		if fieldName := humanizeText(e.ColumnName); fieldName != "" {
			return fmt.Sprintf("The %s value does not meet required conditions", fieldName)
		}
		return "One or more values do not meet required conditions"

	default:
		return "An error occurred while processing your request"
	}
}

// referencedColumn finds the FK column. Postgres leaves ColumnName empty
// for FK violations, so fall back to the <table>_<column>_fkey naming.
func referencedColumn(e *Error) string {
	if e.ColumnName != "" {
		return e.ColumnName
	}
	name := strings.TrimSuffix(e.ConstraintName, "_fkey")
	if name == e.ConstraintName {
		return ""
	}
	return strings.TrimPrefix(name, e.TableName+"_")
}

// entityName prefers a "<entity>_id" column over the table name.
func entityName(tableName, columnName string) string {
	if columnName != "" && strings.HasSuffix(strings.ToLower(columnName), "_id") {
		return humanizeText(strings.TrimSuffix(strings.ToLower(columnName), "_id"))
	}
	if tableName != "" {
		return humanizeText(singular(tableName, "s"))
	}
	return "record"
}

func singular(name, suffix string) string {
	if strings.HasSuffix(name, suffix) && len(name) > 1 {
		return name[:len(name)-1]
	}
	return name
}

// humanizeText turns "first_name" into "First Name".
func humanizeText(text string) string {
	if text == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}

// extractColumnForUniqueViolation understands unique_<table>_<column> and
// <table>_<column>_key.
func extractColumnForUniqueViolation(constraintName string) string {
	if constraintName == "" {
		return ""
	}

	if strings.HasPrefix(constraintName, "unique_") {
		parts := strings.Split(constraintName, "_")
		if len(parts) >= 3 {
			return parts[len(parts)-1]
		}
	}

	if matches := uniqueKeyPattern.FindStringSubmatch(constraintName); len(matches) > 1 {
		return matches[1]
	}

	return ""
}

// HandleError converts an error that reached the global error handler
// into an *errs.HTTPError. Constraint violations become 400s with a
// friendly message, missing rows become 404s and everything else a
// generic 500.
func HandleError(err error) error {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	if sqlErr := Describe(err); sqlErr != nil {
		errorCode := ErrorCode(sqlErr)
		userMessage := UserMessage(sqlErr)

		switch sqlErr.Code {
		case ForeignKeyViolation:
			return errs.NewBadRequestError(userMessage, false, &errorCode, nil, nil)

		case UniqueViolation, CheckViolation:
			return errs.NewBadRequestError(userMessage, true, &errorCode, nil, nil)

		case NotNullViolation:
			fieldErrors := []errs.FieldError{
				{
					Field: strings.ToLower(sqlErr.ColumnName),
					Error: "is required",
				},
			}
			return errs.NewBadRequestError(userMessage, true, &errorCode, fieldErrors, nil)

		default:
			return errs.NewInternalServerError()
		}
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return errs.NewNotFoundError("Resource not found", false, nil)
	}

	return errs.NewInternalServerError()
}
