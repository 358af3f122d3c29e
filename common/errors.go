package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Code classifies an error the way callers of the import/export entry points see it.
type Code string

const (
	CodePermissionDenied Code = "permission-denied"
	CodeInvalidArgument  Code = "invalid-argument"
	CodeNotFound         Code = "not-found"
	CodeInternal         Code = "internal"
)

// Error is a coded, user-facing error. Message is safe to show to the caller;
// Err keeps the underlying cause for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a coded error without an underlying cause.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError attaches a code and message to an underlying error.
func WrapError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error code to the status the gin layer responds with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondError records err on the gin context and writes {code, message}.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(HTTPStatus(err), gin.H{
		"code":    CodeOf(err),
		"message": MessageOf(err),
	})
}
