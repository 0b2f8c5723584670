// Package businessflow contains the counter-consistency engines and the use cases built on them
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Lookup errors
	ErrVideoNotFound   = errors.New("video not found")
	ErrTagNotFound     = errors.New("tag not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrCommentNotFound = errors.New("comment not found")

	// Validation errors, raised before the store is touched
	ErrEmptyIDList        = errors.New("id list is empty")
	ErrTooManyIDs         = errors.New("id list is too long")
	ErrEmptyTagList       = errors.New("tag list is empty")
	ErrTooManyTags        = errors.New("tag list is too long")
	ErrInvalidTagName     = errors.New("invalid tag name")
	ErrExternalIDRequired = errors.New("external id is required")
	ErrInvalidCounter     = errors.New("unknown counter family")
	ErrInvalidVideo       = errors.New("invalid video")
	ErrInvalidComment     = errors.New("invalid comment")

	// Authorization
	ErrForbidden = errors.New("forbidden")

	// Fatal outcomes
	ErrUpsertRetriesExhausted = errors.New("user upsert retries exhausted")
	ErrBatchFailed            = errors.New("every item in the batch failed")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsVideoNotFound(err error) bool {
	return errors.Is(err, ErrVideoNotFound)
}

func IsTagNotFound(err error) bool {
	return errors.Is(err, ErrTagNotFound)
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsCommentNotFound(err error) bool {
	return errors.Is(err, ErrCommentNotFound)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsBatchFailed(err error) bool {
	return errors.Is(err, ErrBatchFailed)
}

func IsUpsertRetriesExhausted(err error) bool {
	return errors.Is(err, ErrUpsertRetriesExhausted)
}

// IsNotFound reports whether err is any of the lookup errors
func IsNotFound(err error) bool {
	return IsVideoNotFound(err) || IsTagNotFound(err) || IsUserNotFound(err) || IsCommentNotFound(err)
}

// IsValidationError reports whether err was raised by input validation
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrEmptyIDList, ErrTooManyIDs, ErrEmptyTagList, ErrTooManyTags, ErrInvalidTagName,
		ErrExternalIDRequired, ErrInvalidCounter, ErrInvalidVideo, ErrInvalidComment,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrorCode returns the BusinessError code carried by err, or "" when err is not one
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
