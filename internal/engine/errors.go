package engine

import (
	"errors"
	"fmt"
)

// TaskError represents the failure of one element's analysis.
//
// Task errors never abort a batch; they are recorded on the task and
// reported through LastBatch.
type TaskError struct {
	// Code identifies the error category.
	Code TaskErrorCode

	// Element is the task's target element.
	Element string

	// Attempts is the number of analyzer calls made.
	Attempts int

	// Err is the underlying cause, if any.
	Err error
}

// TaskErrorCode categorizes task failures.
type TaskErrorCode string

const (
	// ErrCodeAnalyzerFailed indicates a single analyzer call failed.
	ErrCodeAnalyzerFailed TaskErrorCode = "ANALYZER_FAILED"

	// ErrCodeRetriesExhausted indicates every allowed attempt failed.
	ErrCodeRetriesExhausted TaskErrorCode = "RETRIES_EXHAUSTED"

	// ErrCodePrerequisiteFailed indicates a prerequisite task failed, so the
	// task could never become eligible.
	ErrCodePrerequisiteFailed TaskErrorCode = "PREREQUISITE_FAILED"

	// ErrCodeCancelled indicates the batch context ended before the task started.
	ErrCodeCancelled TaskErrorCode = "CANCELLED"
)

// Error implements the error interface.
func (e *TaskError) Error() string {
	msg := fmt.Sprintf("%s: element=%s", e.Code, e.Element)
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s attempts=%d", msg, e.Attempts)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsRetryExhausted returns true if the error is a retries-exhausted task error.
// Uses errors.As to handle wrapped errors.
func IsRetryExhausted(err error) bool {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Code == ErrCodeRetriesExhausted
	}
	return false
}

// IsPrerequisiteFailed returns true if the task was blocked by a failed
// prerequisite.
func IsPrerequisiteFailed(err error) bool {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Code == ErrCodePrerequisiteFailed
	}
	return false
}

// IsCancelled returns true if the task never started because the context ended.
func IsCancelled(err error) bool {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Code == ErrCodeCancelled
	}
	return false
}
