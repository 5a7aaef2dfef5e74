package quiz

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSampleSize  = errors.New("invalid sample size")
	ErrSessionNotStarted  = errors.New("session not started")
	ErrSessionComplete    = errors.New("session complete")
	ErrSessionNotComplete = errors.New("session not complete")
	ErrDuplicateAnswer    = errors.New("question already answered")

	// ErrSessionInProgress is returned by Create on a session that has not been reset.
	ErrSessionInProgress = errors.New("session already started")
	ErrInvalidPosition   = errors.New("invalid question position")
	ErrUnknownLabel      = errors.New("unknown choice label")
	ErrUnknownSection    = errors.New("unknown section")
)

// Issue captures a validation problem in a question bank.
type Issue struct {
	Field   string
	Message string
}

// ValidationError reports one or more validation issues.
type ValidationError struct {
	Issues []Issue
}

func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return ""
	}
	parts := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return fmt.Sprintf("question bank validation failed: %s", strings.Join(parts, "; "))
}
