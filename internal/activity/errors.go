package activity

import (
	"errors"

	"go.temporal.io/sdk/temporal"
)

// ErrorTypeAnswer tags application errors raised by Answer.
const ErrorTypeAnswer = "Answer"

// ErrNoAsker is returned when Activities was built without a chat service.
var ErrNoAsker = errors.New("activity has no chat service")

// nonRetryable wraps an error as a Temporal non-retryable application error.
// Used for validation failures and permanent errors that should not be retried.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// retryable wraps an error as a Temporal retryable application error.
func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}
