package interview

import "errors"

// User-input and lifecycle failures. These are recoverable by the caller
// (re-prompt, retry); gateway failure classes live in the provider package.
var (
	// ErrInvalidConfig means the interview configuration failed validation.
	ErrInvalidConfig = errors.New("invalid interview config")
	// ErrInvalidState means the operation is not legal in the session's
	// current state, including while another request is in flight.
	ErrInvalidState = errors.New("operation not valid in current session state")
	// ErrEmptyAnswer rejects blank answer submissions.
	ErrEmptyAnswer = errors.New("answer must not be empty")
	// ErrSessionNotFound is returned by the registry for unknown or
	// expired session ids.
	ErrSessionNotFound = errors.New("no such active session")
	// ErrUnparsableEvaluation flags a final report with no extractable
	// score. The session still completes with a sentinel evaluation.
	ErrUnparsableEvaluation = errors.New("final evaluation could not be parsed")
)
