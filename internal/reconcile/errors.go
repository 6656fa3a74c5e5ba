package reconcile

import "errors"

var (
	// ErrUnknownTask is returned when an update names a task that was never
	// submitted locally. Callers treat it as a no-op.
	ErrUnknownTask = errors.New("unknown generation task")

	// ErrUpstreamFailed is returned by WaitForCompletion when the task ends
	// in the failed state.
	ErrUpstreamFailed = errors.New("upstream generation failed")

	// ErrPollingExhausted is returned by WaitForCompletion when the attempt
	// budget runs out before the task becomes terminal.
	ErrPollingExhausted = errors.New("polling attempts exhausted")

	// ErrInvalidCallbackToken is returned for a missing, malformed, expired
	// or wrongly signed callback token.
	ErrInvalidCallbackToken = errors.New("invalid callback token")

	// ErrCallbackSongMismatch is returned when a valid callback token was
	// issued for a different song than the task it reports on.
	ErrCallbackSongMismatch = errors.New("callback token issued for another song")
)
