package generation

import "errors"

// Common errors returned by language-model providers.
var (
	// ErrGenerationFailed is returned when generation fails for any general reason.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidResponse is returned when the model response cannot be parsed or is malformed.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry.
	ErrTransientFailure = errors.New("transient language model failure")

	// ErrInvalidConfig is returned when the provider configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrEmptyPrompt is returned when a completion has no user prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)
