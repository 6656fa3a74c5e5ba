package llm

import "errors"

var (
	// ErrUnknownModel is returned when a model id is not in the registry.
	ErrUnknownModel = errors.New("unknown model")

	// ErrInvalidRegistry is returned when the registry file cannot be used.
	ErrInvalidRegistry = errors.New("invalid model registry")

	// ErrNoProvider is returned when no completer is wired for a model's provider.
	ErrNoProvider = errors.New("no completer for provider")
)
