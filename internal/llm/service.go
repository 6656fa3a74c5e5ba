package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/gitsong/internal/generation"
)

// Service implements generation.Completer by resolving the requested model
// in the registry, fitting the prompt to its budget and delegating to the
// provider's completer.
type Service struct {
	registry     *Registry
	providers    map[string]generation.Completer
	assembler    *Assembler
	defaultModel string
	logger       *slog.Logger
}

var _ generation.Completer = (*Service)(nil)

// NewService creates a Service. providers maps a provider name from the
// registry (for example "gemini") to its completer. The default model must
// be registered and its provider wired.
func NewService(
	registry *Registry,
	providers map[string]generation.Completer,
	defaultModel string,
	logger *slog.Logger,
) (*Service, error) {
	m, err := registry.Resolve(defaultModel)
	if err != nil {
		return nil, err
	}
	if _, ok := providers[m.Provider]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoProvider, m.Provider)
	}

	return &Service{
		registry:     registry,
		providers:    providers,
		assembler:    NewAssembler(),
		defaultModel: defaultModel,
		logger:       logger.With("component", "llm_service"),
	}, nil
}

// Complete implements generation.Completer. opts.Model selects the model;
// empty means the default model.
func (s *Service) Complete(ctx context.Context, prompt generation.Prompt, opts generation.Options) (string, error) {
	id := opts.Model
	if id == "" {
		id = s.defaultModel
	}
	model, err := s.registry.Resolve(id)
	if err != nil {
		return "", err
	}
	completer, ok := s.providers[model.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoProvider, model.Provider)
	}

	fitted, report := s.assembler.Fit(prompt, model.Budget())
	if report.Iterations > 0 || !report.WithinBudget {
		s.logger.InfoContext(ctx, "trimmed prompt to fit context window",
			"model", model.ID,
			"budget", report.Budget,
			"initial_tokens", report.InitialTokens,
			"final_tokens", report.FinalTokens,
			"dropped_history", report.DroppedHistory,
			"truncated_system", report.TruncatedSystem,
			"truncated_user", report.TruncatedUser,
			"within_budget", report.WithinBudget)
	}

	opts.Model = model.ID
	return completer.Complete(ctx, fitted, opts)
}
