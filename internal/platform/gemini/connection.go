package gemini

import (
	"fmt"

	"github.com/phrazzld/gitsong/internal/generation"
	"github.com/phrazzld/gitsong/internal/llm"
)

// Connection is where and as whom the client reaches the Gemini API.
type Connection struct {
	APIKey  string
	BaseURL string
}

// ConnectionFor derives the connection from a registry entry. The entry's
// credential_env wins; fallbackKey covers entries that name none or whose
// variable is unset.
func ConnectionFor(m llm.Model, fallbackKey string) (Connection, error) {
	if m.Provider != ServiceName {
		return Connection{}, fmt.Errorf("%w: model %q is served by %q, not %s",
			generation.ErrInvalidConfig, m.ID, m.Provider, ServiceName)
	}
	key := m.Credential()
	if key == "" {
		key = fallbackKey
	}
	if key == "" {
		return Connection{}, fmt.Errorf("%w: no credential for model %q (set %s)",
			generation.ErrInvalidConfig, m.ID, m.CredentialEnv)
	}
	return Connection{APIKey: key, BaseURL: m.Endpoint}, nil
}
