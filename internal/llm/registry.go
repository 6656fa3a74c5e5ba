package llm

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var defaultRegistry []byte

// Model describes one language model the service may call.
type Model struct {
	ID              string `yaml:"id" validate:"required"`
	Provider        string `yaml:"provider" validate:"required"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	CredentialEnv   string `yaml:"credential_env"`
	ContextWindow   int    `yaml:"context_window" validate:"gt=0"`
	MaxOutputTokens int    `yaml:"max_output_tokens" validate:"gt=0,ltfield=ContextWindow"`
}

// Budget returns the number of tokens available for the prompt.
func (m Model) Budget() int {
	return m.ContextWindow - m.MaxOutputTokens
}

// Credential reads the model's credential from the environment.
func (m Model) Credential() string {
	if m.CredentialEnv == "" {
		return ""
	}
	return os.Getenv(m.CredentialEnv)
}

type registryFile struct {
	Models []Model `yaml:"models" validate:"required,min=1,dive"`
}

// Registry maps model ids to their descriptions. It is immutable once loaded.
type Registry struct {
	models map[string]Model
}

// LoadRegistry reads a registry file. An empty path loads the embedded default.
func LoadRegistry(path string) (*Registry, error) {
	data := defaultRegistry
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidRegistry, path, err)
		}
		data = b
	}
	return ParseRegistry(data)
}

// ParseRegistry builds a Registry from YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}

	r := &Registry{models: make(map[string]Model, len(file.Models))}
	for _, m := range file.Models {
		if _, dup := r.models[m.ID]; dup {
			return nil, fmt.Errorf("%w: model %q listed twice", ErrInvalidRegistry, m.ID)
		}
		r.models[m.ID] = m
	}
	return r, nil
}

// Resolve returns the description of a model.
func (r *Registry) Resolve(id string) (Model, error) {
	m, ok := r.models[id]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	return m, nil
}

// IDs returns the registered model ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
