package llm

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/gitsong/internal/generation"
	"github.com/phrazzld/gitsong/internal/platform/logger"
)

const testRegistry = `
models:
  - id: tiny
    provider: fake
    credential_env: GITSONG_TEST_TINY_KEY
    context_window: 1200
    max_output_tokens: 200
  - id: orphan
    provider: nobody
    context_window: 1000
    max_output_tokens: 10
`

// fakeCompleter records the last prompt it received.
type fakeCompleter struct {
	CompleteFn func(ctx context.Context, p generation.Prompt, opts generation.Options) (string, error)
	last       generation.Prompt
	lastOpts   generation.Options
}

func (f *fakeCompleter) Complete(ctx context.Context, p generation.Prompt, opts generation.Options) (string, error) {
	f.last = p
	f.lastOpts = opts
	if f.CompleteFn != nil {
		return f.CompleteFn(ctx, p, opts)
	}
	return "done", nil
}

func TestLoadRegistry_Default(t *testing.T) {
	t.Parallel()

	r, err := LoadRegistry("")
	require.NoError(t, err)
	assert.Contains(t, r.IDs(), "gemini-2.0-flash")

	m, err := r.Resolve("gemini-2.0-flash")
	require.NoError(t, err)
	assert.Equal(t, "gemini", m.Provider)
	assert.Equal(t, m.ContextWindow-m.MaxOutputTokens, m.Budget())

	_, err = r.Resolve("gpt-nothing")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestLoadRegistry_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRegistry), 0o600))

	r, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan", "tiny"}, r.IDs())

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidRegistry)
}

func TestParseRegistry_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not yaml":        "models: [",
		"empty":           "models: []",
		"missing id":      "models:\n  - provider: p\n    context_window: 10\n    max_output_tokens: 1\n",
		"output too big":  "models:\n  - id: a\n    provider: p\n    context_window: 10\n    max_output_tokens: 10\n",
		"duplicate model": "models:\n  - {id: a, provider: p, context_window: 10, max_output_tokens: 1}\n  - {id: a, provider: p, context_window: 10, max_output_tokens: 1}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseRegistry([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidRegistry)
		})
	}
}

func TestModel_Credential(t *testing.T) {
	t.Setenv("GITSONG_TEST_TINY_KEY", "secret")

	r, err := ParseRegistry([]byte(testRegistry))
	require.NoError(t, err)
	m, err := r.Resolve("tiny")
	require.NoError(t, err)
	assert.Equal(t, "secret", m.Credential())
	assert.Empty(t, Model{}.Credential())
}

func TestService_Complete_FitsPromptToModelBudget(t *testing.T) {
	t.Parallel()

	r, err := ParseRegistry([]byte(testRegistry))
	require.NoError(t, err)
	fake := &fakeCompleter{}
	buf, log := logger.NewTestLogger(t)

	svc, err := NewService(r, map[string]generation.Completer{"fake": fake}, "tiny", log)
	require.NoError(t, err)

	prompt := generation.Prompt{
		System:  "be brief",
		History: history(10, 400),
		User:    strings.Repeat("u", 400),
	}
	out, err := svc.Complete(context.Background(), prompt, generation.Options{})
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	assert.LessOrEqual(t, EstimatePrompt(fake.last), 1000)
	assert.Less(t, len(fake.last.History), 10)
	assert.Equal(t, "tiny", fake.lastOpts.Model)
	logger.AssertLogContains(t, buf, "trimmed prompt to fit context window")
}

func TestService_Errors(t *testing.T) {
	t.Parallel()

	r, err := ParseRegistry([]byte(testRegistry))
	require.NoError(t, err)
	providers := map[string]generation.Completer{"fake": &fakeCompleter{}}

	_, err = NewService(r, providers, "unknown", logger.Discard())
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = NewService(r, providers, "orphan", logger.Discard())
	assert.ErrorIs(t, err, ErrNoProvider)

	svc, err := NewService(r, providers, "tiny", logger.Discard())
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), generation.Prompt{User: "x"}, generation.Options{Model: "orphan"})
	assert.ErrorIs(t, err, ErrNoProvider)

	_, err = svc.Complete(context.Background(), generation.Prompt{User: "x"}, generation.Options{Model: "nope"})
	assert.ErrorIs(t, err, ErrUnknownModel)
}
