package generation

import "context"

// Role identifies the speaker of a history message.
type Role string

// Supported roles.
const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one prior turn of a conversation.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Prompt is a chat-style completion request. History is ordered oldest first.
type Prompt struct {
	System  string    `json:"system,omitempty"`
	History []Message `json:"history,omitempty"`
	User    string    `json:"user"`
}

// Options tunes a single completion.
type Options struct {
	// Model overrides the provider's default model.
	Model string `json:"model,omitempty"`
	// Temperature is left to the provider default when nil.
	Temperature *float32 `json:"temperature,omitempty"`
	// MaxOutputTokens caps the response length; zero leaves it unset.
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`
	// JSON requests an application/json response body.
	JSON bool `json:"json,omitempty"`
}

// EmbedTask states what an embedding will be used for.
type EmbedTask string

// Embedding task kinds.
const (
	EmbedTaskDocument EmbedTask = "RETRIEVAL_DOCUMENT"
	EmbedTaskQuery    EmbedTask = "RETRIEVAL_QUERY"
)

// Completer produces text from a prompt.
type Completer interface {
	// Complete returns the model's text response.
	// Errors wrap one of the sentinel errors in this package.
	Complete(ctx context.Context, prompt Prompt, opts Options) (string, error)
}

// Embedder turns texts into vectors. The result has one vector per input,
// in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string, task EmbedTask) ([][]float32, error)
}

// Float32 returns a pointer to v, for Options.Temperature.
func Float32(v float32) *float32 {
	return &v
}
