package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/phrazzld/gitsong/internal/callcache"
	"github.com/phrazzld/gitsong/internal/config"
	"github.com/phrazzld/gitsong/internal/generation"
)

// ServiceName is the service key used for caching and rate limits.
const ServiceName = "gemini"

// maxEmbedBatch is the largest number of texts sent in one embedding request.
const maxEmbedBatch = 100

// modelsAPI is the subset of the genai SDK the client uses.
type modelsAPI interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
	EmbedContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.EmbedContentConfig,
	) (*genai.EmbedContentResponse, error)
}

// Client talks to the Gemini API.
type Client struct {
	models         modelsAPI
	cache          *callcache.Cache
	ttl            time.Duration
	model          string
	embeddingModel string
	maxRetries     int
	baseDelay      time.Duration
	logger         *slog.Logger
}

var (
	_ generation.Completer = (*Client)(nil)
	_ generation.Embedder  = (*Client)(nil)
)

// NewClient creates a Client that reaches Gemini through conn. Models and
// retry settings come from cfg; responses are cached for ttl.
func NewClient(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
	conn Connection,
	cache *callcache.Cache,
	ttl time.Duration,
) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if conn.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      conn.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: conn.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newClient(client.Models, logger, cfg, cache, ttl)
}

func newClient(
	models modelsAPI,
	logger *slog.Logger,
	cfg config.LLMConfig,
	cache *callcache.Cache,
	ttl time.Duration,
) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.EmbeddingModel == "" {
		return nil, fmt.Errorf("%w: embedding model name cannot be empty", generation.ErrInvalidConfig)
	}
	if cache == nil {
		return nil, fmt.Errorf("%w: call cache is required", generation.ErrInvalidConfig)
	}

	log := logger.With("component", "gemini_client")

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		log.Warn("invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}
	delaySeconds := cfg.RetryDelaySeconds
	if delaySeconds < 1 {
		log.Warn("invalid retry delay value, using default", "base_delay_seconds", 2)
		delaySeconds = 2
	}

	return &Client{
		models:         models,
		cache:          cache,
		ttl:            ttl,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		maxRetries:     maxRetries,
		baseDelay:      time.Duration(delaySeconds) * time.Second,
		logger:         log,
	}, nil
}

type completionParams struct {
	Prompt  generation.Prompt  `json:"prompt"`
	Options generation.Options `json:"options"`
}

type completionPayload struct {
	Text string `json:"text"`
}

// Complete implements generation.Completer.
func (c *Client) Complete(ctx context.Context, prompt generation.Prompt, opts generation.Options) (string, error) {
	if strings.TrimSpace(prompt.User) == "" {
		return "", generation.ErrEmptyPrompt
	}
	model := opts.Model
	if model == "" {
		model = c.model
	}
	opts.Model = model

	call := callcache.Call{
		Service:  ServiceName,
		Method:   "POST",
		Endpoint: "models/" + model + ":generateContent",
		Params:   completionParams{Prompt: prompt, Options: opts},
	}

	res, err := c.cache.FetchOrCall(ctx, call, c.ttl, func(ctx context.Context) (*callcache.LiveResponse, error) {
		var text string
		err := c.withRetry(ctx, "generate_content", func(ctx context.Context) error {
			var err error
			text, err = c.generate(ctx, model, prompt, opts)
			return err
		})
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(completionPayload{Text: text})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
		}
		return &callcache.LiveResponse{Payload: payload, StatusCode: 200}, nil
	})
	if err != nil {
		return "", err
	}

	var out completionPayload
	if err := json.Unmarshal(res.Payload, &out); err != nil {
		return "", fmt.Errorf("%w: cached completion is corrupt: %v", generation.ErrInvalidResponse, err)
	}
	c.logger.DebugContext(ctx, "completion ready",
		"model", model,
		"cached", res.Cached,
		"response_length", len(out.Text))
	return out.Text, nil
}

func (c *Client) generate(
	ctx context.Context,
	model string,
	prompt generation.Prompt,
	opts generation.Options,
) (string, error) {
	contents := make([]*genai.Content, 0, len(prompt.History)+1)
	for _, m := range prompt.History {
		var role genai.Role = genai.RoleUser
		if m.Role == generation.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(prompt.User, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		Temperature: opts.Temperature,
	}
	if prompt.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}
	if opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}
	if opts.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	switch {
	case resp == nil:
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	case len(resp.Candidates) == 0 || resp.Candidates[0] == nil:
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	case resp.Candidates[0].Content == nil:
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: response has no text", generation.ErrInvalidResponse)
	}
	return text, nil
}

type embedParams struct {
	Texts []string             `json:"texts"`
	Task  generation.EmbedTask `json:"task"`
}

// Embed implements generation.Embedder. Large inputs are sent in batches;
// each batch is cached on its own.
func (c *Client) Embed(ctx context.Context, texts []string, task generation.EmbedTask) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))
		batch, err := c.embedBatch(ctx, texts[start:end], task)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string, task generation.EmbedTask) ([][]float32, error) {
	call := callcache.Call{
		Service:  ServiceName,
		Method:   "POST",
		Endpoint: "models/" + c.embeddingModel + ":embedContent",
		Params:   embedParams{Texts: texts, Task: task},
	}

	res, err := c.cache.FetchOrCall(ctx, call, c.ttl, func(ctx context.Context) (*callcache.LiveResponse, error) {
		var vectors [][]float32
		err := c.withRetry(ctx, "embed_content", func(ctx context.Context) error {
			var err error
			vectors, err = c.embed(ctx, texts, task)
			return err
		})
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(vectors)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
		}
		return &callcache.LiveResponse{Payload: payload, StatusCode: 200}, nil
	})
	if err != nil {
		return nil, err
	}

	var vectors [][]float32
	if err := json.Unmarshal(res.Payload, &vectors); err != nil {
		return nil, fmt.Errorf("%w: cached embeddings are corrupt: %v", generation.ErrInvalidResponse, err)
	}
	return vectors, nil
}

func (c *Client) embed(ctx context.Context, texts []string, task generation.EmbedTask) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := c.models.EmbedContent(ctx, c.embeddingModel, contents, &genai.EmbedContentConfig{
		TaskType: string(task),
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			generation.ErrInvalidResponse, len(texts), got)
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: embedding %d is empty", generation.ErrInvalidResponse, i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}
