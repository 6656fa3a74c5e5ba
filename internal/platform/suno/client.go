package suno

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/gitsong/internal/callcache"
	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/gateway"
)

// ServiceName is the service key used for caching and rate limits.
const ServiceName = "suno"

const (
	submitPath = "/api/v1/generate"
	statusPath = "/api/v1/generate/record-info"
)

// Prompt limits depend on the model generation.
const (
	MaxPromptRunesLegacy = 3000
	MaxPromptRunes       = 5000
	MaxStyleRunes        = 200
	MaxTitleRunes        = 80
)

var (
	// ErrUpstream is returned when the API answers 2xx with a non-200 body code.
	ErrUpstream = errors.New("music api rejected the request")

	// ErrInvalidPayload is returned for a callback or status body that cannot
	// be normalised.
	ErrInvalidPayload = errors.New("invalid music task payload")
)

// GatewayConfig returns the gateway configuration for the music API.
func GatewayConfig(baseURL, apiKey string) gateway.Config {
	return gateway.Config{
		Service: ServiceName,
		BaseURL: baseURL,
		Headers: map[string]string{
			"Authorization": "Bearer " + apiKey,
		},
	}
}

// SubmitRequest describes one song to generate.
type SubmitRequest struct {
	Prompt       string `json:"prompt" validate:"required_without=Instrumental"`
	Style        string `json:"style" validate:"required,max=200"`
	Title        string `json:"title" validate:"required,max=80"`
	Instrumental bool   `json:"instrumental"`
	CallbackURL  string `json:"callBackUrl" validate:"required,url"`
}

type submitBody struct {
	Prompt       string `json:"prompt,omitempty"`
	Style        string `json:"style"`
	Title        string `json:"title"`
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	Model        string `json:"model"`
	CallBackURL  string `json:"callBackUrl"`
}

type envelope[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

// Client talks to the music-generation API.
type Client struct {
	gw       *gateway.Client
	model    string
	validate *validator.Validate
	logger   *slog.Logger
}

// NewClient creates a Client that generates with model, for example "V4_5".
func NewClient(gw *gateway.Client, model string, logger *slog.Logger) (*Client, error) {
	if gw == nil {
		return nil, fmt.Errorf("gateway cannot be nil")
	}
	if model == "" {
		return nil, fmt.Errorf("music model cannot be empty")
	}
	return &Client{
		gw:       gw,
		model:    model,
		validate: validator.New(),
		logger:   logger.With("component", "suno_client"),
	}, nil
}

// PromptLimit returns the maximum prompt length for the configured model.
func (c *Client) PromptLimit() int {
	switch c.model {
	case "V3_5", "V4":
		return MaxPromptRunesLegacy
	}
	return MaxPromptRunes
}

// Submit starts a generation job and returns the upstream task id.
// Submissions are recorded by the call cache but never served from it.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := c.validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if n := len([]rune(req.Prompt)); n > c.PromptLimit() {
		return "", fmt.Errorf("%w: prompt has %d characters, limit is %d",
			domain.ErrValidation, n, c.PromptLimit())
	}

	body := submitBody{
		Style:        req.Style,
		Title:        req.Title,
		CustomMode:   true,
		Instrumental: req.Instrumental,
		Model:        c.model,
		CallBackURL:  req.CallbackURL,
	}
	if !req.Instrumental {
		body.Prompt = req.Prompt
	}

	resp, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   submitPath,
		Body:   body,
		TTL:    callcache.NoCache,
	})
	if err != nil {
		return "", err
	}

	var env envelope[struct {
		TaskID string `json:"taskId"`
	}]
	if err := gateway.DecodeJSON(resp, &env); err != nil {
		return "", err
	}
	if env.Code != http.StatusOK {
		return "", fmt.Errorf("%w: code %d: %s", ErrUpstream, env.Code, env.Msg)
	}
	if env.Data.TaskID == "" {
		return "", fmt.Errorf("%w: response has no task id", ErrInvalidPayload)
	}

	c.logger.InfoContext(ctx, "submitted music generation",
		"task_id", env.Data.TaskID,
		"model", c.model,
		"instrumental", req.Instrumental)
	return env.Data.TaskID, nil
}

type recordInfo struct {
	TaskID   string `json:"taskId"`
	Status   string `json:"status"`
	Response *struct {
		SunoData []struct {
			ID             string  `json:"id"`
			AudioURL       string  `json:"audioUrl"`
			StreamAudioURL string  `json:"streamAudioUrl"`
			ImageURL       string  `json:"imageUrl"`
			Title          string  `json:"title"`
			Prompt         string  `json:"prompt"`
			Duration       float64 `json:"duration"`
		} `json:"sunoData"`
	} `json:"response"`
	ErrorMessage string `json:"errorMessage"`
}

// GetTask polls the status of a task. The result is never served from cache.
func (c *Client) GetTask(ctx context.Context, taskID string) (*domain.TaskUpdate, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, fmt.Errorf("%w: task id is empty", domain.ErrValidation)
	}

	resp, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   statusPath,
		Query:  url.Values{"taskId": {taskID}},
		TTL:    callcache.NoCache,
	})
	if err != nil {
		return nil, err
	}

	var env envelope[recordInfo]
	if err := gateway.DecodeJSON(resp, &env); err != nil {
		return nil, err
	}
	if env.Code != http.StatusOK {
		return nil, fmt.Errorf("%w: code %d: %s", ErrUpstream, env.Code, env.Msg)
	}
	if env.Data.TaskID == "" {
		env.Data.TaskID = taskID
	}
	return normaliseRecord(env.Data)
}

func normaliseRecord(r recordInfo) (*domain.TaskUpdate, error) {
	status, ok := recordStatuses[strings.ToUpper(r.Status)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, r.Status)
	}

	u := &domain.TaskUpdate{
		TaskID: r.TaskID,
		Status: status,
		Source: domain.UpdateSourcePoll,
	}
	if r.Response != nil {
		for _, d := range r.Response.SunoData {
			u.ResultRefs = append(u.ResultRefs, domain.ResultRef{
				ID:        d.ID,
				AudioURL:  d.AudioURL,
				StreamURL: d.StreamAudioURL,
				ImageURL:  d.ImageURL,
				Title:     d.Title,
				Text:      d.Prompt,
				Duration:  d.Duration,
			})
		}
	}
	if status == domain.TaskStatusFailed {
		u.Error = r.ErrorMessage
		if u.Error == "" {
			u.Error = r.Status
		}
	}
	return u, nil
}

var recordStatuses = map[string]domain.TaskStatus{
	"PENDING":               domain.TaskStatusPending,
	"TEXT_SUCCESS":          domain.TaskStatusProcessing,
	"FIRST_SUCCESS":         domain.TaskStatusProcessing,
	"SUCCESS":               domain.TaskStatusCompleted,
	"CREATE_TASK_FAILED":    domain.TaskStatusFailed,
	"GENERATE_AUDIO_FAILED": domain.TaskStatusFailed,
	"CALLBACK_EXCEPTION":    domain.TaskStatusFailed,
	"SENSITIVE_WORD_ERROR":  domain.TaskStatusFailed,
}
