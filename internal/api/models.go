package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/orchestrator"
)

// CreateSongRequest is the body of POST /api/songs. Dates accept RFC 3339
// timestamps or YYYY-MM-DD.
type CreateSongRequest struct {
	Repository   string `json:"repository" validate:"required"`
	Window       string `json:"window" validate:"required,oneof=day week custom since_last"`
	Date         string `json:"date,omitempty"`
	Start        string `json:"start,omitempty"`
	End          string `json:"end,omitempty"`
	Style        string `json:"style,omitempty" validate:"max=200"`
	Instrumental bool   `json:"instrumental,omitempty"`
	Model        string `json:"model,omitempty"`
}

// toSongRequest converts the body into an orchestrator request.
func (r CreateSongRequest) toSongRequest() (orchestrator.SongRequest, error) {
	req := orchestrator.SongRequest{
		Repository:   r.Repository,
		Window:       orchestrator.WindowKind(r.Window),
		Style:        r.Style,
		Instrumental: r.Instrumental,
		Model:        r.Model,
	}
	var err error
	if req.Date, err = parseDate("date", r.Date); err != nil {
		return req, err
	}
	if req.Start, err = parseDate("start", r.Start); err != nil {
		return req, err
	}
	if req.End, err = parseDate("end", r.End); err != nil {
		return req, err
	}
	return req, nil
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD", domain.ErrValidation, field)
}

// SongResponse is a song record.
type SongResponse struct {
	ID           string    `json:"id"`
	Repository   string    `json:"repository"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	CommitCount  int       `json:"commit_count"`
	Title        string    `json:"title"`
	Lyrics       string    `json:"lyrics,omitempty"`
	Style        string    `json:"style"`
	Instrumental bool      `json:"instrumental"`
	Status       string    `json:"status"`
	FailedStage  string    `json:"failed_stage,omitempty"`
	Error        string    `json:"error,omitempty"`
	TaskID       string    `json:"task_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SongHandleResponse is returned once a music job is submitted.
type SongHandleResponse struct {
	SongID string `json:"song_id"`
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskResponse is a generation task with its stored artifacts.
type TaskResponse struct {
	TaskID      string             `json:"task_id"`
	SongID      string             `json:"song_id"`
	Kind        string             `json:"kind"`
	Status      string             `json:"status"`
	Results     []domain.ResultRef `json:"results"`
	Artifacts   []ArtifactResponse `json:"artifacts"`
	LastError   string             `json:"last_error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// ArtifactResponse is one stored audio file.
type ArtifactResponse struct {
	ResultID   string  `json:"result_id"`
	URL        string  `json:"url"`
	SourceURL  string  `json:"source_url"`
	Title      string  `json:"title,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	StorageKey string  `json:"storage_key"`
}

// PollResponse reports one poll of the music service.
type PollResponse struct {
	Task    TaskResponse `json:"task"`
	Applied bool         `json:"applied"`
}

// CallbackResponse acknowledges a webhook.
type CallbackResponse struct {
	Status string `json:"status"`
}

// Callback acknowledgement states.
const (
	CallbackApplied   = "applied"
	CallbackDuplicate = "duplicate"
	CallbackIgnored   = "ignored"
)

// RateLimitResponse is the live-call accounting of one service.
type RateLimitResponse struct {
	Service   string    `json:"service"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Exceeded  bool      `json:"exceeded"`
	ResetAt   time.Time `json:"reset_at"`
	Active    bool      `json:"active"`
}

func songToResponse(s *domain.Song) SongResponse {
	return SongResponse{
		ID:           s.ID.String(),
		Repository:   s.Repository.String(),
		WindowStart:  s.WindowStart,
		WindowEnd:    s.WindowEnd,
		CommitCount:  s.CommitCount,
		Title:        s.Title,
		Lyrics:       s.Lyrics,
		Style:        s.Style,
		Instrumental: s.Instrumental,
		Status:       string(s.Status),
		FailedStage:  s.FailedStage,
		Error:        s.ErrorMessage,
		TaskID:       s.TaskID,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func taskToResponse(t *domain.GenerationTask, files []*domain.AudioFile) TaskResponse {
	resp := TaskResponse{
		TaskID:      t.ExternalTaskID,
		SongID:      t.SongID.String(),
		Kind:        string(t.Kind),
		Status:      string(t.Status),
		Results:     t.ResultRefs,
		Artifacts:   make([]ArtifactResponse, 0, len(files)),
		LastError:   t.LastError,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
	}
	if resp.Results == nil {
		resp.Results = []domain.ResultRef{}
	}
	for _, f := range files {
		resp.Artifacts = append(resp.Artifacts, ArtifactResponse{
			ResultID:   f.ResultRefID,
			URL:        f.StorageURL,
			SourceURL:  f.SourceURL,
			Title:      f.Title,
			Duration:   f.Duration,
			StorageKey: f.StorageKey,
		})
	}
	return resp
}

func counterToResponse(c *domain.RateLimitCounter) RateLimitResponse {
	return RateLimitResponse{
		Service:   c.Service,
		Limit:     c.Limit,
		Used:      c.Used,
		Remaining: c.Remaining(),
		Exceeded:  c.Exceeded(),
		ResetAt:   c.ResetAt,
		Active:    c.Active,
	}
}
