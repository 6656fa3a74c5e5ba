package orchestrator

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/gitsong/internal/domain"
)

// WindowKind selects how the commit window is derived.
type WindowKind string

// Supported window kinds.
const (
	WindowDay       WindowKind = "day"
	WindowWeek      WindowKind = "week"
	WindowCustom    WindowKind = "custom"
	WindowSinceLast WindowKind = "since_last"
)

// MaxCustomWindow bounds a custom window.
const MaxCustomWindow = 366 * 24 * time.Hour

// SongRequest asks for one song about a repository's commits.
type SongRequest struct {
	// Repository is "owner/repo" or a GitHub URL.
	Repository string     `json:"repository" validate:"required"`
	Window     WindowKind `json:"window" validate:"required,oneof=day week custom since_last"`
	// Date anchors day and week windows; zero means today.
	Date time.Time `json:"date,omitempty"`
	// Start and End bound a custom window.
	Start        time.Time `json:"start,omitempty" validate:"required_if=Window custom"`
	End          time.Time `json:"end,omitempty" validate:"required_if=Window custom"`
	Style        string    `json:"style,omitempty" validate:"max=200"`
	Instrumental bool      `json:"instrumental,omitempty"`
	// Model overrides the default language model.
	Model string `json:"model,omitempty"`
}

// Window is a half-open commit time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func validateRequest(v *validator.Validate, req SongRequest) error {
	if err := v.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if req.Window == WindowCustom {
		if !req.End.After(req.Start) {
			return fmt.Errorf("%w: custom window must end after it starts", domain.ErrValidation)
		}
		if req.End.Sub(req.Start) > MaxCustomWindow {
			return fmt.Errorf("%w: custom window exceeds %s", domain.ErrValidation, MaxCustomWindow)
		}
	}
	return nil
}

// fixedWindow resolves day, week and custom windows. Day and week windows
// are aligned to UTC midnight; weeks start on Monday.
func fixedWindow(req SongRequest, now time.Time) Window {
	anchor := req.Date
	if anchor.IsZero() {
		anchor = now
	}
	day := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)

	switch req.Window {
	case WindowDay:
		return Window{Start: day, End: day.AddDate(0, 0, 1)}
	case WindowWeek:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return Window{Start: start, End: start.AddDate(0, 0, 7)}
	default:
		return Window{Start: req.Start.UTC(), End: req.End.UTC()}
	}
}
