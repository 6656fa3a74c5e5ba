package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SongStatus represents the progress of one song-generation request.
type SongStatus string

// Possible song status values.
const (
	SongStatusLyricsReady SongStatus = "lyrics_ready"
	SongStatusSubmitted   SongStatus = "submitted"
	SongStatusCompleted   SongStatus = "completed"
	SongStatusFailed      SongStatus = "failed"
)

// Valid reports whether s is a known song status.
func (s SongStatus) Valid() bool {
	switch s {
	case SongStatusLyricsReady, SongStatusSubmitted, SongStatusCompleted, SongStatusFailed:
		return true
	}
	return false
}

// Song is the result record of one pipeline run. It keeps the lyrics even
// when a later stage fails.
type Song struct {
	ID           uuid.UUID  `json:"id"`
	Repository   Repository `json:"repository"`
	WindowStart  time.Time  `json:"window_start"`
	WindowEnd    time.Time  `json:"window_end"`
	CommitCount  int        `json:"commit_count"`
	Lyrics       string     `json:"lyrics,omitempty"`
	Title        string     `json:"title"`
	Style        string     `json:"style"`
	Instrumental bool       `json:"instrumental"`
	Status       SongStatus `json:"status"`
	FailedStage  string     `json:"failed_stage,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	TaskID       string     `json:"task_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewSong creates a song record for a repository and commit window.
func NewSong(repo Repository, start, end time.Time, commitCount int) (*Song, error) {
	now := time.Now().UTC()
	s := &Song{
		ID:          uuid.New(),
		Repository:  repo,
		WindowStart: start.UTC(),
		WindowEnd:   end.UTC(),
		CommitCount: commitCount,
		Status:      SongStatusLyricsReady,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks if the song has valid data.
func (s *Song) Validate() error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("%w: song id is empty", ErrInvalidID)
	}
	if s.Repository.Owner == "" || s.Repository.Name == "" {
		return fmt.Errorf("%w: repository is incomplete", ErrValidation)
	}
	if s.WindowEnd.Before(s.WindowStart) {
		return fmt.Errorf("%w: window ends before it starts", ErrValidation)
	}
	if !s.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSongStatus, s.Status)
	}
	return nil
}

// AudioFile links a stored artifact back to the generation task that produced it.
type AudioFile struct {
	ID          uuid.UUID `json:"id"`
	TaskID      string    `json:"task_id"`
	ResultRefID string    `json:"result_ref_id"`
	SongID      uuid.UUID `json:"song_id"`
	SourceURL   string    `json:"source_url"`
	StorageKey  string    `json:"storage_key"`
	StorageURL  string    `json:"storage_url"`
	Title       string    `json:"title,omitempty"`
	Duration    float64   `json:"duration,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
