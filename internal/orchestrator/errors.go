package orchestrator

import (
	"errors"
	"fmt"
)

// ErrNoCommits is returned when the requested window holds no commits.
var ErrNoCommits = errors.New("no commits found")

// Pipeline stages reported by StageError.
const (
	StageValidate     = "validate"
	StageWindow       = "resolve_window"
	StageListCommits  = "list_commits"
	StageFetchDetails = "fetch_details"
	StageIndex        = "index"
	StageSearchQuery  = "search_query"
	StageRetrieve     = "retrieve"
	StageLyrics       = "lyrics"
	StageTitle        = "title"
	StagePersist      = "persist"
	StageSubmit       = "submit"
	StageRecordTask   = "record_task"
	// StageMusic marks a failure reported by the music service after submission.
	StageMusic = "music"
)

// StageError wraps a failure with the pipeline stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage of a StageError in err's chain, or "".
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
