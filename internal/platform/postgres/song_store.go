package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/store"
)

// SongStore implements store.SongStore.
type SongStore struct {
	db store.DBTX
}

var _ store.SongStore = (*SongStore)(nil)

// NewSongStore creates a SongStore.
func NewSongStore(db store.DBTX) *SongStore {
	return &SongStore{db: db}
}

const songColumns = `id, repo_owner, repo_name, window_start, window_end, commit_count,
	lyrics, title, style, instrumental, status, failed_stage, error_message, task_id,
	created_at, updated_at`

// CreateSong implements store.SongStore.
func (s *SongStore) CreateSong(ctx context.Context, song *domain.Song) error {
	if err := song.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO songs (` + songColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.db.ExecContext(ctx, query,
		song.ID,
		song.Repository.Owner,
		song.Repository.Name,
		song.WindowStart,
		song.WindowEnd,
		song.CommitCount,
		song.Lyrics,
		song.Title,
		song.Style,
		song.Instrumental,
		song.Status,
		nullString(song.FailedStage),
		nullString(song.ErrorMessage),
		nullString(song.TaskID),
		song.CreatedAt,
		song.UpdatedAt,
	)
	if err != nil {
		return store.NewStoreError("song", "create", "insert failed", MapError(err))
	}
	return nil
}

// UpdateSong implements store.SongStore.
func (s *SongStore) UpdateSong(ctx context.Context, song *domain.Song) error {
	if err := song.Validate(); err != nil {
		return err
	}
	query := `
		UPDATE songs
		SET lyrics = $2, title = $3, style = $4, instrumental = $5, status = $6,
		    failed_stage = $7, error_message = $8, task_id = $9, updated_at = $10
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		song.ID,
		song.Lyrics,
		song.Title,
		song.Style,
		song.Instrumental,
		song.Status,
		nullString(song.FailedStage),
		nullString(song.ErrorMessage),
		nullString(song.TaskID),
		song.UpdatedAt,
	)
	if err != nil {
		return store.NewStoreError("song", "update", "update failed", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrSongNotFound)
}

// GetSong implements store.SongStore.
func (s *SongStore) GetSong(ctx context.Context, id uuid.UUID) (*domain.Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE id = $1`
	song, err := scanSong(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSongNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("song", "get", "query failed", MapError(err))
	}
	return song, nil
}

// LatestSongForRepository implements store.SongStore.
func (s *SongStore) LatestSongForRepository(ctx context.Context, repo domain.Repository) (*domain.Song, error) {
	query := `
		SELECT ` + songColumns + `
		FROM songs
		WHERE repo_owner = $1 AND repo_name = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	song, err := scanSong(s.db.QueryRowContext(ctx, query, repo.Owner, repo.Name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSongNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("song", "latest", "query failed", MapError(err))
	}
	return song, nil
}

func scanSong(row rowScanner) (*domain.Song, error) {
	var (
		song                        domain.Song
		failedStage, errMsg, taskID sql.NullString
	)
	err := row.Scan(
		&song.ID,
		&song.Repository.Owner,
		&song.Repository.Name,
		&song.WindowStart,
		&song.WindowEnd,
		&song.CommitCount,
		&song.Lyrics,
		&song.Title,
		&song.Style,
		&song.Instrumental,
		&song.Status,
		&failedStage,
		&errMsg,
		&taskID,
		&song.CreatedAt,
		&song.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	song.FailedStage = failedStage.String
	song.ErrorMessage = errMsg.String
	song.TaskID = taskID.String
	song.WindowStart = song.WindowStart.UTC()
	song.WindowEnd = song.WindowEnd.UTC()
	song.CreatedAt = song.CreatedAt.UTC()
	song.UpdatedAt = song.UpdatedAt.UTC()
	return &song, nil
}
