package postgres

import (
	"context"
	"database/sql"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/store"
)

// AudioFileStore implements store.AudioFileStore.
type AudioFileStore struct {
	db store.DBTX
}

var _ store.AudioFileStore = (*AudioFileStore)(nil)

// NewAudioFileStore creates an AudioFileStore.
func NewAudioFileStore(db store.DBTX) *AudioFileStore {
	return &AudioFileStore{db: db}
}

// SaveAudioFile implements store.AudioFileStore.
func (s *AudioFileStore) SaveAudioFile(ctx context.Context, file *domain.AudioFile) error {
	query := `
		INSERT INTO audio_files (
			id, task_id, result_ref_id, song_id, source_url, storage_key, storage_url,
			title, duration, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		file.ID,
		file.TaskID,
		file.ResultRefID,
		file.SongID,
		file.SourceURL,
		file.StorageKey,
		file.StorageURL,
		nullString(file.Title),
		file.Duration,
		file.CreatedAt,
	)
	if err != nil {
		return store.NewStoreError("audio_file", "save", "insert failed", MapError(err))
	}
	return nil
}

// ListAudioFiles implements store.AudioFileStore.
func (s *AudioFileStore) ListAudioFiles(ctx context.Context, taskID string) ([]*domain.AudioFile, error) {
	query := `
		SELECT id, task_id, result_ref_id, song_id, source_url, storage_key, storage_url,
		       title, duration, created_at
		FROM audio_files
		WHERE task_id = $1
		ORDER BY created_at ASC, result_ref_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, store.NewStoreError("audio_file", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var files []*domain.AudioFile
	for rows.Next() {
		var (
			f        domain.AudioFile
			title    sql.NullString
			duration sql.NullFloat64
		)
		if err := rows.Scan(
			&f.ID,
			&f.TaskID,
			&f.ResultRefID,
			&f.SongID,
			&f.SourceURL,
			&f.StorageKey,
			&f.StorageURL,
			&title,
			&duration,
			&f.CreatedAt,
		); err != nil {
			return nil, store.NewStoreError("audio_file", "list", "scan failed", MapError(err))
		}
		f.Title = title.String
		f.Duration = duration.Float64
		f.CreatedAt = f.CreatedAt.UTC()
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("audio_file", "list", "iteration failed", MapError(err))
	}
	return files, nil
}
