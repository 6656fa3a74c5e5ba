package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/store"
)

// TaskStore implements store.GenerationTaskStore.
type TaskStore struct {
	db store.DBTX
}

var _ store.GenerationTaskStore = (*TaskStore)(nil)

// NewTaskStore creates a TaskStore.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

const taskColumns = `external_task_id, kind, status, result_refs, last_error, song_id,
	created_at, updated_at, completed_at`

// CreateTask implements store.GenerationTaskStore.
func (s *TaskStore) CreateTask(ctx context.Context, task *domain.GenerationTask) error {
	if err := task.Validate(); err != nil {
		return err
	}
	refs, err := marshalRefs(task.ResultRefs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO generation_tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		task.ExternalTaskID,
		task.Kind,
		task.Status,
		refs,
		nullString(task.LastError),
		task.SongID,
		task.CreatedAt,
		task.UpdatedAt,
		nullTime(task.CompletedAt),
	)
	if IsUniqueViolation(err) {
		return store.ErrTaskExists
	}
	if err != nil {
		return store.NewStoreError("generation_task", "create", "insert failed", MapError(err))
	}
	return nil
}

// GetTask implements store.GenerationTaskStore.
func (s *TaskStore) GetTask(ctx context.Context, externalTaskID string) (*domain.GenerationTask, error) {
	query := `SELECT ` + taskColumns + ` FROM generation_tasks WHERE external_task_id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, externalTaskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("generation_task", "get", "query failed", MapError(err))
	}
	return task, nil
}

// UpdateTaskIfActive implements store.GenerationTaskStore. The status
// guard in the WHERE clause makes the write a compare-and-set against
// concurrent writers in other processes.
func (s *TaskStore) UpdateTaskIfActive(ctx context.Context, task *domain.GenerationTask) (bool, error) {
	refs, err := marshalRefs(task.ResultRefs)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE generation_tasks
		SET status = $2, result_refs = $3, last_error = $4, updated_at = $5, completed_at = $6
		WHERE external_task_id = $1 AND status IN ('pending', 'processing')
	`
	result, err := s.db.ExecContext(ctx, query,
		task.ExternalTaskID,
		task.Status,
		refs,
		nullString(task.LastError),
		task.UpdatedAt,
		nullTime(task.CompletedAt),
	)
	if err != nil {
		return false, store.NewStoreError("generation_task", "update", "update failed", MapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	// Zero rows means the task is terminal or missing.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM generation_tasks WHERE external_task_id = $1)`,
		task.ExternalTaskID,
	).Scan(&exists)
	if err != nil {
		return false, store.NewStoreError("generation_task", "update", "existence check failed", MapError(err))
	}
	if !exists {
		return false, store.ErrTaskNotFound
	}
	return false, nil
}

// ListActiveTasks implements store.GenerationTaskStore.
func (s *TaskStore) ListActiveTasks(
	ctx context.Context,
	olderThan time.Duration,
	limit int,
) ([]*domain.GenerationTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM generation_tasks
		WHERE status IN ('pending', 'processing')
		  AND ($1::timestamptz IS NULL OR updated_at < $1::timestamptz)
		ORDER BY created_at ASC
		LIMIT CASE WHEN $2::int > 0 THEN $2::int END
	`

	var cutoff sql.NullTime
	if olderThan > 0 {
		cutoff = sql.NullTime{Time: time.Now().UTC().Add(-olderThan), Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, store.NewStoreError("generation_task", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.GenerationTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, store.NewStoreError("generation_task", "list", "scan failed", MapError(err))
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("generation_task", "list", "iteration failed", MapError(err))
	}
	return tasks, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.GenerationTask, error) {
	var (
		t           domain.GenerationTask
		refs        []byte
		lastError   sql.NullString
		completedAt sql.NullTime
	)
	err := row.Scan(
		&t.ExternalTaskID,
		&t.Kind,
		&t.Status,
		&refs,
		&lastError,
		&t.SongID,
		&t.CreatedAt,
		&t.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		if err := json.Unmarshal(refs, &t.ResultRefs); err != nil {
			return nil, fmt.Errorf("failed to decode result refs: %w", err)
		}
	}
	t.LastError = lastError.String
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if completedAt.Valid {
		c := completedAt.Time.UTC()
		t.CompletedAt = &c
	}
	return &t, nil
}

// marshalRefs returns JSON text; pgx sends a string parameter to a JSONB
// column unchanged.
func marshalRefs(refs []domain.ResultRef) (string, error) {
	if refs == nil {
		refs = []domain.ResultRef{}
	}
	b, err := json.Marshal(refs)
	if err != nil {
		return "", fmt.Errorf("failed to encode result refs: %w", err)
	}
	return string(b), nil
}
