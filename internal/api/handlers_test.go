package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/gitsong/internal/api/shared"
	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/orchestrator"
	"github.com/phrazzld/gitsong/internal/platform/github"
	"github.com/phrazzld/gitsong/internal/platform/logger"
	"github.com/phrazzld/gitsong/internal/platform/suno"
	"github.com/phrazzld/gitsong/internal/reconcile"
	"github.com/phrazzld/gitsong/internal/store"
)

type fakeSongs struct {
	GenerateFn func(ctx context.Context, req orchestrator.SongRequest) (*orchestrator.Handle, error)
	SongFn     func(ctx context.Context, id uuid.UUID) (*domain.Song, error)
}

func (f *fakeSongs) Generate(ctx context.Context, req orchestrator.SongRequest) (*orchestrator.Handle, error) {
	return f.GenerateFn(ctx, req)
}

func (f *fakeSongs) Song(ctx context.Context, id uuid.UUID) (*domain.Song, error) {
	return f.SongFn(ctx, id)
}

type fakeTasks struct {
	GetFn       func(ctx context.Context, id string) (*domain.GenerationTask, error)
	ArtifactsFn func(ctx context.Context, id string) ([]*domain.AudioFile, error)
	PollFn      func(ctx context.Context, id string) (*reconcile.Outcome, error)
	CallbackFn  func(ctx context.Context, songID uuid.UUID, payload []byte) (*reconcile.Outcome, error)
}

func (f *fakeTasks) Get(ctx context.Context, id string) (*domain.GenerationTask, error) {
	return f.GetFn(ctx, id)
}

func (f *fakeTasks) Artifacts(ctx context.Context, id string) ([]*domain.AudioFile, error) {
	if f.ArtifactsFn == nil {
		return nil, nil
	}
	return f.ArtifactsFn(ctx, id)
}

func (f *fakeTasks) Poll(ctx context.Context, id string) (*reconcile.Outcome, error) {
	return f.PollFn(ctx, id)
}

func (f *fakeTasks) HandleSignedCallback(ctx context.Context, songID uuid.UUID, payload []byte) (*reconcile.Outcome, error) {
	return f.CallbackFn(ctx, songID, payload)
}

type fakeLimits struct {
	SnapshotFn func(ctx context.Context, service string) (*domain.RateLimitCounter, error)
}

func (f *fakeLimits) Snapshot(ctx context.Context, service string) (*domain.RateLimitCounter, error) {
	return f.SnapshotFn(ctx, service)
}

type fakeTokens struct {
	tokens map[string]uuid.UUID
}

func (f fakeTokens) Validate(token string) (uuid.UUID, error) {
	id, ok := f.tokens[token]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: unknown", reconcile.ErrInvalidCallbackToken)
	}
	return id, nil
}

func newTestRouter(songs *fakeSongs, tasks *fakeTasks, limits *fakeLimits, tokens fakeTokens) http.Handler {
	return NewRouter(RouterDeps{
		Songs:      songs,
		Tasks:      tasks,
		RateLimits: limits,
		Tokens:     tokens,
		Logger:     logger.Discard(),
	})
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateSong(t *testing.T) {
	t.Parallel()

	songID := uuid.New()

	t.Run("accepted", func(t *testing.T) {
		t.Parallel()
		var got orchestrator.SongRequest
		songs := &fakeSongs{GenerateFn: func(_ context.Context, req orchestrator.SongRequest) (*orchestrator.Handle, error) {
			got = req
			return &orchestrator.Handle{SongID: songID, TaskID: "T1", Status: domain.SongStatusSubmitted}, nil
		}}
		router := newTestRouter(songs, nil, nil, fakeTokens{})

		rec := do(t, router, http.MethodPost, "/api/songs",
			[]byte(`{"repository":"octo/hello","window":"day","date":"2024-03-05","style":"synthwave"}`))

		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		resp := decode[SongHandleResponse](t, rec)
		assert.Equal(t, songID.String(), resp.SongID)
		assert.Equal(t, "T1", resp.TaskID)
		assert.Equal(t, string(domain.SongStatusSubmitted), resp.Status)
		assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

		assert.Equal(t, "octo/hello", got.Repository)
		assert.Equal(t, orchestrator.WindowKind("day"), got.Window)
		assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), got.Date)
		assert.Equal(t, "synthwave", got.Style)
	})

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "malformed json",
			body:       `{"repository":`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid request format",
		},
		{
			name:       "unknown field",
			body:       `{"repository":"octo/hello","window":"day","colour":"red"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid request format",
		},
		{
			name:       "bad window",
			body:       `{"repository":"octo/hello","window":"year"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid window: invalid value",
		},
		{
			name:       "missing repository",
			body:       `{"window":"day"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid repository: required field",
		},
		{
			name:       "bad date",
			body:       `{"repository":"octo/hello","window":"custom","start":"yesterday","end":"2024-03-05"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Validation error: start must be RFC 3339 or YYYY-MM-DD",
		},
		{
			name:       "no commits",
			body:       `{"repository":"octo/hello","window":"day"}`,
			err:        &orchestrator.StageError{Stage: orchestrator.StageListCommits, Err: orchestrator.ErrNoCommits},
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    "No commits found in the requested window",
		},
		{
			name:       "unknown repository",
			body:       `{"repository":"octo/missing","window":"day"}`,
			err:        &orchestrator.StageError{Stage: orchestrator.StageListCommits, Err: github.ErrRepositoryNotFound},
			wantStatus: http.StatusNotFound,
			wantMsg:    "Repository not found",
		},
		{
			name:       "stage failure",
			body:       `{"repository":"octo/hello","window":"day"}`,
			err:        &orchestrator.StageError{Stage: orchestrator.StageLyrics, Err: errors.New("model down: key=secret")},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Song generation failed at stage lyrics",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			songs := &fakeSongs{GenerateFn: func(context.Context, orchestrator.SongRequest) (*orchestrator.Handle, error) {
				if tc.err == nil {
					t.Fatal("Generate should not be called")
				}
				return nil, tc.err
			}}
			router := newTestRouter(songs, nil, nil, fakeTokens{})

			rec := do(t, router, http.MethodPost, "/api/songs", []byte(tc.body))

			assert.Equal(t, tc.wantStatus, rec.Code)
			resp := decode[shared.ErrorResponse](t, rec)
			assert.Equal(t, tc.wantMsg, resp.Error)
			assert.NotContains(t, rec.Body.String(), "secret")
		})
	}
}

func TestGetSong(t *testing.T) {
	t.Parallel()

	song, err := domain.NewSong(domain.Repository{Owner: "octo", Name: "hello"},
		time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), 3)
	require.NoError(t, err)
	song.Title = "Parser Nights"
	song.Lyrics = "la la"

	songs := &fakeSongs{SongFn: func(_ context.Context, id uuid.UUID) (*domain.Song, error) {
		if id == song.ID {
			return song, nil
		}
		return nil, store.ErrSongNotFound
	}}
	router := newTestRouter(songs, nil, nil, fakeTokens{})

	rec := do(t, router, http.MethodGet, "/api/songs/"+song.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SongResponse](t, rec)
	assert.Equal(t, "octo/hello", resp.Repository)
	assert.Equal(t, "Parser Nights", resp.Title)
	assert.Equal(t, 3, resp.CommitCount)
	assert.Equal(t, string(domain.SongStatusLyricsReady), resp.Status)

	rec = do(t, router, http.MethodGet, "/api/songs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Song not found", decode[shared.ErrorResponse](t, rec).Error)

	rec = do(t, router, http.MethodGet, "/api/songs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid ID", decode[shared.ErrorResponse](t, rec).Error)
}

func completedTask(songID uuid.UUID) *domain.GenerationTask {
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	return &domain.GenerationTask{
		ExternalTaskID: "T1",
		Kind:           domain.TaskKindAudio,
		Status:         domain.TaskStatusCompleted,
		ResultRefs:     []domain.ResultRef{{ID: "r1", AudioURL: "https://cdn.example/r1.mp3"}},
		SongID:         songID,
		CreatedAt:      now,
		UpdatedAt:      now,
		CompletedAt:    &now,
	}
}

func TestTaskRoutes(t *testing.T) {
	t.Parallel()

	songID := uuid.New()
	files := []*domain.AudioFile{{
		TaskID: "T1", ResultRefID: "r1", SongID: songID,
		SourceURL: "https://cdn.example/r1.mp3", StorageKey: "songs/x/r1.mp3",
		StorageURL: "https://storage.example/songs/x/r1.mp3", Duration: 181.5,
	}}
	tasks := &fakeTasks{
		GetFn: func(_ context.Context, id string) (*domain.GenerationTask, error) {
			if id == "T1" {
				return completedTask(songID), nil
			}
			return nil, fmt.Errorf("%w: %s", reconcile.ErrUnknownTask, id)
		},
		ArtifactsFn: func(context.Context, string) ([]*domain.AudioFile, error) { return files, nil },
		PollFn: func(_ context.Context, id string) (*reconcile.Outcome, error) {
			if id != "T1" {
				return nil, fmt.Errorf("%w: %s", reconcile.ErrUnknownTask, id)
			}
			return &reconcile.Outcome{Task: completedTask(songID), Applied: true, Artifacts: files}, nil
		},
	}
	router := newTestRouter(nil, tasks, nil, fakeTokens{})

	t.Run("get", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/tasks/T1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[TaskResponse](t, rec)
		assert.Equal(t, "completed", resp.Status)
		assert.Equal(t, songID.String(), resp.SongID)
		require.Len(t, resp.Artifacts, 1)
		assert.Equal(t, "https://storage.example/songs/x/r1.mp3", resp.Artifacts[0].URL)
		assert.Equal(t, 181.5, resp.Artifacts[0].Duration)
	})

	t.Run("get unknown", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/tasks/T9", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Task not found", decode[shared.ErrorResponse](t, rec).Error)
	})

	t.Run("poll", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/tasks/T1/poll", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[PollResponse](t, rec)
		assert.True(t, resp.Applied)
		assert.Len(t, resp.Task.Artifacts, 1)
	})

	t.Run("poll unknown", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/tasks/T9/poll", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMusicCallback(t *testing.T) {
	t.Parallel()

	songID := uuid.New()
	tokens := fakeTokens{tokens: map[string]uuid.UUID{"good": songID}}
	path := orchestrator.CallbackPath + "?token="

	tests := []struct {
		name       string
		token      string
		result     func() (*reconcile.Outcome, error)
		wantStatus int
		wantBody   string
	}{
		{name: "missing token", token: "", wantStatus: http.StatusUnauthorized, wantBody: "Callback token required"},
		{name: "invalid token", token: "forged", wantStatus: http.StatusUnauthorized, wantBody: "Invalid callback token"},
		{
			name:  "applied",
			token: "good",
			result: func() (*reconcile.Outcome, error) {
				return &reconcile.Outcome{Task: completedTask(songID), Applied: true}, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   CallbackApplied,
		},
		{
			name:  "duplicate",
			token: "good",
			result: func() (*reconcile.Outcome, error) {
				return &reconcile.Outcome{Task: completedTask(songID)}, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   CallbackDuplicate,
		},
		{
			name:  "unknown task",
			token: "good",
			result: func() (*reconcile.Outcome, error) {
				return nil, fmt.Errorf("%w: T9", reconcile.ErrUnknownTask)
			},
			wantStatus: http.StatusOK,
			wantBody:   CallbackIgnored,
		},
		{
			name:  "other song",
			token: "good",
			result: func() (*reconcile.Outcome, error) {
				return nil, reconcile.ErrCallbackSongMismatch
			},
			wantStatus: http.StatusForbidden,
			wantBody:   "Callback token does not match task",
		},
		{
			name:  "bad payload",
			token: "good",
			result: func() (*reconcile.Outcome, error) {
				return nil, fmt.Errorf("failed to parse callback: %w", suno.ErrInvalidPayload)
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid callback payload",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tasks := &fakeTasks{CallbackFn: func(_ context.Context, got uuid.UUID, payload []byte) (*reconcile.Outcome, error) {
				require.NotNil(t, tc.result, "callback should not reach the reconciler")
				assert.Equal(t, songID, got)
				assert.JSONEq(t, `{"code":200}`, string(payload))
				return tc.result()
			}}
			router := newTestRouter(nil, tasks, nil, tokens)

			rec := do(t, router, http.MethodPost, path+tc.token, []byte(`{"code":200}`))

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantBody)
		})
	}
}

func TestGetRateLimit(t *testing.T) {
	t.Parallel()

	reset := time.Date(2024, 3, 5, 11, 0, 0, 0, time.UTC)
	limits := &fakeLimits{SnapshotFn: func(_ context.Context, service string) (*domain.RateLimitCounter, error) {
		if service != "github" {
			return nil, store.ErrCounterNotFound
		}
		return &domain.RateLimitCounter{Service: "github", Limit: 10, Used: 12, ResetAt: reset, Active: true}, nil
	}}
	router := newTestRouter(nil, nil, limits, fakeTokens{})

	rec := do(t, router, http.MethodGet, "/api/rate-limits/github", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[RateLimitResponse](t, rec)
	assert.Equal(t, -2, resp.Remaining)
	assert.True(t, resp.Exceeded)
	assert.Equal(t, reset, resp.ResetAt)

	rec = do(t, router, http.MethodGet, "/api/rate-limits/suno", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(nil, nil, nil, fakeTokens{}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
