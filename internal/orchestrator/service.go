package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/embedding"
	"github.com/phrazzld/gitsong/internal/generation"
	"github.com/phrazzld/gitsong/internal/platform/github"
	"github.com/phrazzld/gitsong/internal/platform/suno"
	"github.com/phrazzld/gitsong/internal/redact"
	"github.com/phrazzld/gitsong/internal/store"
)

// CommitSource reads commits from source control.
type CommitSource interface {
	ListCommits(ctx context.Context, repo domain.Repository, since, until time.Time, limit int) ([]domain.Commit, error)
	LatestCommit(ctx context.Context, repo domain.Repository) (*domain.Commit, error)
	GetCommit(ctx context.Context, repo domain.Repository, sha string) (*domain.Commit, error)
}

// Retriever indexes documents and answers similarity queries.
type Retriever interface {
	Index(ctx context.Context, collection string, docs []embedding.Document) (embedding.IndexReport, error)
	Query(ctx context.Context, collection, text string, k int) ([]embedding.Match, error)
}

// MusicSubmitter starts music generation jobs.
type MusicSubmitter interface {
	Submit(ctx context.Context, req suno.SubmitRequest) (string, error)
	PromptLimit() int
}

// TaskRecorder records submitted upstream tasks.
type TaskRecorder interface {
	Submit(ctx context.Context, externalTaskID string, kind domain.TaskKind, songID uuid.UUID) (*domain.GenerationTask, error)
}

// TokenSigner signs the token carried by callback URLs.
type TokenSigner interface {
	Sign(songID uuid.UUID) (string, error)
}

// CallbackPath is where the music service delivers webhooks.
const CallbackPath = "/api/callbacks/music"

// Config tunes the pipeline.
type Config struct {
	// MaxCommits caps the commits read per request.
	MaxCommits int
	// FetchConcurrency bounds parallel commit detail reads.
	FetchConcurrency int
	// RetrieveK is the number of commit excerpts given to the lyrics prompt.
	RetrieveK int
	// DefaultStyle is used when a request names none.
	DefaultStyle string
	// PublicBaseURL is the origin the music service calls back.
	PublicBaseURL string
}

// Handle is returned to the caller once the music job is submitted.
type Handle struct {
	SongID uuid.UUID         `json:"song_id"`
	TaskID string            `json:"task_id"`
	Status domain.SongStatus `json:"status"`
}

// Service runs the song pipeline.
type Service struct {
	commits   CommitSource
	retriever Retriever
	llm       generation.Completer
	music     MusicSubmitter
	tasks     TaskRecorder
	songs     store.SongStore
	signer    TokenSigner
	config    Config
	validate  *validator.Validate
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a Service.
func NewService(
	commits CommitSource,
	retriever Retriever,
	llm generation.Completer,
	music MusicSubmitter,
	tasks TaskRecorder,
	songs store.SongStore,
	signer TokenSigner,
	config Config,
	logger *slog.Logger,
) (*Service, error) {
	if _, err := url.ParseRequestURI(config.PublicBaseURL); err != nil {
		return nil, fmt.Errorf("invalid public base url %q: %w", config.PublicBaseURL, err)
	}
	if config.DefaultStyle == "" {
		return nil, fmt.Errorf("default style cannot be empty")
	}
	if config.MaxCommits <= 0 {
		config.MaxCommits = 100
	}
	if config.FetchConcurrency <= 0 {
		config.FetchConcurrency = 4
	}
	if config.RetrieveK <= 0 {
		config.RetrieveK = 8
	}

	return &Service{
		commits:   commits,
		retriever: retriever,
		llm:       llm,
		music:     music,
		tasks:     tasks,
		songs:     songs,
		signer:    signer,
		config:    config,
		validate:  validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With("component", "song_orchestrator"),
	}, nil
}

// Song returns a stored song.
func (s *Service) Song(ctx context.Context, id uuid.UUID) (*domain.Song, error) {
	return s.songs.GetSong(ctx, id)
}

// run carries the state of one Generate call.
type run struct {
	req     SongRequest
	repo    domain.Repository
	window  Window
	commits []domain.Commit
	summary Summary
	style   string
	song    *domain.Song
	log     *slog.Logger
}

// Generate runs the pipeline and returns once the music job is submitted.
// The caller receives either a handle or a single StageError.
func (s *Service) Generate(ctx context.Context, req SongRequest) (*Handle, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, stageErr(StageValidate, err)
	}
	repo, err := github.ParseRepository(req.Repository)
	if err != nil {
		return nil, stageErr(StageValidate, err)
	}

	r := &run{
		req:   req,
		repo:  repo,
		style: strings.TrimSpace(req.Style),
		log:   s.logger.With("repository", repo.String(), "window", req.Window),
	}
	if r.style == "" {
		r.style = s.config.DefaultStyle
	}

	handle, err := s.generate(ctx, r)
	if err != nil {
		s.recordFailure(ctx, r, err)
		r.log.ErrorContext(ctx, "song generation failed",
			"stage", StageOf(err),
			"error", err)
		return nil, err
	}
	r.log.InfoContext(ctx, "song submitted",
		"song_id", handle.SongID,
		"task_id", handle.TaskID,
		"commits", len(r.commits))
	return handle, nil
}

func (s *Service) generate(ctx context.Context, r *run) (*Handle, error) {
	if err := s.resolveCommits(ctx, r); err != nil {
		return nil, err
	}
	if err := s.fetchDetails(ctx, r); err != nil {
		return nil, stageErr(StageFetchDetails, err)
	}
	r.summary = Summarize(r.commits)
	summaryText := r.summary.Text(r.repo)

	var lyrics string
	if !r.req.Instrumental {
		matches, err := s.retrieve(ctx, r, summaryText)
		if err != nil {
			return nil, err
		}
		limit := s.music.PromptLimit()
		out, err := s.llm.Complete(ctx, lyricsPrompt(summaryText, r.style, matches, limit), generation.Options{
			Model:       r.req.Model,
			Temperature: generation.Float32(0.9),
		})
		if err != nil {
			return nil, stageErr(StageLyrics, err)
		}
		lyrics = clampLyrics(out, limit)
		if lyrics == "" {
			return nil, stageErr(StageLyrics, fmt.Errorf("%w: empty lyrics", generation.ErrInvalidResponse))
		}
	}

	song, err := domain.NewSong(r.repo, r.window.Start, r.window.End, len(r.commits))
	if err != nil {
		return nil, stageErr(StagePersist, err)
	}
	song.Lyrics = lyrics
	song.Style = r.style
	song.Instrumental = r.req.Instrumental
	if err := s.songs.CreateSong(ctx, song); err != nil {
		return nil, stageErr(StagePersist, err)
	}
	r.song = song

	rawTitle, err := s.llm.Complete(ctx, titlePrompt(lyrics, summaryText), generation.Options{
		Model:           r.req.Model,
		Temperature:     generation.Float32(0.7),
		MaxOutputTokens: 64,
	})
	if err != nil {
		return nil, stageErr(StageTitle, err)
	}
	song.Title = cleanTitle(rawTitle, suno.MaxTitleRunes)
	if song.Title == "" {
		song.Title = fmt.Sprintf("%s %s", r.repo.Name, r.window.Start.Format("2006-01-02"))
	}

	callbackURL, err := s.callbackURL(song.ID)
	if err != nil {
		return nil, stageErr(StageSubmit, err)
	}
	taskID, err := s.music.Submit(ctx, suno.SubmitRequest{
		Prompt:       lyrics,
		Style:        r.style,
		Title:        song.Title,
		Instrumental: r.req.Instrumental,
		CallbackURL:  callbackURL,
	})
	if err != nil {
		return nil, stageErr(StageSubmit, err)
	}

	// The song is written before the task exists: once recorded, a callback
	// or poll may finish the task and SongStatusHandler owns the song.
	song.TaskID = taskID
	song.Status = domain.SongStatusSubmitted
	song.UpdatedAt = s.now()
	if err := s.songs.UpdateSong(ctx, song); err != nil {
		return nil, stageErr(StagePersist, err)
	}
	if _, err := s.tasks.Submit(ctx, taskID, domain.TaskKindAudio, song.ID); err != nil {
		return nil, stageErr(StageRecordTask, err)
	}

	return &Handle{SongID: song.ID, TaskID: taskID, Status: domain.SongStatusSubmitted}, nil
}

// resolveCommits fixes the window and lists its commits. since_last starts
// just after the previous song's window; without one it uses the single
// most recent commit.
func (s *Service) resolveCommits(ctx context.Context, r *run) error {
	now := s.now()

	if r.req.Window == WindowSinceLast {
		last, err := s.songs.LatestSongForRepository(ctx, r.repo)
		switch {
		case errors.Is(err, store.ErrSongNotFound):
			latest, err := s.commits.LatestCommit(ctx, r.repo)
			if err != nil {
				return stageErr(StageWindow, err)
			}
			if latest == nil {
				return stageErr(StageWindow, fmt.Errorf("%w: %s has no commits", ErrNoCommits, r.repo))
			}
			r.window = Window{Start: latest.Date, End: latest.Date}
			r.commits = []domain.Commit{*latest}
			return nil
		case err != nil:
			return stageErr(StageWindow, err)
		default:
			// GitHub's since is inclusive and commit dates have second
			// precision, so the previous window's last second is skipped.
			r.window = Window{Start: last.WindowEnd.Add(time.Second), End: now}
		}
	} else {
		r.window = fixedWindow(r.req, now)
	}

	commits, err := s.commits.ListCommits(ctx, r.repo, r.window.Start, r.window.End, s.config.MaxCommits)
	if err != nil {
		return stageErr(StageListCommits, err)
	}
	if r.req.Window == WindowSinceLast {
		commits = slices.DeleteFunc(commits, func(c domain.Commit) bool {
			return c.Date.Before(r.window.Start)
		})
	}
	if len(commits) == 0 {
		return stageErr(StageListCommits, fmt.Errorf("%w: %s between %s and %s", ErrNoCommits, r.repo,
			r.window.Start.Format(time.RFC3339), r.window.End.Format(time.RFC3339)))
	}
	r.commits = commits
	return nil
}

// fetchDetails replaces listed commits with their full detail, keeping order.
func (s *Service) fetchDetails(ctx context.Context, r *run) error {
	details := make([]domain.Commit, len(r.commits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.FetchConcurrency)
	for i, c := range r.commits {
		g.Go(func() error {
			d, err := s.commits.GetCommit(gctx, r.repo, c.SHA)
			if err != nil {
				return fmt.Errorf("commit %s: %w", c.ShortSHA(), err)
			}
			details[i] = *d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.commits = details
	return nil
}

func (s *Service) retrieve(ctx context.Context, r *run, summaryText string) ([]embedding.Match, error) {
	collection := collectionName(r.repo)
	docs := make([]embedding.Document, len(r.commits))
	for i, c := range r.commits {
		docs[i] = embedding.Document{
			ID:   c.SHA,
			Text: c.Document(),
			Metadata: map[string]string{
				"repository": r.repo.String(),
				"sha":        c.SHA,
				"author":     c.Author,
				"date":       c.Date.UTC().Format(time.RFC3339),
			},
		}
	}
	if _, err := s.retriever.Index(ctx, collection, docs); err != nil {
		return nil, stageErr(StageIndex, err)
	}

	query, err := s.llm.Complete(ctx, searchQueryPrompt(summaryText), generation.Options{
		Model:           r.req.Model,
		Temperature:     generation.Float32(0.2),
		MaxOutputTokens: 64,
	})
	if err != nil {
		return nil, stageErr(StageSearchQuery, err)
	}

	matches, err := s.retriever.Query(ctx, collection, strings.TrimSpace(query), s.config.RetrieveK)
	if err != nil {
		return nil, stageErr(StageRetrieve, err)
	}
	return matches, nil
}

func (s *Service) callbackURL(songID uuid.UUID) (string, error) {
	token, err := s.signer.Sign(songID)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimRight(s.config.PublicBaseURL, "/") + CallbackPath)
	if err != nil {
		return "", err
	}
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// recordFailure marks the song failed when it was already persisted, so
// the lyrics survive a later stage failing.
func (s *Service) recordFailure(ctx context.Context, r *run, err error) {
	if r.song == nil {
		return
	}
	r.song.Status = domain.SongStatusFailed
	r.song.FailedStage = StageOf(err)
	r.song.ErrorMessage = redact.Error(err)
	r.song.UpdatedAt = s.now()
	if uerr := s.songs.UpdateSong(context.WithoutCancel(ctx), r.song); uerr != nil {
		r.log.ErrorContext(ctx, "failed to record song failure",
			"song_id", r.song.ID,
			"error", uerr)
	}
}

var unsafeCollectionChars = regexp.MustCompile(`[^a-z0-9_]+`)

// collectionName is the vector collection of a repository.
func collectionName(repo domain.Repository) string {
	name := strings.ToLower(repo.Owner + "__" + repo.Name)
	return "commits_" + unsafeCollectionChars.ReplaceAllString(name, "_")
}
