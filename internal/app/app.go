package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"

	"github.com/phrazzld/gitsong/internal/api"
	"github.com/phrazzld/gitsong/internal/artifact"
	"github.com/phrazzld/gitsong/internal/callcache"
	"github.com/phrazzld/gitsong/internal/config"
	"github.com/phrazzld/gitsong/internal/embedding"
	"github.com/phrazzld/gitsong/internal/events"
	"github.com/phrazzld/gitsong/internal/gateway"
	"github.com/phrazzld/gitsong/internal/generation"
	"github.com/phrazzld/gitsong/internal/llm"
	"github.com/phrazzld/gitsong/internal/orchestrator"
	"github.com/phrazzld/gitsong/internal/platform/gemini"
	"github.com/phrazzld/gitsong/internal/platform/github"
	"github.com/phrazzld/gitsong/internal/platform/postgres"
	"github.com/phrazzld/gitsong/internal/platform/suno"
	"github.com/phrazzld/gitsong/internal/reconcile"
)

// CallbackTokenTTL bounds how long a music service may call back for a song.
const CallbackTokenTTL = 7 * 24 * time.Hour

// App holds the wired application dependencies.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	DB         *sql.DB
	Cache      *callcache.Cache
	Songs      *orchestrator.Service
	Reconciler *reconcile.Reconciler
	Poller     *reconcile.Poller
	Signer     *reconcile.CallbackSigner
	Emitter    *events.InMemoryEmitter

	closers []func() error
}

// New opens the database and builds every collaborator. The caller owns
// the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, DB: db}
	a.closers = append(a.closers, db.Close)

	if err := a.build(ctx); err != nil {
		if cerr := a.Close(); cerr != nil {
			logger.Error("failed to release resources after setup error", "error", cerr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	log := a.Logger

	tracker := callcache.NewRateLimitTracker(
		postgres.NewRateLimitStore(a.DB),
		callcache.TrackerConfig{DefaultLimit: cfg.Cache.DefaultLimit, DefaultWindow: cfg.Cache.DefaultWindow},
		log,
	)
	a.Cache = callcache.New(
		postgres.NewCallStore(a.DB, postgres.DefaultCompressThreshold),
		tracker,
		callcache.Options{SingleFlight: cfg.Cache.SingleFlight},
		log,
	)

	githubGW, err := gateway.New(
		github.GatewayConfig(cfg.GitHub.BaseURL),
		github.NewHTTPClient(ctx, cfg.GitHub.Token),
		a.Cache,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	commits := github.NewClient(githubGW, cfg.Cache.GitHubTTL, log)

	registry, err := llm.LoadRegistry(cfg.LLM.RegistryPath)
	if err != nil {
		return err
	}
	defaultModel, err := registry.Resolve(cfg.LLM.Model)
	if err != nil {
		return fmt.Errorf("default model: %w", err)
	}
	conn, err := gemini.ConnectionFor(defaultModel, cfg.LLM.GeminiAPIKey)
	if err != nil {
		return err
	}
	geminiClient, err := gemini.NewClient(ctx, log, cfg.LLM, conn, a.Cache, cfg.Cache.LLMTTL)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	completer, err := llm.NewService(registry, map[string]generation.Completer{
		gemini.ServiceName: geminiClient,
	}, cfg.LLM.Model, log)
	if err != nil {
		return fmt.Errorf("failed to create LLM service: %w", err)
	}

	retriever := embedding.NewPipeline(postgres.NewVectorStore(a.DB), geminiClient, embedding.PipelineConfig{
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Concurrency:    cfg.LLM.EmbedConcurrency,
	}, log)

	sunoGW, err := gateway.New(suno.GatewayConfig(cfg.Music.BaseURL, cfg.Music.APIKey), nil, a.Cache, log)
	if err != nil {
		return fmt.Errorf("failed to create music gateway: %w", err)
	}
	music, err := suno.NewClient(sunoGW, cfg.Music.Model, log)
	if err != nil {
		return fmt.Errorf("failed to create music client: %w", err)
	}

	artifacts, err := a.artifactStore(ctx)
	if err != nil {
		return err
	}
	archiver := artifact.NewArchiver(artifacts, nil, artifact.DefaultMaxBytes, log)

	songs := postgres.NewSongStore(a.DB)
	tasks := postgres.NewTaskStore(a.DB)

	a.Emitter = events.NewInMemoryEmitter(log)
	orchestrator.NewSongStatusHandler(songs, log).Register(a.Emitter)

	a.Reconciler = reconcile.New(tasks, postgres.NewAudioFileStore(a.DB), music, archiver, a.Emitter, log)
	a.Poller = reconcile.NewPoller(tasks, a.Reconciler, reconcile.PollerConfig{
		Interval:   cfg.Poller.Interval,
		StaleAfter: cfg.Poller.StaleAfter,
	}, log)

	a.Signer, err = reconcile.NewCallbackSigner(cfg.Music.CallbackSecret, CallbackTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to create callback signer: %w", err)
	}

	a.Songs, err = orchestrator.NewService(
		commits,
		retriever,
		completer,
		music,
		a.Reconciler,
		songs,
		a.Signer,
		orchestrator.Config{
			MaxCommits:    cfg.GitHub.MaxCommits,
			DefaultStyle:  cfg.Music.DefaultStyle,
			PublicBaseURL: cfg.Server.PublicBaseURL,
		},
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create song service: %w", err)
	}

	log.Info("application initialized",
		"llm_model", cfg.LLM.Model,
		"music_model", cfg.Music.Model,
		"storage_backend", cfg.Storage.Backend)
	return nil
}

func (a *App) artifactStore(ctx context.Context) (artifact.Store, error) {
	sc := a.Config.Storage
	switch sc.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return artifact.NewGCSStore(client, sc.Bucket, sc.PublicBaseURL)
	case "filesystem":
		return artifact.NewFilesystemStore(sc.Dir, sc.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

// Router returns the HTTP handler for the API.
func (a *App) Router() http.Handler {
	return api.NewRouter(api.RouterDeps{
		Songs:      a.Songs,
		Tasks:      a.Reconciler,
		RateLimits: a.Cache.Tracker(),
		Tokens:     a.Signer,
		Logger:     a.Logger,
	})
}

// Close stops the poller and releases every resource in reverse order.
func (a *App) Close() error {
	if a.Poller != nil {
		a.Poller.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
