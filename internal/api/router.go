package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/gitsong/internal/api/middleware"
)

// RouterDeps holds the services behind the HTTP routes.
type RouterDeps struct {
	Songs      SongGenerator
	Tasks      TaskReconciler
	RateLimits RateLimitReader
	Tokens     middleware.TokenValidator
	Logger     *slog.Logger
}

// NewRouter builds the chi router with middleware and every route.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware(deps.Logger))

	songHandler := NewSongHandler(deps.Songs)
	taskHandler := NewTaskHandler(deps.Tasks)
	callbackHandler := NewCallbackHandler(deps.Tasks)
	rateLimitHandler := NewRateLimitHandler(deps.RateLimits)
	callbackAuth := middleware.NewCallbackAuth(deps.Tokens)

	r.Route("/api", func(r chi.Router) {
		r.Post("/songs", songHandler.CreateSong)
		r.Get("/songs/{id}", songHandler.GetSong)

		r.Get("/tasks/{id}", taskHandler.GetTask)
		r.Post("/tasks/{id}/poll", taskHandler.PollTask)

		r.Get("/rate-limits/{service}", rateLimitHandler.GetRateLimit)

		// Must match orchestrator.CallbackPath.
		r.With(callbackAuth.Authenticate).Post("/callbacks/music", callbackHandler.HandleMusicCallback)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			deps.Logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
