package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gemini-batch-ocr/internal/config"
	"gemini-batch-ocr/internal/infra/logging"
	"gemini-batch-ocr/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// LoginLimiter throttles password attempts per client. *redis.RateLimiter
// satisfies it.
type LoginLimiter interface {
	Allow(ctx context.Context, subject string, limit int, window time.Duration) (bool, error)
}

type Options struct {
	AdminPassword string
	Dev           bool

	// MaxUploadBytes caps a whole batch submission body.
	MaxUploadBytes int64
	LoginLimit     int
	LoginWindow    time.Duration
}

type Server struct {
	creds   usecase.CredentialUseCase
	models  usecase.ModelUseCase
	batches usecase.BatchUseCase
	auth    *AuthManager
	limiter LoginLimiter
	opts    Options
	log     *zerolog.Logger

	server *http.Server
}

func NewServer(
	creds usecase.CredentialUseCase,
	models usecase.ModelUseCase,
	batches usecase.BatchUseCase,
	auth *AuthManager,
	limiter LoginLimiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if opts.LoginLimit <= 0 {
		opts.LoginLimit = 5
	}
	if opts.LoginWindow <= 0 {
		opts.LoginWindow = time.Minute
	}
	return &Server{
		creds:   creds,
		models:  models,
		batches: batches,
		auth:    auth,
		limiter: limiter,
		opts:    opts,
		log:     logger,
	}
}

// Routes builds the chi router with every endpoint mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(s.log), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(s.auth, s.opts.Dev, s.log))

			r.Get("/credentials", s.handleListCredentials)
			r.Post("/credentials", s.handleAddCredential)
			r.Put("/credentials/{index}", s.handleUpdateCredential)
			r.Delete("/credentials/{index}", s.handleDeleteCredential)
			r.Get("/credentials/{index}/reveal", s.handleRevealCredential)

			r.Get("/models", s.handleListModels)

			r.Post("/batches", s.handleSubmitBatch)
			r.Get("/batches", s.handleListBatches)
			r.Get("/batches/{id}", s.handleGetBatch)
			r.Get("/batches/{id}/text", s.handleBatchText)
			r.Delete("/batches/{id}", s.handleCancelBatch)
		})
	})
	return r
}

func (s *Server) Start(cfg config.HTTPConfig) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	s.log.Info().Int("port", cfg.Port).Bool("dev", s.opts.Dev).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) logFor(r *http.Request) *zerolog.Logger {
	return logging.With(r.Context(), s.log)
}
