package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/de-tools/report-ledger/pkg/handlers/blockchain"
	ledgermiddleware "github.com/de-tools/report-ledger/pkg/server/middleware"
	"github.com/de-tools/report-ledger/pkg/services/report"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type WebAPI struct {
	router          http.Handler
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

type Dependencies struct {
	Reports report.Service
	Logger  zerolog.Logger
}

type Config struct {
	Addr            string
	BasePath        string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MintRateLimit   float64
	MintBurst       int
	Dependencies    Dependencies
}

func ConfigureRouter(config Config) http.Handler {
	h := handlers.NewHandler(config.Dependencies.Reports)
	logger := config.Dependencies.Logger

	router := chi.NewRouter()
	router.Use(ledgermiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{ledgermiddleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/", h.Root)
	router.Get("/health", h.Health)

	routes := func(r chi.Router) {
		r.With(ledgermiddleware.RateLimit(config.MintRateLimit, config.MintBurst)).
			Post("/mint-report", h.MintReport)
		r.Post("/report-hash", h.ReportHash)
		r.Get("/reports/{id}/hash", h.LedgerHash)
	}

	if config.BasePath == "" || config.BasePath == "/" {
		routes(router)
	} else {
		router.Route(config.BasePath, func(r chi.Router) {
			routes(r)
			r.Get("/health", h.RouterHealth)
		})
	}

	return router
}

func NewWebAPI(config Config) *WebAPI {
	router := ConfigureRouter(config)
	logger := config.Dependencies.Logger

	shutdownTimeout := config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &WebAPI{
		router:          router,
		logger:          &logger,
		shutdownTimeout: shutdownTimeout,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves until the listener fails, ctx is canceled or the process
// receives SIGINT/SIGTERM, then drains in-flight requests.
func (w *WebAPI) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-shutdown:
	case <-ctx.Done():
	}

	w.logger.Info().Msg("shutdown initiated")

	// in-flight mints may still be waiting for confirmation
	shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer cancel()

	if err := w.server.Shutdown(shutdownCtx); err != nil {
		w.logger.Error().Err(err).Msg("graceful shutdown failed")
		return w.server.Close()
	}
	return nil
}
