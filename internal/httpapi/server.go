package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/speedwagon-io/sensorwatch/internal/health"
	"github.com/speedwagon-io/sensorwatch/internal/history"
	"github.com/speedwagon-io/sensorwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/sensorwatch/internal/state"
)

// HistoryReader is the read side of the history store.
type HistoryReader interface {
	RecentReadings(ctx context.Context, limit int) ([]history.Record, error)
}

type Server struct {
	log      *slog.Logger
	address  string
	server   *http.Server
	store    *state.Store
	history  HistoryReader
	checkers []health.Checker
	refresh  time.Duration
}

type Option func(*Server)

// WithHistory enables /api/v1/history.
func WithHistory(h HistoryReader) Option {
	return func(s *Server) { s.history = h }
}

func WithCheckers(checkers ...health.Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, checkers...) }
}

// WithRefresh sets the dashboard auto-refresh period.
func WithRefresh(d time.Duration) Option {
	return func(s *Server) { s.refresh = d }
}

func NewServer(log *slog.Logger, address string, store *state.Store, opts ...Option) *Server {
	s := &Server{
		log:     log,
		address: address,
		store:   store,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleDashboard)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)
	r.Get("/ws", s.handleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/readings", s.handleReadings)
		r.Get("/summary", s.handleSummary)
		r.Get("/prediction", s.handlePrediction)
		r.Get("/history", s.handleHistory)
		r.Put("/selection", s.handleSelect)
	})

	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.address,
		Handler:     s.Routes(),
		ReadTimeout: 5 * time.Second,
	}

	s.log.Info("starting http server", slog.String("address", s.address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", sl.Err(err))
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
