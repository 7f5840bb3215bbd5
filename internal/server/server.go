// Package server exposes the simulator over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/lawnchairsociety/tunnelfight/internal/config"
	"github.com/lawnchairsociety/tunnelfight/internal/database"
	"github.com/lawnchairsociety/tunnelfight/internal/logger"
)

// ReportStore is the part of the report archive the server uses.
type ReportStore interface {
	SaveReport(ctx context.Context, r *database.Report) error
	GetReport(ctx context.Context, id string) (*database.Report, error)
	ListReports(ctx context.Context, f database.ReportFilter) ([]database.Report, error)
	DeleteReport(ctx context.Context, id string) error
}

type Server struct {
	cfg          *config.ServerConfig
	reports      ReportStore
	connLimiter  *ConnLimiter
	abuse        *AbuseLimiter
	httpServer   *http.Server
	streams      sync.WaitGroup
	baseCtx      context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	StartTime    time.Time
}

// NewServer builds a server from cfg. reports may be nil, which disables
// the /reports routes and archiving.
func NewServer(cfg *config.ServerConfig, reports ReportStore) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:         cfg,
		reports:     reports,
		connLimiter: NewConnLimiter(cfg.Connections),
		abuse:       NewAbuseLimiter(cfg.RateLimit),
		baseCtx:     ctx,
		cancel:      cancel,
		StartTime:   time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(logger.Slog().Handler(), slog.LevelWarn),
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/simulate", s.handleSimulate).Methods(http.MethodPost)
	r.HandleFunc("/reports", s.handleListReports).Methods(http.MethodGet)
	r.HandleFunc("/reports/{id}", s.handleGetReport).Methods(http.MethodGet)
	r.HandleFunc("/reports/{id}", s.handleDeleteReport).Methods(http.MethodDelete)
	r.HandleFunc("/ws", s.handleWebSocketUpgrade).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return withCORS(r)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	logger.Info("Server listening",
		"address", ln.Addr().String(),
		"archive", s.reports != nil)

	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown cancels running simulations, stops accepting requests and waits
// for open WebSocket streams to finish. Only the first call does anything.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cancel()
		s.abuse.Stop()

		err = s.httpServer.Shutdown(ctx)

		done := make(chan struct{})
		go func() {
			s.streams.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}

		total, _ := s.connLimiter.Stats()
		logger.Info("Server shutdown complete",
			"uptime", time.Since(s.StartTime).Round(time.Second),
			"open_streams", total)
	})
	return err
}
