package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"f0oster/adexpiry/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordReader is the read side of the run history store.
type RecordReader interface {
	LatestRun(ctx context.Context) (database.RunRecord, error)
	ListRecords(ctx context.Context, runID uuid.UUID, filter database.RecordFilter) ([]database.StoredRecord, error)
	GetRecord(ctx context.Context, runID uuid.UUID, key string) (database.StoredRecord, error)
	ListChanges(ctx context.Context, keyField, key string) ([]database.ChangeRecord, error)
}

var _ RecordReader = (*database.DBClient)(nil)

// Server handles HTTP requests for the JSON API.
type Server struct {
	store  RecordReader
	mux    *http.ServeMux
	addr   string
	logger *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(store RecordReader, addr string, logger *zap.Logger) *Server {
	s := &Server{
		store:  store,
		mux:    http.NewServeMux(),
		addr:   addr,
		logger: logger.With(zap.String("component", "web")),
	}
	s.registerRoutes()
	return s
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/runs/latest", s.handleLatestRun)
	s.mux.HandleFunc("GET /api/records", s.handleListRecords)
	s.mux.HandleFunc("GET /api/records/{key}", s.handleGetRecord)
	s.mux.HandleFunc("GET /api/records/{key}/changes", s.handleGetRecordChanges)
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Handler returns the HTTP handler for use with custom servers.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
