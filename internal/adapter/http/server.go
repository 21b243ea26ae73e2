package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bnema/vidq/internal/adapter/http/middleware"
	"github.com/bnema/vidq/internal/infrastructure/logger"
)

type Server struct {
	mux         *http.ServeMux
	handlers    *Handlers
	sseHandler  *SSEHandler
	previewsDir string
	httpServer  *http.Server
}

func NewServer(catalog Catalog, queue QueueReporter, events EventSource, previewsDir string) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		handlers:    NewHandlers(catalog, queue),
		sseHandler:  NewSSEHandler(events),
		previewsDir: previewsDir,
	}
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.registerRoutes()
	s.registerStatic()

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handlers.Gallery())

	s.mux.HandleFunc("GET /api/previews", s.handlers.Previews())
	s.mux.HandleFunc("GET /api/queue", s.handlers.Queue())
	s.mux.HandleFunc("GET /api/jobs", s.handlers.Jobs())
	s.mux.HandleFunc("GET /api/jobs/{id}", s.handlers.Job())

	s.mux.HandleFunc("GET /events", s.sseHandler.Events())

	s.mux.HandleFunc("GET /videos/{id}", s.handlers.Video())
}

func (s *Server) registerStatic() {
	s.mux.Handle("GET /previews/", http.StripPrefix("/previews/", http.FileServer(http.Dir(s.previewsDir))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(s.mux).ServeHTTP(w, r)
}

// Serve accepts connections on lis until Shutdown is called.
func (s *Server) Serve(lis net.Listener) error {
	logger.Info.Printf("http listening on %s", lis.Addr())
	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
