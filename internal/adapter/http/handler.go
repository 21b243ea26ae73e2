package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/bnema/vidq/internal/adapter/http/templates"
	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/infrastructure/logger"
	"github.com/bnema/vidq/internal/service"
	"github.com/bnema/vidq/internal/validation"
)

type Catalog interface {
	Previews(ext string) ([]domain.Preview, error)
	Job(id string) (*domain.Record, error)
	Jobs() ([]*domain.Record, error)
}

type QueueReporter interface {
	Stats() service.QueueStats
}

type Handlers struct {
	catalog Catalog
	queue   QueueReporter
}

func NewHandlers(catalog Catalog, queue QueueReporter) *Handlers {
	return &Handlers{
		catalog: catalog,
		queue:   queue,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug.Printf("write json response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// Previews lists the previews directory filtered by the ext query
// parameter, .png when absent.
func (h *Handlers) Previews() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("ext")
		if raw == "" {
			raw = ".png"
		}
		ext, err := validation.Ext(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid extension")
			return
		}

		previews, err := h.catalog.Previews(ext)
		if err != nil {
			logger.Error.Printf("list previews: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list previews")
			return
		}
		writeJSON(w, http.StatusOK, previews)
	}
}

func (h *Handlers) Queue() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.queue.Stats())
	}
}

func (h *Handlers) Jobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jobs, err := h.catalog.Jobs()
		if err != nil {
			logger.Error.Printf("list jobs: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list jobs")
			return
		}
		if jobs == nil {
			jobs = []*domain.Record{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

func (h *Handlers) Job() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := h.lookup(w, r.PathValue("id"))
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// Video serves the compressed output of a finished job under its original
// name.
func (h *Handlers) Video() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := h.lookup(w, r.PathValue("id"))
		if !ok {
			return
		}
		if rec.Status != domain.JobStatusDone || rec.OutputPath == "" {
			writeError(w, http.StatusNotFound, "video not available")
			return
		}
		if _, err := os.Stat(rec.OutputPath); err != nil {
			logger.Warn.Printf("output of job %s missing: %v", rec.ID, err)
			writeError(w, http.StatusNotFound, "video not available")
			return
		}

		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", validation.ContentDisposition(rec.OriginalName, r.URL.Query().Get("download") == ""))
		http.ServeFile(w, r, rec.OutputPath)
	}
}

func (h *Handlers) Gallery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		previews, err := h.catalog.Previews(".png")
		if err != nil {
			logger.Error.Printf("gallery list error: %v", err)
			previews = []domain.Preview{}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Gallery(previews, h.queue.Stats()).Render(r.Context(), w); err != nil {
			logger.Debug.Printf("render gallery: %v", err)
		}
	}
}

func (h *Handlers) lookup(w http.ResponseWriter, id string) (*domain.Record, bool) {
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return nil, false
	}
	rec, err := h.catalog.Job(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return nil, false
		}
		logger.Error.Printf("get job %s: %v", logger.SanitizeForLog(id), err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return nil, false
	}
	return rec, true
}
