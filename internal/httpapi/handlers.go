package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/registry"
	"github.com/hamed0406/pingmonitor/internal/scheduler"
)

func (s *Server) handleListHosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.Snapshot())
}

func (s *Server) handleGetHost(w http.ResponseWriter, r *http.Request) {
	h, ok := s.Registry.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "host not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Snapshot())
}

type addPayload struct {
	ID string `json:"id"`
}

func (s *Server) handleAddHost(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	id := strings.TrimSpace(p.ID)
	added, err := s.Engine.AddHost(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	h, ok := s.Registry.Get(id)
	if !ok {
		writeError(w, http.StatusInternalServerError, "host vanished")
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
		s.Logger.Info("api_host_added", zap.String("host", id))
	}
	writeJSON(w, status, h.Snapshot())
}

type activePayload struct {
	Active *bool `json:"active"`
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var p activePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Active == nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.Engine.SetActive(r.Context(), id, *p.Active); err != nil {
		s.writeEngineError(w, err)
		return
	}
	h, ok := s.Registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "host not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Snapshot())
}

type reloadResponse struct {
	Hosts           int  `json:"hosts"`
	Loaded          int  `json:"loaded"`
	Skipped         int  `json:"skipped"`
	Added           int  `json:"added"`
	Removed         int  `json:"removed"`
	Seeded          bool `json:"seeded"`
	IntervalSeconds int  `json:"interval_seconds"`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Engine.Reload(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{
		Hosts:           s.Registry.Len(),
		Loaded:          rep.Loaded,
		Skipped:         rep.Skipped,
		Added:           rep.Added,
		Removed:         rep.Removed,
		Seeded:          rep.Seeded,
		IntervalSeconds: rep.IntervalSeconds,
	})
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid host id")
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "host not found")
	case errors.Is(err, scheduler.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "monitor stopped")
	default:
		s.Logger.Warn("api_engine_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
