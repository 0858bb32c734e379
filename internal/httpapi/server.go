package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apimw "github.com/hamed0406/pingmonitor/internal/httpapi/middleware"
	"github.com/hamed0406/pingmonitor/internal/registry"
)

// Engine is the reconfiguration surface of the running monitor.
type Engine interface {
	AddHost(ctx context.Context, id string) (bool, error)
	SetActive(ctx context.Context, id string, active bool) error
	Reload(ctx context.Context) (registry.LoadReport, error)
}

type Server struct {
	Logger   *zap.Logger
	Registry *registry.Registry
	Engine   Engine
	Hub      *Hub
	Gatherer prometheus.Gatherer
}

func NewServer(l *zap.Logger, reg *registry.Registry, eng Engine, hub *Hub, g prometheus.Gatherer) *Server {
	return &Server{Logger: l, Registry: reg, Engine: eng, Hub: hub, Gatherer: g}
}

// Router wires the API. Reads need any key, writes need an admin key and are
// rate limited per client.
func (s *Server) Router(keys apimw.Keys, origins []string, writePerMin, writeBurst int) http.Handler {
	r := chi.NewRouter()
	if len(origins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAny(keys))
			r.Get("/hosts", s.handleListHosts)
			r.Get("/hosts/{id}", s.handleGetHost)
			if s.Hub != nil {
				r.Get("/ws", s.Hub.ServeWS)
			}
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(keys))
			r.Use(apimw.RateLimit(writePerMin, writeBurst))
			r.Post("/hosts", s.handleAddHost)
			r.Put("/hosts/{id}/active", s.handleSetActive)
			r.Post("/reload", s.handleReload)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
