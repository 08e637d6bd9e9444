// Package http exposes a read-only status endpoint over the resolved fleet:
// node inventory as JSON, a health probe, and Prometheus metrics for the
// session demultiplexer.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// NodeResolver resolves target expressions to node lists. Implemented by the
// resolver engine.
type NodeResolver interface {
	Resolve(ctx context.Context, target string) ([]*fleet.Node, error)
}

// NewHandler creates the status endpoint handler.
func NewHandler(resolver NodeResolver) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/nodes", func(w http.ResponseWriter, req *http.Request) {
		target := req.URL.Query().Get("target")
		if target == "" {
			target = fleet.TargetAll
		}

		nodes, err := resolver.Resolve(req.Context(), target)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count": len(nodes),
			"nodes": nodes,
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
