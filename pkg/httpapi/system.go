package httpapi

import (
	"net/http"
	"time"

	"github.com/GrafeoDB/grafeo-server/pkg/kindtag"
)

// handleResources serves GET /system/resources.
func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.svc.Resources.Snapshot()
	if err != nil {
		writeError(w, kindtag.New(kindtag.Internal, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// handleHealth serves GET /health, exempt from auth.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Uptime: time.Since(s.started).String()})
}

// handleMetrics serves GET /metrics in Prometheus text format,
// refreshing the live gauges first.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.svc.RefreshGauges()
	s.svc.Metrics.Handler().ServeHTTP(w, r)
}

// handleOpenAPI serves GET /api/openapi.json, a minimal description of
// the route table sufficient for client generators.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openAPIDocument())
}

func openAPIDocument() map[string]any {
	paths := map[string]any{}
	for _, p := range []string{"/query", "/cypher", "/graphql", "/gremlin", "/sparql", "/sql"} {
		paths[p] = map[string]any{"post": map[string]any{"summary": "execute a query"}}
	}
	paths["/batch"] = map[string]any{"post": map[string]any{"summary": "execute an atomic batch of queries"}}
	paths["/tx/begin"] = map[string]any{"post": map[string]any{"summary": "begin an explicit transaction"}}
	paths["/tx/query"] = map[string]any{"post": map[string]any{"summary": "execute within an open transaction"}}
	paths["/tx/commit"] = map[string]any{"post": map[string]any{"summary": "commit an open transaction"}}
	paths["/tx/rollback"] = map[string]any{"post": map[string]any{"summary": "roll back an open transaction"}}
	paths["/db"] = map[string]any{
		"get":  map[string]any{"summary": "list databases"},
		"post": map[string]any{"summary": "create a database"},
	}
	paths["/db/{name}"] = map[string]any{
		"get":    map[string]any{"summary": "get a database summary"},
		"delete": map[string]any{"summary": "delete a database"},
	}
	paths["/db/{name}/stats"] = map[string]any{"get": map[string]any{"summary": "get database stats"}}
	paths["/db/{name}/schema"] = map[string]any{"get": map[string]any{"summary": "get database schema"}}
	paths["/system/resources"] = map[string]any{"get": map[string]any{"summary": "host and tenancy resource snapshot"}}
	paths["/health"] = map[string]any{"get": map[string]any{"summary": "liveness check"}}
	paths["/metrics"] = map[string]any{"get": map[string]any{"summary": "Prometheus metrics"}}
	paths["/ws"] = map[string]any{"get": map[string]any{"summary": "full-duplex query channel"}}

	return map[string]any{
		"openapi": "3.0.3",
		"info":    map[string]any{"title": "Grafeo Server", "version": "1"},
		"paths":   paths,
	}
}
