package httpapi

import "net/http"

// buildRouter registers the full route table.
func (s *Server) buildRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /query", s.handleQuery)
	for _, lang := range []string{"cypher", "graphql", "gremlin", "sparql", "sql"} {
		mux.HandleFunc("POST /"+lang, s.languageSugarHandler(lang))
	}
	mux.HandleFunc("POST /batch", s.handleBatch)

	mux.HandleFunc("POST /tx/begin", s.handleTxBegin)
	mux.HandleFunc("POST /tx/query", s.handleTxQuery)
	mux.HandleFunc("POST /tx/commit", s.handleTxCommit)
	mux.HandleFunc("POST /tx/rollback", s.handleTxRollback)

	mux.HandleFunc("GET /db", s.handleListDatabases)
	mux.HandleFunc("POST /db", s.handleCreateDatabase)
	mux.HandleFunc("GET /db/{name}", s.handleGetDatabase)
	mux.HandleFunc("DELETE /db/{name}", s.handleDeleteDatabase)
	mux.HandleFunc("GET /db/{name}/stats", s.handleDatabaseStats)
	mux.HandleFunc("GET /db/{name}/schema", s.handleDatabaseSchema)

	mux.HandleFunc("GET /system/resources", s.handleResources)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/openapi.json", s.handleOpenAPI)

	if s.duplexHandler != nil {
		mux.HandleFunc("GET /ws", s.duplexHandler)
	}

	mux.HandleFunc("GET /{$}", s.handleRoot)
	return mux
}

// handleRoot redirects GET / to the UI root with a 308; when no UI root
// is configured (headless deployments) it answers 200 with
// {"status":"ok"}.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if s.config.UIRoot == "" {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	http.Redirect(w, r, s.config.UIRoot, http.StatusPermanentRedirect)
}
