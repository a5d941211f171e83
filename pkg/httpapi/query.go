package httpapi

import (
	"net/http"
	"time"

	"github.com/GrafeoDB/grafeo-server/pkg/dispatch"
	"github.com/GrafeoDB/grafeo-server/pkg/kindtag"
	"github.com/GrafeoDB/grafeo-server/pkg/querylang"
)

// queryRequest is the body accepted by POST /query and its per-language
// sugar endpoints.
type queryRequest struct {
	Query     string         `json:"query"`
	Database  string         `json:"database,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Language  string         `json:"language,omitempty"`
	TimeoutMs int64          `json:"timeout_ms,omitempty"`
}

// queryResponse mirrors querylang.ExecuteResult on the wire.
type queryResponse struct {
	Columns         []string `json:"columns"`
	Rows            [][]any  `json:"rows"`
	ExecutionTimeMs float64  `json:"execution_time_ms"`
	RowsScanned     int64    `json:"rows_scanned"`
}

func toQueryResponse(r *querylang.ExecuteResult) queryResponse {
	return queryResponse{
		Columns:         r.Columns,
		Rows:            r.Rows,
		ExecutionTimeMs: float64(r.ExecutionTime.Microseconds()) / 1000.0,
		RowsScanned:     r.RowsScanned,
	}
}

// handleQuery serves POST /query: auto-commit, default GQL.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.dispatchAutoCommit(w, r, "")
}

// languageSugarHandler returns a handler for one of the per-language
// sugar endpoints (POST /{cypher,graphql,gremlin,sparql,sql}), which
// behave like POST /query with language fixed by the path.
func (s *Server) languageSugarHandler(language string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dispatchAutoCommit(w, r, language)
	}
}

func (s *Server) dispatchAutoCommit(w http.ResponseWriter, r *http.Request, forcedLanguage string) {
	var req queryRequest
	if err := decodeLenient(r, &req); err != nil {
		writeError(w, kindtag.New(kindtag.BadRequest, "malformed JSON body"))
		return
	}
	if req.Database == "" {
		req.Database = "default"
	}
	lang := req.Language
	if forcedLanguage != "" {
		lang = forcedLanguage
	}

	result, err := s.svc.Dispatcher.Execute(r.Context(), dispatch.Request{
		Database: req.Database,
		Language: lang,
		Text:     req.Query,
		Params:   req.Params,
		Deadline: time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQueryResponse(result))
}

// batchRequest is the body accepted by POST /batch.
type batchRequest struct {
	Database   string   `json:"database"`
	Language   string   `json:"language,omitempty"`
	Statements []string `json:"statements"`
	TimeoutMs  int64    `json:"timeout_ms,omitempty"`
}

type batchResponse struct {
	Results []queryResponse `json:"results"`
}

// handleBatch serves POST /batch: begin, execute each statement,
// commit on all success, rollback on any failure.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeLenient(r, &req); err != nil {
		writeError(w, kindtag.New(kindtag.BadRequest, "malformed JSON body"))
		return
	}
	if req.Database == "" {
		req.Database = "default"
	}

	results, err := s.svc.Dispatcher.Batch(r.Context(), req.Database, req.Language, req.Statements, time.Duration(req.TimeoutMs)*time.Millisecond)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]queryResponse, len(results))
	for i, res := range results {
		out[i] = toQueryResponse(res)
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: out})
}
