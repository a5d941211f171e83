package httpapi

import (
	"errors"
	"net/http"

	"github.com/GrafeoDB/grafeo-server/pkg/kindtag"
	"github.com/GrafeoDB/grafeo-server/pkg/multidb"
)

// handleListDatabases serves GET /db.
func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Manager.List())
}

// createDatabaseRequest is the body accepted by POST /db; unknown
// fields are rejected.
type createDatabaseRequest struct {
	Name        string            `json:"name"`
	Kind        string            `json:"kind,omitempty"`
	StorageMode string            `json:"storage_mode,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
	Schema      string            `json:"schema,omitempty"`
}

// handleCreateDatabase serves POST /db.
func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var req createDatabaseRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, kindtag.New(kindtag.BadRequest, "malformed JSON body"))
		return
	}

	kind := multidb.Kind(req.Kind)
	if kind == "" {
		kind = multidb.KindLPG
	}
	mode := multidb.StorageMode(req.StorageMode)
	if mode == "" {
		mode = multidb.ModeMemory
	}

	summary, err := s.svc.CreateDatabase(req.Name, kind, mode, req.Options, req.Schema)
	if err != nil {
		writeError(w, translateManagerErr(err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleGetDatabase serves GET /db/{name}.
func (s *Server) handleGetDatabase(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	summary, err := s.svc.Manager.Info(name)
	if err != nil {
		writeError(w, translateManagerErr(err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleDeleteDatabase serves DELETE /db/{name}. Deleting the default
// database returns forbidden.
func (s *Server) handleDeleteDatabase(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.svc.DeleteDatabase(name); err != nil {
		writeError(w, translateManagerErr(err))
		return
	}
	writeJSON(w, http.StatusOK, txStatusResponse{Status: "deleted"})
}

// handleDatabaseStats serves GET /db/{name}/stats.
func (s *Server) handleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	stats, err := s.svc.Manager.Stats(name)
	if err != nil {
		writeError(w, translateManagerErr(err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type schemaResponse struct {
	Schema string `json:"schema"`
}

// handleDatabaseSchema serves GET /db/{name}/schema.
func (s *Server) handleDatabaseSchema(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	schema, err := s.svc.Manager.Schema(name)
	if err != nil {
		writeError(w, translateManagerErr(err))
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{Schema: schema})
}

func translateManagerErr(err error) error {
	switch {
	case errors.Is(err, multidb.ErrDatabaseNotFound):
		return kindtag.New(kindtag.NotFound, "database not found")
	case errors.Is(err, multidb.ErrDatabaseBroken):
		return kindtag.New(kindtag.Internal, "database entry is broken")
	case errors.Is(err, multidb.ErrDatabaseExists):
		return kindtag.New(kindtag.Conflict, "database already exists")
	case errors.Is(err, multidb.ErrCannotDropDefault):
		return kindtag.New(kindtag.Forbidden, "cannot drop the default database")
	case errors.Is(err, multidb.ErrInvalidName):
		return kindtag.New(kindtag.BadRequest, "invalid database name")
	case errors.Is(err, multidb.ErrUnsupportedKind):
		return kindtag.New(kindtag.BadRequest, "unsupported database kind or storage mode")
	case errors.Is(err, multidb.ErrQuotaExceeded):
		return kindtag.New(kindtag.Conflict, "memory quota exceeded")
	case errors.Is(err, multidb.ErrMaxDatabasesReached):
		return kindtag.New(kindtag.Conflict, "maximum number of databases reached")
	default:
		return kindtag.New(kindtag.Internal, err.Error())
	}
}
