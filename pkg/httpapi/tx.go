package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/GrafeoDB/grafeo-server/pkg/dispatch"
	"github.com/GrafeoDB/grafeo-server/pkg/kindtag"
	"github.com/GrafeoDB/grafeo-server/pkg/multidb"
	"github.com/GrafeoDB/grafeo-server/pkg/txsession"
)

const sessionHeader = "X-Session-Id"

type txBeginRequest struct {
	Database string `json:"database,omitempty"`
}

type txBeginResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// handleTxBegin serves POST /tx/begin.
func (s *Server) handleTxBegin(w http.ResponseWriter, r *http.Request) {
	var req txBeginRequest
	if err := decodeLenient(r, &req); err != nil {
		writeError(w, kindtag.New(kindtag.BadRequest, "malformed JSON body"))
		return
	}
	if req.Database == "" {
		req.Database = "default"
	}

	session, err := s.svc.OpenSession(r.Context(), req.Database)
	if err != nil {
		writeError(w, translateOpenErr(err))
		return
	}
	writeJSON(w, http.StatusOK, txBeginResponse{SessionID: session.ID, Status: string(session.State)})
}

func translateOpenErr(err error) error {
	if ke, ok := err.(*kindtag.Error); ok {
		return ke
	}
	if errors.Is(err, multidb.ErrDatabaseNotFound) || errors.Is(err, multidb.ErrDatabaseBroken) {
		return kindtag.New(kindtag.NotFound, "database not found")
	}
	return kindtag.New(kindtag.Internal, err.Error())
}

// handleTxQuery serves POST /tx/query, executing one statement within
// the session named by X-Session-Id.
func (s *Server) handleTxQuery(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		writeError(w, kindtag.New(kindtag.BadRequest, sessionHeader+" header is required"))
		return
	}
	session, err := s.svc.Sessions.Get(sessionID)
	if err != nil {
		writeError(w, kindtag.New(kindtag.NotFound, "session not found"))
		return
	}

	var req queryRequest
	if err := decodeLenient(r, &req); err != nil {
		writeError(w, kindtag.New(kindtag.BadRequest, "malformed JSON body"))
		return
	}

	result, err := s.svc.Dispatcher.Execute(r.Context(), dispatch.Request{
		Session:  session,
		Language: req.Language,
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

type txStatusResponse struct {
	Status string `json:"status"`
}

// handleTxCommit serves POST /tx/commit. A second commit/rollback
// after success returns not-found, since the session no longer exists.
func (s *Server) handleTxCommit(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	session, err := s.svc.Sessions.Get(sessionID)
	if err != nil {
		writeError(w, kindtag.New(kindtag.NotFound, "session not found"))
		return
	}
	if _, err := s.svc.CommitSession(r.Context(), session); err != nil {
		writeError(w, translateTxErr(err))
		return
	}
	writeJSON(w, http.StatusOK, txStatusResponse{Status: "committed"})
}

// handleTxRollback serves POST /tx/rollback.
func (s *Server) handleTxRollback(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	session, err := s.svc.Sessions.Get(sessionID)
	if err != nil {
		writeError(w, kindtag.New(kindtag.NotFound, "session not found"))
		return
	}
	if err := s.svc.RollbackSession(r.Context(), session); err != nil {
		writeError(w, translateTxErr(err))
		return
	}
	writeJSON(w, http.StatusOK, txStatusResponse{Status: "rolled_back"})
}

func translateTxErr(err error) error {
	if ke, ok := err.(*kindtag.Error); ok {
		return ke
	}
	switch {
	case errors.Is(err, txsession.ErrNotFound):
		return kindtag.New(kindtag.NotFound, "session not found")
	case errors.Is(err, txsession.ErrBusy):
		return kindtag.New(kindtag.Conflict, "session is busy")
	default:
		return kindtag.New(kindtag.Internal, err.Error())
	}
}
