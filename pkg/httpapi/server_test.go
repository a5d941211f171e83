package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrafeoDB/grafeo-server/pkg/multidb"
	"github.com/GrafeoDB/grafeo-server/pkg/service"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	svc, err := service.New(service.Config{
		SupportedKinds: []multidb.Kind{multidb.KindLPG},
		SessionTTL:     time.Minute,
		WorkerCount:    2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background(), 5*time.Second) })

	s := New(svc, DefaultConfig())
	return s, s.withMiddleware(s.buildRouter())
}

func TestHandleQuery_DefaultDatabaseRoundTrip(t *testing.T) {
	_, handler := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"query": "INSERT (:Person {name: 'Alice'})"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleQuery_MalformedJSONIsBadRequest(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateDatabase_RejectsUnknownFields(t *testing.T) {
	_, handler := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"name": "extra", "bogus_field": true})
	req := httptest.NewRequest(http.MethodPost, "/db", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDatabaseLifecycle_CreateListGetDelete(t *testing.T) {
	_, handler := newTestServer(t)

	create := httptest.NewRequest(http.MethodPost, "/db", bytes.NewReader(mustJSON(map[string]any{"name": "tenant1"})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, create)
	require.Equal(t, http.StatusOK, rec.Code)

	list := httptest.NewRequest(http.MethodGet, "/db", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, list)
	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	names := make([]string, 0, len(summaries))
	for _, s := range summaries {
		names = append(names, s["name"].(string))
	}
	assert.Contains(t, names, "tenant1")

	get := httptest.NewRequest(http.MethodGet, "/db/tenant1", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, get)
	assert.Equal(t, http.StatusOK, rec.Code)

	del := httptest.NewRequest(http.MethodDelete, "/db/tenant1", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, del)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteDatabase_DefaultIsForbidden(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/db/default", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetDatabase_NotFound(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/db/does-not-exist", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionLifecycle_BeginQueryCommit(t *testing.T) {
	_, handler := newTestServer(t)

	begin := httptest.NewRequest(http.MethodPost, "/tx/begin", bytes.NewReader(mustJSON(map[string]any{})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, begin)
	require.Equal(t, http.StatusOK, rec.Code)
	var beginResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &beginResp))
	sessionID := beginResp["session_id"].(string)
	require.NotEmpty(t, sessionID)

	q := httptest.NewRequest(http.MethodPost, "/tx/query", bytes.NewReader(mustJSON(map[string]any{"query": "INSERT (:Person {name: 'Bob'})"})))
	q.Header.Set(sessionHeader, sessionID)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, q)
	require.Equal(t, http.StatusOK, rec.Code)

	commit := httptest.NewRequest(http.MethodPost, "/tx/commit", nil)
	commit.Header.Set(sessionHeader, sessionID)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, commit)
	require.Equal(t, http.StatusOK, rec.Code)

	// A second commit on the same, now-deleted, session must 404.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, commit)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleMetrics(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "grafeo_databases_total")
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
