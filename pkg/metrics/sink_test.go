package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_HandlerExposesRecordedMetrics(t *testing.T) {
	sink := New()
	sink.SetDatabases(3)
	sink.SetActiveSessions(2)
	sink.ObserveQuery("gql", "ok", 10*time.Millisecond)
	sink.ObserveHTTPRequest("GET", "2xx")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	sink.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "grafeo_databases_total 3")
	assert.Contains(t, body, "grafeo_active_sessions 2")
	assert.Contains(t, body, `grafeo_queries_total{language="gql",status="ok"} 1`)
	assert.Contains(t, body, `grafeo_http_requests_total{method="GET",status="2xx"} 1`)
	assert.Contains(t, body, "grafeo_uptime_seconds")
}

func TestSink_ConstructingTwiceDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
