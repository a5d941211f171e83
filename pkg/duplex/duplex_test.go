package duplex

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrafeoDB/grafeo-server/pkg/dispatch"
	"github.com/GrafeoDB/grafeo-server/pkg/metrics"
	"github.com/GrafeoDB/grafeo-server/pkg/multidb"
	"github.com/GrafeoDB/grafeo-server/pkg/querylang"
	"github.com/GrafeoDB/grafeo-server/pkg/txsession"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	manager, err := multidb.NewManager(&multidb.Config{SupportedKinds: []multidb.Kind{multidb.KindLPG}}, nil)
	require.NoError(t, err)
	sessions := txsession.NewManager(time.Minute, func(dbName string) (*querylang.StorageExecutor, error) {
		eng, err := manager.Get(dbName)
		if err != nil {
			return nil, err
		}
		return querylang.NewStorageExecutor(eng), nil
	})
	t.Cleanup(sessions.Stop)
	d := dispatch.New(manager, sessions, metrics.New(), dispatch.Config{WorkerCount: 2})
	return New(d)
}

func dialTestServer(t *testing.T, handler *Handler) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestDuplex_QueryRoundTrip(t *testing.T) {
	conn := dialTestServer(t, newTestHandler(t))

	require.NoError(t, conn.WriteJSON(Message{Type: TypeQuery, ID: "1", Query: "INSERT (:Person {name: 'Alice'})"}))

	var resp Message
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, TypeResult, resp.Type)
	assert.Equal(t, "1", resp.ID)
}

func TestDuplex_PingPong(t *testing.T) {
	conn := dialTestServer(t, newTestHandler(t))

	require.NoError(t, conn.WriteJSON(Message{Type: TypePing, ID: "ping-1"}))

	var resp Message
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, TypePong, resp.Type)
	assert.Equal(t, "ping-1", resp.ID)
}

func TestDuplex_UnsupportedTypeReturnsError(t *testing.T) {
	conn := dialTestServer(t, newTestHandler(t))

	require.NoError(t, conn.WriteJSON(Message{Type: "unknown", ID: "x"}))

	var resp Message
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, TypeError, resp.Type)
}

func TestDuplex_QueryAgainstUnknownDatabaseReturnsError(t *testing.T) {
	conn := dialTestServer(t, newTestHandler(t))

	require.NoError(t, conn.WriteJSON(Message{Type: TypeQuery, ID: "2", Database: "missing", Query: "RETURN 1"}))

	var resp Message
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, TypeError, resp.Type)
	assert.NotEmpty(t, resp.Error)
}
