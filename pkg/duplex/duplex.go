// Package duplex is a persistent WebSocket carrying JSON messages tagged
// by a type field in {query, result, error, ping, pong}, with an
// optional client id echoed back on matching server messages for
// correlation.
package duplex

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GrafeoDB/grafeo-server/pkg/dispatch"
	"github.com/GrafeoDB/grafeo-server/pkg/kindtag"
)

// MessageType enumerates the tagged message kinds this protocol defines.
type MessageType string

const (
	TypeQuery  MessageType = "query"
	TypeResult MessageType = "result"
	TypeError  MessageType = "error"
	TypePing   MessageType = "ping"
	TypePong   MessageType = "pong"
)

// Message is the envelope every frame on the socket carries.
type Message struct {
	Type      MessageType    `json:"type"`
	ID        string         `json:"id,omitempty"`
	Query     string         `json:"query,omitempty"`
	Database  string         `json:"database,omitempty"`
	Language  string         `json:"language,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	TimeoutMs int64          `json:"timeout_ms,omitempty"`

	Columns         []string `json:"columns,omitempty"`
	Rows            [][]any  `json:"rows,omitempty"`
	ExecutionTimeMs float64  `json:"execution_time_ms,omitempty"`
	RowsScanned     int64    `json:"rows_scanned,omitempty"`

	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler serves GET /ws, upgrading to a WebSocket and running one
// connection's read/dispatch/write loop until the client disconnects.
type Handler struct {
	dispatcher *dispatch.Dispatcher
}

// New constructs a Handler bound to dispatcher.
func New(dispatcher *dispatch.Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// ServeHTTP implements http.Handler so it can be wired straight into
// httpapi's router via Server.SetDuplexHandler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var in Message
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		h.handle(r.Context(), conn, in)
	}
}

func (h *Handler) handle(ctx context.Context, conn *websocket.Conn, in Message) {
	switch in.Type {
	case TypePing:
		_ = conn.WriteJSON(Message{Type: TypePong, ID: in.ID})
	case TypeQuery:
		h.handleQuery(ctx, conn, in)
	default:
		_ = conn.WriteJSON(Message{Type: TypeError, ID: in.ID, Error: string(kindtag.BadRequest), Detail: "unsupported message type"})
	}
}

func (h *Handler) handleQuery(ctx context.Context, conn *websocket.Conn, in Message) {
	database := in.Database
	if database == "" {
		database = "default"
	}
	result, err := h.dispatcher.Execute(ctx, dispatch.Request{
		Database: database,
		Language: in.Language,
		Text:     in.Query,
		Params:   in.Params,
		Deadline: time.Duration(in.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		ke, ok := err.(*kindtag.Error)
		if !ok {
			ke = kindtag.New(kindtag.Internal, err.Error())
		}
		_ = conn.WriteJSON(Message{Type: TypeError, ID: in.ID, Error: string(ke.Kind), Detail: ke.Detail})
		return
	}
	_ = conn.WriteJSON(Message{
		Type:            TypeResult,
		ID:              in.ID,
		Columns:         result.Columns,
		Rows:            result.Rows,
		ExecutionTimeMs: float64(result.ExecutionTime.Microseconds()) / 1000.0,
		RowsScanned:     result.RowsScanned,
	})
}
