package wireproto

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GrafeoDB/grafeo-server/pkg/auth"
	"github.com/GrafeoDB/grafeo-server/pkg/dispatch"
	"github.com/GrafeoDB/grafeo-server/pkg/kindtag"
	"github.com/GrafeoDB/grafeo-server/pkg/multidb"
	"github.com/GrafeoDB/grafeo-server/pkg/querylang"
	"github.com/GrafeoDB/grafeo-server/pkg/rowstream"
	"github.com/GrafeoDB/grafeo-server/pkg/service"
	"github.com/GrafeoDB/grafeo-server/pkg/txsession"
)

// Config configures a Server's listen address and per-result batching.
type Config struct {
	Address string // default "127.0.0.1"
	Port    int    // default 9090

	BatchSize int // rows per FrameBatch; <=0 defaults to rowstream.DefaultBatchSize
}

// DefaultConfig returns the server's baseline configuration.
func DefaultConfig() *Config {
	return &Config{Address: "127.0.0.1", Port: 9090, BatchSize: rowstream.DefaultBatchSize}
}

// Server accepts TCP connections speaking the frame protocol defined in
// wireproto.go: a Handshake, then any number of request frames, each
// answered before the next is read.
type Server struct {
	config *Config
	svc    *service.Service

	listener net.Listener
	closed   atomic.Bool
	wg       sync.WaitGroup
}

func (c *Config) batchSize() int {
	if c.BatchSize <= 0 {
		return rowstream.DefaultBatchSize
	}
	return c.BatchSize
}

// New constructs a Server bound to svc. Pass nil for config to use
// DefaultConfig().
func New(svc *service.Service, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{config: config, svc: svc}
}

// Addr returns the server's bound listen address, valid after Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Start begins accepting connections on a background goroutine.
func (s *Server) Start() error {
	if s.closed.Load() {
		return errors.New("wireproto: server already closed")
	}
	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("wireproto: listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return
			}
			log.Printf("wireproto: accept: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Stop closes the listener and waits, up to ctx's deadline, for every
// open connection to end. It does not close connections that are still
// open when the deadline passes; it returns ctx's error instead.
func (s *Server) Stop(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.listener == nil {
		return nil
	}
	if err := s.listener.Close(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// conn is one accepted connection's frame-exchange state: the database
// the connection pinned via Handshake.Database (the default database if
// empty) and the explicit transaction sessions it has opened, tracked so
// they are rolled back when the connection ends instead of leaking them
// until the reaper notices.
type conn struct {
	svc      *service.Service
	r        *Reader
	w        *Writer
	database string

	mu       sync.Mutex
	sessions map[string]*txsession.Session
}

func (s *Server) handleConn(raw net.Conn) {
	defer raw.Close()

	c := &conn{
		svc:      s.svc,
		r:        NewReader(raw),
		w:        NewWriter(raw),
		sessions: make(map[string]*txsession.Session),
	}
	defer c.rollbackAll()

	if !c.handshake() {
		return
	}

	for {
		if err := c.serveOne(s.config.batchSize()); err != nil {
			return
		}
	}
}

// handshake reads the connection's opening Handshake frame and verifies
// it against the configured auth.Validator; on rejection it writes a
// single ErrorFrame and reports false so the caller closes the socket.
func (c *conn) handshake() bool {
	var hs Handshake
	kind, err := c.r.ReadFrame(&hs)
	if err != nil {
		return false
	}
	if kind != FrameHandshake {
		_ = c.w.WriteFrame(FrameError, NewErrorFrame(kindtag.New(kindtag.BadRequest, "wireproto: expected handshake frame")))
		return false
	}

	cred := auth.Credential{Token: hs.Token, Username: hs.Username, Password: hs.Password}
	if !c.svc.Auth.Verify(cred) {
		_ = c.w.WriteFrame(FrameError, NewErrorFrame(kindtag.New(kindtag.Unauthorized, "wireproto: authentication failed")))
		return false
	}

	c.database = hs.Database
	if c.database == "" {
		c.database = multidb.DefaultDatabaseName
	}
	return c.w.WriteFrame(FrameAck, AckFrame{Status: "ready"}) == nil
}

// requestEnvelope is the union of every request frame's fields, fields
// shared by name (Name backs both create and delete database requests)
// rather than embedding the individual frame types, which would leave
// msgpack decoding an ambiguous "name" tag to resolve.
type requestEnvelope struct {
	Database    string            `msgpack:"database,omitempty"`
	Language    string            `msgpack:"language,omitempty"`
	Text        string            `msgpack:"text,omitempty"`
	Params      map[string]any    `msgpack:"params,omitempty"`
	SessionID   string            `msgpack:"session_id,omitempty"`
	TimeoutMs   int64             `msgpack:"timeout_ms,omitempty"`
	Name        string            `msgpack:"name,omitempty"`
	Kind        string            `msgpack:"kind,omitempty"`
	StorageMode string            `msgpack:"storage_mode,omitempty"`
	Options     map[string]string `msgpack:"options,omitempty"`
	Schema      string            `msgpack:"schema,omitempty"`
}

// serveOne reads and answers exactly one request frame.
func (c *conn) serveOne(batchSize int) error {
	var raw requestEnvelope
	kind, err := c.r.ReadFrame(&raw)
	if err != nil {
		return err
	}

	switch kind {
	case FrameExecute:
		c.handleExecute(ExecuteFrame{
			Database: raw.Database, Language: raw.Language, Text: raw.Text,
			Params: raw.Params, SessionID: raw.SessionID, TimeoutMs: raw.TimeoutMs,
		}, batchSize)
	case FrameBegin:
		c.handleBegin(BeginFrame{Database: raw.Database})
	case FrameCommit:
		c.handleCommit(CommitFrame{SessionID: raw.SessionID}, batchSize)
	case FrameRollback:
		c.handleRollback(RollbackFrame{SessionID: raw.SessionID})
	case FrameListDatabases:
		c.handleListDatabases(batchSize)
	case FrameCreateDatabase:
		c.handleCreateDatabase(CreateDatabaseFrame{
			Name: raw.Name, Kind: raw.Kind, StorageMode: raw.StorageMode,
			Options: raw.Options, Schema: raw.Schema,
		})
	case FrameDeleteDatabase:
		c.handleDeleteDatabase(DeleteDatabaseFrame{Name: raw.Name})
	default:
		c.writeErr(kindtag.New(kindtag.BadRequest, fmt.Sprintf("wireproto: unrecognized frame kind %d", kind)))
	}
	return nil
}

func (c *conn) writeErr(err error) {
	ke, ok := err.(*kindtag.Error)
	if !ok {
		ke = kindtag.New(kindtag.Internal, err.Error())
	}
	_ = c.w.WriteFrame(FrameError, NewErrorFrame(ke))
}

// streamResult writes the header/batch.../summary envelope for result,
// paginating through pkg/rowstream.
func (c *conn) streamResult(result *querylang.ExecuteResult, batchSize int) error {
	cursor := querylang.NewCursor(result)
	streamer := rowstream.New(cursor, batchSize)
	defer streamer.Close()

	if err := c.w.WriteFrame(FrameHeader, HeaderFrame{Columns: streamer.Columns()}); err != nil {
		return err
	}
	for {
		rows, ok, err := streamer.NextBatch()
		if err != nil {
			c.writeErr(kindtag.New(kindtag.Internal, err.Error()))
			return nil
		}
		if !ok {
			break
		}
		if err := c.w.WriteFrame(FrameBatch, BatchFrame{Rows: rows}); err != nil {
			return err
		}
	}
	return c.w.WriteFrame(FrameSummary, SummaryFrame{
		ExecutionTimeMs: float64(result.ExecutionTime.Microseconds()) / 1000.0,
		RowsScanned:     result.RowsScanned,
	})
}

func (c *conn) handleExecute(req ExecuteFrame, batchSize int) {
	database := req.Database
	if database == "" {
		database = c.database
	}

	var session *txsession.Session
	if req.SessionID != "" {
		c.mu.Lock()
		session = c.sessions[req.SessionID]
		c.mu.Unlock()
		if session == nil {
			c.writeErr(kindtag.New(kindtag.NotFound, "wireproto: unknown session id"))
			return
		}
	}

	result, err := c.svc.Dispatcher.Execute(context.Background(), dispatch.Request{
		Database: database,
		Session:  session,
		Language: req.Language,
		Text:     req.Text,
		Params:   req.Params,
		Deadline: time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		c.writeErr(err)
		return
	}
	if err := c.streamResult(result, batchSize); err != nil {
		log.Printf("wireproto: write result: %v", err)
	}
}

func (c *conn) handleBegin(req BeginFrame) {
	database := req.Database
	if database == "" {
		database = c.database
	}
	session, err := c.svc.OpenSession(context.Background(), database)
	if err != nil {
		c.writeErr(err)
		return
	}
	c.mu.Lock()
	c.sessions[session.ID] = session
	c.mu.Unlock()
	_ = c.w.WriteFrame(FrameAck, AckFrame{Status: "open", SessionID: session.ID})
}

func (c *conn) handleCommit(req CommitFrame, batchSize int) {
	c.mu.Lock()
	session := c.sessions[req.SessionID]
	c.mu.Unlock()
	if session == nil {
		c.writeErr(kindtag.New(kindtag.NotFound, "wireproto: unknown session id"))
		return
	}

	result, err := c.svc.CommitSession(context.Background(), session)
	c.mu.Lock()
	delete(c.sessions, req.SessionID)
	c.mu.Unlock()
	if err != nil {
		c.writeErr(err)
		return
	}
	if err := c.streamResult(result, batchSize); err != nil {
		log.Printf("wireproto: write result: %v", err)
	}
}

func (c *conn) handleRollback(req RollbackFrame) {
	c.mu.Lock()
	session := c.sessions[req.SessionID]
	delete(c.sessions, req.SessionID)
	c.mu.Unlock()
	if session == nil {
		c.writeErr(kindtag.New(kindtag.NotFound, "wireproto: unknown session id"))
		return
	}

	if err := c.svc.RollbackSession(context.Background(), session); err != nil {
		c.writeErr(err)
		return
	}
	_ = c.w.WriteFrame(FrameAck, AckFrame{Status: "rolled_back"})
}

// handleListDatabases streams one row per entry, reusing the same
// header/batch/summary envelope a query result gets rather than
// inventing a second response shape for a tabular admin listing.
func (c *conn) handleListDatabases(batchSize int) {
	summaries := c.svc.Manager.List()
	columns := []string{"name", "kind", "storage_mode", "status", "nodes", "edges", "active_sessions"}
	rows := make([][]any, len(summaries))
	for i, sm := range summaries {
		rows[i] = []any{sm.Name, string(sm.Kind), string(sm.StorageMode), string(sm.Status), sm.Nodes, sm.Edges, sm.ActiveSessions}
	}
	result := &querylang.ExecuteResult{Columns: columns, Rows: rows}
	if err := c.streamResult(result, batchSize); err != nil {
		log.Printf("wireproto: write result: %v", err)
	}
}

func (c *conn) handleCreateDatabase(req CreateDatabaseFrame) {
	kind := multidb.Kind(req.Kind)
	if kind == "" {
		kind = multidb.KindLPG
	}
	mode := multidb.StorageMode(req.StorageMode)
	if mode == "" {
		mode = multidb.ModeMemory
	}

	if _, err := c.svc.CreateDatabase(req.Name, kind, mode, req.Options, req.Schema); err != nil {
		c.writeErr(err)
		return
	}
	_ = c.w.WriteFrame(FrameAck, AckFrame{Status: "created"})
}

func (c *conn) handleDeleteDatabase(req DeleteDatabaseFrame) {
	if err := c.svc.DeleteDatabase(req.Name); err != nil {
		c.writeErr(err)
		return
	}
	_ = c.w.WriteFrame(FrameAck, AckFrame{Status: "deleted"})
}

// rollbackAll rolls back every session this connection opened but never
// closed, run when the connection drops so an abrupt disconnect doesn't
// leave sessions pinned until the idle reaper eventually notices.
func (c *conn) rollbackAll() {
	c.mu.Lock()
	sessions := make([]*txsession.Session, 0, len(c.sessions))
	for _, session := range c.sessions {
		sessions = append(sessions, session)
	}
	c.sessions = nil
	c.mu.Unlock()

	for _, session := range sessions {
		if err := c.svc.RollbackSession(context.Background(), session); err != nil {
			log.Printf("wireproto: rollback abandoned session %s: %v", session.ID, err)
		}
	}
}
