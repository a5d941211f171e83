// Package wireproto is a binary wire surface: a framed RPC with a
// session handshake, per-request frames (execute, begin, commit,
// rollback, list/create/delete database), and a streamed response
// envelope (header, one or more batch frames, summary) matching the
// contract pkg/rowstream implements. Frames are msgpack encoded;
// status codes reuse kindtag's gRPC-style vocabulary so this framing
// and a future real gRPC transport agree on error semantics.
package wireproto

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/GrafeoDB/grafeo-server/pkg/kindtag"
)

// FrameKind tags the payload that follows a frame's length prefix.
type FrameKind uint8

const (
	FrameHandshake FrameKind = iota + 1
	FrameExecute
	FrameBegin
	FrameCommit
	FrameRollback
	FrameListDatabases
	FrameCreateDatabase
	FrameDeleteDatabase
	FrameHeader
	FrameBatch
	FrameSummary
	FrameError
	FrameAck
)

// Handshake opens a connection: credentials plus an optional database
// to pin the connection to.
type Handshake struct {
	Token    string `msgpack:"token,omitempty"`
	Username string `msgpack:"username,omitempty"`
	Password string `msgpack:"password,omitempty"`
	Database string `msgpack:"database,omitempty"`
}

// ExecuteFrame requests one statement's execution, either auto-commit
// against Database or, when SessionID is set, within an already-open
// transaction.
type ExecuteFrame struct {
	Database  string         `msgpack:"database,omitempty"`
	Language  string         `msgpack:"language,omitempty"`
	Text      string         `msgpack:"text"`
	Params    map[string]any `msgpack:"params,omitempty"`
	SessionID string         `msgpack:"session_id,omitempty"`
	TimeoutMs int64          `msgpack:"timeout_ms,omitempty"`
}

// BeginFrame opens an explicit transaction session against Database.
type BeginFrame struct {
	Database string `msgpack:"database"`
}

// CommitFrame and RollbackFrame close a session previously opened by a
// BeginFrame.
type CommitFrame struct {
	SessionID string `msgpack:"session_id"`
}

type RollbackFrame struct {
	SessionID string `msgpack:"session_id"`
}

// CreateDatabaseFrame requests a new database entry, mirroring the
// admin API's POST /db body.
type CreateDatabaseFrame struct {
	Name        string            `msgpack:"name"`
	Kind        string            `msgpack:"kind,omitempty"`
	StorageMode string            `msgpack:"storage_mode,omitempty"`
	Options     map[string]string `msgpack:"options,omitempty"`
	Schema      string            `msgpack:"schema,omitempty"`
}

// DeleteDatabaseFrame requests an entry's removal.
type DeleteDatabaseFrame struct {
	Name string `msgpack:"name"`
}

// AckFrame acknowledges a request that has no row-shaped result:
// transaction begin (SessionID carries the new session's id) and
// database create/delete (SessionID is empty).
type AckFrame struct {
	Status    string `msgpack:"status"`
	SessionID string `msgpack:"session_id,omitempty"`
}

// HeaderFrame is emitted once, before any batch frame, naming the
// result's columns.
type HeaderFrame struct {
	Columns []string `msgpack:"columns"`
}

// BatchFrame carries one fixed-size slice of rows.
type BatchFrame struct {
	Rows [][]any `msgpack:"rows"`
}

// SummaryFrame terminates a streamed result.
type SummaryFrame struct {
	ExecutionTimeMs float64 `msgpack:"execution_time_ms"`
	RowsScanned     int64   `msgpack:"rows_scanned"`
}

// ErrorFrame carries a kind-tagged failure, translated to this wire's
// gRPC-style status code via kindtag.
type ErrorFrame struct {
	Code   uint32 `msgpack:"code"`
	Kind   string `msgpack:"kind"`
	Detail string `msgpack:"detail"`
}

// NewErrorFrame builds an ErrorFrame from a kindtag.Error.
func NewErrorFrame(err *kindtag.Error) ErrorFrame {
	return ErrorFrame{Code: uint32(err.Kind.GRPCCode()), Kind: string(err.Kind), Detail: err.Detail}
}

// maxFrameBytes bounds a single frame's payload to guard against a
// corrupt or hostile length prefix requesting an unbounded read.
const maxFrameBytes = 64 << 20 // 64MiB

// Writer serializes frames onto an underlying stream.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w for frame-oriented writes.
func NewWriter(w io.Writer) *Writer { return &Writer{w: bufio.NewWriter(w)} }

// WriteFrame encodes payload as msgpack and writes
// [kind byte][length uint32 big-endian][payload].
func (fw *Writer) WriteFrame(kind FrameKind, payload any) error {
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("wireproto: encode %v frame: %w", kind, err)
	}
	if err := fw.w.WriteByte(byte(kind)); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := fw.w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := fw.w.Write(data); err != nil {
		return err
	}
	return fw.w.Flush()
}

// Reader deserializes frames from an underlying stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for frame-oriented reads.
func NewReader(r io.Reader) *Reader { return &Reader{r: bufio.NewReader(r)} }

// ReadFrame reads one frame, unmarshalling its payload into dst
// (a pointer to one of the Frame types above).
func (fr *Reader) ReadFrame(dst any) (FrameKind, error) {
	kindByte, err := fr.r.ReadByte()
	if err != nil {
		return 0, err
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		return 0, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > maxFrameBytes {
		return 0, fmt.Errorf("wireproto: frame of %d bytes exceeds the %d byte limit", length, maxFrameBytes)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(fr.r, data); err != nil {
		return 0, err
	}
	if dst != nil {
		if err := msgpack.Unmarshal(data, dst); err != nil {
			return 0, fmt.Errorf("wireproto: decode frame: %w", err)
		}
	}
	return FrameKind(kindByte), nil
}
