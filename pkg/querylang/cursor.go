package querylang

import "time"

// Cursor is the lazy, finite, non-restartable row sequence an engine
// execute call hands back. StorageExecutor currently runs to
// completion and materializes every row before returning, so
// MaterializedCursor just replays that slice once; a future streaming
// engine could implement Cursor directly without changing callers.
type Cursor interface {
	Columns() []string
	Next() (row []any, ok bool, err error)
	ExecutionTime() time.Duration
	RowsScanned() int64
	Close() error
}

// MaterializedCursor adapts an ExecuteResult to the Cursor contract.
type MaterializedCursor struct {
	result *ExecuteResult
	pos    int
	closed bool
}

// NewCursor wraps result as a one-shot Cursor.
func NewCursor(result *ExecuteResult) *MaterializedCursor {
	return &MaterializedCursor{result: result}
}

func (c *MaterializedCursor) Columns() []string { return c.result.Columns }

func (c *MaterializedCursor) Next() ([]any, bool, error) {
	if c.closed || c.pos >= len(c.result.Rows) {
		return nil, false, nil
	}
	row := c.result.Rows[c.pos]
	c.pos++
	return row, true, nil
}

func (c *MaterializedCursor) ExecutionTime() time.Duration { return c.result.ExecutionTime }
func (c *MaterializedCursor) RowsScanned() int64           { return c.result.RowsScanned }
func (c *MaterializedCursor) Close() error                 { c.closed = true; return nil }
