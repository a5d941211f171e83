// Package rowstream wraps an engine cursor into fixed-size batches so a
// wire adapter can emit query results with O(batch) memory instead of
// O(result).
package rowstream

import "github.com/GrafeoDB/grafeo-server/pkg/querylang"

// DefaultBatchSize is the default number of rows per batch.
const DefaultBatchSize = 1000

// Streamer yields fixed-size batches from a querylang.Cursor.
type Streamer struct {
	cursor    querylang.Cursor
	batchSize int
	done      bool
}

// New wraps cursor; batchSize <= 0 is clamped to 1.
func New(cursor querylang.Cursor, batchSize int) *Streamer {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Streamer{cursor: cursor, batchSize: batchSize}
}

// NextBatch returns up to batchSize rows, or ok=false once the cursor is
// exhausted. The final batch may be shorter than batchSize.
func (s *Streamer) NextBatch() (rows [][]any, ok bool, err error) {
	if s.done {
		return nil, false, nil
	}
	batch := make([][]any, 0, s.batchSize)
	for len(batch) < s.batchSize {
		row, has, err := s.cursor.Next()
		if err != nil {
			return nil, false, err
		}
		if !has {
			s.done = true
			break
		}
		batch = append(batch, row)
	}
	if len(batch) == 0 {
		return nil, false, nil
	}
	return batch, true, nil
}

// Columns delegates to the wrapped cursor's header.
func (s *Streamer) Columns() []string { return s.cursor.Columns() }

// Close releases the underlying cursor.
func (s *Streamer) Close() error { return s.cursor.Close() }
