// Package querylang implements the engine contract consumed by the
// dispatcher: a synchronous Execute call per language entry point,
// transaction begin/commit/rollback, and a result cursor. Query
// planning/optimization and full language grammars are explicitly out
// of scope - every Language below is routed through the same compact
// graph-pattern interpreter, a string-clause parser
// (INSERT/MATCH/WHERE/RETURN/SET/DELETE).
package querylang

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GrafeoDB/grafeo-server/pkg/storage"
)

// Language enumerates the query languages the dispatcher can route to.
// GQL is the default.
type Language string

const (
	LanguageGQL     Language = "gql"
	LanguageCypher  Language = "cypher"
	LanguageGraphQL Language = "graphql"
	LanguageGremlin Language = "gremlin"
	LanguageSPARQL  Language = "sparql"
	LanguageSQLPGQ  Language = "sqlpgq"
)

// ParseLanguage maps a wire-level language token to a Language, failing
// with ErrBadLanguage for anything the dispatch table doesn't carry.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gql":
		return LanguageGQL, nil
	case "cypher":
		return LanguageCypher, nil
	case "graphql":
		return LanguageGraphQL, nil
	case "gremlin":
		return LanguageGremlin, nil
	case "sparql":
		return LanguageSPARQL, nil
	case "sql", "sqlpgq", "sql/pgq":
		return LanguageSQLPGQ, nil
	default:
		return "", ErrBadLanguage
	}
}

// ExecuteResult is the logical query result header plus materialized
// rows. RowStreamer (pkg/rowstream) turns this into batches; the result
// itself is produced synchronously because engine execution does not
// suspend.
type ExecuteResult struct {
	Columns       []string
	Rows          [][]any
	ExecutionTime time.Duration
	RowsScanned   int64
}

// StorageExecutor executes query text against one storage.Engine. It is
// the "engine handle" referenced by multidb entries and, when a
// transaction is open, pinned inside a txsession.Session.
type StorageExecutor struct {
	mu     sync.Mutex
	engine storage.Engine
	idSeq  int64

	tx *txBuffer // non-nil while an explicit transaction is open
}

type txBuffer struct {
	inserts []*storage.Node
	edges   []*storage.Edge
	deletes map[storage.NodeID]bool
	sets    map[storage.NodeID]map[string]any
}

// NewStorageExecutor returns an executor bound to engine.
func NewStorageExecutor(engine storage.Engine) *StorageExecutor {
	return &StorageExecutor{engine: engine}
}

// Execute runs one statement of text against the bound engine. language
// only affects nothing but the dispatch table lookup upstream (see
// pkg/dispatch); the grammar accepted here is identical across
// languages, per the Non-goal noted above.
func (e *StorageExecutor) Execute(ctx context.Context, text string, params map[string]any) (*ExecuteResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	stmt := strings.TrimSpace(text)
	if stmt == "" {
		return nil, fmt.Errorf("%w: empty query", ErrParse)
	}

	upper := strings.ToUpper(stmt)
	switch {
	case upper == "BEGIN":
		if e.tx != nil {
			return nil, fmt.Errorf("%w: transaction already open", ErrSemantic)
		}
		e.tx = &txBuffer{deletes: map[storage.NodeID]bool{}, sets: map[storage.NodeID]map[string]any{}}
		return &ExecuteResult{ExecutionTime: time.Since(start)}, nil
	case upper == "COMMIT":
		if e.tx == nil {
			return nil, fmt.Errorf("%w: no transaction open", ErrSemantic)
		}
		if err := e.applyBuffer(e.tx); err != nil {
			return nil, err
		}
		e.tx = nil
		return &ExecuteResult{ExecutionTime: time.Since(start)}, nil
	case upper == "ROLLBACK":
		if e.tx == nil {
			return nil, fmt.Errorf("%w: no transaction open", ErrSemantic)
		}
		e.tx = nil
		return &ExecuteResult{ExecutionTime: time.Since(start)}, nil
	}

	result, err := e.executeStatement(stmt, params)
	if err != nil {
		return nil, err
	}
	result.ExecutionTime = time.Since(start)
	return result, nil
}

func (e *StorageExecutor) applyBuffer(b *txBuffer) error {
	for _, n := range b.inserts {
		if _, err := e.engine.CreateNode(n); err != nil {
			return err
		}
	}
	for _, ed := range b.edges {
		if _, err := e.engine.CreateEdge(ed); err != nil {
			return err
		}
	}
	for id, props := range b.sets {
		n, err := e.engine.GetNode(id)
		if err != nil {
			continue
		}
		for k, v := range props {
			n.Properties[k] = v
		}
		if err := e.engine.UpdateNode(n); err != nil {
			return err
		}
	}
	for id := range b.deletes {
		if err := e.engine.DeleteNode(id); err != nil && err != storage.ErrNotFound {
			return err
		}
	}
	return nil
}

func (e *StorageExecutor) executeStatement(stmt string, params map[string]any) (*ExecuteResult, error) {
	upper := strings.ToUpper(stmt)
	switch {
	case strings.HasPrefix(upper, "INSERT") || strings.HasPrefix(upper, "CREATE"):
		return e.executeInsert(stmt, params)
	case strings.HasPrefix(upper, "MATCH"):
		return e.executeMatch(stmt, params)
	case strings.HasPrefix(upper, "SET"):
		return e.executeSet(stmt, params)
	case strings.HasPrefix(upper, "DELETE"):
		return e.executeDelete(stmt, params)
	case strings.HasPrefix(upper, "RETURN"):
		return e.executeReturnLiteral(stmt, params)
	default:
		return nil, fmt.Errorf("%w: unrecognized statement %q", ErrParse, stmt)
	}
}

// generateID returns this executor's next synthetic node id ("n1",
// "n2", ...), assigned to every inserted node.
func (e *StorageExecutor) generateID() string {
	e.idSeq++
	return fmt.Sprintf("n%d", e.idSeq)
}

// effectiveNodes returns the engine's committed nodes overlaid with the
// currently-open transaction's pending inserts/sets/deletes, so a read
// within the same explicit transaction observes its own writes.
func (e *StorageExecutor) effectiveNodes() ([]*storage.Node, error) {
	nodes, err := e.engine.AllNodes()
	if err != nil {
		return nil, err
	}
	if e.tx == nil {
		return nodes, nil
	}
	byID := make(map[storage.NodeID]*storage.Node, len(nodes))
	out := make([]*storage.Node, 0, len(nodes))
	for _, n := range nodes {
		if e.tx.deletes[n.ID] {
			continue
		}
		cp := *n
		if props, ok := e.tx.sets[n.ID]; ok {
			cp.Properties = cloneProps(cp.Properties)
			for k, v := range props {
				cp.Properties[k] = v
			}
		}
		byID[n.ID] = &cp
		out = append(out, &cp)
	}
	for _, n := range e.tx.inserts {
		if _, exists := byID[n.ID]; exists {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func cloneProps(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func parseInt(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
