package querylang

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/GrafeoDB/grafeo-server/pkg/storage"
)

var patternRe = regexp.MustCompile(`\(\s*([A-Za-z_][A-Za-z0-9_]*)?\s*:?\s*([A-Za-z_][A-Za-z0-9_]*)?\s*(\{[^}]*\})?\s*\)`)

// executeInsert handles INSERT|CREATE (:Label {props}).
func (e *StorageExecutor) executeInsert(stmt string, params map[string]any) (*ExecuteResult, error) {
	m := patternRe.FindStringSubmatch(stmt)
	if m == nil {
		return nil, fmt.Errorf("%w: malformed node pattern in %q", ErrParse, stmt)
	}
	label := m[2]
	propsLiteral := m[3]
	props, err := parsePropsLiteral(propsLiteral, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	node := &storage.Node{
		ID:         storage.NodeID(e.generateID()),
		Properties: props,
	}
	if label != "" {
		node.Labels = []string{label}
	}

	if e.tx != nil {
		e.tx.inserts = append(e.tx.inserts, node)
	} else {
		if _, err := e.engine.CreateNode(node); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSemantic, err)
		}
	}
	return &ExecuteResult{Columns: []string{}, Rows: [][]any{}}, nil
}

// executeMatch handles MATCH (var:Label) [WHERE var.prop = value]
// followed by RETURN / SET / DELETE.
func (e *StorageExecutor) executeMatch(stmt string, params map[string]any) (*ExecuteResult, error) {
	upper := strings.ToUpper(stmt)
	matchEnd := len(stmt)
	var tailKeyword string
	var tailIdx int
	for _, kw := range []string{"RETURN", "SET", "DELETE"} {
		if idx := indexKeyword(upper, kw); idx >= 0 && idx < matchEnd {
			tailKeyword = kw
			tailIdx = idx
			matchEnd = idx
			break
		}
	}
	head := strings.TrimSpace(stmt[:matchEnd])

	m := patternRe.FindStringSubmatch(head)
	if m == nil {
		return nil, fmt.Errorf("%w: malformed node pattern in %q", ErrParse, stmt)
	}
	variable, label := m[1], m[2]
	if variable == "" {
		variable = "n"
	}

	var whereClause string
	if idx := indexKeyword(strings.ToUpper(head), "WHERE"); idx >= 0 {
		whereClause = strings.TrimSpace(head[idx+len("WHERE"):])
	}

	nodes, err := e.effectiveNodes()
	if err != nil {
		return nil, err
	}
	matched := filterNodes(nodes, label, variable, whereClause, params)

	if tailKeyword == "" {
		return &ExecuteResult{Columns: []string{}, Rows: [][]any{}, RowsScanned: int64(len(nodes))}, nil
	}
	tail := strings.TrimSpace(stmt[tailIdx+len(tailKeyword):])

	switch tailKeyword {
	case "RETURN":
		return e.projectReturn(tail, variable, matched, int64(len(nodes)))
	case "SET":
		return e.applySet(tail, variable, matched, int64(len(nodes)))
	case "DELETE":
		return e.applyMatchedDelete(variable, matched, int64(len(nodes)))
	}
	return nil, fmt.Errorf("%w: unsupported clause after MATCH", ErrParse)
}

func indexKeyword(upper, kw string) int {
	idx := strings.Index(upper, kw)
	for idx >= 0 {
		before := idx == 0 || upper[idx-1] == ' ' || upper[idx-1] == ')'
		after := idx+len(kw) >= len(upper) || upper[idx+len(kw)] == ' ' || upper[idx+len(kw)] == '('
		if before && after {
			return idx
		}
		next := strings.Index(upper[idx+1:], kw)
		if next < 0 {
			return -1
		}
		idx = idx + 1 + next
	}
	return -1
}

func filterNodes(nodes []*storage.Node, label, variable, whereClause string, params map[string]any) []*storage.Node {
	out := make([]*storage.Node, 0, len(nodes))
	for _, n := range nodes {
		if label != "" && !hasLabel(n, label) {
			continue
		}
		if whereClause != "" && !evaluateWhere(n, variable, whereClause, params) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func hasLabel(n *storage.Node, label string) bool {
	for _, l := range n.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// evaluateWhere supports a single "var.prop = literal" equality test;
// broader predicate grammars are out of scope for the dispatch-only
// core.
func evaluateWhere(n *storage.Node, variable, whereClause string, params map[string]any) bool {
	parts := strings.SplitN(whereClause, "=", 2)
	if len(parts) != 2 {
		return true
	}
	lhs := strings.TrimSpace(parts[0])
	rhs := strings.TrimSpace(parts[1])
	prefix := variable + "."
	if !strings.HasPrefix(lhs, prefix) {
		return true
	}
	propName := strings.TrimPrefix(lhs, prefix)
	want := resolveLiteral(rhs, params)
	got, ok := n.Properties[propName]
	if !ok {
		return false
	}
	return fmt.Sprintf("%v", got) == fmt.Sprintf("%v", want)
}

func (e *StorageExecutor) projectReturn(tail, variable string, nodes []*storage.Node, scanned int64) (*ExecuteResult, error) {
	items := strings.Split(tail, ",")
	columns := make([]string, len(items))
	for i, it := range items {
		columns[i] = strings.TrimSpace(it)
	}
	rows := make([][]any, 0, len(nodes))
	for _, n := range nodes {
		row := make([]any, len(items))
		for i, it := range items {
			row[i] = resolveReturnItem(strings.TrimSpace(it), variable, n)
		}
		rows = append(rows, row)
	}
	return &ExecuteResult{Columns: columns, Rows: rows, RowsScanned: scanned}, nil
}

func resolveReturnItem(item, variable string, n *storage.Node) any {
	prefix := variable + "."
	switch {
	case item == variable:
		return n
	case strings.HasPrefix(item, prefix):
		prop := strings.TrimPrefix(item, prefix)
		return n.Properties[prop]
	default:
		return nil
	}
}

func (e *StorageExecutor) applySet(tail, variable string, nodes []*storage.Node, scanned int64) (*ExecuteResult, error) {
	assignments := strings.Split(tail, ",")
	prefix := variable + "."
	for _, n := range nodes {
		for _, a := range assignments {
			kv := strings.SplitN(a, "=", 2)
			if len(kv) != 2 {
				continue
			}
			key := strings.TrimSpace(kv[0])
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			prop := strings.TrimPrefix(key, prefix)
			val := resolveLiteral(strings.TrimSpace(kv[1]), nil)
			if e.tx != nil {
				if e.tx.sets[n.ID] == nil {
					e.tx.sets[n.ID] = map[string]any{}
				}
				e.tx.sets[n.ID][prop] = val
			} else {
				n.Properties[prop] = val
				if err := e.engine.UpdateNode(n); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrSemantic, err)
				}
			}
		}
	}
	return &ExecuteResult{Columns: []string{}, Rows: [][]any{}, RowsScanned: scanned}, nil
}

func (e *StorageExecutor) applyMatchedDelete(variable string, nodes []*storage.Node, scanned int64) (*ExecuteResult, error) {
	for _, n := range nodes {
		if e.tx != nil {
			e.tx.deletes[n.ID] = true
		} else if err := e.engine.DeleteNode(n.ID); err != nil && err != storage.ErrNotFound {
			return nil, fmt.Errorf("%w: %v", ErrSemantic, err)
		}
	}
	return &ExecuteResult{Columns: []string{}, Rows: [][]any{}, RowsScanned: scanned}, nil
}

// executeSet handles a bare SET without a preceding MATCH in the same
// statement; unsupported, since the variable would be unbound.
func (e *StorageExecutor) executeSet(stmt string, params map[string]any) (*ExecuteResult, error) {
	return nil, fmt.Errorf("%w: SET requires a preceding MATCH", ErrSemantic)
}

func (e *StorageExecutor) executeDelete(stmt string, params map[string]any) (*ExecuteResult, error) {
	return nil, fmt.Errorf("%w: DELETE requires a preceding MATCH", ErrSemantic)
}

// executeReturnLiteral handles a bare "RETURN <literal>[, <literal>]"
// with no MATCH, e.g. "RETURN 1".
func (e *StorageExecutor) executeReturnLiteral(stmt string, params map[string]any) (*ExecuteResult, error) {
	tail := strings.TrimSpace(stmt[len("RETURN"):])
	if tail == "" {
		return nil, fmt.Errorf("%w: RETURN requires an expression", ErrParse)
	}
	items := strings.Split(tail, ",")
	columns := make([]string, len(items))
	row := make([]any, len(items))
	for i, it := range items {
		it = strings.TrimSpace(it)
		columns[i] = it
		row[i] = resolveLiteral(it, params)
	}
	return &ExecuteResult{Columns: columns, Rows: [][]any{row}}, nil
}

// resolveLiteral parses a Cypher-style literal: quoted string, integer,
// float, boolean, null, or a "$name" parameter reference.
func resolveLiteral(s string, params map[string]any) any {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "$"):
		if params != nil {
			if v, ok := params[strings.TrimPrefix(s, "$")]; ok {
				return v
			}
		}
		return nil
	case strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 2:
		return s[1 : len(s)-1]
	case strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2:
		return s[1 : len(s)-1]
	case s == "true":
		return true
	case s == "false":
		return false
	case s == "null":
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// parsePropsLiteral parses a "{k: v, k2: 'v2'}" map literal into
// properties, resolving $-params against the supplied parameter map.
func parsePropsLiteral(literal string, params map[string]any) (map[string]any, error) {
	props := map[string]any{}
	literal = strings.TrimSpace(literal)
	if literal == "" {
		return props, nil
	}
	if !strings.HasPrefix(literal, "{") || !strings.HasSuffix(literal, "}") {
		return nil, fmt.Errorf("malformed property map %q", literal)
	}
	inner := strings.TrimSpace(literal[1 : len(literal)-1])
	if inner == "" {
		return props, nil
	}
	for _, pair := range splitTopLevel(inner, ',') {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed property pair %q", pair)
		}
		key := strings.Trim(strings.TrimSpace(kv[0]), "'\"")
		props[key] = resolveLiteral(strings.TrimSpace(kv[1]), params)
	}
	return props, nil
}

// splitTopLevel splits s on sep, ignoring occurrences inside quotes.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	var cur strings.Builder
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			cur.WriteByte(c)
			if c == inQuote {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
			cur.WriteByte(c)
		case c == sep:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, cur.String())
	return out
}
