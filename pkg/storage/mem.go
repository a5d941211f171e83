package storage

import (
	"sync"
)

// MemEngine is an in-memory Engine, used for databases created with
// storage-mode "memory" and for the default database when no
// persistence root is configured.
type MemEngine struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge
}

// NewMemEngine creates an empty in-memory engine.
func NewMemEngine() *MemEngine {
	return &MemEngine{
		nodes: make(map[NodeID]*Node),
		edges: make(map[EdgeID]*Edge),
	}
}

func (m *MemEngine) CreateNode(n *Node) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.nodes[n.ID]; exists {
		cp := *n
		m.nodes[n.ID] = &cp
		return &cp, nil
	}
	cp := *n
	m.nodes[n.ID] = &cp
	return &cp, nil
}

func (m *MemEngine) GetNode(id NodeID) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *MemEngine) UpdateNode(n *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[n.ID]; !ok {
		return ErrNotFound
	}
	cp := *n
	m.nodes[n.ID] = &cp
	return nil
}

func (m *MemEngine) DeleteNode(id NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; !ok {
		return ErrNotFound
	}
	delete(m.nodes, id)
	return nil
}

func (m *MemEngine) AllNodes() ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemEngine) CreateEdge(e *Edge) (*Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.edges[e.ID] = &cp
	return &cp, nil
}

func (m *MemEngine) GetEdge(id EdgeID) (*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.edges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemEngine) DeleteEdge(id EdgeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.edges[id]; !ok {
		return ErrNotFound
	}
	delete(m.edges, id)
	return nil
}

func (m *MemEngine) AllEdges() ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Edge, 0, len(m.edges))
	for _, e := range m.edges {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemEngine) Stats() (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	labels := map[string]struct{}{}
	props := map[string]struct{}{}
	for _, n := range m.nodes {
		for _, l := range n.Labels {
			labels[l] = struct{}{}
		}
		for k := range n.Properties {
			props[k] = struct{}{}
		}
	}
	edgeTypes := map[string]struct{}{}
	for _, e := range m.edges {
		edgeTypes[e.Type] = struct{}{}
	}
	var mem int64
	for _, n := range m.nodes {
		mem += int64(len(n.ID)) + 64
	}
	for _, e := range m.edges {
		mem += int64(len(e.ID)) + 64
	}
	return Stats{
		Nodes:        int64(len(m.nodes)),
		Edges:        int64(len(m.edges)),
		Labels:       int64(len(labels)),
		EdgeTypes:    int64(len(edgeTypes)),
		PropertyKeys: int64(len(props)),
		MemoryBytes:  mem,
	}, nil
}

func (m *MemEngine) Close() error { return nil }
