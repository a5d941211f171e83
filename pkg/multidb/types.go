package multidb

import "time"

// Kind is the graph architecture a database entry is instantiated as.
type Kind string

const (
	KindLPG Kind = "lpg" // labelled property graph
	KindRDF Kind = "rdf" // RDF triple store
)

// StorageMode selects whether an entry's engine persists to disk.
type StorageMode string

const (
	ModeMemory     StorageMode = "memory"
	ModePersistent StorageMode = "persistent"
)

// Options are the creation-time knobs an entry is instantiated with.
type Options struct {
	MemoryLimitBytes int64  `json:"memory_limit_bytes"`
	Durability       string `json:"durability"` // "sync" | "async"
	ReverseEdgeIndex bool   `json:"reverse_edge_index"`
	WorkerCount      int    `json:"worker_count"`
	SpillDir         string `json:"spill_dir,omitempty"`
}

// DefaultOptions returns the options a create call gets when it omits
// them.
func DefaultOptions() Options {
	return Options{
		Durability:       "sync",
		ReverseEdgeIndex: true,
		WorkerCount:      4,
	}
}

// Status is an entry's lifecycle state.
type Status string

const (
	StatusOnline Status = "online"
	StatusBroken Status = "broken" // discovery could not reopen the engine
)

// Summary is the read-only view of an entry returned by list/get/info;
// it never exposes the live engine handle.
type Summary struct {
	Name              string      `json:"name"`
	Kind              Kind        `json:"kind"`
	SchemaConstrained bool        `json:"schema_constrained"`
	StorageMode       StorageMode `json:"storage_mode"`
	Options           Options     `json:"options"`
	Status            Status      `json:"status"`
	IsDefault         bool        `json:"is_default"`
	SchemaDoc         string      `json:"schema_doc,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`

	Nodes        int64 `json:"nodes"`
	Edges        int64 `json:"edges"`
	Labels       int64 `json:"labels"`
	EdgeTypes    int64 `json:"edge_types"`
	PropertyKeys int64 `json:"property_keys"`
	Indexes      int64 `json:"indexes"`
	MemoryBytes  int64 `json:"memory_bytes"`
	DiskBytes    int64 `json:"disk_bytes"`

	ActiveSessions int64 `json:"active_sessions"`
}
