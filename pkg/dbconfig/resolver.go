// Package dbconfig resolves a database create request's option
// overrides against a global default, producing the effective
// multidb.Options plus a string-keyed map for the admin API response.
package dbconfig

import (
	"strconv"
	"strings"

	"github.com/GrafeoDB/grafeo-server/pkg/multidb"
)

// Key names an overridable option, matching the wire field names a
// POST /db body may set under "options".
const (
	KeyMemoryLimitBytes = "memory_limit_bytes"
	KeyDurability       = "durability"
	KeyReverseEdgeIndex = "reverse_edge_index"
	KeyWorkerCount      = "worker_count"
	KeySpillDir         = "spill_dir"
)

// allowedKeys is the set of override keys Resolve accepts; anything
// else is silently dropped.
var allowedKeys = map[string]bool{
	KeyMemoryLimitBytes: true,
	KeyDurability:        true,
	KeyReverseEdgeIndex: true,
	KeyWorkerCount:      true,
	KeySpillDir:         true,
}

// IsAllowedKey reports whether key is a recognized override.
func IsAllowedKey(key string) bool { return allowedKeys[key] }

// Resolved is the effective option set for a database create call plus
// its string-form rendering for the admin API.
type Resolved struct {
	Options   multidb.Options
	Effective map[string]string
}

// Resolve merges global (the server-wide default Options) with
// per-create overrides and returns the resolved option set. Unknown
// override keys are ignored; malformed values for a known key are
// ignored and the global default is kept for that key.
func Resolve(global multidb.Options, overrides map[string]string) Resolved {
	r := Resolved{Options: global, Effective: make(map[string]string, len(allowedKeys))}
	effectiveFromGlobal(global, r.Effective)

	for key, raw := range overrides {
		if !IsAllowedKey(key) {
			continue
		}
		value := strings.TrimSpace(raw)
		applyOverride(&r.Options, key, value)
	}
	effectiveFromGlobal(r.Options, r.Effective)
	return r
}

func effectiveFromGlobal(o multidb.Options, m map[string]string) {
	m[KeyMemoryLimitBytes] = strconv.FormatInt(o.MemoryLimitBytes, 10)
	m[KeyDurability] = o.Durability
	m[KeyReverseEdgeIndex] = boolStr(o.ReverseEdgeIndex)
	m[KeyWorkerCount] = strconv.Itoa(o.WorkerCount)
	m[KeySpillDir] = o.SpillDir
}

func applyOverride(o *multidb.Options, key, value string) {
	switch key {
	case KeyMemoryLimitBytes:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n >= 0 {
			o.MemoryLimitBytes = n
		}
	case KeyDurability:
		if value == "sync" || value == "async" {
			o.Durability = value
		}
	case KeyReverseEdgeIndex:
		switch value {
		case "true", "1":
			o.ReverseEdgeIndex = true
		case "false", "0":
			o.ReverseEdgeIndex = false
		}
	case KeyWorkerCount:
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			o.WorkerCount = n
		}
	case KeySpillDir:
		o.SpillDir = value
	}
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
