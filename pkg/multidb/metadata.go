package multidb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// metadataFile is the creation-time record persisted alongside a
// persistent entry's engine data, letting discover() rehydrate
// kind/mode/options without touching the engine itself. A flat JSON
// file is the simplest trustworthy format for a single small record
// written once per entry; no third-party encoding library in the
// dependency set improves on encoding/json for this (see DESIGN.md).
type metadataFile struct {
	Kind              Kind        `json:"kind"`
	SchemaConstrained bool        `json:"schema_constrained"`
	StorageMode       StorageMode `json:"storage_mode"`
	Options           Options     `json:"options"`
	CreatedAt         time.Time   `json:"created_at"`
	SchemaDoc         string      `json:"schema_doc,omitempty"`
}

const metadataFileName = ".grafeo-meta.json"

func writeMetadata(dir string, m metadataFile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metadataFileName), data, 0o644)
}

func readMetadata(dir string) (metadataFile, error) {
	var m metadataFile
	data, err := os.ReadFile(filepath.Join(dir, metadataFileName))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}
