// Package multidb owns the authoritative name → live engine mapping that
// every other component looks databases up through. Each entry gets
// its own storage.Engine instance rather than a shared namespaced one:
// the persisted layout is one subdirectory per entry, giving physical
// isolation between tenants (see DESIGN.md).
package multidb

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GrafeoDB/grafeo-server/pkg/resources"
	"github.com/GrafeoDB/grafeo-server/pkg/storage"
)

// DefaultDatabaseName is the entry that always exists and cannot be
// dropped.
const DefaultDatabaseName = "default"

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validName(name string) bool {
	return name != "" && len(name) <= 128 && namePattern.MatchString(name)
}

// Config configures a Manager.
type Config struct {
	// DataRoot is the persistence root; empty disables persistent mode
	// for this build.
	DataRoot string
	// SupportedKinds restricts which Kind values create() accepts; a
	// nil/empty slice means all known kinds are supported.
	SupportedKinds []Kind
	// MaxDatabases caps the live entry count (0 = unlimited).
	MaxDatabases int
}

// DefaultConfig returns an in-memory-only configuration supporting both
// graph kinds.
func DefaultConfig() *Config {
	return &Config{SupportedKinds: []Kind{KindLPG, KindRDF}}
}

type entry struct {
	mu             sync.RWMutex
	info           Summary
	engine         storage.Engine
	dir            string // empty for in-memory entries
	activeSessions atomic.Int64
}

func (e *entry) snapshot() Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.info
	if e.engine != nil {
		if st, err := e.engine.Stats(); err == nil {
			s.Nodes, s.Edges = st.Nodes, st.Edges
			s.Labels, s.EdgeTypes, s.PropertyKeys, s.Indexes = st.Labels, st.EdgeTypes, st.PropertyKeys, st.Indexes
			s.MemoryBytes, s.DiskBytes = st.MemoryBytes, st.DiskBytes
		}
	}
	s.ActiveSessions = e.activeSessions.Load()
	return s
}

func (e *entry) setStatus(status Status) {
	e.mu.Lock()
	e.info.Status = status
	e.info.UpdatedAt = time.Now()
	e.mu.Unlock()
}

// Manager is the authoritative registry of live database entries.
type Manager struct {
	mu      sync.RWMutex // guards entries and nameLocks themselves, not entry contents
	entries map[string]*entry

	lockMu    sync.Mutex
	nameLocks map[string]*sync.Mutex

	config *Config
	inv    *resources.Inventory
}

// NewManager constructs a Manager. If config.DataRoot is set, it
// discovers existing entries from disk; otherwise it starts empty and
// creates the default in-memory entry directly. Either way this must
// run to completion before the server accepts traffic.
func NewManager(config *Config, inv *resources.Inventory) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	m := &Manager{
		entries:   make(map[string]*entry),
		nameLocks: make(map[string]*sync.Mutex),
		config:    config,
		inv:       inv,
	}
	if config.DataRoot != "" {
		if _, err := m.Discover(config.DataRoot); err != nil {
			return nil, fmt.Errorf("discover database entries: %w", err)
		}
		return m, nil
	}
	if err := m.ensureDefault(); err != nil {
		return nil, fmt.Errorf("create default database: %w", err)
	}
	return m, nil
}

func (m *Manager) nameLock(name string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.nameLocks[name]
	if !ok {
		l = &sync.Mutex{}
		m.nameLocks[name] = l
	}
	return l
}

func (m *Manager) kindSupported(k Kind) bool {
	if len(m.config.SupportedKinds) == 0 {
		return true
	}
	for _, sk := range m.config.SupportedKinds {
		if sk == k {
			return true
		}
	}
	return false
}

// PersistentAvailable reports whether this build was configured with a
// data root.
func (m *Manager) PersistentAvailable() bool { return m.config.DataRoot != "" }

func (m *Manager) ensureDefault() error {
	m.mu.RLock()
	_, exists := m.entries[DefaultDatabaseName]
	m.mu.RUnlock()
	if exists {
		return nil
	}
	mode := ModeMemory
	if m.PersistentAvailable() {
		mode = ModePersistent
	}
	_, err := m.Create(DefaultDatabaseName, KindLPG, mode, DefaultOptions(), "")
	return err
}

// Create instantiates a new database entry.
func (m *Manager) Create(name string, kind Kind, mode StorageMode, opts Options, schemaDoc string) (Summary, error) {
	if !validName(name) {
		return Summary{}, ErrInvalidName
	}
	nl := m.nameLock(name)
	nl.Lock()
	defer nl.Unlock()

	m.mu.RLock()
	_, exists := m.entries[name]
	count := len(m.entries)
	m.mu.RUnlock()
	if exists {
		return Summary{}, ErrDatabaseExists
	}
	if m.config.MaxDatabases > 0 && count >= m.config.MaxDatabases {
		return Summary{}, ErrMaxDatabasesReached
	}
	if !m.kindSupported(kind) {
		return Summary{}, ErrUnsupportedKind
	}
	if mode == ModePersistent && !m.PersistentAvailable() {
		return Summary{}, ErrUnsupportedKind
	}

	if opts.MemoryLimitBytes > 0 && m.inv != nil {
		exceed, err := m.inv.WouldExceed(opts.MemoryLimitBytes)
		if err != nil {
			return Summary{}, fmt.Errorf("check memory quota: %w", err)
		}
		if exceed {
			return Summary{}, ErrQuotaExceeded
		}
	}

	eng, dir, err := m.openEngineWithRetry(name, mode)
	if err != nil {
		return Summary{}, err
	}

	now := time.Now()
	if mode == ModePersistent {
		if err := writeMetadata(dir, metadataFile{
			Kind: kind, StorageMode: mode, Options: opts, CreatedAt: now, SchemaDoc: schemaDoc,
		}); err != nil {
			eng.Close()
			return Summary{}, fmt.Errorf("persist metadata for %q: %w", name, err)
		}
	}

	ent := &entry{
		engine: eng,
		dir:    dir,
		info: Summary{
			Name:        name,
			Kind:        kind,
			StorageMode: mode,
			Options:     opts,
			Status:      StatusOnline,
			IsDefault:   name == DefaultDatabaseName,
			SchemaDoc:   schemaDoc,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	m.mu.Lock()
	m.entries[name] = ent
	m.mu.Unlock()

	if opts.MemoryLimitBytes > 0 && m.inv != nil {
		m.inv.Claim(opts.MemoryLimitBytes)
	}

	return ent.snapshot(), nil
}

// openEngineWithRetry opens the engine backing a new entry. On the
// persistent path, a just-deleted directory's files may still be locked
// by the OS for a moment; retry with a short back-off a small bounded
// number of times.
func (m *Manager) openEngineWithRetry(name string, mode StorageMode) (storage.Engine, string, error) {
	if mode == ModeMemory {
		return storage.NewMemEngine(), "", nil
	}
	dir := filepath.Join(m.config.DataRoot, name)
	const maxAttempts = 5
	const backoff = 50 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		eng, err := storage.OpenBadgerEngine(dir)
		if err == nil {
			return eng, dir, nil
		}
		lastErr = err
		time.Sleep(backoff)
	}
	return nil, "", fmt.Errorf("open engine for %q after %d attempts: %w", name, maxAttempts, lastErr)
}

// Delete removes an entry and its data.
func (m *Manager) Delete(name string) error {
	if name == DefaultDatabaseName {
		return ErrCannotDropDefault
	}
	nl := m.nameLock(name)
	nl.Lock()
	defer nl.Unlock()

	m.mu.Lock()
	ent, exists := m.entries[name]
	if !exists {
		m.mu.Unlock()
		return ErrDatabaseNotFound
	}
	delete(m.entries, name) // unreachable to new lookups before teardown
	m.mu.Unlock()

	if ent.engine != nil {
		if err := ent.engine.Close(); err != nil {
			return fmt.Errorf("close engine for %q: %w", name, err)
		}
	}

	ent.mu.RLock()
	memLimit := ent.info.Options.MemoryLimitBytes
	dir := ent.dir
	ent.mu.RUnlock()

	if memLimit > 0 && m.inv != nil {
		m.inv.Release(memLimit)
	}
	if dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove data directory for %q: %w", name, err)
		}
	}
	return nil
}

// Get returns the live engine handle for name, the hot-path lookup
// used on every query.
func (m *Manager) Get(name string) (storage.Engine, error) {
	m.mu.RLock()
	ent, exists := m.entries[name]
	m.mu.RUnlock()
	if !exists {
		return nil, ErrDatabaseNotFound
	}
	ent.mu.RLock()
	status := ent.info.Status
	ent.mu.RUnlock()
	if status != StatusOnline {
		return nil, ErrDatabaseBroken
	}
	return ent.engine, nil
}

// List returns one summary per live entry; ordering is unspecified.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	ents := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		ents = append(ents, e)
	}
	m.mu.RUnlock()

	out := make([]Summary, 0, len(ents))
	for _, e := range ents {
		out = append(out, e.snapshot())
	}
	return out
}

// Info returns one entry's summary.
func (m *Manager) Info(name string) (Summary, error) {
	m.mu.RLock()
	ent, exists := m.entries[name]
	m.mu.RUnlock()
	if !exists {
		return Summary{}, ErrDatabaseNotFound
	}
	return ent.snapshot(), nil
}

// Stats returns the engine-reported counters for name.
func (m *Manager) Stats(name string) (storage.Stats, error) {
	eng, err := m.Get(name)
	if err != nil {
		return storage.Stats{}, err
	}
	return eng.Stats()
}

// Schema returns the compiled schema document for name, if any.
func (m *Manager) Schema(name string) (string, error) {
	m.mu.RLock()
	ent, exists := m.entries[name]
	m.mu.RUnlock()
	if !exists {
		return "", ErrDatabaseNotFound
	}
	ent.mu.RLock()
	defer ent.mu.RUnlock()
	return ent.info.SchemaDoc, nil
}

// Exists reports whether name has a live entry.
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[name]
	return ok
}

// TotalActiveSessions sums per-entry active session counts, fed by
// IncrSessions/DecrSessions from the session registry.
func (m *Manager) TotalActiveSessions() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, e := range m.entries {
		total += e.activeSessions.Load()
	}
	return total
}

func (m *Manager) IncrSessions(name string) {
	m.mu.RLock()
	ent := m.entries[name]
	m.mu.RUnlock()
	if ent != nil {
		ent.activeSessions.Add(1)
	}
}

func (m *Manager) DecrSessions(name string) {
	m.mu.RLock()
	ent := m.entries[name]
	m.mu.RUnlock()
	if ent != nil {
		ent.activeSessions.Add(-1)
	}
}

// Discover scans root for entry subdirectories and rehydrates each from
// its metadata record, then ensures the default entry exists. An entry
// whose engine fails to reopen is registered as StatusBroken rather
// than aborting startup.
func (m *Manager) Discover(root string) (int, error) {
	m.config.DataRoot = root
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			return 0, err
		}
		if mkErr := os.MkdirAll(root, 0o755); mkErr != nil {
			return 0, mkErr
		}
		dirEntries = nil
	}

	count := 0
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		name := de.Name()
		dir := filepath.Join(root, name)
		meta, err := readMetadata(dir)
		if err != nil {
			continue // not a database directory (or unreadable record); skip
		}

		eng, openErr := storage.OpenBadgerEngine(dir)
		status := StatusOnline
		if openErr != nil {
			eng = nil
			status = StatusBroken
		}

		ent := &entry{
			engine: eng,
			dir:    dir,
			info: Summary{
				Name:              name,
				Kind:              meta.Kind,
				SchemaConstrained: meta.SchemaConstrained,
				StorageMode:       meta.StorageMode,
				Options:           meta.Options,
				Status:            status,
				IsDefault:         name == DefaultDatabaseName,
				SchemaDoc:         meta.SchemaDoc,
				CreatedAt:         meta.CreatedAt,
				UpdatedAt:         meta.CreatedAt,
			},
		}

		m.mu.Lock()
		m.entries[name] = ent
		m.mu.Unlock()

		if status == StatusOnline && meta.Options.MemoryLimitBytes > 0 && m.inv != nil {
			m.inv.Claim(meta.Options.MemoryLimitBytes)
		}
		count++
	}

	if err := m.ensureDefault(); err != nil {
		return count, err
	}
	return count, nil
}

// Close closes every live engine handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, e := range m.entries {
		if e.engine == nil {
			continue
		}
		if err := e.engine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.entries = make(map[string]*entry)
	return firstErr
}
