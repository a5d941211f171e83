// Package txsession owns the live set of explicit transaction sessions,
// issuing opaque ids and reaping ones idle past their TTL.
package txsession

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GrafeoDB/grafeo-server/pkg/querylang"
)

// ExecutorFactory creates a fresh executor scoped to a database. Each
// explicit transaction gets its own executor instance pinned for its
// lifetime.
type ExecutorFactory func(dbName string) (*querylang.StorageExecutor, error)

// State is a session's position in the open/committed/rolled-back state
// machine.
type State string

const (
	StateOpen         State = "open"
	StateCommitted    State = "committed"
	StateRolledBack   State = "rolled_back"
)

// Session stores explicit transaction state shared across transports.
// Invariant: at most one concurrent call per session (enforced by busy,
// below); a session ceases to exist the instant it leaves StateOpen.
type Session struct {
	ID       string
	Database string
	Executor *querylang.StorageExecutor
	Created  time.Time
	Expires  time.Time
	State    State

	mu     sync.Mutex
	busy   bool
	closed bool
}

// Manager is the registry of live transaction sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl      time.Duration
	nowFunc  func() time.Time
	idFunc   func() string

	factory ExecutorFactory

	reaperStop chan struct{}
	reaperDone chan struct{}

	onClose func(*Session) // hook for tests/metrics, nil is a no-op
}

// ErrBusy is returned by ExecuteInSession/CommitAndDelete/RollbackAndDelete
// when another call on the same session id is already in flight.
var ErrBusy = fmt.Errorf("txsession: session is busy")

// ErrNotFound is returned by Get/ExecuteInSession/commit/rollback when
// the session id is not in the open state.
var ErrNotFound = fmt.Errorf("txsession: session not found")

// NewManager constructs a registry with the given idle TTL (30s if
// ttl<=0) and starts its reaper goroutine at interval min(30s, ttl/5).
// Call Stop to shut the reaper down during graceful shutdown.
func NewManager(ttl time.Duration, factory ExecutorFactory) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	m := &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		nowFunc:  time.Now,
		idFunc:   func() string { return uuid.NewString() },
		factory:  factory,

		reaperStop: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	go m.runReaper(reaperInterval(ttl))
	return m
}

// OnClose registers a hook invoked exactly once per session, the
// instant it closes (explicit commit, explicit rollback, or the
// reaper), letting the owning aggregate keep cross-cutting counters
// (e.g. a database entry's active_sessions) in sync without the
// registry importing that package. Whichever of the session's three
// exit paths reaches the terminal transition first fires the hook; the
// others are no-ops, so the hook never double-fires for one session.
func (m *Manager) OnClose(fn func(*Session)) { m.onClose = fn }

func reaperInterval(ttl time.Duration) time.Duration {
	interval := ttl / 5
	if interval > 30*time.Second || interval <= 0 {
		interval = 30 * time.Second
	}
	return interval
}

// Open begins an explicit transaction against dbName.
func (m *Manager) Open(ctx context.Context, dbName string) (*Session, error) {
	if m.factory == nil {
		return nil, fmt.Errorf("txsession: no executor factory configured")
	}
	executor, err := m.factory(dbName)
	if err != nil {
		return nil, err
	}
	if _, err := executor.Execute(ctx, "BEGIN", nil); err != nil {
		return nil, err
	}

	now := m.nowFunc()
	session := &Session{
		ID:       m.idFunc(),
		Database: dbName,
		Executor: executor,
		Created:  now,
		Expires:  now.Add(m.ttl),
		State:    StateOpen,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	return session, nil
}

// Get returns the session for txID if it is still open.
func (m *Manager) Get(txID string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[txID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return session, nil
}

// acquire marks the session busy for the duration of one call,
// enforcing the "at most one concurrent call per session" invariant.
// A session that has already closed yields ErrNotFound.
func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotFound
	}
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// closeOnce reports whether this call is the one transitioning the
// session from open to closed; a second call (e.g. a client commit
// racing the reaper) gets false and must not repeat any closing
// side-effect.
func (s *Session) closeOnce() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

func (m *Manager) delete(txID string) {
	m.mu.Lock()
	delete(m.sessions, txID)
	m.mu.Unlock()
}

// closeSession removes session from the registry and fires onClose,
// but only on the call that actually transitions it to closed; this is
// the single point every exit path (commit, rollback, reap) funnels
// through, so a counter fed by onClose can never be decremented twice
// for the same session.
func (m *Manager) closeSession(session *Session) {
	if !session.closeOnce() {
		return
	}
	m.delete(session.ID)
	if m.onClose != nil {
		m.onClose(session)
	}
}

func (m *Manager) touch(session *Session) {
	session.Expires = m.nowFunc().Add(m.ttl)
}

// WithSession acquires session's busy lock for the duration of fn, runs
// fn, then touches the session's expiry on success and releases the
// lock regardless of outcome. It lets the dispatcher run the actual
// engine call on its own worker pool while still enforcing the
// at-most-one-concurrent-call-per-session invariant.
func (m *Manager) WithSession(session *Session, fn func() (*querylang.ExecuteResult, error)) (*querylang.ExecuteResult, error) {
	if session == nil || session.Executor == nil {
		return nil, ErrNotFound
	}
	if err := session.acquire(); err != nil {
		return nil, err
	}
	defer session.release()

	result, err := fn()
	if err != nil {
		return nil, err
	}
	m.touch(session)
	return result, nil
}

// ExecuteInSession runs one statement within an already-open session.
func (m *Manager) ExecuteInSession(ctx context.Context, session *Session, query string, params map[string]any) (*querylang.ExecuteResult, error) {
	return m.WithSession(session, func() (*querylang.ExecuteResult, error) {
		return session.Executor.Execute(ctx, query, params)
	})
}

// CommitAndDelete commits and removes session.
func (m *Manager) CommitAndDelete(ctx context.Context, session *Session) (*querylang.ExecuteResult, error) {
	if session == nil || session.Executor == nil {
		return nil, ErrNotFound
	}
	if err := session.acquire(); err != nil {
		return nil, err
	}
	defer session.release()

	result, err := session.Executor.Execute(ctx, "COMMIT", nil)
	if err != nil {
		return nil, err
	}
	session.State = StateCommitted
	m.closeSession(session)
	return result, nil
}

// RollbackAndDelete rolls back and removes session.
func (m *Manager) RollbackAndDelete(ctx context.Context, session *Session) error {
	if session == nil || session.Executor == nil {
		return ErrNotFound
	}
	if err := session.acquire(); err != nil {
		return err
	}
	defer session.release()

	_, err := session.Executor.Execute(ctx, "ROLLBACK", nil)
	session.State = StateRolledBack
	m.closeSession(session)
	return err
}

// Count returns the number of open sessions, used by the database
// manager's total_active_sessions cross-check in tests.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// runReaper rolls back sessions idle past their TTL. A roll-back that
// fails is retried once, then logged and removed anyway so a stuck
// engine call can't pin a slot forever.
func (m *Manager) runReaper(interval time.Duration) {
	defer close(m.reaperDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.reaperStop:
			return
		case <-ticker.C:
			m.reapExpired()
		}
	}
}

func (m *Manager) reapExpired() {
	now := m.nowFunc()
	m.mu.RLock()
	var expired []*Session
	for _, s := range m.sessions {
		if now.After(s.Expires) {
			expired = append(expired, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range expired {
		if err := s.acquire(); err != nil {
			continue // an in-flight call owns it; it will touch or finish on its own
		}
		_, err := s.Executor.Execute(context.Background(), "ROLLBACK", nil)
		if err != nil {
			_, err = s.Executor.Execute(context.Background(), "ROLLBACK", nil)
		}
		if err != nil {
			log.Printf("txsession: reap session %s: rollback failed: %v", s.ID, err)
		}
		s.release()
		s.State = StateRolledBack
		m.closeSession(s)
	}
}

// Stop halts the reaper goroutine; used during graceful shutdown.
func (m *Manager) Stop() {
	close(m.reaperStop)
	<-m.reaperDone
}
