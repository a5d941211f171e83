// Package service wires the database manager, session registry, query
// dispatcher, metrics sink, auth validator, rate limiter, and resource
// inventory into a single owned aggregate: created once at startup,
// shared by every transport as a cheaply-cloneable handle, with no
// global mutable singleton.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/GrafeoDB/grafeo-server/pkg/auth"
	"github.com/GrafeoDB/grafeo-server/pkg/dbconfig"
	"github.com/GrafeoDB/grafeo-server/pkg/dispatch"
	"github.com/GrafeoDB/grafeo-server/pkg/metrics"
	"github.com/GrafeoDB/grafeo-server/pkg/multidb"
	"github.com/GrafeoDB/grafeo-server/pkg/ratelimit"
	"github.com/GrafeoDB/grafeo-server/pkg/resources"
	"github.com/GrafeoDB/grafeo-server/pkg/querylang"
	"github.com/GrafeoDB/grafeo-server/pkg/txsession"
)

// Config configures the aggregate's construction. Zero-value fields
// fall back to the same defaults their owning package would pick.
type Config struct {
	DataRoot       string
	SupportedKinds []multidb.Kind
	MaxDatabases   int

	SessionTTL time.Duration

	WorkerCount    int
	AdmissionWait  time.Duration
	DefaultTimeout time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration

	AuthToken    string
	AuthUsername string
	AuthPassword string
}

// Service is the owned aggregate. All fields are safe for concurrent
// use; transports hold a pointer to the same instance.
type Service struct {
	Manager    *multidb.Manager
	Sessions   *txsession.Manager
	Dispatcher *dispatch.Dispatcher
	Metrics    *metrics.Sink
	Auth       *auth.Validator
	RateLimit  *ratelimit.Limiter
	Resources  *resources.Inventory
}

// New constructs the aggregate. Database discovery (if DataRoot is
// set) runs to completion before this returns: discovery always
// finishes before the server accepts traffic.
func New(cfg Config) (*Service, error) {
	kinds := cfg.SupportedKinds
	if len(kinds) == 0 {
		kinds = []multidb.Kind{multidb.KindLPG, multidb.KindRDF}
	}

	resourceKinds := make([]resources.Kind, len(kinds))
	for i, k := range kinds {
		resourceKinds[i] = resources.Kind(k)
	}
	inv := resources.New(cfg.DataRoot, resourceKinds)

	manager, err := multidb.NewManager(&multidb.Config{
		DataRoot:       cfg.DataRoot,
		SupportedKinds: kinds,
		MaxDatabases:   cfg.MaxDatabases,
	}, inv)
	if err != nil {
		return nil, fmt.Errorf("service: init database manager: %w", err)
	}

	sessions := txsession.NewManager(cfg.SessionTTL, makeExecutorFactory(manager))
	sessions.OnClose(func(s *txsession.Session) { manager.DecrSessions(s.Database) })

	sink := metrics.New()

	svc := &Service{
		Manager:   manager,
		Sessions:  sessions,
		Metrics:   sink,
		Auth:      auth.New(cfg.AuthToken, cfg.AuthUsername, cfg.AuthPassword),
		RateLimit: ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow),
		Resources: inv,
	}
	svc.Dispatcher = dispatch.New(manager, sessions, sink, dispatch.Config{
		WorkerCount:    cfg.WorkerCount,
		AdmissionWait:  cfg.AdmissionWait,
		DefaultTimeout: cfg.DefaultTimeout,
	})
	return svc, nil
}

func makeExecutorFactory(manager *multidb.Manager) txsession.ExecutorFactory {
	return func(dbName string) (*querylang.StorageExecutor, error) {
		eng, err := manager.Get(dbName)
		if err != nil {
			return nil, err
		}
		return querylang.NewStorageExecutor(eng), nil
	}
}

// audit emits a terse operational line for a security/administration-
// relevant event - one line per event, never a structured payload.
func (s *Service) audit(event, subject string, success bool, detail string) {
	status := "ok"
	if !success {
		status = "failed"
	}
	if detail != "" {
		log.Printf("service: audit event=%s subject=%s status=%s %s", event, subject, status, detail)
		return
	}
	log.Printf("service: audit event=%s subject=%s status=%s", event, subject, status)
}

// CreateDatabase resolves opts against the server-wide default, creates
// the entry, and audits the outcome. Every transport creates databases
// through this call rather than the manager directly so the audit line
// and the option-resolution precedence stay in one place.
func (s *Service) CreateDatabase(name string, kind multidb.Kind, mode multidb.StorageMode, opts map[string]string, schemaDoc string) (multidb.Summary, error) {
	resolved := dbconfig.Resolve(multidb.DefaultOptions(), opts)
	summary, err := s.Manager.Create(name, kind, mode, resolved.Options, schemaDoc)
	if err != nil {
		s.audit("create_database", name, false, err.Error())
		return multidb.Summary{}, err
	}
	s.audit("create_database", name, true, fmt.Sprintf("kind=%s storage_mode=%s", kind, mode))
	return summary, nil
}

// DeleteDatabase removes name's entry and audits the outcome.
func (s *Service) DeleteDatabase(name string) error {
	err := s.Manager.Delete(name)
	if err != nil {
		s.audit("delete_database", name, false, err.Error())
		return err
	}
	s.audit("delete_database", name, true, "")
	return nil
}

// OpenSession begins an explicit transaction and reflects it in the
// owning database entry's active_sessions counter.
func (s *Service) OpenSession(ctx context.Context, dbName string) (*txsession.Session, error) {
	session, err := s.Sessions.Open(ctx, dbName)
	if err != nil {
		s.audit("begin_session", dbName, false, err.Error())
		return nil, err
	}
	s.Manager.IncrSessions(dbName)
	s.audit("begin_session", dbName, true, fmt.Sprintf("session=%s", session.ID))
	return session, nil
}

// CommitSession commits and removes session. The entry's
// active_sessions counter is decremented exactly once by the session
// registry's OnClose hook (wired in New), which fires only on the call
// that actually closes the session - so a commit racing the reaper
// can never double-decrement.
func (s *Service) CommitSession(ctx context.Context, session *txsession.Session) (*querylang.ExecuteResult, error) {
	result, err := s.Sessions.CommitAndDelete(ctx, session)
	if err != nil {
		s.audit("commit_session", session.Database, false, fmt.Sprintf("session=%s %v", session.ID, err))
		return nil, err
	}
	s.audit("commit_session", session.Database, true, fmt.Sprintf("session=%s", session.ID))
	return result, nil
}

// RollbackSession rolls back and removes session; see CommitSession.
func (s *Service) RollbackSession(ctx context.Context, session *txsession.Session) error {
	err := s.Sessions.RollbackAndDelete(ctx, session)
	if err != nil {
		s.audit("rollback_session", session.Database, false, fmt.Sprintf("session=%s %v", session.ID, err))
		return err
	}
	s.audit("rollback_session", session.Database, true, fmt.Sprintf("session=%s", session.ID))
	return nil
}

// RefreshGauges pushes the current database/session counts into the
// metrics sink; transports call this periodically or before scraping.
func (s *Service) RefreshGauges() {
	s.Metrics.SetDatabases(len(s.Manager.List()))
	s.Metrics.SetActiveSessions(s.Manager.TotalActiveSessions())
}

// Shutdown drains the aggregate's background goroutines within
// drainTimeout: the session reaper stops, then every engine handle is
// closed.
func (s *Service) Shutdown(ctx context.Context, drainTimeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		s.Sessions.Stop()
		s.RateLimit.Stop()
		done <- s.Manager.Close()
	}()

	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	select {
	case err := <-done:
		return err
	case <-drainCtx.Done():
		return drainCtx.Err()
	}
}
