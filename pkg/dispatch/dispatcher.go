// Package dispatch resolves a database-name-or-session handle to an
// engine, maps a language to the engine's execute call, enforces a
// deadline, and runs the call on a bounded blocking-worker pool so
// engine work never shares a goroutine with request admission.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/GrafeoDB/grafeo-server/pkg/kindtag"
	"github.com/GrafeoDB/grafeo-server/pkg/metrics"
	"github.com/GrafeoDB/grafeo-server/pkg/multidb"
	"github.com/GrafeoDB/grafeo-server/pkg/querylang"
	"github.com/GrafeoDB/grafeo-server/pkg/txsession"
)

// Request is one query submitted for dispatch, addressed either by
// database name (auto-commit) or by an already-open session.
type Request struct {
	Database string // used when Session is nil
	Session  *txsession.Session
	Language string
	Text     string
	Params   map[string]any
	Deadline time.Duration // per-call deadline; 0 means "use server default"
}

// Dispatcher owns the blocking-worker pool and routes requests to
// engines.
type Dispatcher struct {
	manager  *multidb.Manager
	sessions *txsession.Manager
	metrics  *metrics.Sink

	pool           *semaphore.Weighted
	admissionWait  time.Duration
	defaultTimeout time.Duration
}

// Config configures a Dispatcher's pool sizing and timeouts.
type Config struct {
	WorkerCount    int           // bounded blocking-worker pool size; <=0 defaults to 4
	AdmissionWait  time.Duration // how long to wait for a free worker before *overloaded*; <=0 defaults to 2s
	DefaultTimeout time.Duration // server-wide deadline when a call carries none; 0 means no default
}

// New constructs a Dispatcher bound to manager and sessions.
func New(manager *multidb.Manager, sessions *txsession.Manager, sink *metrics.Sink, cfg Config) *Dispatcher {
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 4
	}
	wait := cfg.AdmissionWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &Dispatcher{
		manager:        manager,
		sessions:       sessions,
		metrics:        sink,
		pool:           semaphore.NewWeighted(int64(workers)),
		admissionWait:  wait,
		defaultTimeout: cfg.DefaultTimeout,
	}
}

// runOnPool submits fn to the bounded blocking-worker pool, enforcing
// the admission budget (*overloaded* on saturation) and the effective
// deadline (*timeout* on expiry) around the call.
func (d *Dispatcher) runOnPool(ctx context.Context, lang querylang.Language, deadline time.Duration, fn func(context.Context) (*querylang.ExecuteResult, error)) (*querylang.ExecuteResult, error) {
	if deadline <= 0 {
		deadline = d.defaultTimeout
	}

	admitCtx, cancelAdmit := context.WithTimeout(ctx, d.admissionWait)
	defer cancelAdmit()
	if err := d.pool.Acquire(admitCtx, 1); err != nil {
		return nil, kindtag.New(kindtag.Overloaded, "dispatch: worker pool saturated")
	}
	defer d.pool.Release(1)

	callCtx := ctx
	var cancel context.CancelFunc
	if deadline > 0 {
		callCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	start := time.Now()
	result, execErr := fn(callCtx)
	duration := time.Since(start)

	status := "ok"
	if execErr != nil {
		status = "error"
		if callCtx.Err() == context.DeadlineExceeded {
			status = "timeout"
		} else if callCtx.Err() == context.Canceled {
			status = "cancelled"
		}
	}
	if d.metrics != nil {
		d.metrics.ObserveQuery(string(lang), status, duration)
	}

	if execErr != nil {
		switch status {
		case "timeout":
			return nil, kindtag.New(kindtag.Timeout, "dispatch: query exceeded its deadline")
		case "cancelled":
			return nil, kindtag.New(kindtag.Internal, "dispatch: query cancelled")
		default:
			return nil, translateEngineErr(execErr)
		}
	}
	return result, nil
}

// Execute runs one query through the full resolution order: resolve
// handle (via database manager or session registry), map language,
// select deadline, submit to the worker pool.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (*querylang.ExecuteResult, error) {
	lang, err := querylang.ParseLanguage(req.Language)
	if err != nil {
		return nil, kindtag.New(kindtag.BadRequest, err.Error())
	}

	if req.Session != nil {
		result, err := d.sessions.WithSession(req.Session, func() (*querylang.ExecuteResult, error) {
			return d.runOnPool(ctx, lang, req.Deadline, func(callCtx context.Context) (*querylang.ExecuteResult, error) {
				return req.Session.Executor.Execute(callCtx, req.Text, req.Params)
			})
		})
		if errors.Is(err, txsession.ErrNotFound) || errors.Is(err, txsession.ErrBusy) {
			return nil, translateLookupErr(err)
		}
		return result, err
	}

	eng, err := d.manager.Get(req.Database)
	if err != nil {
		return nil, translateLookupErr(err)
	}
	executor := querylang.NewStorageExecutor(eng)
	return d.runOnPool(ctx, lang, req.Deadline, func(callCtx context.Context) (*querylang.ExecuteResult, error) {
		return executor.Execute(callCtx, req.Text, req.Params)
	})
}

// Batch runs N queries against one database within a single implicit
// transaction: begin, execute each in order collecting results,
// commit on all success, rollback on any failure. The returned slice
// is only meaningful when err is nil.
func (d *Dispatcher) Batch(ctx context.Context, database string, language string, statements []string, deadline time.Duration) ([]*querylang.ExecuteResult, error) {
	lang, err := querylang.ParseLanguage(language)
	if err != nil {
		return nil, kindtag.New(kindtag.BadRequest, err.Error())
	}
	eng, err := d.manager.Get(database)
	if err != nil {
		return nil, translateLookupErr(err)
	}
	executor := querylang.NewStorageExecutor(eng)

	if _, err := executor.Execute(ctx, "BEGIN", nil); err != nil {
		return nil, translateEngineErr(err)
	}

	results := make([]*querylang.ExecuteResult, 0, len(statements))
	for _, stmt := range statements {
		res, err := d.runOnPool(ctx, lang, deadline, func(callCtx context.Context) (*querylang.ExecuteResult, error) {
			return executor.Execute(callCtx, stmt, nil)
		})
		if err != nil {
			_, _ = executor.Execute(ctx, "ROLLBACK", nil)
			return nil, err
		}
		results = append(results, res)
	}

	if _, err := executor.Execute(ctx, "COMMIT", nil); err != nil {
		_, _ = executor.Execute(ctx, "ROLLBACK", nil)
		return nil, translateEngineErr(err)
	}
	return results, nil
}

func translateLookupErr(err error) error {
	switch {
	case errors.Is(err, multidb.ErrDatabaseNotFound):
		return kindtag.New(kindtag.NotFound, "dispatch: database not found")
	case errors.Is(err, multidb.ErrDatabaseBroken):
		return kindtag.New(kindtag.Internal, "dispatch: database entry is broken")
	case errors.Is(err, txsession.ErrNotFound):
		return kindtag.New(kindtag.NotFound, "dispatch: session not found")
	case errors.Is(err, txsession.ErrBusy):
		return kindtag.New(kindtag.Conflict, "dispatch: session is busy")
	default:
		return kindtag.New(kindtag.Internal, fmt.Sprintf("dispatch: %v", err))
	}
}

func translateEngineErr(err error) error {
	switch {
	case errors.Is(err, querylang.ErrParse):
		return kindtag.New(kindtag.BadRequest, err.Error())
	case errors.Is(err, querylang.ErrSemantic):
		return kindtag.New(kindtag.BadRequest, err.Error())
	case errors.Is(err, querylang.ErrBadLanguage):
		return kindtag.New(kindtag.BadRequest, err.Error())
	default:
		return kindtag.New(kindtag.Internal, err.Error())
	}
}
