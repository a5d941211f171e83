package txsession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrafeoDB/grafeo-server/pkg/querylang"
	"github.com/GrafeoDB/grafeo-server/pkg/storage"
)

func newTestFactory() ExecutorFactory {
	return func(dbName string) (*querylang.StorageExecutor, error) {
		return querylang.NewStorageExecutor(storage.NewMemEngine()), nil
	}
}

func TestManager_OpenExecuteCommit(t *testing.T) {
	m := NewManager(time.Minute, newTestFactory())
	defer m.Stop()

	session, err := m.Open(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, session.State)

	_, err = m.ExecuteInSession(context.Background(), session, "INSERT (:Person {name: 'Alice'})", nil)
	require.NoError(t, err)

	_, err = m.CommitAndDelete(context.Background(), session)
	require.NoError(t, err)

	_, err = m.Get(session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_RollbackRemovesSession(t *testing.T) {
	m := NewManager(time.Minute, newTestFactory())
	defer m.Stop()

	session, err := m.Open(context.Background(), "default")
	require.NoError(t, err)

	require.NoError(t, m.RollbackAndDelete(context.Background(), session))

	_, err = m.Get(session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_ConcurrentCallReturnsBusy(t *testing.T) {
	m := NewManager(time.Minute, newTestFactory())
	defer m.Stop()

	session, err := m.Open(context.Background(), "default")
	require.NoError(t, err)

	require.NoError(t, session.acquire())
	defer session.release()

	_, err = m.ExecuteInSession(context.Background(), session, "MATCH (n) RETURN n", nil)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestManager_ReaperExpiresIdleSessions(t *testing.T) {
	m := NewManager(10*time.Millisecond, newTestFactory())
	defer m.Stop()

	var reaped *Session
	m.OnClose(func(s *Session) { reaped = s })

	session, err := m.Open(context.Background(), "default")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := m.Get(session.ID)
		return err != nil
	}, time.Second, 5*time.Millisecond)

	assert.NotNil(t, reaped)
	assert.Equal(t, session.ID, reaped.ID)
}

func TestManager_CountReflectsOpenSessions(t *testing.T) {
	m := NewManager(time.Minute, newTestFactory())
	defer m.Stop()

	assert.Equal(t, 0, m.Count())
	session, err := m.Open(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())

	require.NoError(t, m.RollbackAndDelete(context.Background(), session))
	assert.Equal(t, 0, m.Count())
}

func TestManager_OnCloseFiresExactlyOncePerSession(t *testing.T) {
	m := NewManager(time.Minute, newTestFactory())
	defer m.Stop()

	closed := 0
	m.OnClose(func(*Session) { closed++ })

	session, err := m.Open(context.Background(), "default")
	require.NoError(t, err)

	require.NoError(t, m.RollbackAndDelete(context.Background(), session))
	assert.Equal(t, 1, closed)

	// A second rollback on the same (already-closed) session fails with
	// not-found and must not re-fire the hook: the caller already got
	// its one decrement.
	err = m.RollbackAndDelete(context.Background(), session)
	assert.Error(t, err)
	assert.Equal(t, 1, closed)
}
