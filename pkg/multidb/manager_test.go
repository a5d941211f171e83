package multidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(&Config{SupportedKinds: []Kind{KindLPG, KindRDF}}, nil)
	require.NoError(t, err)
	return m
}

func TestNewManager_CreatesDefaultDatabase(t *testing.T) {
	m := newTestManager(t)
	assert.True(t, m.Exists(DefaultDatabaseName))
	info, err := m.Info(DefaultDatabaseName)
	require.NoError(t, err)
	assert.True(t, info.IsDefault)
	assert.Equal(t, StatusOnline, info.Status)
}

func TestManager_CreateListGetDelete(t *testing.T) {
	m := newTestManager(t)

	summary, err := m.Create("tenant-a", KindLPG, ModeMemory, DefaultOptions(), "")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", summary.Name)

	list := m.List()
	names := make([]string, 0, len(list))
	for _, s := range list {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "tenant-a")
	assert.Contains(t, names, DefaultDatabaseName)

	eng, err := m.Get("tenant-a")
	require.NoError(t, err)
	assert.NotNil(t, eng)

	require.NoError(t, m.Delete("tenant-a"))
	assert.False(t, m.Exists("tenant-a"))

	_, err = m.Get("tenant-a")
	assert.ErrorIs(t, err, ErrDatabaseNotFound)
}

func TestManager_CreateDuplicateFails(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("dup", KindLPG, ModeMemory, DefaultOptions(), "")
	require.NoError(t, err)
	_, err = m.Create("dup", KindLPG, ModeMemory, DefaultOptions(), "")
	assert.ErrorIs(t, err, ErrDatabaseExists)
}

func TestManager_CannotDropDefault(t *testing.T) {
	m := newTestManager(t)
	err := m.Delete(DefaultDatabaseName)
	assert.ErrorIs(t, err, ErrCannotDropDefault)
}

func TestManager_InvalidName(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("not a valid name!", KindLPG, ModeMemory, DefaultOptions(), "")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestManager_UnsupportedKind(t *testing.T) {
	m, err := NewManager(&Config{SupportedKinds: []Kind{KindLPG}}, nil)
	require.NoError(t, err)
	_, err = m.Create("rdfdb", KindRDF, ModeMemory, DefaultOptions(), "")
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestManager_MaxDatabasesReached(t *testing.T) {
	m, err := NewManager(&Config{SupportedKinds: []Kind{KindLPG}, MaxDatabases: 1}, nil)
	require.NoError(t, err)
	// the default database already counts toward the limit
	_, err = m.Create("second", KindLPG, ModeMemory, DefaultOptions(), "")
	assert.ErrorIs(t, err, ErrMaxDatabasesReached)
}

func TestManager_SessionCounters(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("counted", KindLPG, ModeMemory, DefaultOptions(), "")
	require.NoError(t, err)

	m.IncrSessions("counted")
	m.IncrSessions("counted")
	assert.Equal(t, int64(2), m.TotalActiveSessions())

	m.DecrSessions("counted")
	assert.Equal(t, int64(1), m.TotalActiveSessions())

	info, err := m.Info("counted")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.ActiveSessions)
}
