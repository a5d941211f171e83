package dbconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GrafeoDB/grafeo-server/pkg/multidb"
)

func TestResolve_NoOverridesKeepsGlobal(t *testing.T) {
	global := multidb.DefaultOptions()
	r := Resolve(global, nil)
	assert.Equal(t, global, r.Options)
	assert.Equal(t, "sync", r.Effective[KeyDurability])
	assert.Equal(t, "true", r.Effective[KeyReverseEdgeIndex])
}

func TestResolve_AppliesValidOverrides(t *testing.T) {
	global := multidb.DefaultOptions()
	r := Resolve(global, map[string]string{
		KeyMemoryLimitBytes: "1048576",
		KeyDurability:       "async",
		KeyReverseEdgeIndex: "false",
		KeyWorkerCount:      "8",
		KeySpillDir:         "/tmp/spill",
	})
	assert.Equal(t, int64(1048576), r.Options.MemoryLimitBytes)
	assert.Equal(t, "async", r.Options.Durability)
	assert.False(t, r.Options.ReverseEdgeIndex)
	assert.Equal(t, 8, r.Options.WorkerCount)
	assert.Equal(t, "/tmp/spill", r.Options.SpillDir)
	assert.Equal(t, "1048576", r.Effective[KeyMemoryLimitBytes])
}

func TestResolve_IgnoresUnknownAndMalformedValues(t *testing.T) {
	global := multidb.DefaultOptions()
	r := Resolve(global, map[string]string{
		"not_a_real_key":    "x",
		KeyDurability:       "eventual", // not sync/async, ignored
		KeyWorkerCount:      "not-a-number",
		KeyMemoryLimitBytes: "-5",
	})
	assert.Equal(t, global.Durability, r.Options.Durability)
	assert.Equal(t, global.WorkerCount, r.Options.WorkerCount)
	assert.Equal(t, global.MemoryLimitBytes, r.Options.MemoryLimitBytes)
	_, unknownRecorded := r.Effective["not_a_real_key"]
	assert.False(t, unknownRecorded)
}

func TestIsAllowedKey(t *testing.T) {
	assert.True(t, IsAllowedKey(KeyWorkerCount))
	assert.False(t, IsAllowedKey("arbitrary"))
}
