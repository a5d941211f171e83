// Package resources probes host RAM and disk and tracks how much of the
// memory budget live database entries have claimed, backing the
// system/resources endpoint and the database manager's create-time
// quota check.
package resources

import (
	"sync/atomic"

	"github.com/ricochet2200/go-disk-usage/du"
	"github.com/shirou/gopsutil/v3/mem"
)

// Kind names a database architecture this build can instantiate entries
// of. Kept as a string slice (rather than importing multidb) to avoid a
// dependency cycle: multidb depends on resources for the quota check.
type Kind string

// Snapshot is a point-in-time read of the host and tenancy state,
// returned by GET /system/resources.
type Snapshot struct {
	TotalMemoryBytes     int64
	AllocatedMemoryBytes int64
	FreeDiskBytes        int64
	PersistentAvailable  bool
	SupportedKinds       []Kind
	DefaultOptionsHint   map[string]any
}

// Inventory tracks host capacity and per-tenant memory claims. Allocated
// is a lock-free atomic read; Claim/Release are the
// only mutators, matching the "~5% share" ambient-weight component the
// rest of the service treats as a leaf dependency.
type Inventory struct {
	allocated atomic.Int64

	dataRoot       string
	supportedKinds []Kind

	totalMemFn func() (int64, error)
	freeDiskFn func(path string) (int64, error)
}

// New returns an Inventory. dataRoot is the persistence root; an empty
// dataRoot means persistent mode is unavailable in this build.
func New(dataRoot string, supportedKinds []Kind) *Inventory {
	return &Inventory{
		dataRoot:       dataRoot,
		supportedKinds: supportedKinds,
		totalMemFn:     hostTotalMemory,
		freeDiskFn:     freeDiskAt,
	}
}

func hostTotalMemory() (int64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return int64(stat.Total), nil
}

func freeDiskAt(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	usage := du.NewDiskUsage(path)
	if usage == nil {
		return 0, nil
	}
	return int64(usage.Free()), nil
}

// Claim records requestBytes against the allocated total, returning the
// new total. Called by the manager after a successful create.
func (inv *Inventory) Claim(requestBytes int64) int64 {
	return inv.allocated.Add(requestBytes)
}

// Release gives back requestBytes, called after a delete.
func (inv *Inventory) Release(requestBytes int64) int64 {
	return inv.allocated.Add(-requestBytes)
}

// Allocated returns the currently claimed memory total.
func (inv *Inventory) Allocated() int64 { return inv.allocated.Load() }

// WouldExceed reports whether allocating requestBytes on top of the
// current allocation would exceed total host RAM, the create-time
// quota check. A zero requestBytes never exceeds.
func (inv *Inventory) WouldExceed(requestBytes int64) (bool, error) {
	if requestBytes <= 0 {
		return false, nil
	}
	total, err := inv.totalMemFn()
	if err != nil {
		return false, err
	}
	return inv.allocated.Load()+requestBytes > total, nil
}

// PersistentAvailable reports whether this build can open persistent
// engines at all (a data root was configured).
func (inv *Inventory) PersistentAvailable() bool { return inv.dataRoot != "" }

// Snapshot probes the host and returns a full Snapshot for the
// system/resources endpoint.
func (inv *Inventory) Snapshot() (Snapshot, error) {
	total, err := inv.totalMemFn()
	if err != nil {
		return Snapshot{}, err
	}
	free, err := inv.freeDiskFn(inv.dataRoot)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		TotalMemoryBytes:     total,
		AllocatedMemoryBytes: inv.allocated.Load(),
		FreeDiskBytes:        free,
		PersistentAvailable:  inv.PersistentAvailable(),
		SupportedKinds:       inv.supportedKinds,
		DefaultOptionsHint: map[string]any{
			"memory_limit_bytes": int64(0),
			"durability":         "sync",
			"reverse_edge_index": true,
			"worker_count":       4,
		},
	}, nil
}
