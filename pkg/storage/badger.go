package storage

import (
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Key layout: a one-byte prefix separates the node and edge keyspaces
// within the one Badger instance backing this database entry.
const (
	prefixNode byte = 0x01
	prefixEdge byte = 0x02
)

func nodeKey(id NodeID) []byte { return append([]byte{prefixNode}, []byte(id)...) }
func edgeKey(id EdgeID) []byte { return append([]byte{prefixEdge}, []byte(id)...) }

// BadgerEngine is the persistent Engine backing databases created with
// storage-mode "persistent". Each database entry opens its own
// BadgerEngine against its own subdirectory, so isolation between
// tenants comes from the filesystem layout rather than key namespacing
// within a shared store.
type BadgerEngine struct {
	db     *badger.DB
	closed atomic.Bool
}

// OpenBadgerEngine opens (creating if absent) a Badger store at dir.
func OpenBadgerEngine(dir string) (*BadgerEngine, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerEngine{db: db}, nil
}

func (b *BadgerEngine) ensureOpen() error {
	if b.closed.Load() {
		return badger.ErrDBClosed
	}
	return nil
}

func (b *BadgerEngine) CreateNode(n *Node) (*Node, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(n)
	if err != nil {
		return nil, err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nodeKey(n.ID), data)
	})
	if err != nil {
		return nil, err
	}
	cp := *n
	return &cp, nil
}

func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	var n Node
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &n)
		})
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (b *BadgerEngine) UpdateNode(n *Node) error {
	if _, err := b.GetNode(n.ID); err != nil {
		return err
	}
	_, err := b.CreateNode(n)
	return err
}

func (b *BadgerEngine) DeleteNode(id NodeID) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(nodeKey(id)); err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		return txn.Delete(nodeKey(id))
	})
}

func (b *BadgerEngine) AllNodes() ([]*Node, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	var out []*Node
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte{prefixNode}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var n Node
			if err := item.Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &n)
			}); err != nil {
				return err
			}
			out = append(out, &n)
		}
		return nil
	})
	return out, err
}

func (b *BadgerEngine) CreateEdge(e *Edge) (*Edge, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(edgeKey(e.ID), data)
	})
	if err != nil {
		return nil, err
	}
	cp := *e
	return &cp, nil
}

func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	var e Edge
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &e)
		})
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (b *BadgerEngine) DeleteEdge(id EdgeID) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(edgeKey(id)); err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		return txn.Delete(edgeKey(id))
	})
}

func (b *BadgerEngine) AllEdges() ([]*Edge, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	var out []*Edge
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte{prefixEdge}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var e Edge
			if err := item.Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			out = append(out, &e)
		}
		return nil
	})
	return out, err
}

func (b *BadgerEngine) Stats() (Stats, error) {
	nodes, err := b.AllNodes()
	if err != nil {
		return Stats{}, err
	}
	edges, err := b.AllEdges()
	if err != nil {
		return Stats{}, err
	}
	labels := map[string]struct{}{}
	props := map[string]struct{}{}
	for _, n := range nodes {
		for _, l := range n.Labels {
			labels[l] = struct{}{}
		}
		for k := range n.Properties {
			props[k] = struct{}{}
		}
	}
	edgeTypes := map[string]struct{}{}
	for _, e := range edges {
		edgeTypes[e.Type] = struct{}{}
	}
	lsm, vlog := b.db.Size()
	return Stats{
		Nodes:        int64(len(nodes)),
		Edges:        int64(len(edges)),
		Labels:       int64(len(labels)),
		EdgeTypes:    int64(len(edgeTypes)),
		PropertyKeys: int64(len(props)),
		DiskBytes:    lsm + vlog,
	}, nil
}

func (b *BadgerEngine) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.db.Close()
}
