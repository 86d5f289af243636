package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists checkpoints to an embedded Badger key-value store.
//
// Keys are "cp\x00<checkpointID>\x00<nodeID>"; values carry an 8-byte
// sequence and an 8-byte save time ahead of the envelope. A per-checkpoint
// counter lives under "seq\x00<checkpointID>".
type BadgerStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

const badgerHeaderLen = 16

// NewBadgerStore opens the database in directory path.
// An empty path opens an in-memory database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerPrefix(checkpointID string) []byte {
	return []byte("cp\x00" + checkpointID + "\x00")
}

func badgerKey(checkpointID, nodeID string) []byte {
	return append(badgerPrefix(checkpointID), nodeID...)
}

func badgerSeqKey(checkpointID string) []byte {
	return []byte("seq\x00" + checkpointID)
}

// Save implements Store.
func (b *BadgerStore) Save(checkpointID, nodeID string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrStoreClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		var seq uint64
		item, err := txn.Get(badgerSeqKey(checkpointID))
		switch {
		case err == nil:
			if err := item.Value(func(v []byte) error {
				seq = binary.BigEndian.Uint64(v)
				return nil
			}); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		seq++

		counter := make([]byte, 8)
		binary.BigEndian.PutUint64(counter, seq)
		if err := txn.Set(badgerSeqKey(checkpointID), counter); err != nil {
			return err
		}

		val := make([]byte, badgerHeaderLen+len(data))
		binary.BigEndian.PutUint64(val[0:8], seq)
		binary.BigEndian.PutUint64(val[8:16], uint64(time.Now().UTC().UnixNano()))
		copy(val[badgerHeaderLen:], data)
		return txn.Set(badgerKey(checkpointID, nodeID), val)
	})
	if err != nil {
		return fmt.Errorf("save node state: %w", err)
	}
	return nil
}

// Load implements Store.
func (b *BadgerStore) Load(checkpointID, nodeID string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(checkpointID, nodeID))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		data = val[badgerHeaderLen:]
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load node state: %w", err)
	}
	return data, nil
}

// List implements Store.
func (b *BadgerStore) List(checkpointID string) ([]Info, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrStoreClosed
	}

	prefix := badgerPrefix(checkpointID)
	var infos []Info
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			info := Info{
				CheckpointID: checkpointID,
				NodeID:       string(item.Key()[len(prefix):]),
				Size:         item.ValueSize() - badgerHeaderLen,
			}
			if err := item.Value(func(v []byte) error {
				info.Sequence = int(binary.BigEndian.Uint64(v[0:8]))
				info.Timestamp = time.Unix(0, int64(binary.BigEndian.Uint64(v[8:16]))).UTC()
				return nil
			}); err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list node state: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Sequence < infos[j].Sequence })
	return infos, nil
}

// Delete implements Store.
func (b *BadgerStore) Delete(checkpointID, nodeID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrStoreClosed
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(checkpointID, nodeID))
	}); err != nil {
		return fmt.Errorf("delete node state: %w", err)
	}
	return nil
}

// DeleteRun implements Store.
func (b *BadgerStore) DeleteRun(checkpointID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrStoreClosed
	}

	prefix := badgerPrefix(checkpointID)
	err := b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		keys = append(keys, badgerSeqKey(checkpointID))
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close implements Store.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}
