package checkpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/registry"
)

// Store persists envelopes so containers survive process restarts.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores data for one node of a checkpoint.
	// Overwrites if an entry for (checkpointID, nodeID) already exists.
	Save(checkpointID, nodeID string, data []byte) error

	// Load retrieves one node's data.
	// Returns ErrNotFound if the entry doesn't exist.
	Load(checkpointID, nodeID string) ([]byte, error)

	// List returns all entries of a checkpoint, ordered by sequence.
	// Returns empty slice (not error) if the checkpoint has no entries.
	List(checkpointID string) ([]Info, error)

	// Delete removes one entry.
	// Returns nil if the entry doesn't exist.
	Delete(checkpointID, nodeID string) error

	// DeleteRun removes every entry of a checkpoint.
	// Returns nil if the checkpoint has no entries.
	DeleteRun(checkpointID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading the data.
type Info struct {
	CheckpointID string
	NodeID       string
	Sequence     int
	Timestamp    time.Time
	Size         int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint entry doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrVersionMismatch indicates an envelope was written by an incompatible version.
	ErrVersionMismatch = errors.New("checkpoint version mismatch")

	// ErrCodecMismatch indicates the entries of one checkpoint use different codecs.
	ErrCodecMismatch = errors.New("checkpoint entries use different codecs")
)

// Opener creates a store from a path. Backends that need no path ignore it.
type Opener func(path string) (Store, error)

var backends = func() *registry.Registry[Opener] {
	r := registry.New[Opener]("store backend")
	r.Register("memory", func(string) (Store, error) { return NewMemoryStore(), nil })
	r.Register("sqlite", func(path string) (Store, error) { return NewSQLiteStore(path) })
	r.Register("badger", func(path string) (Store, error) { return NewBadgerStore(path) })
	return r
}()

// RegisterBackend makes a store backend available to OpenStore.
func RegisterBackend(name string, open Opener) {
	backends.Register(name, open)
}

// OpenStore opens a store by backend name ("memory", "sqlite", "badger").
func OpenStore(backend, path string) (Store, error) {
	open, err := backends.Resolve(backend)
	if err != nil {
		return nil, err
	}
	s, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}
	return s, nil
}

// Persist writes every entry of c to store under checkpointID.
func (c *Container) Persist(store Store, checkpointID string) error {
	for _, nodeID := range c.Keys() {
		blob, ok := c.GetRaw(nodeID)
		if !ok {
			continue
		}
		data, err := NewEnvelope(checkpointID, nodeID, c.codec.Name(), blob).Marshal()
		if err != nil {
			return fmt.Errorf("marshal envelope for %s: %w", nodeID, err)
		}
		if err := store.Save(checkpointID, nodeID, data); err != nil {
			return fmt.Errorf("persist %s: %w", nodeID, err)
		}
	}
	return nil
}

// Restore reads every entry of checkpointID from store into a new container.
// Returns ErrNotFound if the checkpoint has no entries.
func Restore(store Store, checkpointID string) (*Container, error) {
	infos, err := store.List(checkpointID)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("restore %s: %w", checkpointID, ErrNotFound)
	}

	var c *Container
	for _, info := range infos {
		data, err := store.Load(checkpointID, info.NodeID)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", info.NodeID, err)
		}
		env, err := UnmarshalEnvelope(data)
		if err != nil {
			return nil, fmt.Errorf("unmarshal envelope for %s: %w", info.NodeID, err)
		}
		if env.Version != Version {
			return nil, fmt.Errorf("%s: envelope version %d, want %d: %w",
				info.NodeID, env.Version, Version, ErrVersionMismatch)
		}
		if c == nil {
			codec, err := CodecByName(env.Codec)
			if err != nil {
				return nil, err
			}
			c = NewContainer(WithCodec(codec))
		} else if env.Codec != c.codec.Name() {
			return nil, fmt.Errorf("%s uses %s, want %s: %w",
				info.NodeID, env.Codec, c.codec.Name(), ErrCodecMismatch)
		}
		c.PutRaw(env.NodeID, env.State)
	}
	return c, nil
}
