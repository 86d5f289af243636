package checkpoint

import (
	"fmt"
	"sort"
	"sync"
)

// StateWriter receives one node's state during a save.
type StateWriter interface {
	// NodeID returns the identity the state is stored under.
	NodeID() string
	// Write encodes state and stores it, replacing any previous value.
	Write(state any) error
}

// StateReader supplies one node's state during a load.
type StateReader interface {
	// NodeID returns the identity the state is read from.
	NodeID() string
	// Read decodes the stored state into state. It returns false with no
	// error when nothing was saved for this node.
	Read(state any) (bool, error)
}

// Container is an in-memory, key-addressed store of encoded node state.
// It is safe for concurrent use.
type Container struct {
	codec Codec

	mu      sync.RWMutex
	entries map[string][]byte
}

// ContainerOption configures a Container.
type ContainerOption func(*Container)

// WithCodec sets the codec used to encode state. Default: JSON.
func WithCodec(c Codec) ContainerOption {
	return func(ct *Container) {
		if c != nil {
			ct.codec = c
		}
	}
}

// NewContainer creates an empty container.
func NewContainer(opts ...ContainerOption) *Container {
	c := &Container{
		codec:   JSON,
		entries: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Codec returns the container's codec.
func (c *Container) Codec() Codec {
	return c.codec
}

// Put encodes state under nodeID.
func (c *Container) Put(nodeID string, state any) error {
	blob, err := c.codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state for %s: %w", nodeID, err)
	}
	c.PutRaw(nodeID, blob)
	return nil
}

// Get decodes the state stored under nodeID into state.
// Returns false with no error if nothing is stored.
func (c *Container) Get(nodeID string, state any) (bool, error) {
	blob, ok := c.GetRaw(nodeID)
	if !ok {
		return false, nil
	}
	if err := c.codec.Unmarshal(blob, state); err != nil {
		return true, fmt.Errorf("decode state for %s: %w", nodeID, err)
	}
	return true, nil
}

// PutRaw stores an already encoded blob. The slice is copied.
func (c *Container) PutRaw(nodeID string, blob []byte) {
	stored := make([]byte, len(blob))
	copy(stored, blob)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[nodeID] = stored
}

// GetRaw returns a copy of the blob stored under nodeID.
func (c *Container) GetRaw(nodeID string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	blob, ok := c.entries[nodeID]
	if !ok {
		return nil, false
	}
	result := make([]byte, len(blob))
	copy(result, blob)
	return result, true
}

// Delete removes nodeID's state.
func (c *Container) Delete(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, nodeID)
}

// Keys returns the stored node IDs in sorted order.
func (c *Container) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored entries.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Size returns the total size of all blobs in bytes.
func (c *Container) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, b := range c.entries {
		n += int64(len(b))
	}
	return n
}

// Writer returns a StateWriter bound to nodeID.
func (c *Container) Writer(nodeID string) StateWriter {
	return nodeState{c: c, id: nodeID}
}

// Reader returns a StateReader bound to nodeID.
func (c *Container) Reader(nodeID string) StateReader {
	return nodeState{c: c, id: nodeID}
}

type nodeState struct {
	c  *Container
	id string
}

func (s nodeState) NodeID() string               { return s.id }
func (s nodeState) Write(state any) error        { return s.c.Put(s.id, state) }
func (s nodeState) Read(state any) (bool, error) { return s.c.Get(s.id, state) }
