package checkpoint

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps persisted checkpoints in process memory.
// Data is lost when the process exits.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*memoryCheckpoint
	closed      bool
}

type memoryCheckpoint struct {
	nextSeq int
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data     []byte
	sequence int
	savedAt  time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[string]*memoryCheckpoint)}
}

// Save implements Store.
func (m *MemoryStore) Save(checkpointID, nodeID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	cp := m.checkpoints[checkpointID]
	if cp == nil {
		cp = &memoryCheckpoint{entries: make(map[string]memoryEntry)}
		m.checkpoints[checkpointID] = cp
	}
	cp.nextSeq++

	stored := make([]byte, len(data))
	copy(stored, data)
	cp.entries[nodeID] = memoryEntry{data: stored, sequence: cp.nextSeq, savedAt: time.Now().UTC()}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(checkpointID, nodeID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	cp := m.checkpoints[checkpointID]
	if cp == nil {
		return nil, ErrNotFound
	}
	e, ok := cp.entries[nodeID]
	if !ok {
		return nil, ErrNotFound
	}

	result := make([]byte, len(e.data))
	copy(result, e.data)
	return result, nil
}

// List implements Store.
func (m *MemoryStore) List(checkpointID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	cp := m.checkpoints[checkpointID]
	if cp == nil {
		return nil, nil
	}

	infos := make([]Info, 0, len(cp.entries))
	for nodeID, e := range cp.entries {
		infos = append(infos, Info{
			CheckpointID: checkpointID,
			NodeID:       nodeID,
			Sequence:     e.sequence,
			Timestamp:    e.savedAt,
			Size:         int64(len(e.data)),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Sequence < infos[j].Sequence })
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(checkpointID, nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if cp := m.checkpoints[checkpointID]; cp != nil {
		delete(cp.entries, nodeID)
		if len(cp.entries) == 0 {
			delete(m.checkpoints, checkpointID)
		}
	}
	return nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(checkpointID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.checkpoints, checkpointID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.checkpoints = nil
	return nil
}

// Len returns the number of stored entries across all checkpoints.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, cp := range m.checkpoints {
		n += len(cp.entries)
	}
	return n
}
