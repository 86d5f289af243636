// Package checkpoint holds operator state between a save and a load.
//
// A Container maps node IDs to encoded state blobs and is bound to one
// save/load round trip. Operators never see the container directly: they
// receive a StateWriter during save and a StateReader during load, both
// scoped to their own node ID.
//
// Containers live in memory. To survive a process restart, Persist copies a
// container into a Store (memory, SQLite or Badger) and Restore reads it
// back. Each blob is wrapped in a versioned Envelope.
package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current envelope format version.
// Increment when making breaking changes to the envelope structure.
const Version = 1

// Envelope is the persisted form of one node's state.
type Envelope struct {
	Version      int       `json:"version"`
	CheckpointID string    `json:"checkpoint_id"`
	NodeID       string    `json:"node_id"`
	Codec        string    `json:"codec"`
	Timestamp    time.Time `json:"timestamp"`

	// State is the blob produced by Codec.
	State []byte `json:"state"`
}

// NewEnvelope wraps an encoded state blob.
func NewEnvelope(checkpointID, nodeID, codec string, state []byte) *Envelope {
	return &Envelope{
		Version:      Version,
		CheckpointID: checkpointID,
		NodeID:       nodeID,
		Codec:        codec,
		Timestamp:    time.Now().UTC(),
		State:        state,
	}
}

// Marshal serializes an envelope to JSON.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope deserializes an envelope from JSON.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
