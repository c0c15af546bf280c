package entity

import "encoding/json"

// SnapshotSchemaVersion is the current schema version for persisted state.
// Increment when making breaking changes to the serialization format; the
// migration engine must gain a matching upgrade step.
const SnapshotSchemaVersion = 2

// Persisted storage keys. Each key holds one wholesale JSON value.
const (
	KeySlots    = "tabManagerList"
	KeySessions = "tabManagerSessions"
	KeyFrecency = "frecencyData"
	KeyVersion  = "storageSchemaVersion"
)

// StorageSnapshot is the full persisted state of the engine.
type StorageSnapshot struct {
	SchemaVersion int                  `json:"storageSchemaVersion"`
	Slots         []*TabSlotEntry      `json:"tabManagerList"`
	Sessions      []*TabManagerSession `json:"tabManagerSessions"`
	Frecency      []*FrecencyEntry     `json:"frecencyData"`
}

// EmptySnapshot returns a snapshot at the current schema version with no data.
func EmptySnapshot() *StorageSnapshot {
	return &StorageSnapshot{
		SchemaVersion: SnapshotSchemaVersion,
		Slots:         []*TabSlotEntry{},
		Sessions:      []*TabManagerSession{},
		Frecency:      []*FrecencyEntry{},
	}
}

// RawSnapshot is the untyped persisted state as read from storage, keyed by
// storage key. The migration engine normalizes it before it is decoded.
type RawSnapshot map[string]any

// Version reads the schema version tag, defaulting to 0 when the tag is
// absent, malformed, or non-positive.
func (r RawSnapshot) Version() int {
	value, ok := r[KeyVersion]
	if !ok {
		return 0
	}
	switch v := value.(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			return int(n)
		}
	}
	return 0
}

// Clone deep-copies the raw snapshot through a JSON round trip.
// Migration steps mutate in place; callers that need the original keep a clone.
func (r RawSnapshot) Clone() RawSnapshot {
	data, err := json.Marshal(r)
	if err != nil {
		return RawSnapshot{}
	}
	var out RawSnapshot
	if err := json.Unmarshal(data, &out); err != nil {
		return RawSnapshot{}
	}
	if out == nil {
		out = RawSnapshot{}
	}
	return out
}

// Raw converts a typed snapshot back to its untyped storage form.
func (s *StorageSnapshot) Raw() RawSnapshot {
	raw := RawSnapshot{}
	data, err := json.Marshal(s)
	if err != nil {
		return raw
	}
	_ = json.Unmarshal(data, &raw)
	return raw
}

// SnapshotFromRaw decodes a normalized raw snapshot into typed state.
// Elements that still fail to decode are dropped, not fatal: the migration
// engine runs first and is responsible for coercing legacy shapes.
func SnapshotFromRaw(raw RawSnapshot) *StorageSnapshot {
	snap := EmptySnapshot()
	snap.SchemaVersion = raw.Version()

	decodeKey(raw, KeySlots, &snap.Slots)
	decodeKey(raw, KeySessions, &snap.Sessions)
	decodeKey(raw, KeyFrecency, &snap.Frecency)

	if snap.Slots == nil {
		snap.Slots = []*TabSlotEntry{}
	}
	if snap.Sessions == nil {
		snap.Sessions = []*TabManagerSession{}
	}
	if snap.Frecency == nil {
		snap.Frecency = []*FrecencyEntry{}
	}
	return snap
}

func decodeKey(raw RawSnapshot, key string, target any) {
	value, ok := raw[key]
	if !ok || value == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, target)
}
