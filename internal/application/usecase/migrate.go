package usecase

import (
	"math"
	"reflect"
	"strings"

	"github.com/avierx/tabdeck/internal/domain/entity"
)

// MigrationResult reports what Migrate did. The caller persists Snapshot
// only when Changed is true, and always writes the version tag once.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Changed     bool
	Snapshot    entity.RawSnapshot
}

// MigrationEngine versions and normalizes the persisted snapshot before the
// rest of the engine touches it. It is pure: no storage access, no clock.
type MigrationEngine struct{}

// NewMigrationEngine creates a migration engine.
func NewMigrationEngine() *MigrationEngine {
	return &MigrationEngine{}
}

// migrationStep upgrades the raw snapshot one version. Steps are pure and
// idempotent normalizers: malformed elements are dropped, numbers clamped to
// non-negative, oversized lists truncated to capacity. A step reports
// whether it changed anything.
type migrationStep func(raw entity.RawSnapshot) bool

// steps[i] upgrades version i to i+1.
var migrationSteps = []migrationStep{
	normalizeTabState, // 0 -> 1: slot list and frecency map
	normalizeSessions, // 1 -> 2: session list
}

// Migrate walks the upgrade steps from the stored version to the current
// one. A snapshot tagged with a newer version than this engine knows is
// returned untouched: data written by a newer engine is never downgraded.
func (e *MigrationEngine) Migrate(input entity.RawSnapshot) MigrationResult {
	raw := input.Clone()
	from := raw.Version()

	if from > entity.SnapshotSchemaVersion {
		return MigrationResult{
			FromVersion: from,
			ToVersion:   from,
			Changed:     false,
			Snapshot:    raw,
		}
	}

	changed := false
	for v := from; v < entity.SnapshotSchemaVersion; v++ {
		if migrationSteps[v](raw) {
			changed = true
		}
	}
	raw[entity.KeyVersion] = float64(entity.SnapshotSchemaVersion)

	return MigrationResult{
		FromVersion: from,
		ToVersion:   entity.SnapshotSchemaVersion,
		Changed:     changed,
		Snapshot:    raw,
	}
}

// normalizeTabState normalizes the slot list and the frecency map.
func normalizeTabState(raw entity.RawSnapshot) bool {
	changed := false

	if list, present := rawList(raw, entity.KeySlots); present {
		normalized := normalizeSlotList(list)
		if !reflect.DeepEqual(raw[entity.KeySlots], any(normalized)) {
			raw[entity.KeySlots] = normalized
			changed = true
		}
	}

	if list, present := rawList(raw, entity.KeyFrecency); present {
		normalized := normalizeFrecencyList(list)
		if !reflect.DeepEqual(raw[entity.KeyFrecency], any(normalized)) {
			raw[entity.KeyFrecency] = normalized
			changed = true
		}
	}

	return changed
}

// normalizeSessions normalizes the session list: malformed sessions dropped,
// names deduplicated case-insensitively keeping first occurrence, list
// truncated to capacity.
func normalizeSessions(raw entity.RawSnapshot) bool {
	list, present := rawList(raw, entity.KeySessions)
	if !present {
		return false
	}

	normalized := make([]any, 0, len(list))
	seenNames := make(map[string]bool)
	for _, element := range list {
		session, ok := element.(map[string]any)
		if !ok {
			continue
		}
		name, ok := stringValue(session["name"])
		if !ok || name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if seenNames[lower] {
			continue
		}
		entries, ok := session["entries"].([]any)
		if !ok {
			continue
		}
		savedAt, ok := clampedNumber(session["savedAt"])
		if !ok {
			savedAt = 0
		}

		cleanEntries := make([]any, 0, len(entries))
		for _, rawEntry := range entries {
			entry, ok := rawEntry.(map[string]any)
			if !ok {
				continue
			}
			url, ok := stringValue(entry["url"])
			if !ok || url == "" {
				continue
			}
			title, _ := stringValue(entry["title"])
			scrollX, ok := clampedNumber(entry["scrollX"])
			if !ok {
				continue
			}
			scrollY, ok := clampedNumber(entry["scrollY"])
			if !ok {
				continue
			}
			cleanEntries = append(cleanEntries, map[string]any{
				"url":     url,
				"title":   title,
				"scrollX": scrollX,
				"scrollY": scrollY,
			})
		}

		seenNames[lower] = true
		normalized = append(normalized, map[string]any{
			"name":    name,
			"entries": cleanEntries,
			"savedAt": savedAt,
		})
		if len(normalized) >= entity.MaxSessions {
			break
		}
	}

	if reflect.DeepEqual(raw[entity.KeySessions], any(normalized)) {
		return false
	}
	raw[entity.KeySessions] = normalized
	return true
}

// normalizeSlotList drops malformed entries, clamps scroll offsets,
// truncates to capacity and renumbers slots contiguously.
func normalizeSlotList(list []any) []any {
	normalized := make([]any, 0, len(list))
	for _, element := range list {
		slot, ok := element.(map[string]any)
		if !ok {
			continue
		}
		tabID, ok := clampedNumber(slot["tabId"])
		if !ok {
			continue
		}
		url, ok := stringValue(slot["url"])
		if !ok || url == "" {
			continue
		}
		title, _ := stringValue(slot["title"])
		scrollX, ok := clampedNumber(slot["scrollX"])
		if !ok {
			continue
		}
		scrollY, ok := clampedNumber(slot["scrollY"])
		if !ok {
			continue
		}
		closed, _ := slot["closed"].(bool)

		normalized = append(normalized, map[string]any{
			"tabId":   tabID,
			"url":     url,
			"title":   title,
			"scrollX": scrollX,
			"scrollY": scrollY,
			"slot":    float64(len(normalized) + 1),
			"closed":  closed,
		})
		if len(normalized) >= entity.MaxSlots {
			break
		}
	}
	return normalized
}

// normalizeFrecencyList drops malformed entries, clamps counts and
// timestamps and truncates to capacity keeping the first entries.
func normalizeFrecencyList(list []any) []any {
	normalized := make([]any, 0, len(list))
	for _, element := range list {
		entry, ok := element.(map[string]any)
		if !ok {
			continue
		}
		tabID, ok := clampedNumber(entry["tabId"])
		if !ok {
			continue
		}
		url, ok := stringValue(entry["url"])
		if !ok || url == "" {
			continue
		}
		title, _ := stringValue(entry["title"])
		visitCount, ok := clampedNumber(entry["visitCount"])
		if !ok {
			continue
		}
		lastVisit, ok := clampedNumber(entry["lastVisit"])
		if !ok {
			continue
		}
		score, ok := clampedNumber(entry["frecencyScore"])
		if !ok {
			score = 0
		}

		normalized = append(normalized, map[string]any{
			"tabId":         tabID,
			"url":           url,
			"title":         title,
			"visitCount":    visitCount,
			"lastVisit":     lastVisit,
			"frecencyScore": score,
		})
		if len(normalized) >= entity.MaxFrecencyEntries {
			break
		}
	}
	return normalized
}

// rawList reads a top-level key as a JSON array. A present but non-array
// value is coerced to an empty array (the malformed value is dropped); an
// absent key stays absent.
func rawList(raw entity.RawSnapshot, key string) ([]any, bool) {
	value, ok := raw[key]
	if !ok || value == nil {
		return nil, false
	}
	list, ok := value.([]any)
	if !ok {
		return []any{}, true
	}
	return list, true
}

// clampedNumber reads a JSON number, clamped to non-negative.
// Non-finite values and non-numbers are rejected.
func clampedNumber(value any) (float64, bool) {
	number, ok := value.(float64)
	if !ok {
		return 0, false
	}
	if math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, false
	}
	if number < 0 {
		return 0, true
	}
	return number, true
}

// stringValue reads a JSON string. Missing or non-string values report
// false with an empty result.
func stringValue(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}
