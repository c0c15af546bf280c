package entity

import "time"

// MaxFrecencyEntries caps the tracked-tab map; the lowest-scored entry is
// evicted when an insert would exceed it.
const MaxFrecencyEntries = 50

// FrecencyEntry tracks visit frequency and recency for one tab.
// Score is derived state: recomputed lazily on read and on visit.
type FrecencyEntry struct {
	TabID      int64  `json:"tabId"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	VisitCount int    `json:"visitCount"`
	LastVisit  int64  `json:"lastVisit"` // epoch milliseconds
	Score      int    `json:"frecencyScore"`
}

// Recency weight buckets. A visit in the last few minutes dominates; anything
// older than a week barely registers.
const (
	weightFresh   = 100 // < 4 minutes
	weightHour    = 70  // < 1 hour
	weightDay     = 50  // < 1 day
	weightWeek    = 30  // < 1 week
	weightAncient = 10
)

// RecencyWeight maps the age of the last visit to a bucketed weight.
func RecencyWeight(age time.Duration) int {
	switch {
	case age < 4*time.Minute:
		return weightFresh
	case age < time.Hour:
		return weightHour
	case age < 24*time.Hour:
		return weightDay
	case age < 7*24*time.Hour:
		return weightWeek
	default:
		return weightAncient
	}
}

// Recompute refreshes the score from visit count and recency at `now`.
func (f *FrecencyEntry) Recompute(now time.Time) {
	age := now.Sub(time.UnixMilli(f.LastVisit))
	if age < 0 {
		age = 0
	}
	f.Score = f.VisitCount * RecencyWeight(age)
}

// FrecencyTable holds entries in insertion order. A slice, not a map: score
// ties on eviction and on ranking must resolve deterministically, and Go map
// iteration order would not.
type FrecencyTable struct {
	Entries []*FrecencyEntry
}

// NewFrecencyTable creates an empty table.
func NewFrecencyTable() *FrecencyTable {
	return &FrecencyTable{Entries: make([]*FrecencyEntry, 0)}
}

// Len returns the number of tracked tabs.
func (t *FrecencyTable) Len() int {
	return len(t.Entries)
}

// Find returns the entry for a tab ID, or nil.
func (t *FrecencyTable) Find(tabID int64) *FrecencyEntry {
	for _, entry := range t.Entries {
		if entry.TabID == tabID {
			return entry
		}
	}
	return nil
}

// Insert appends a new entry.
func (t *FrecencyTable) Insert(entry *FrecencyEntry) {
	t.Entries = append(t.Entries, entry)
}

// Remove deletes the entry for a tab ID. Returns true if one was deleted.
func (t *FrecencyTable) Remove(tabID int64) bool {
	for i, entry := range t.Entries {
		if entry.TabID == tabID {
			t.Entries = append(t.Entries[:i], t.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Prune drops every entry whose tab is not in the live set.
// Returns true if anything was dropped.
func (t *FrecencyTable) Prune(liveTabs map[int64]bool) bool {
	kept := t.Entries[:0]
	changed := false
	for _, entry := range t.Entries {
		if liveTabs[entry.TabID] {
			kept = append(kept, entry)
		} else {
			changed = true
		}
	}
	t.Entries = kept
	return changed
}

// Snapshot returns value copies of all entries, in insertion order.
func (t *FrecencyTable) Snapshot() []FrecencyEntry {
	out := make([]FrecencyEntry, 0, len(t.Entries))
	for _, entry := range t.Entries {
		out = append(out, *entry)
	}
	return out
}

// EvictLowest recomputes all scores at `now` and removes the single
// lowest-scored entry, first-inserted winning ties. Returns the evicted
// entry, or nil if the table was empty.
func (t *FrecencyTable) EvictLowest(now time.Time) *FrecencyEntry {
	if len(t.Entries) == 0 {
		return nil
	}
	lowest := 0
	for i, entry := range t.Entries {
		entry.Recompute(now)
		if entry.Score < t.Entries[lowest].Score {
			lowest = i
		}
	}
	evicted := t.Entries[lowest]
	t.Entries = append(t.Entries[:lowest], t.Entries[lowest+1:]...)
	return evicted
}
