package entity

// MaxSlots is the capacity of the pinned-tab slot list.
const MaxSlots = 4

// TabSlotEntry is one pinned tab in the slot list.
// Slots are 1-based and contiguous; a closed entry keeps its slot, URL and
// scroll data but its TabID no longer names a live tab.
type TabSlotEntry struct {
	TabID   int64   `json:"tabId"`
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	ScrollX float64 `json:"scrollX"`
	ScrollY float64 `json:"scrollY"`
	Slot    int     `json:"slot"`
	Closed  bool    `json:"closed"`
}

// SlotList is the ordered pinned-tab list. Array order is authoritative;
// Recompact renumbers slots to match it.
type SlotList struct {
	Entries []*TabSlotEntry
}

// NewSlotList creates an empty slot list.
func NewSlotList() *SlotList {
	return &SlotList{Entries: make([]*TabSlotEntry, 0, MaxSlots)}
}

// Len returns the number of entries.
func (sl *SlotList) Len() int {
	return len(sl.Entries)
}

// IsFull reports whether the list is at capacity.
func (sl *SlotList) IsFull() bool {
	return len(sl.Entries) >= MaxSlots
}

// Recompact renumbers slots to 1..N following current array order.
func (sl *SlotList) Recompact() {
	for i, entry := range sl.Entries {
		entry.Slot = i + 1
	}
}

// FindByTabID returns the entry bound to a live tab ID, or nil.
// Closed entries are skipped: their TabID is a stale binding.
func (sl *SlotList) FindByTabID(tabID int64) *TabSlotEntry {
	for _, entry := range sl.Entries {
		if !entry.Closed && entry.TabID == tabID {
			return entry
		}
	}
	return nil
}

// FindBySlot returns the entry at a 1-based slot, or nil.
func (sl *SlotList) FindBySlot(slot int) *TabSlotEntry {
	if slot < 1 || slot > len(sl.Entries) {
		return nil
	}
	return sl.Entries[slot-1]
}

// FindByURL returns the first entry whose URL matches exactly, or nil.
func (sl *SlotList) FindByURL(url string) *TabSlotEntry {
	if url == "" {
		return nil
	}
	for _, entry := range sl.Entries {
		if entry.URL == url {
			return entry
		}
	}
	return nil
}

// Append adds an entry at the end and assigns its slot number.
// The caller is responsible for the capacity check.
func (sl *SlotList) Append(entry *TabSlotEntry) {
	sl.Entries = append(sl.Entries, entry)
	entry.Slot = len(sl.Entries)
}

// Remove deletes the entry bound to tabID (live or stale binding) and
// recompacts. Returns the removed entry and its former 0-based index,
// or nil if absent.
func (sl *SlotList) Remove(tabID int64) (*TabSlotEntry, int) {
	for i, entry := range sl.Entries {
		if entry.TabID == tabID {
			sl.Entries = append(sl.Entries[:i], sl.Entries[i+1:]...)
			sl.Recompact()
			return entry, i
		}
	}
	return nil, -1
}

// RemoveEntry deletes a specific entry by identity and recompacts.
func (sl *SlotList) RemoveEntry(target *TabSlotEntry) bool {
	for i, entry := range sl.Entries {
		if entry == target {
			sl.Entries = append(sl.Entries[:i], sl.Entries[i+1:]...)
			sl.Recompact()
			return true
		}
	}
	return false
}

// InsertAt places an entry at a 0-based index, clamped to the list bounds,
// and recompacts. Used by undo to put a removed entry back where it was.
func (sl *SlotList) InsertAt(index int, entry *TabSlotEntry) {
	if index < 0 {
		index = 0
	}
	if index > len(sl.Entries) {
		index = len(sl.Entries)
	}
	sl.Entries = append(sl.Entries[:index], append([]*TabSlotEntry{entry}, sl.Entries[index:]...)...)
	sl.Recompact()
}

// MarkClosed flags every entry whose tab is not in the live set as closed.
// Returns true if any entry changed.
func (sl *SlotList) MarkClosed(liveTabs map[int64]bool) bool {
	changed := false
	for _, entry := range sl.Entries {
		if !entry.Closed && !liveTabs[entry.TabID] {
			entry.Closed = true
			changed = true
		}
	}
	return changed
}

// ReplaceAll swaps in a new entry slice wholesale and recompacts.
// Session load uses this: the old list is discarded, never merged.
func (sl *SlotList) ReplaceAll(entries []*TabSlotEntry) {
	sl.Entries = entries
	if sl.Entries == nil {
		sl.Entries = make([]*TabSlotEntry, 0, MaxSlots)
	}
	sl.Recompact()
}

// Snapshot returns value copies of all entries, in order. UI layers only
// ever see copies; the live entries stay owned by the slot manager.
func (sl *SlotList) Snapshot() []TabSlotEntry {
	out := make([]TabSlotEntry, 0, len(sl.Entries))
	for _, entry := range sl.Entries {
		out = append(out, *entry)
	}
	return out
}

// Contiguous reports whether slot numbers are exactly 1..N in array order.
func (sl *SlotList) Contiguous() bool {
	for i, entry := range sl.Entries {
		if entry.Slot != i+1 {
			return false
		}
	}
	return true
}
