package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/avierx/tabdeck/internal/application/port"
	"github.com/avierx/tabdeck/internal/domain/entity"
	urlutil "github.com/avierx/tabdeck/internal/domain/url"
	"github.com/avierx/tabdeck/internal/logging"
)

const (
	// loadWaitTimeout bounds the wait for a reopened tab to finish loading
	// before its scroll position is restored. The listener must not leak if
	// the page never completes.
	loadWaitTimeout = 10 * time.Second

	// undoWindow is how long a removed entry can be brought back.
	undoWindow = 10 * time.Second

	// jumpAttempts bounds the stale-state retry in Jump: try, mark the
	// entry closed, retry once against the reopen path.
	jumpAttempts = 2
)

// removedSlot remembers the most recent explicit removal for undo.
type removedSlot struct {
	entry   *entity.TabSlotEntry
	index   int
	expires time.Time
}

// SlotManager owns the slot-indexed pinned-tab list. Callers are serialized
// by the coordinator; no structural mutation spans a browser call that the
// outcome depends on having completed.
type SlotManager struct {
	list   *entity.SlotList
	tabs   port.BrowserTabs
	pages  port.PageMessenger
	notify port.Notifier
	flush  Flusher
	now    func() time.Time

	undo     *removedSlot
	loadWait time.Duration
	undoWait time.Duration
}

// NewSlotManager creates a slot manager.
func NewSlotManager(tabs port.BrowserTabs, pages port.PageMessenger, notify port.Notifier, flush Flusher) *SlotManager {
	if notify == nil {
		notify = port.NopNotifier
	}
	return &SlotManager{
		list:     entity.NewSlotList(),
		tabs:     tabs,
		pages:    pages,
		notify:   notify,
		flush:    flush,
		now:      time.Now,
		loadWait: loadWaitTimeout,
		undoWait: undoWindow,
	}
}

// Restore replaces the in-memory list with persisted entries.
func (m *SlotManager) Restore(entries []*entity.TabSlotEntry) {
	m.list = &entity.SlotList{Entries: entries}
	if m.list.Entries == nil {
		m.list.Entries = make([]*entity.TabSlotEntry, 0, entity.MaxSlots)
	}
	m.list.Recompact()
}

// Entries exposes the live list for snapshot assembly.
func (m *SlotManager) Entries() []*entity.TabSlotEntry {
	return m.list.Entries
}

// List reconciles against the live tab set and returns entry copies.
// Every externally visible read reconciles first, so the UI never renders
// a stale closed/open state.
func (m *SlotManager) List(ctx context.Context) ([]entity.TabSlotEntry, error) {
	if err := m.Reconcile(ctx); err != nil {
		return nil, err
	}
	return m.list.Snapshot(), nil
}

// Reconcile marks every entry whose tab is gone as closed, recompacts slot
// numbers to 1..N in current array order, and persists. Safe to call
// redundantly; this is the single correctness anchor the other operations
// lean on before trusting cached state.
func (m *SlotManager) Reconcile(ctx context.Context) error {
	openTabs, err := m.tabs.Query(ctx)
	if err != nil {
		return fmt.Errorf("query open tabs: %w", err)
	}

	live := make(map[int64]bool, len(openTabs))
	for _, tab := range openTabs {
		live[tab.ID] = true
	}

	m.list.MarkClosed(live)
	m.list.Recompact()
	return m.flush(ctx)
}

// Add pins a tab into the next free slot. Reconciles first so capacity and
// duplicate checks run against corrected state. A closed entry for the same
// page is revived in place instead of duplicated.
func (m *SlotManager) Add(ctx context.Context, tab port.BrowserTab) (entity.Outcome, error) {
	log := logging.FromContext(ctx)

	if err := m.Reconcile(ctx); err != nil {
		return entity.Outcome{}, err
	}

	if m.list.IsFull() {
		m.notify(ctx, tab.ID, port.FeedbackFull, 0)
		return entity.Refuse(entity.RefusalFull, fmt.Sprintf("Full (max %d)", entity.MaxSlots)), nil
	}

	if existing := m.findExisting(tab); existing != nil {
		if existing.Closed && urlutil.Match(existing.URL, tab.URL) {
			existing.TabID = tab.ID
			existing.Closed = false
			existing.URL = tab.URL
			existing.Title = tab.Title
			if err := m.flush(ctx); err != nil {
				return entity.Outcome{}, err
			}
			log.Debug().Int64("tab_id", tab.ID).Int("slot", existing.Slot).Msg("slots: revived closed entry")
			m.notify(ctx, tab.ID, port.FeedbackRevived, existing.Slot)
			return entity.AcceptSlot(existing.Slot), nil
		}
		return entity.RefuseSlot(entity.RefusalAlreadyAdded,
			fmt.Sprintf("Already in slot %d", existing.Slot), existing.Slot), nil
	}

	entry := &entity.TabSlotEntry{
		TabID: tab.ID,
		URL:   tab.URL,
		Title: tab.Title,
	}
	if offset, err := m.pages.GetScroll(ctx, tab.ID); err == nil {
		entry.ScrollX = offset.X
		entry.ScrollY = offset.Y
	} else {
		log.Debug().Err(err).Int64("tab_id", tab.ID).Msg("slots: scroll capture unavailable, defaulting to origin")
	}

	m.list.Append(entry)
	if err := m.flush(ctx); err != nil {
		return entity.Outcome{}, err
	}
	m.notify(ctx, tab.ID, port.FeedbackAdded, entry.Slot)
	return entity.AcceptSlot(entry.Slot), nil
}

// findExisting looks an entry up by live tab ID or by page identity, which
// covers the closed-entry-for-the-same-page case.
func (m *SlotManager) findExisting(tab port.BrowserTab) *entity.TabSlotEntry {
	for _, entry := range m.list.Entries {
		if !entry.Closed && entry.TabID == tab.ID {
			return entry
		}
		if urlutil.Match(entry.URL, tab.URL) {
			return entry
		}
	}
	return nil
}

// Remove unpins a tab. Idempotent: removing an absent tab is a successful
// no-op. A real removal arms the undo window.
func (m *SlotManager) Remove(ctx context.Context, tabID int64) (entity.Outcome, error) {
	removed, index := m.list.Remove(tabID)
	if removed == nil {
		return entity.Accept(), nil
	}

	m.undo = &removedSlot{entry: removed, index: index, expires: m.now().Add(m.undoWait)}
	if err := m.flush(ctx); err != nil {
		return entity.Outcome{}, err
	}
	return entity.Accept(), nil
}

// UndoRemove restores the most recently removed entry to its former
// position, if the undo window has not expired and a slot is free.
func (m *SlotManager) UndoRemove(ctx context.Context) (entity.Outcome, error) {
	pending := m.undo
	if pending == nil || m.now().After(pending.expires) {
		m.undo = nil
		return entity.Refuse(entity.RefusalNotFound, "Nothing to undo"), nil
	}
	if m.list.IsFull() {
		return entity.Refuse(entity.RefusalFull, fmt.Sprintf("Full (max %d)", entity.MaxSlots)), nil
	}

	m.undo = nil
	m.list.InsertAt(pending.index, pending.entry)
	if err := m.Reconcile(ctx); err != nil {
		return entity.Outcome{}, err
	}
	return entity.AcceptSlot(pending.entry.Slot), nil
}

// Jump activates the tab in a slot, reopening it from the stored URL when
// the tab is gone. The stale-activation race (tab closed between reconcile
// and jump) is handled by a bounded retry: mark the entry closed and run
// the reopen path once.
func (m *SlotManager) Jump(ctx context.Context, slot int) (entity.Outcome, error) {
	log := logging.FromContext(ctx)

	entry := m.list.FindBySlot(slot)
	if entry == nil {
		return entity.Refuse(entity.RefusalNotFound, fmt.Sprintf("No tab in slot %d", slot)), nil
	}

	for attempt := 0; attempt < jumpAttempts; attempt++ {
		if !entry.Closed {
			if err := m.tabs.Activate(ctx, entry.TabID); err != nil {
				// Tab vanished under us; correct the entry and retry
				// against the reopen path.
				log.Debug().Err(err).Int64("tab_id", entry.TabID).Msg("slots: activation raced a close, retrying as reopen")
				entry.Closed = true
				continue
			}
			m.restoreScrollBestEffort(ctx, entry.TabID, port.ScrollOffset{X: entry.ScrollX, Y: entry.ScrollY})
			return entity.AcceptSlot(entry.Slot), nil
		}

		// Privileged schemes are refused without a round trip; the browser
		// would reject the create anyway. Either way a dangling entry is
		// worse than a dropped one.
		if !urlutil.Openable(entry.URL) {
			log.Warn().Str("url", entry.URL).Msg("slots: restricted url, dropping entry")
			return m.dropUnopenable(ctx, entry)
		}

		tab, err := m.tabs.Create(ctx, entry.URL)
		if err != nil {
			log.Warn().Err(err).Str("url", entry.URL).Msg("slots: reopen refused, dropping entry")
			return m.dropUnopenable(ctx, entry)
		}

		entry.TabID = tab.ID
		entry.Closed = false
		if err := m.flush(ctx); err != nil {
			return entity.Outcome{}, err
		}
		m.scheduleScrollRestore(ctx, tab.ID, port.ScrollOffset{X: entry.ScrollX, Y: entry.ScrollY})
		return entity.AcceptSlot(entry.Slot), nil
	}

	return entity.Refuse(entity.RefusalNotFound, fmt.Sprintf("No tab in slot %d", slot)), nil
}

func (m *SlotManager) dropUnopenable(ctx context.Context, entry *entity.TabSlotEntry) (entity.Outcome, error) {
	m.list.RemoveEntry(entry)
	if err := m.flush(ctx); err != nil {
		return entity.Outcome{}, err
	}
	return entity.Refuse(entity.RefusalRestricted, fmt.Sprintf("Cannot reopen %s", entry.URL)), nil
}

// Cycle jumps to the next or previous slot relative to the active tab,
// wrapping at the ends. When the active tab is not slotted, next goes to
// the first slot and prev to the last.
func (m *SlotManager) Cycle(ctx context.Context, direction string) (entity.Outcome, error) {
	if m.list.Len() == 0 {
		return entity.Refuse(entity.RefusalNotFound, "No slotted tabs"), nil
	}

	openTabs, err := m.tabs.Query(ctx)
	if err != nil {
		return entity.Outcome{}, fmt.Errorf("query open tabs: %w", err)
	}

	var activeID int64 = -1
	for _, tab := range openTabs {
		if tab.Active {
			activeID = tab.ID
			break
		}
	}

	current := -1
	if activeID >= 0 {
		for i, entry := range m.list.Entries {
			if !entry.Closed && entry.TabID == activeID {
				current = i
				break
			}
		}
	}

	length := m.list.Len()
	var target int
	switch {
	case current < 0 && direction == "prev":
		target = length
	case current < 0:
		target = 1
	case direction == "prev":
		target = (current-1+length)%length + 1
	default:
		target = (current+1)%length + 1
	}

	return m.Jump(ctx, target)
}

// Reorder rearranges entries to follow the supplied tab-ID order and
// recompacts. IDs that do not name an entry are ignored; entries left
// unmentioned keep their relative order after the mentioned ones.
func (m *SlotManager) Reorder(ctx context.Context, tabIDs []int64) (entity.Outcome, error) {
	reordered := make([]*entity.TabSlotEntry, 0, m.list.Len())
	taken := make(map[*entity.TabSlotEntry]bool, m.list.Len())

	for _, id := range tabIDs {
		for _, entry := range m.list.Entries {
			if entry.TabID == id && !taken[entry] {
				reordered = append(reordered, entry)
				taken[entry] = true
				break
			}
		}
	}
	for _, entry := range m.list.Entries {
		if !taken[entry] {
			reordered = append(reordered, entry)
		}
	}

	m.list.ReplaceAll(reordered)
	if err := m.flush(ctx); err != nil {
		return entity.Outcome{}, err
	}
	return entity.Accept(), nil
}

// MarkTabClosed flags the entry bound to a closing tab, recompacts and
// persists. Driven by the browser's tab-removal event; deliberately the
// same transform Reconcile applies, so the two paths cannot diverge.
func (m *SlotManager) MarkTabClosed(ctx context.Context, tabID int64) error {
	entry := m.list.FindByTabID(tabID)
	if entry == nil {
		return nil
	}
	entry.Closed = true
	m.list.Recompact()
	return m.flush(ctx)
}

// SaveScrollOfActiveTab captures the active tab's scroll offset into its
// slot entry, if it has one. Pages without the content script are skipped
// silently: this is a best-effort enrichment, never an error.
func (m *SlotManager) SaveScrollOfActiveTab(ctx context.Context) error {
	openTabs, err := m.tabs.Query(ctx)
	if err != nil {
		return fmt.Errorf("query open tabs: %w", err)
	}

	for _, tab := range openTabs {
		if !tab.Active {
			continue
		}
		entry := m.list.FindByTabID(tab.ID)
		if entry == nil {
			return nil
		}
		offset, err := m.pages.GetScroll(ctx, tab.ID)
		if err != nil {
			logging.FromContext(ctx).Debug().Err(err).Int64("tab_id", tab.ID).Msg("slots: scroll capture unavailable")
			return nil
		}
		entry.ScrollX = offset.X
		entry.ScrollY = offset.Y
		return m.flush(ctx)
	}
	return nil
}

// restoreScrollBestEffort pushes a stored scroll offset to an open tab.
// The content script may not be loaded; failure degrades silently.
func (m *SlotManager) restoreScrollBestEffort(ctx context.Context, tabID int64, offset port.ScrollOffset) {
	if err := m.pages.SetScroll(ctx, tabID, offset); err != nil {
		logging.FromContext(ctx).Debug().Err(err).Int64("tab_id", tabID).Msg("slots: scroll restore unavailable")
	}
}

// scheduleScrollRestore waits for a freshly reopened tab to finish loading,
// then restores its scroll offset. Bounded by loadWait so the listener can
// never leak; every failure along the way is swallowed.
func (m *SlotManager) scheduleScrollRestore(ctx context.Context, tabID int64, offset port.ScrollOffset) {
	log := *logging.FromContext(ctx)
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadWait)

	go func() {
		defer cancel()
		if err := m.tabs.WaitForLoad(waitCtx, tabID); err != nil {
			log.Debug().Err(err).Int64("tab_id", tabID).Msg("slots: reopened tab never reported load complete")
			return
		}
		if err := m.pages.SetScroll(waitCtx, tabID, offset); err != nil {
			log.Debug().Err(err).Int64("tab_id", tabID).Msg("slots: scroll restore after reopen unavailable")
		}
	}()
}
