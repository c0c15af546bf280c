package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avierx/tabdeck/internal/application/port"
	"github.com/avierx/tabdeck/internal/domain/entity"
	urlutil "github.com/avierx/tabdeck/internal/domain/url"
	"github.com/avierx/tabdeck/internal/logging"
)

// LoadPlanAction says what a load-plan row will do to one slot position.
type LoadPlanAction string

const (
	PlanUnchanged LoadPlanAction = "unchanged" // current tab already shows this URL
	PlanReplace   LoadPlanAction = "replace"   // slot keeps its position, page changes
	PlanAdd       LoadPlanAction = "add"       // new slot position, tab opened or reused
	PlanRemove    LoadPlanAction = "remove"    // current slot has no counterpart
)

// LoadPlanRow is one line of the preview shown before a session load.
type LoadPlanRow struct {
	Action     LoadPlanAction `json:"action"`
	Slot       int            `json:"slot"`
	URL        string         `json:"url"`
	Title      string         `json:"title"`
	CurrentURL string         `json:"currentUrl,omitempty"`
	Reused     bool           `json:"reused"`
}

// LoadPlan previews what loading a session would change.
type LoadPlan struct {
	Name         string        `json:"name"`
	Rows         []LoadPlanRow `json:"rows"`
	TotalCount   int           `json:"totalCount"`
	ReuseCount   int           `json:"reuseCount"`
	OpenCount    int           `json:"openCount"`
	ReplaceCount int           `json:"replaceCount"`
}

// LoadOutcome extends an outcome with load statistics.
type LoadOutcome struct {
	entity.Outcome
	Count      int `json:"count"`
	OpenCount  int `json:"openCount"`
	ReuseCount int `json:"reuseCount"`
}

// SessionManager owns the named session snapshots. Loading a session
// replaces the slot list wholesale; the two managers share one flush so a
// load is persisted as a single snapshot write.
type SessionManager struct {
	list  *entity.SessionList
	slots *SlotManager
	tabs  port.BrowserTabs
	flush Flusher
	now   func() time.Time
}

// NewSessionManager creates a session manager bound to the slot manager it
// snapshots from and restores into.
func NewSessionManager(slots *SlotManager, tabs port.BrowserTabs, flush Flusher) *SessionManager {
	return &SessionManager{
		list:  entity.NewSessionList(),
		slots: slots,
		tabs:  tabs,
		flush: flush,
		now:   time.Now,
	}
}

// Restore replaces the in-memory session list with persisted entries.
func (m *SessionManager) Restore(sessions []*entity.TabManagerSession) {
	m.list = &entity.SessionList{Sessions: sessions}
	if m.list.Sessions == nil {
		m.list.Sessions = make([]*entity.TabManagerSession, 0, entity.MaxSessions)
	}
}

// Sessions exposes the live list for snapshot assembly.
func (m *SessionManager) Sessions() []*entity.TabManagerSession {
	return m.list.Sessions
}

// List returns value copies of all sessions, in insertion order.
func (m *SessionManager) List() []entity.TabManagerSession {
	return m.list.Snapshot()
}

// Save snapshots the current slot list under a name. Checks run in a fixed
// order so the user always sees the most actionable refusal first: empty
// name, empty source, duplicate name, identical content, capacity.
func (m *SessionManager) Save(ctx context.Context, name string) (entity.Outcome, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return entity.Refuse(entity.RefusalInvalidName, "Session name cannot be empty"), nil
	}

	if err := m.slots.Reconcile(ctx); err != nil {
		return entity.Outcome{}, err
	}
	if m.slots.list.Len() == 0 {
		return entity.Refuse(entity.RefusalEmptySource, "No slotted tabs to save"), nil
	}

	if m.list.FindByName(name) != nil {
		return entity.Refuse(entity.RefusalDuplicateName,
			fmt.Sprintf("Session %q already exists", name)), nil
	}

	session := entity.SessionFromSlots(name, m.slots.list, m.now())
	if existing := m.list.FindIdentical(session.URLSequence()); existing != nil {
		return entity.Refuse(entity.RefusalIdenticalContent,
			fmt.Sprintf("Identical to session %q", existing.Name)), nil
	}

	if m.list.IsFull() {
		return entity.Refuse(entity.RefusalFull,
			fmt.Sprintf("Max %d sessions. Delete or replace one first.", entity.MaxSessions)), nil
	}

	m.list.Add(session)
	if err := m.flush(ctx); err != nil {
		return entity.Outcome{}, err
	}
	return entity.Accept(), nil
}

// BuildLoadPlan previews a session load against the current state without
// touching anything. Pure relative to the tab query: calling it never
// mutates slots, sessions or the browser.
func (m *SessionManager) BuildLoadPlan(ctx context.Context, name string) (*LoadPlan, entity.Outcome, error) {
	session := m.list.FindByName(strings.TrimSpace(name))
	if session == nil {
		return nil, entity.Refuse(entity.RefusalNotFound, fmt.Sprintf("No session named %q", name)), nil
	}

	openTabs, err := m.tabs.Query(ctx)
	if err != nil {
		return nil, entity.Outcome{}, fmt.Errorf("query open tabs: %w", err)
	}

	current := m.slots.list.Snapshot()
	live := make(map[int64]bool, len(openTabs))
	for _, tab := range openTabs {
		live[tab.ID] = true
	}
	claimed := make(map[int64]bool, len(openTabs))
	plan := &LoadPlan{Name: session.Name}

	for i, target := range session.Entries {
		row := LoadPlanRow{Slot: i + 1, URL: target.URL, Title: target.Title}
		if i < len(current) {
			row.CurrentURL = current[i].URL
		}

		switch {
		// Liveness comes from the tab query, not the Closed flag: the plan
		// never reconciles, so the flag may be stale. The claimed check keeps
		// a session that repeats a URL from counting one tab twice.
		case i < len(current) && live[current[i].TabID] && !claimed[current[i].TabID] &&
			urlutil.Match(current[i].URL, target.URL):
			row.Action = PlanUnchanged
			row.Reused = true
			claimed[current[i].TabID] = true
			plan.ReuseCount++
		default:
			if i < len(current) {
				row.Action = PlanReplace
				plan.ReplaceCount++
			} else {
				row.Action = PlanAdd
			}
			if match := findUnclaimedMatch(openTabs, claimed, target.URL); match != nil {
				row.Reused = true
				claimed[match.ID] = true
				plan.ReuseCount++
			} else {
				plan.OpenCount++
			}
		}
		plan.Rows = append(plan.Rows, row)
	}

	for i := len(session.Entries); i < len(current); i++ {
		plan.Rows = append(plan.Rows, LoadPlanRow{
			Action:     PlanRemove,
			Slot:       i + 1,
			CurrentURL: current[i].URL,
		})
	}

	plan.TotalCount = len(session.Entries)
	return plan, entity.Accept(), nil
}

// Load replaces the slot list with a session's tabs. Open tabs already
// showing a target URL are claimed and reused; the rest are opened fresh.
// A tab that fails to open is skipped, never fatal. The new slot list is
// swapped in atomically at the end and persisted in one flush.
func (m *SessionManager) Load(ctx context.Context, name string) (LoadOutcome, error) {
	log := logging.FromContext(ctx)

	session := m.list.FindByName(strings.TrimSpace(name))
	if session == nil {
		return LoadOutcome{
			Outcome: entity.Refuse(entity.RefusalNotFound, fmt.Sprintf("No session named %q", name)),
		}, nil
	}

	openTabs, err := m.tabs.Query(ctx)
	if err != nil {
		return LoadOutcome{}, fmt.Errorf("query open tabs: %w", err)
	}

	claimed := make(map[int64]bool, len(openTabs))
	entries := make([]*entity.TabSlotEntry, 0, len(session.Entries))
	reused, opened := 0, 0

	for _, target := range session.Entries {
		entry := &entity.TabSlotEntry{
			URL:     target.URL,
			Title:   target.Title,
			ScrollX: target.ScrollX,
			ScrollY: target.ScrollY,
		}

		if match := findUnclaimedMatch(openTabs, claimed, target.URL); match != nil {
			claimed[match.ID] = true
			entry.TabID = match.ID
			entry.URL = match.URL
			entry.Title = match.Title
			entries = append(entries, entry)
			reused++
			continue
		}

		// An already-open privileged tab can still be reused above, but the
		// browser refuses to create one, so skip without the round trip.
		if !urlutil.Openable(target.URL) {
			log.Warn().Str("url", target.URL).Msg("sessions: restricted url, skipping")
			continue
		}

		tab, err := m.tabs.Create(ctx, target.URL)
		if err != nil {
			log.Warn().Err(err).Str("url", target.URL).Msg("sessions: tab open failed, skipping")
			continue
		}
		claimed[tab.ID] = true
		entry.TabID = tab.ID
		entries = append(entries, entry)
		opened++
	}

	m.slots.list.ReplaceAll(entries)
	if err := m.flush(ctx); err != nil {
		return LoadOutcome{}, err
	}

	if len(entries) > 0 {
		if err := m.tabs.Activate(ctx, entries[0].TabID); err != nil {
			log.Debug().Err(err).Int64("tab_id", entries[0].TabID).Msg("sessions: focus after load unavailable")
		}
	}

	return LoadOutcome{
		Outcome:    entity.Accept(),
		Count:      len(entries),
		OpenCount:  opened,
		ReuseCount: reused,
	}, nil
}

// Delete removes a session by name.
func (m *SessionManager) Delete(ctx context.Context, name string) (entity.Outcome, error) {
	if !m.list.Remove(strings.TrimSpace(name)) {
		return entity.Refuse(entity.RefusalNotFound, fmt.Sprintf("No session named %q", name)), nil
	}
	if err := m.flush(ctx); err != nil {
		return entity.Outcome{}, err
	}
	return entity.Accept(), nil
}

// Rename changes a session's name, keeping its position and content.
func (m *SessionManager) Rename(ctx context.Context, name, newName string) (entity.Outcome, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return entity.Refuse(entity.RefusalInvalidName, "Session name cannot be empty"), nil
	}

	session := m.list.FindByName(strings.TrimSpace(name))
	if session == nil {
		return entity.Refuse(entity.RefusalNotFound, fmt.Sprintf("No session named %q", name)), nil
	}
	if other := m.list.FindByName(newName); other != nil && other != session {
		return entity.Refuse(entity.RefusalDuplicateName,
			fmt.Sprintf("Session %q already exists", newName)), nil
	}

	session.Name = newName
	if err := m.flush(ctx); err != nil {
		return entity.Outcome{}, err
	}
	return entity.Accept(), nil
}

// Update overwrites an existing session with the current slot list,
// keeping the name and position. All checks run before any mutation, so a
// refusal leaves the old session intact.
func (m *SessionManager) Update(ctx context.Context, name string) (entity.Outcome, error) {
	session := m.list.FindByName(strings.TrimSpace(name))
	if session == nil {
		return entity.Refuse(entity.RefusalNotFound, fmt.Sprintf("No session named %q", name)), nil
	}

	if err := m.slots.Reconcile(ctx); err != nil {
		return entity.Outcome{}, err
	}
	if m.slots.list.Len() == 0 {
		return entity.Refuse(entity.RefusalEmptySource, "No slotted tabs to save"), nil
	}

	fresh := entity.SessionFromSlots(session.Name, m.slots.list, m.now())
	session.Entries = fresh.Entries
	session.SavedAt = fresh.SavedAt
	if err := m.flush(ctx); err != nil {
		return entity.Outcome{}, err
	}
	return entity.Accept(), nil
}

// Replace deletes one session and saves the current slot list under a new
// name, as one operation. The at-capacity flow: Save refuses with Full, the
// UI asks which session to give up, Replace swaps it. The deletion is not
// committed until every check on the new session has passed.
func (m *SessionManager) Replace(ctx context.Context, oldName, newName string) (entity.Outcome, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return entity.Refuse(entity.RefusalInvalidName, "Session name cannot be empty"), nil
	}

	old := m.list.FindByName(strings.TrimSpace(oldName))
	if old == nil {
		return entity.Refuse(entity.RefusalNotFound, fmt.Sprintf("No session named %q", oldName)), nil
	}

	if err := m.slots.Reconcile(ctx); err != nil {
		return entity.Outcome{}, err
	}
	if m.slots.list.Len() == 0 {
		return entity.Refuse(entity.RefusalEmptySource, "No slotted tabs to save"), nil
	}

	if other := m.list.FindByName(newName); other != nil && other != old {
		return entity.Refuse(entity.RefusalDuplicateName,
			fmt.Sprintf("Session %q already exists", newName)), nil
	}

	session := entity.SessionFromSlots(newName, m.slots.list, m.now())
	if existing := m.list.FindIdentical(session.URLSequence()); existing != nil && existing != old {
		return entity.Refuse(entity.RefusalIdenticalContent,
			fmt.Sprintf("Identical to session %q", existing.Name)), nil
	}

	m.list.Remove(old.Name)
	m.list.Add(session)
	if err := m.flush(ctx); err != nil {
		return entity.Outcome{}, err
	}
	return entity.Accept(), nil
}

// findUnclaimedMatch returns the first open tab, in query order, showing the
// target URL and not yet claimed by an earlier row. Plan and load share this
// so the preview and the actual load agree on which tabs are reused.
func findUnclaimedMatch(openTabs []port.BrowserTab, claimed map[int64]bool, targetURL string) *port.BrowserTab {
	for i := range openTabs {
		tab := &openTabs[i]
		if claimed[tab.ID] {
			continue
		}
		if urlutil.Match(tab.URL, targetURL) {
			return tab
		}
	}
	return nil
}
