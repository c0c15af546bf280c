package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/avierx/tabdeck/internal/application/port"
	"github.com/avierx/tabdeck/internal/domain/entity"
	"github.com/avierx/tabdeck/internal/domain/repository"
	"github.com/avierx/tabdeck/internal/logging"
)

// Coordinator is the single entry point for every engine operation. It owns
// the lock that serializes the managers, loads state lazily on first use,
// and assembles the snapshot the managers persist through their shared
// Flusher. All engine state hangs off this struct; nothing is global.
type Coordinator struct {
	repo     repository.SnapshotRepository
	migrator *MigrationEngine
	tabs     port.BrowserTabs

	mu       sync.Mutex
	loadGate singleflight.Group
	loaded   atomic.Bool

	slots    *SlotManager
	frecency *FrecencyManager
	sessions *SessionManager
}

// NewCoordinator wires the managers around a repository and the browser
// ports. The notifier may be nil.
func NewCoordinator(repo repository.SnapshotRepository, tabs port.BrowserTabs, pages port.PageMessenger, notify port.Notifier) *Coordinator {
	c := &Coordinator{
		repo:     repo,
		migrator: NewMigrationEngine(),
		tabs:     tabs,
	}
	c.slots = NewSlotManager(tabs, pages, notify, c.persist)
	c.frecency = NewFrecencyManager(tabs, c.persist)
	c.sessions = NewSessionManager(c.slots, tabs, c.persist)
	return c
}

// Tune overrides the engine's timing defaults. Non-positive values keep the
// current setting. Safe to call while the engine is serving.
func (c *Coordinator) Tune(reopenLoadTimeout, undoWindow time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reopenLoadTimeout > 0 {
		c.slots.loadWait = reopenLoadTimeout
	}
	if undoWindow > 0 {
		c.slots.undoWait = undoWindow
	}
}

// persist writes the full current state. Managers call this after every
// mutation; the write is always the whole snapshot.
func (c *Coordinator) persist(ctx context.Context) error {
	snap := &entity.StorageSnapshot{
		SchemaVersion: entity.SnapshotSchemaVersion,
		Slots:         c.slots.Entries(),
		Sessions:      c.sessions.Sessions(),
		Frecency:      c.frecency.Entries(),
	}
	return c.repo.Save(ctx, snap)
}

// ensureLoaded runs the load-migrate-restore sequence exactly once per
// successful attempt. Concurrent first calls collapse into one load; a
// failed load leaves the gate open so the next call retries.
func (c *Coordinator) ensureLoaded(ctx context.Context) error {
	if c.loaded.Load() {
		return nil
	}

	_, err, _ := c.loadGate.Do("load", func() (any, error) {
		if c.loaded.Load() {
			return nil, nil
		}
		return nil, c.loadAndRestore(ctx)
	})
	return err
}

func (c *Coordinator) loadAndRestore(ctx context.Context) error {
	log := logging.FromContext(ctx)

	raw, err := c.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	result := c.migrator.Migrate(raw)
	snap := entity.SnapshotFromRaw(result.Snapshot)

	c.mu.Lock()
	c.slots.Restore(snap.Slots)
	c.sessions.Restore(snap.Sessions)
	c.frecency.Restore(snap.Frecency)
	c.mu.Unlock()

	if result.Changed {
		if err := c.repo.Save(ctx, snap); err != nil {
			return fmt.Errorf("save migrated snapshot: %w", err)
		}
		log.Info().
			Int("from_version", result.FromVersion).
			Int("to_version", result.ToVersion).
			Msg("coordinator: migrated persisted state")
	}
	if err := c.repo.SaveVersion(ctx, result.ToVersion); err != nil {
		return fmt.Errorf("save schema version: %w", err)
	}

	c.loaded.Store(true)
	log.Debug().
		Int("slots", len(snap.Slots)).
		Int("sessions", len(snap.Sessions)).
		Int("frecency", len(snap.Frecency)).
		Msg("coordinator: state restored")
	return nil
}

// withLock loads state if needed and runs fn under the coordinator lock.
func (c *Coordinator) withLock(ctx context.Context, fn func() error) error {
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn()
}

// --- slot operations ---

// AddTab pins a tab into the next free slot.
func (c *Coordinator) AddTab(ctx context.Context, tab port.BrowserTab) (entity.Outcome, error) {
	var out entity.Outcome
	err := c.withLock(ctx, func() (err error) {
		out, err = c.slots.Add(ctx, tab)
		return err
	})
	return out, err
}

// RemoveTab unpins a tab.
func (c *Coordinator) RemoveTab(ctx context.Context, tabID int64) (entity.Outcome, error) {
	var out entity.Outcome
	err := c.withLock(ctx, func() (err error) {
		out, err = c.slots.Remove(ctx, tabID)
		return err
	})
	return out, err
}

// UndoRemoveTab restores the most recently unpinned tab.
func (c *Coordinator) UndoRemoveTab(ctx context.Context) (entity.Outcome, error) {
	var out entity.Outcome
	err := c.withLock(ctx, func() (err error) {
		out, err = c.slots.UndoRemove(ctx)
		return err
	})
	return out, err
}

// JumpToSlot activates the tab in a slot, reopening it when closed.
func (c *Coordinator) JumpToSlot(ctx context.Context, slot int) (entity.Outcome, error) {
	var out entity.Outcome
	err := c.withLock(ctx, func() (err error) {
		out, err = c.slots.Jump(ctx, slot)
		return err
	})
	return out, err
}

// CycleSlot jumps to the next or previous slot relative to the active tab.
func (c *Coordinator) CycleSlot(ctx context.Context, direction string) (entity.Outcome, error) {
	var out entity.Outcome
	err := c.withLock(ctx, func() (err error) {
		out, err = c.slots.Cycle(ctx, direction)
		return err
	})
	return out, err
}

// ReorderSlots rearranges the slot list to follow the given tab-ID order.
func (c *Coordinator) ReorderSlots(ctx context.Context, tabIDs []int64) (entity.Outcome, error) {
	var out entity.Outcome
	err := c.withLock(ctx, func() (err error) {
		out, err = c.slots.Reorder(ctx, tabIDs)
		return err
	})
	return out, err
}

// ListSlots reconciles and returns the current slot entries.
func (c *Coordinator) ListSlots(ctx context.Context) ([]entity.TabSlotEntry, error) {
	var out []entity.TabSlotEntry
	err := c.withLock(ctx, func() (err error) {
		out, err = c.slots.List(ctx)
		return err
	})
	return out, err
}

// SaveScroll captures the active tab's scroll offset into its slot entry.
func (c *Coordinator) SaveScroll(ctx context.Context) error {
	return c.withLock(ctx, func() error {
		return c.slots.SaveScrollOfActiveTab(ctx)
	})
}

// --- frecency operations ---

// ListFrecency returns a ranked view of the currently open tabs.
func (c *Coordinator) ListFrecency(ctx context.Context) ([]entity.FrecencyEntry, error) {
	var out []entity.FrecencyEntry
	err := c.withLock(ctx, func() (err error) {
		out, err = c.frecency.List(ctx)
		return err
	})
	return out, err
}

// --- session operations ---

// SaveSession snapshots the current slot list under a name.
func (c *Coordinator) SaveSession(ctx context.Context, name string) (entity.Outcome, error) {
	var out entity.Outcome
	err := c.withLock(ctx, func() (err error) {
		out, err = c.sessions.Save(ctx, name)
		return err
	})
	return out, err
}

// ListSessions returns all saved sessions.
func (c *Coordinator) ListSessions(ctx context.Context) ([]entity.TabManagerSession, error) {
	var out []entity.TabManagerSession
	err := c.withLock(ctx, func() error {
		out = c.sessions.List()
		return nil
	})
	return out, err
}

// PlanSessionLoad previews what loading a session would change.
func (c *Coordinator) PlanSessionLoad(ctx context.Context, name string) (*LoadPlan, entity.Outcome, error) {
	var (
		plan *LoadPlan
		out  entity.Outcome
	)
	err := c.withLock(ctx, func() (err error) {
		plan, out, err = c.sessions.BuildLoadPlan(ctx, name)
		return err
	})
	return plan, out, err
}

// LoadSession replaces the slot list with a session's tabs.
func (c *Coordinator) LoadSession(ctx context.Context, name string) (LoadOutcome, error) {
	var out LoadOutcome
	err := c.withLock(ctx, func() (err error) {
		out, err = c.sessions.Load(ctx, name)
		return err
	})
	return out, err
}

// DeleteSession removes a session by name.
func (c *Coordinator) DeleteSession(ctx context.Context, name string) (entity.Outcome, error) {
	var out entity.Outcome
	err := c.withLock(ctx, func() (err error) {
		out, err = c.sessions.Delete(ctx, name)
		return err
	})
	return out, err
}

// RenameSession changes a session's name.
func (c *Coordinator) RenameSession(ctx context.Context, name, newName string) (entity.Outcome, error) {
	var out entity.Outcome
	err := c.withLock(ctx, func() (err error) {
		out, err = c.sessions.Rename(ctx, name, newName)
		return err
	})
	return out, err
}

// UpdateSession overwrites an existing session with the current slot list.
func (c *Coordinator) UpdateSession(ctx context.Context, name string) (entity.Outcome, error) {
	var out entity.Outcome
	err := c.withLock(ctx, func() (err error) {
		out, err = c.sessions.Update(ctx, name)
		return err
	})
	return out, err
}

// ReplaceSession deletes a session and saves the current slot list under a
// new name in its place.
func (c *Coordinator) ReplaceSession(ctx context.Context, oldName, newName string) (entity.Outcome, error) {
	var out entity.Outcome
	err := c.withLock(ctx, func() (err error) {
		out, err = c.sessions.Replace(ctx, oldName, newName)
		return err
	})
	return out, err
}

// --- browser event hooks ---

// OnTabClosed reacts to a browser tab-removal event: the slot entry is
// marked closed and the frecency entry dropped.
func (c *Coordinator) OnTabClosed(ctx context.Context, tabID int64) error {
	return c.withLock(ctx, func() error {
		if err := c.slots.MarkTabClosed(ctx, tabID); err != nil {
			return err
		}
		return c.frecency.Remove(ctx, tabID)
	})
}

// OnTabActivated reacts to a tab gaining focus: the visit is recorded for
// frecency ranking. Lookup failure is ignored; the tab may already be gone.
func (c *Coordinator) OnTabActivated(ctx context.Context, tabID int64) error {
	return c.withLock(ctx, func() error {
		tab, err := c.tabs.Get(ctx, tabID)
		if err != nil {
			logging.FromContext(ctx).Debug().Err(err).Int64("tab_id", tabID).Msg("coordinator: activated tab already gone")
			return nil
		}
		return c.frecency.RecordVisit(ctx, tab)
	})
}

// StateSnapshot returns a copy of the full engine state for inspection.
func (c *Coordinator) StateSnapshot(ctx context.Context) (*entity.StorageSnapshot, error) {
	var snap *entity.StorageSnapshot
	err := c.withLock(ctx, func() error {
		snap = &entity.StorageSnapshot{
			SchemaVersion: entity.SnapshotSchemaVersion,
			Slots:         sliceOfPtrs(c.slots.list.Snapshot()),
			Sessions:      sessionPtrs(c.sessions.List()),
			Frecency:      frecencyPtrs(c.frecency.table.Snapshot()),
		}
		return nil
	})
	return snap, err
}

func sliceOfPtrs(entries []entity.TabSlotEntry) []*entity.TabSlotEntry {
	out := make([]*entity.TabSlotEntry, len(entries))
	for i := range entries {
		out[i] = &entries[i]
	}
	return out
}

func sessionPtrs(sessions []entity.TabManagerSession) []*entity.TabManagerSession {
	out := make([]*entity.TabManagerSession, len(sessions))
	for i := range sessions {
		out[i] = &sessions[i]
	}
	return out
}

func frecencyPtrs(entries []entity.FrecencyEntry) []*entity.FrecencyEntry {
	out := make([]*entity.FrecencyEntry, len(entries))
	for i := range entries {
		out[i] = &entries[i]
	}
	return out
}
