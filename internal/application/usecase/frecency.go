package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/avierx/tabdeck/internal/application/port"
	"github.com/avierx/tabdeck/internal/domain/entity"
	"github.com/avierx/tabdeck/internal/logging"
)

// Flusher persists the whole engine snapshot. The coordinator injects it
// into every manager; managers call it after each mutation. Commit is
// always the full snapshot, never a partial-field update.
type Flusher func(ctx context.Context) error

// FrecencyManager tracks per-tab visit recency and frequency and exposes a
// ranked view of the currently open tabs. Callers are serialized by the
// coordinator; the manager itself holds no lock.
type FrecencyManager struct {
	table *entity.FrecencyTable
	tabs  port.BrowserTabs
	flush Flusher
	now   func() time.Time
}

// NewFrecencyManager creates a frecency manager.
func NewFrecencyManager(tabs port.BrowserTabs, flush Flusher) *FrecencyManager {
	return &FrecencyManager{
		table: entity.NewFrecencyTable(),
		tabs:  tabs,
		flush: flush,
		now:   time.Now,
	}
}

// Restore replaces the in-memory table with persisted entries.
func (m *FrecencyManager) Restore(entries []*entity.FrecencyEntry) {
	m.table = &entity.FrecencyTable{Entries: entries}
	if m.table.Entries == nil {
		m.table.Entries = make([]*entity.FrecencyEntry, 0)
	}
}

// Entries exposes the live table for snapshot assembly.
func (m *FrecencyManager) Entries() []*entity.FrecencyEntry {
	return m.table.Entries
}

// RecordVisit bumps the visit count for a tab, inserting it when new.
// An insert that pushes the table over capacity evicts the single
// lowest-scored entry. Persists after the mutation.
func (m *FrecencyManager) RecordVisit(ctx context.Context, tab port.BrowserTab) error {
	log := logging.FromContext(ctx)
	now := m.now()

	entry := m.table.Find(tab.ID)
	if entry != nil {
		entry.VisitCount++
		entry.LastVisit = now.UnixMilli()
		entry.URL = tab.URL
		entry.Title = tab.Title
		entry.Recompute(now)
	} else {
		m.table.Insert(&entity.FrecencyEntry{
			TabID:      tab.ID,
			URL:        tab.URL,
			Title:      tab.Title,
			VisitCount: 1,
			LastVisit:  now.UnixMilli(),
			Score:      100,
		})
		if m.table.Len() > entity.MaxFrecencyEntries {
			evicted := m.table.EvictLowest(now)
			if evicted != nil {
				log.Debug().
					Int64("tab_id", evicted.TabID).
					Int("score", evicted.Score).
					Msg("frecency: evicted lowest-scored entry")
			}
		}
	}

	return m.flush(ctx)
}

// List returns a ranked entry for every currently open tab, sorted by score
// descending. Tabs without history get a zero-score placeholder. Entries
// whose tab no longer exists are pruned first; the sort is stable, so tabs
// with equal scores keep their original relative order.
func (m *FrecencyManager) List(ctx context.Context) ([]entity.FrecencyEntry, error) {
	openTabs, err := m.tabs.Query(ctx)
	if err != nil {
		return nil, err
	}

	live := make(map[int64]bool, len(openTabs))
	for _, tab := range openTabs {
		live[tab.ID] = true
	}

	pruned := m.table.Prune(live)
	now := m.now()

	ranked := make([]entity.FrecencyEntry, 0, len(openTabs))
	for _, tab := range openTabs {
		if entry := m.table.Find(tab.ID); entry != nil {
			entry.URL = tab.URL
			entry.Title = tab.Title
			entry.Recompute(now)
			ranked = append(ranked, *entry)
		} else {
			ranked = append(ranked, entity.FrecencyEntry{
				TabID: tab.ID,
				URL:   tab.URL,
				Title: tab.Title,
			})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if pruned {
		if err := m.flush(ctx); err != nil {
			return nil, err
		}
	}
	return ranked, nil
}

// Remove deletes a tab's entry. Persists only when a deletion occurred.
func (m *FrecencyManager) Remove(ctx context.Context, tabID int64) error {
	if !m.table.Remove(tabID) {
		return nil
	}
	return m.flush(ctx)
}
