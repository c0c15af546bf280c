package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avierx/tabdeck/internal/application/port"
	"github.com/avierx/tabdeck/internal/domain/entity"
)

func newSlotFixture(tabs *fakeTabs) (*SlotManager, *fakePages) {
	pages := newFakePages()
	m := NewSlotManager(tabs, pages, nil, noopFlush)
	return m, pages
}

func TestAddAssignsContiguousSlots(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(
		port.BrowserTab{ID: 1, URL: "https://a.example"},
		port.BrowserTab{ID: 2, URL: "https://b.example"},
	)
	m, pages := newSlotFixture(tabs)
	pages.scrolls[2] = port.ScrollOffset{X: 0, Y: 300}

	out, err := m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, 1, out.Slot)

	out, err = m.Add(ctx, tabs.tabs[1])
	require.NoError(t, err)
	assert.Equal(t, 2, out.Slot)
	assert.True(t, m.list.Contiguous())

	entry := m.list.FindByTabID(2)
	require.NotNil(t, entry)
	assert.Equal(t, float64(300), entry.ScrollY, "scroll captured at add time")
}

func TestAddRefusesWhenFull(t *testing.T) {
	ctx := context.Background()
	open := make([]port.BrowserTab, 0, entity.MaxSlots+1)
	for i := 0; i <= entity.MaxSlots; i++ {
		open = append(open, port.BrowserTab{ID: int64(i + 1), URL: fmt.Sprintf("https://t%d.example", i)})
	}
	tabs := newFakeTabs(open...)

	var events []port.FeedbackEvent
	notify := func(_ context.Context, _ int64, event port.FeedbackEvent, _ int) {
		events = append(events, event)
	}
	m := NewSlotManager(tabs, newFakePages(), notify, noopFlush)

	for i := 0; i < entity.MaxSlots; i++ {
		out, err := m.Add(ctx, open[i])
		require.NoError(t, err)
		require.True(t, out.OK)
	}

	out, err := m.Add(ctx, open[entity.MaxSlots])
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, entity.RefusalFull, out.Refusal)
	assert.Equal(t, "Full (max 4)", out.Reason)
	assert.Equal(t, port.FeedbackFull, events[len(events)-1])
}

func TestAddDuplicateReportsExistingSlot(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(port.BrowserTab{ID: 1, URL: "https://a.example"})
	m, _ := newSlotFixture(tabs)

	_, err := m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)

	out, err := m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, entity.RefusalAlreadyAdded, out.Refusal)
	assert.Equal(t, "Already in slot 1", out.Reason)
	assert.Equal(t, 1, out.Slot)
	assert.Equal(t, 1, m.list.Len(), "no duplicate entry appended")
}

func TestAddRevivesClosedEntryForSamePage(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(
		port.BrowserTab{ID: 1, URL: "https://a.example/page"},
		port.BrowserTab{ID: 2, URL: "https://b.example"},
	)
	m, _ := newSlotFixture(tabs)

	_, err := m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)
	_, err = m.Add(ctx, tabs.tabs[1])
	require.NoError(t, err)

	tabs.close(1)
	require.NoError(t, m.Reconcile(ctx))
	require.True(t, m.list.Entries[0].Closed)

	// Same page reopened in a fresh tab. Tracking params must not defeat
	// the match.
	reopened := port.BrowserTab{ID: 50, URL: "https://a.example/page?utm_source=mail"}
	tabs.tabs = append(tabs.tabs, reopened)

	out, err := m.Add(ctx, reopened)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, 1, out.Slot, "revived in place, not appended")
	assert.Equal(t, 2, m.list.Len())

	entry := m.list.Entries[0]
	assert.False(t, entry.Closed)
	assert.Equal(t, int64(50), entry.TabID)
}

func TestReconcileMarksClosedAndKeepsOrder(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(
		port.BrowserTab{ID: 1, URL: "https://a.example"},
		port.BrowserTab{ID: 2, URL: "https://b.example"},
		port.BrowserTab{ID: 3, URL: "https://c.example"},
	)
	m, _ := newSlotFixture(tabs)
	for _, tab := range append([]port.BrowserTab(nil), tabs.tabs...) {
		_, err := m.Add(ctx, tab)
		require.NoError(t, err)
	}

	tabs.close(2)
	require.NoError(t, m.Reconcile(ctx))

	assert.True(t, m.list.Contiguous())
	assert.False(t, m.list.Entries[0].Closed)
	assert.True(t, m.list.Entries[1].Closed, "closed entry stays in its slot")
	assert.Equal(t, 2, m.list.Entries[1].Slot)
	assert.False(t, m.list.Entries[2].Closed)
}

func TestRemoveIsIdempotentAndArmsUndo(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(port.BrowserTab{ID: 1, URL: "https://a.example"})
	m, _ := newSlotFixture(tabs)

	out, err := m.Remove(ctx, 42)
	require.NoError(t, err)
	assert.True(t, out.OK, "removing an absent tab is a successful no-op")
	assert.Nil(t, m.undo)

	_, err = m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)

	out, err = m.Remove(ctx, 1)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Zero(t, m.list.Len())
	require.NotNil(t, m.undo)
}

func TestUndoRestoresFormerPosition(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(
		port.BrowserTab{ID: 1, URL: "https://a.example"},
		port.BrowserTab{ID: 2, URL: "https://b.example"},
		port.BrowserTab{ID: 3, URL: "https://c.example"},
	)
	m, _ := newSlotFixture(tabs)
	for _, tab := range append([]port.BrowserTab(nil), tabs.tabs...) {
		_, err := m.Add(ctx, tab)
		require.NoError(t, err)
	}

	_, err := m.Remove(ctx, 2)
	require.NoError(t, err)

	out, err := m.UndoRemove(ctx)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, 2, out.Slot, "entry returns to its former slot")
	assert.Equal(t, int64(2), m.list.Entries[1].TabID)
	assert.True(t, m.list.Contiguous())
}

func TestUndoExpires(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(port.BrowserTab{ID: 1, URL: "https://a.example"})
	m, _ := newSlotFixture(tabs)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m.now = fixedClock(base)

	_, err := m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)
	_, err = m.Remove(ctx, 1)
	require.NoError(t, err)

	m.now = fixedClock(base.Add(undoWindow + time.Second))

	out, err := m.UndoRemove(ctx)
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, entity.RefusalNotFound, out.Refusal)
	assert.Nil(t, m.undo, "expired stash cleared")
}

func TestJumpActivatesOpenTab(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(port.BrowserTab{ID: 1, URL: "https://a.example"})
	m, pages := newSlotFixture(tabs)

	_, err := m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)
	m.list.Entries[0].ScrollY = 120

	out, err := m.Jump(ctx, 1)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, []int64{1}, tabs.activated)
	assert.Equal(t, port.ScrollOffset{Y: 120}, pages.scrolls[1], "scroll restored on activation")
}

func TestJumpReopensClosedTab(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(port.BrowserTab{ID: 1, URL: "https://a.example"})
	m, _ := newSlotFixture(tabs)
	m.loadWait = 50 * time.Millisecond

	_, err := m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)

	tabs.close(1)
	require.NoError(t, m.Reconcile(ctx))

	out, err := m.Jump(ctx, 1)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, []string{"https://a.example"}, tabs.created)

	entry := m.list.Entries[0]
	assert.False(t, entry.Closed)
	assert.Greater(t, entry.TabID, int64(1000), "entry rebound to the fresh tab")
}

func TestJumpRetriesAsReopenWhenActivationRaces(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(port.BrowserTab{ID: 1, URL: "https://a.example"})
	tabs.activateErr = map[int64]error{1: errors.New("no tab with id 1")}
	m, _ := newSlotFixture(tabs)
	m.loadWait = 50 * time.Millisecond

	_, err := m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)

	out, err := m.Jump(ctx, 1)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, []string{"https://a.example"}, tabs.created, "stale binding fell through to reopen")
}

func TestJumpDropsEntryWhenReopenRefused(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(port.BrowserTab{ID: 1, URL: "https://a.example"})
	tabs.createErr = map[string]error{"https://a.example": errors.New("could not create tab")}
	m, _ := newSlotFixture(tabs)

	_, err := m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)
	tabs.close(1)
	require.NoError(t, m.Reconcile(ctx))

	out, err := m.Jump(ctx, 1)
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, entity.RefusalRestricted, out.Refusal)
	assert.Equal(t, "Cannot reopen https://a.example", out.Reason)
	assert.Zero(t, m.list.Len(), "dangling entry dropped")
}

func TestJumpRefusesRestrictedURLWithoutBrowserCall(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(port.BrowserTab{ID: 1, URL: "chrome://settings"})
	m, _ := newSlotFixture(tabs)

	_, err := m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)
	tabs.close(1)
	require.NoError(t, m.Reconcile(ctx))

	out, err := m.Jump(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.RefusalRestricted, out.Refusal)
	assert.Equal(t, "Cannot reopen chrome://settings", out.Reason)
	assert.Empty(t, tabs.created, "privileged scheme never reaches the browser")
	assert.Zero(t, m.list.Len())
}

func TestCycleWrapsAroundActiveSlot(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(
		port.BrowserTab{ID: 1, URL: "https://a.example"},
		port.BrowserTab{ID: 2, URL: "https://b.example"},
		port.BrowserTab{ID: 3, URL: "https://c.example"},
	)
	m, _ := newSlotFixture(tabs)
	for _, tab := range append([]port.BrowserTab(nil), tabs.tabs...) {
		_, err := m.Add(ctx, tab)
		require.NoError(t, err)
	}

	require.NoError(t, tabs.Activate(ctx, 3))

	out, err := m.Cycle(ctx, "next")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Slot, "next from last slot wraps to first")

	out, err = m.Cycle(ctx, "prev")
	require.NoError(t, err)
	assert.Equal(t, 3, out.Slot, "prev from first slot wraps to last")
}

func TestCycleFromUnslottedTab(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(
		port.BrowserTab{ID: 1, URL: "https://a.example"},
		port.BrowserTab{ID: 2, URL: "https://b.example"},
		port.BrowserTab{ID: 9, URL: "https://stray.example", Active: true},
	)
	m, _ := newSlotFixture(tabs)
	_, err := m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)
	_, err = m.Add(ctx, tabs.tabs[1])
	require.NoError(t, err)

	require.NoError(t, tabs.Activate(ctx, 9))

	out, err := m.Cycle(ctx, "next")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Slot)

	require.NoError(t, tabs.Activate(ctx, 9))
	out, err = m.Cycle(ctx, "prev")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Slot)
}

func TestReorderIgnoresUnknownAndKeepsUnmentioned(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(
		port.BrowserTab{ID: 1, URL: "https://a.example"},
		port.BrowserTab{ID: 2, URL: "https://b.example"},
		port.BrowserTab{ID: 3, URL: "https://c.example"},
	)
	m, _ := newSlotFixture(tabs)
	for _, tab := range append([]port.BrowserTab(nil), tabs.tabs...) {
		_, err := m.Add(ctx, tab)
		require.NoError(t, err)
	}

	out, err := m.Reorder(ctx, []int64{3, 999, 1})
	require.NoError(t, err)
	assert.True(t, out.OK)

	ids := make([]int64, 0, m.list.Len())
	for _, entry := range m.list.Entries {
		ids = append(ids, entry.TabID)
	}
	assert.Equal(t, []int64{3, 1, 2}, ids, "unmentioned entries keep order at the end")
	assert.True(t, m.list.Contiguous())
}

func TestSaveScrollOfActiveTab(t *testing.T) {
	ctx := context.Background()
	tabs := newFakeTabs(port.BrowserTab{ID: 1, URL: "https://a.example"})
	m, pages := newSlotFixture(tabs)

	_, err := m.Add(ctx, tabs.tabs[0])
	require.NoError(t, err)
	require.NoError(t, tabs.Activate(ctx, 1))

	pages.scrolls[1] = port.ScrollOffset{X: 10, Y: 900}
	require.NoError(t, m.SaveScrollOfActiveTab(ctx))

	entry := m.list.FindByTabID(1)
	assert.Equal(t, float64(10), entry.ScrollX)
	assert.Equal(t, float64(900), entry.ScrollY)

	// A page without the content script degrades silently.
	pages.getErr = errors.New("no receiver")
	require.NoError(t, m.SaveScrollOfActiveTab(ctx))
}
