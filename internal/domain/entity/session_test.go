package entity_test

import (
	"testing"
	"time"

	"github.com/avierx/tabdeck/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionFromSlots_DropsBindings(t *testing.T) {
	slots := entity.NewSlotList()
	slots.Append(&entity.TabSlotEntry{TabID: 10, URL: "https://a.test", Title: "A", ScrollX: 0, ScrollY: 120})
	slots.Append(&entity.TabSlotEntry{TabID: 20, URL: "https://b.test", Title: "B"})

	savedAt := time.Now()
	session := entity.SessionFromSlots("Work", slots, savedAt)

	assert.Equal(t, "Work", session.Name)
	assert.Equal(t, savedAt.UnixMilli(), session.SavedAt)
	require.Len(t, session.Entries, 2)
	assert.Equal(t, "https://a.test", session.Entries[0].URL)
	assert.InDelta(t, 120.0, session.Entries[0].ScrollY, 0.001)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, session.URLSequence())
}

func TestSessionList_FindByNameIsCaseInsensitive(t *testing.T) {
	list := entity.NewSessionList()
	list.Add(&entity.TabManagerSession{Name: "Work"})

	assert.NotNil(t, list.FindByName("work"))
	assert.NotNil(t, list.FindByName("WORK"))
	assert.Nil(t, list.FindByName("play"))
}

func TestSessionList_FindIdentical(t *testing.T) {
	list := entity.NewSessionList()
	list.Add(&entity.TabManagerSession{
		Name: "Work",
		Entries: []entity.SessionEntry{
			{URL: "https://a.test"},
			{URL: "https://b.test"},
		},
	})

	assert.NotNil(t, list.FindIdentical([]string{"https://a.test", "https://b.test"}))
	assert.Nil(t, list.FindIdentical([]string{"https://b.test", "https://a.test"}),
		"order matters for content identity")
	assert.Nil(t, list.FindIdentical([]string{"https://a.test"}))
}

func TestSessionList_Remove(t *testing.T) {
	list := entity.NewSessionList()
	list.Add(&entity.TabManagerSession{Name: "Work"})
	list.Add(&entity.TabManagerSession{Name: "Play"})

	assert.True(t, list.Remove("WORK"))
	assert.Equal(t, 1, list.Len())
	assert.False(t, list.Remove("gone"))
}

func TestSessionList_SnapshotReturnsCopies(t *testing.T) {
	list := entity.NewSessionList()
	list.Add(&entity.TabManagerSession{
		Name:    "Work",
		Entries: []entity.SessionEntry{{URL: "https://a.test"}},
	})

	snap := list.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Entries[0].URL = "mutated"
	assert.Equal(t, "https://a.test", list.Sessions[0].Entries[0].URL)
}
