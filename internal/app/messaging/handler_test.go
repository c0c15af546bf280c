package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avierx/tabdeck/internal/application/port"
	"github.com/avierx/tabdeck/internal/application/usecase"
	"github.com/avierx/tabdeck/internal/domain/entity"
)

// recordingEngine records which operations ran and returns canned outcomes.
type recordingEngine struct {
	calls     []string
	outcome   entity.Outcome
	activated []int64
}

func (e *recordingEngine) record(name string) { e.calls = append(e.calls, name) }

func (e *recordingEngine) AddTab(_ context.Context, _ port.BrowserTab) (entity.Outcome, error) {
	e.record("AddTab")
	return e.outcome, nil
}

func (e *recordingEngine) RemoveTab(_ context.Context, _ int64) (entity.Outcome, error) {
	e.record("RemoveTab")
	return e.outcome, nil
}

func (e *recordingEngine) UndoRemoveTab(context.Context) (entity.Outcome, error) {
	e.record("UndoRemoveTab")
	return e.outcome, nil
}

func (e *recordingEngine) JumpToSlot(_ context.Context, _ int) (entity.Outcome, error) {
	e.record("JumpToSlot")
	return e.outcome, nil
}

func (e *recordingEngine) CycleSlot(_ context.Context, _ string) (entity.Outcome, error) {
	e.record("CycleSlot")
	return e.outcome, nil
}

func (e *recordingEngine) ReorderSlots(_ context.Context, _ []int64) (entity.Outcome, error) {
	e.record("ReorderSlots")
	return e.outcome, nil
}

func (e *recordingEngine) ListSlots(context.Context) ([]entity.TabSlotEntry, error) {
	e.record("ListSlots")
	return []entity.TabSlotEntry{{TabID: 1, Slot: 1}}, nil
}

func (e *recordingEngine) SaveScroll(context.Context) error {
	e.record("SaveScroll")
	return nil
}

func (e *recordingEngine) ListFrecency(context.Context) ([]entity.FrecencyEntry, error) {
	e.record("ListFrecency")
	return []entity.FrecencyEntry{{TabID: 1, Score: 100}}, nil
}

func (e *recordingEngine) SaveSession(_ context.Context, _ string) (entity.Outcome, error) {
	e.record("SaveSession")
	return e.outcome, nil
}

func (e *recordingEngine) ListSessions(context.Context) ([]entity.TabManagerSession, error) {
	e.record("ListSessions")
	return nil, nil
}

func (e *recordingEngine) PlanSessionLoad(_ context.Context, _ string) (*usecase.LoadPlan, entity.Outcome, error) {
	e.record("PlanSessionLoad")
	return &usecase.LoadPlan{TotalCount: 2}, e.outcome, nil
}

func (e *recordingEngine) LoadSession(_ context.Context, _ string) (usecase.LoadOutcome, error) {
	e.record("LoadSession")
	return usecase.LoadOutcome{Outcome: e.outcome, Count: 2}, nil
}

func (e *recordingEngine) DeleteSession(_ context.Context, _ string) (entity.Outcome, error) {
	e.record("DeleteSession")
	return e.outcome, nil
}

func (e *recordingEngine) RenameSession(_ context.Context, _, _ string) (entity.Outcome, error) {
	e.record("RenameSession")
	return e.outcome, nil
}

func (e *recordingEngine) UpdateSession(_ context.Context, _ string) (entity.Outcome, error) {
	e.record("UpdateSession")
	return e.outcome, nil
}

func (e *recordingEngine) ReplaceSession(_ context.Context, _, _ string) (entity.Outcome, error) {
	e.record("ReplaceSession")
	return e.outcome, nil
}

func (e *recordingEngine) OnTabClosed(_ context.Context, _ int64) error {
	e.record("OnTabClosed")
	return nil
}

func (e *recordingEngine) OnTabActivated(_ context.Context, tabID int64) error {
	e.record("OnTabActivated")
	e.activated = append(e.activated, tabID)
	return nil
}

func TestHandleDispatch(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		wantCall string
	}{
		{"add", Request{Type: TypeTabManagerAdd, Tab: &port.BrowserTab{ID: 1}}, "AddTab"},
		{"remove", Request{Type: TypeTabManagerRemove, TabID: 1}, "RemoveTab"},
		{"undo", Request{Type: TypeTabManagerUndo}, "UndoRemoveTab"},
		{"jump", Request{Type: TypeTabManagerJump, Slot: 2}, "JumpToSlot"},
		{"cycle", Request{Type: TypeTabManagerCycle, Direction: "next"}, "CycleSlot"},
		{"reorder", Request{Type: TypeTabManagerReorder, List: []int64{2, 1}}, "ReorderSlots"},
		{"save scroll", Request{Type: TypeTabManagerSaveScroll}, "SaveScroll"},
		{"session save", Request{Type: TypeSessionSave, Name: "work"}, "SaveSession"},
		{"session delete", Request{Type: TypeSessionDelete, Name: "work"}, "DeleteSession"},
		{"session rename", Request{Type: TypeSessionRename, Name: "a", NewName: "b"}, "RenameSession"},
		{"session update", Request{Type: TypeSessionUpdate, Name: "work"}, "UpdateSession"},
		{"session replace", Request{Type: TypeSessionReplace, Name: "old", NewName: "work"}, "ReplaceSession"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &recordingEngine{outcome: entity.Accept()}
			h := NewHandler(engine)

			resp, err := h.Handle(context.Background(), tt.req)
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.True(t, resp.OK)
			assert.Equal(t, tt.req.Type, resp.Type)
			assert.Equal(t, []string{tt.wantCall}, engine.calls)
		})
	}
}

func TestHandleEchoesRequestID(t *testing.T) {
	engine := &recordingEngine{outcome: entity.AcceptSlot(3)}
	h := NewHandler(engine)

	resp, err := h.Handle(context.Background(), Request{
		Type:      TypeTabManagerJump,
		RequestID: "req-42",
		Slot:      3,
	})
	require.NoError(t, err)
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, 3, resp.Slot)
}

func TestHandleRefusalIsNotAnError(t *testing.T) {
	engine := &recordingEngine{
		outcome: entity.Refuse(entity.RefusalFull, "Full (max 4)"),
	}
	h := NewHandler(engine)

	resp, err := h.Handle(context.Background(), Request{
		Type: TypeTabManagerAdd,
		Tab:  &port.BrowserTab{ID: 1},
	})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, "Full (max 4)", resp.Reason)
}

func TestHandleListCarriesData(t *testing.T) {
	engine := &recordingEngine{}
	h := NewHandler(engine)

	resp, err := h.Handle(context.Background(), Request{Type: TypeTabManagerList})
	require.NoError(t, err)
	require.NotNil(t, resp.Data)
	slots := resp.Data.([]entity.TabSlotEntry)
	assert.Len(t, slots, 1)
}

func TestHandleAddWithoutTab(t *testing.T) {
	engine := &recordingEngine{}
	h := NewHandler(engine)

	resp, err := h.Handle(context.Background(), Request{Type: TypeTabManagerAdd})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Empty(t, engine.calls)
}

func TestHandleUnknownType(t *testing.T) {
	engine := &recordingEngine{}
	h := NewHandler(engine)

	resp, err := h.Handle(context.Background(), Request{Type: "NOPE"})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Reason, "unknown request type")
}

func TestHandleEventsReturnNoResponse(t *testing.T) {
	engine := &recordingEngine{}
	h := NewHandler(engine)

	resp, err := h.Handle(context.Background(), Request{Type: TypeTabEventClosed, TabID: 5})
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, []string{"OnTabClosed"}, engine.calls)
}

func TestHandleDebouncesRepeatedActivation(t *testing.T) {
	engine := &recordingEngine{}
	h := NewHandler(engine)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	h.dedupe.now = func() time.Time { return current }

	_, err := h.Handle(context.Background(), Request{Type: TypeTabEventActivated, TabID: 5})
	require.NoError(t, err)

	current = base.Add(100 * time.Millisecond)
	_, err = h.Handle(context.Background(), Request{Type: TypeTabEventActivated, TabID: 5})
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, engine.activated, "burst collapsed to one visit")

	current = base.Add(2 * time.Second)
	_, err = h.Handle(context.Background(), Request{Type: TypeTabEventActivated, TabID: 5})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 5}, engine.activated)
}
