// Package messaging dispatches extension requests to the state engine and
// shapes the replies the extension UI renders.
package messaging

import (
	"context"
	"fmt"

	"github.com/avierx/tabdeck/internal/application/port"
	"github.com/avierx/tabdeck/internal/application/usecase"
	"github.com/avierx/tabdeck/internal/domain/entity"
	"github.com/avierx/tabdeck/internal/logging"
)

// Request message types.
const (
	TypeTabManagerAdd        = "TAB_MANAGER_ADD"
	TypeTabManagerRemove     = "TAB_MANAGER_REMOVE"
	TypeTabManagerUndo       = "TAB_MANAGER_UNDO"
	TypeTabManagerJump       = "TAB_MANAGER_JUMP"
	TypeTabManagerCycle      = "TAB_MANAGER_CYCLE"
	TypeTabManagerReorder    = "TAB_MANAGER_REORDER"
	TypeTabManagerList       = "TAB_MANAGER_LIST"
	TypeTabManagerSaveScroll = "TAB_MANAGER_SAVE_SCROLL"

	TypeFrecencyList = "FRECENCY_LIST"

	TypeSessionSave     = "SESSION_SAVE"
	TypeSessionList     = "SESSION_LIST"
	TypeSessionLoadPlan = "SESSION_LOAD_PLAN"
	TypeSessionLoad     = "SESSION_LOAD"
	TypeSessionDelete   = "SESSION_DELETE"
	TypeSessionRename   = "SESSION_RENAME"
	TypeSessionUpdate   = "SESSION_UPDATE"
	TypeSessionReplace  = "SESSION_REPLACE"

	TypeTabEventClosed    = "TAB_EVENT_CLOSED"
	TypeTabEventActivated = "TAB_EVENT_ACTIVATED"
)

// Request is an inbound extension message. One flat envelope for every
// type; absent fields stay zero.
type Request struct {
	Type      string           `json:"type"`
	RequestID string           `json:"requestId,omitempty"`
	Tab       *port.BrowserTab `json:"tab,omitempty"`
	TabID     int64            `json:"tabId,omitempty"`
	Slot      int              `json:"slot,omitempty"`
	Direction string           `json:"direction,omitempty"`
	List      []int64          `json:"list,omitempty"`
	Name      string           `json:"name,omitempty"`
	NewName   string           `json:"newName,omitempty"`
}

// Response is the reply to a request. Data carries the type-specific
// payload (slot list, session list, ranked tabs, load plan).
type Response struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	OK        bool   `json:"ok"`
	Reason    string `json:"reason,omitempty"`
	Slot      int    `json:"slot,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Engine is the slice of the coordinator the handler needs.
type Engine interface {
	AddTab(ctx context.Context, tab port.BrowserTab) (entity.Outcome, error)
	RemoveTab(ctx context.Context, tabID int64) (entity.Outcome, error)
	UndoRemoveTab(ctx context.Context) (entity.Outcome, error)
	JumpToSlot(ctx context.Context, slot int) (entity.Outcome, error)
	CycleSlot(ctx context.Context, direction string) (entity.Outcome, error)
	ReorderSlots(ctx context.Context, tabIDs []int64) (entity.Outcome, error)
	ListSlots(ctx context.Context) ([]entity.TabSlotEntry, error)
	SaveScroll(ctx context.Context) error

	ListFrecency(ctx context.Context) ([]entity.FrecencyEntry, error)

	SaveSession(ctx context.Context, name string) (entity.Outcome, error)
	ListSessions(ctx context.Context) ([]entity.TabManagerSession, error)
	PlanSessionLoad(ctx context.Context, name string) (*usecase.LoadPlan, entity.Outcome, error)
	LoadSession(ctx context.Context, name string) (usecase.LoadOutcome, error)
	DeleteSession(ctx context.Context, name string) (entity.Outcome, error)
	RenameSession(ctx context.Context, name, newName string) (entity.Outcome, error)
	UpdateSession(ctx context.Context, name string) (entity.Outcome, error)
	ReplaceSession(ctx context.Context, oldName, newName string) (entity.Outcome, error)

	OnTabClosed(ctx context.Context, tabID int64) error
	OnTabActivated(ctx context.Context, tabID int64) error
}

// Handler routes requests to the engine.
type Handler struct {
	engine Engine
	dedupe *EventDeduplicator
}

// NewHandler creates a message handler.
func NewHandler(engine Engine) *Handler {
	return &Handler{
		engine: engine,
		dedupe: NewEventDeduplicator(),
	}
}

// Handle processes one request. A nil response means the request was an
// event notification and expects no reply. The error return is reserved
// for engine failures; user-facing refusals come back as OK=false
// responses.
func (h *Handler) Handle(ctx context.Context, req Request) (*Response, error) {
	log := logging.FromContext(ctx)
	log.Debug().Str("type", req.Type).Str("request_id", req.RequestID).Msg("messaging: request")

	switch req.Type {
	case TypeTabManagerAdd:
		if req.Tab == nil {
			return h.badRequest(req, "missing tab"), nil
		}
		out, err := h.engine.AddTab(ctx, *req.Tab)
		return h.outcome(req, out), err

	case TypeTabManagerRemove:
		out, err := h.engine.RemoveTab(ctx, req.TabID)
		return h.outcome(req, out), err

	case TypeTabManagerUndo:
		out, err := h.engine.UndoRemoveTab(ctx)
		return h.outcome(req, out), err

	case TypeTabManagerJump:
		out, err := h.engine.JumpToSlot(ctx, req.Slot)
		return h.outcome(req, out), err

	case TypeTabManagerCycle:
		out, err := h.engine.CycleSlot(ctx, req.Direction)
		return h.outcome(req, out), err

	case TypeTabManagerReorder:
		out, err := h.engine.ReorderSlots(ctx, req.List)
		return h.outcome(req, out), err

	case TypeTabManagerList:
		slots, err := h.engine.ListSlots(ctx)
		if err != nil {
			return nil, err
		}
		return h.data(req, slots), nil

	case TypeTabManagerSaveScroll:
		if err := h.engine.SaveScroll(ctx); err != nil {
			return nil, err
		}
		return h.outcome(req, entity.Accept()), nil

	case TypeFrecencyList:
		ranked, err := h.engine.ListFrecency(ctx)
		if err != nil {
			return nil, err
		}
		return h.data(req, ranked), nil

	case TypeSessionSave:
		out, err := h.engine.SaveSession(ctx, req.Name)
		return h.outcome(req, out), err

	case TypeSessionList:
		sessions, err := h.engine.ListSessions(ctx)
		if err != nil {
			return nil, err
		}
		return h.data(req, sessions), nil

	case TypeSessionLoadPlan:
		plan, out, err := h.engine.PlanSessionLoad(ctx, req.Name)
		if err != nil {
			return nil, err
		}
		resp := h.outcome(req, out)
		resp.Data = plan
		return resp, nil

	case TypeSessionLoad:
		loaded, err := h.engine.LoadSession(ctx, req.Name)
		if err != nil {
			return nil, err
		}
		resp := h.outcome(req, loaded.Outcome)
		if loaded.OK {
			resp.Data = loaded
		}
		return resp, nil

	case TypeSessionDelete:
		out, err := h.engine.DeleteSession(ctx, req.Name)
		return h.outcome(req, out), err

	case TypeSessionRename:
		out, err := h.engine.RenameSession(ctx, req.Name, req.NewName)
		return h.outcome(req, out), err

	case TypeSessionUpdate:
		out, err := h.engine.UpdateSession(ctx, req.Name)
		return h.outcome(req, out), err

	case TypeSessionReplace:
		out, err := h.engine.ReplaceSession(ctx, req.Name, req.NewName)
		return h.outcome(req, out), err

	case TypeTabEventClosed:
		h.dedupe.Forget(req.TabID)
		return nil, h.engine.OnTabClosed(ctx, req.TabID)

	case TypeTabEventActivated:
		if h.dedupe.IsDuplicateActivation(req.TabID) {
			log.Debug().Int64("tab_id", req.TabID).Msg("messaging: debounced repeated activation")
			return nil, nil
		}
		return nil, h.engine.OnTabActivated(ctx, req.TabID)

	default:
		log.Warn().Str("type", req.Type).Msg("messaging: unknown request type")
		return h.badRequest(req, fmt.Sprintf("unknown request type %q", req.Type)), nil
	}
}

func (h *Handler) outcome(req Request, out entity.Outcome) *Response {
	return &Response{
		Type:      req.Type,
		RequestID: req.RequestID,
		OK:        out.OK,
		Reason:    out.Reason,
		Slot:      out.Slot,
	}
}

func (h *Handler) data(req Request, payload any) *Response {
	return &Response{
		Type:      req.Type,
		RequestID: req.RequestID,
		OK:        true,
		Data:      payload,
	}
}

func (h *Handler) badRequest(req Request, reason string) *Response {
	return &Response{
		Type:      req.Type,
		RequestID: req.RequestID,
		OK:        false,
		Reason:    reason,
	}
}
