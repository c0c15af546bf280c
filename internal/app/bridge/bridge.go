// Package bridge implements the browser-side ports over the native
// messaging channel. Each call becomes an outbound BROWSER_CALL frame; the
// extension's background script executes the matching WebExtension API and
// replies with a BROWSER_RESULT frame carrying the same call ID.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avierx/tabdeck/internal/application/port"
	"github.com/avierx/tabdeck/internal/logging"
)

// Sender writes one frame to the messaging channel.
type Sender interface {
	Write(message any) error
}

// Call is an outbound browser API invocation.
type Call struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// CallType tags outbound invocation frames.
const CallType = "BROWSER_CALL"

// Result is the extension's reply to a Call.
type Result struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type pendingResult struct {
	payload json.RawMessage
	err     error
}

// Bridge multiplexes browser API calls over a single channel. Calls from
// any goroutine are matched to replies by ID; the host's read loop feeds
// replies in through Resolve.
type Bridge struct {
	send    Sender
	timeout time.Duration
	seq     atomic.Int64

	mu      sync.Mutex
	pending map[string]chan pendingResult
}

// New creates a bridge. timeout bounds each call; zero means 15 seconds.
func New(send Sender, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Bridge{
		send:    send,
		timeout: timeout,
		pending: make(map[string]chan pendingResult),
	}
}

// Resolve completes the pending call with the given ID. Returns false when
// no call is waiting, which means the call timed out or the frame is stray.
func (b *Bridge) Resolve(id string, result json.RawMessage, errMsg string) bool {
	b.mu.Lock()
	ch, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}

	var err error
	if errMsg != "" {
		err = fmt.Errorf("browser: %s", errMsg)
	}
	ch <- pendingResult{payload: result, err: err}
	return true
}

// FailAll aborts every pending call, used when the channel closes.
func (b *Bridge) FailAll(err error) {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]chan pendingResult)
	b.mu.Unlock()

	for _, ch := range pending {
		ch <- pendingResult{err: err}
	}
}

func (b *Bridge) call(ctx context.Context, method string, params any, out any) error {
	id := strconv.FormatInt(b.seq.Add(1), 10)
	ch := make(chan pendingResult, 1)

	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()

	if err := b.send.Write(Call{Type: CallType, ID: id, Method: method, Params: params}); err != nil {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		return fmt.Errorf("send %s: %w", method, err)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if out != nil && len(res.payload) > 0 {
			if err := json.Unmarshal(res.payload, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-timer.C:
		b.abandon(id)
		return fmt.Errorf("%s: no reply within %s", method, b.timeout)
	case <-ctx.Done():
		b.abandon(id)
		return ctx.Err()
	}
}

func (b *Bridge) abandon(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

type tabParams struct {
	TabID int64 `json:"tabId"`
}

// Query returns all currently open tabs.
func (b *Bridge) Query(ctx context.Context) ([]port.BrowserTab, error) {
	var tabs []port.BrowserTab
	if err := b.call(ctx, "tabs.query", nil, &tabs); err != nil {
		return nil, err
	}
	return tabs, nil
}

// Get returns a single tab by ID.
func (b *Bridge) Get(ctx context.Context, tabID int64) (port.BrowserTab, error) {
	var tab port.BrowserTab
	err := b.call(ctx, "tabs.get", tabParams{TabID: tabID}, &tab)
	return tab, err
}

// Create opens a new tab for a URL. The browser refuses privileged URLs;
// that refusal surfaces here as an error.
func (b *Bridge) Create(ctx context.Context, url string) (port.BrowserTab, error) {
	var tab port.BrowserTab
	err := b.call(ctx, "tabs.create", struct {
		URL string `json:"url"`
	}{URL: url}, &tab)
	return tab, err
}

// Activate focuses an open tab.
func (b *Bridge) Activate(ctx context.Context, tabID int64) error {
	return b.call(ctx, "tabs.activate", tabParams{TabID: tabID}, nil)
}

// WaitForLoad blocks until the tab reports load complete.
func (b *Bridge) WaitForLoad(ctx context.Context, tabID int64) error {
	return b.call(ctx, "tabs.waitForLoad", tabParams{TabID: tabID}, nil)
}

// GetScroll reads a tab's scroll position through its content script.
func (b *Bridge) GetScroll(ctx context.Context, tabID int64) (port.ScrollOffset, error) {
	var offset port.ScrollOffset
	err := b.call(ctx, "page.getScroll", tabParams{TabID: tabID}, &offset)
	return offset, err
}

// SetScroll restores a tab's scroll position through its content script.
func (b *Bridge) SetScroll(ctx context.Context, tabID int64, offset port.ScrollOffset) error {
	return b.call(ctx, "page.setScroll", struct {
		TabID int64   `json:"tabId"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
	}{TabID: tabID, X: offset.X, Y: offset.Y}, nil)
}

// Notify sends fire-and-forget UI feedback to a tab. No call ID, no reply;
// a send failure is logged and swallowed.
func (b *Bridge) Notify(ctx context.Context, tabID int64, event port.FeedbackEvent, slot int) {
	err := b.send.Write(Call{Type: CallType, Method: "page.notify", Params: struct {
		TabID int64              `json:"tabId"`
		Event port.FeedbackEvent `json:"event"`
		Slot  int                `json:"slot,omitempty"`
	}{TabID: tabID, Event: event, Slot: slot}})
	if err != nil {
		logging.FromContext(ctx).Debug().Err(err).Int64("tab_id", tabID).Msg("bridge: feedback send failed")
	}
}
