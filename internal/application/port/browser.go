// Package port declares the interfaces the application layer expects from
// the browser side of the native messaging channel.
package port

import "context"

// BrowserTab is the engine's view of one live browser tab.
type BrowserTab struct {
	ID     int64  `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// BrowserTabs drives the browser's tab API. Every call crosses the messaging
// channel and can fail; callers decide which failures are fatal.
type BrowserTabs interface {
	// Query returns all currently open tabs in the browser's own order.
	Query(ctx context.Context) ([]BrowserTab, error)

	// Get returns a single tab by ID.
	Get(ctx context.Context, tabID int64) (BrowserTab, error)

	// Create opens a new tab for a URL and returns it.
	Create(ctx context.Context, url string) (BrowserTab, error)

	// Activate focuses an open tab.
	Activate(ctx context.Context, tabID int64) error

	// WaitForLoad blocks until the tab reports load complete or the context
	// is done. Used when a reopened tab must finish loading before its
	// scroll position can be restored.
	WaitForLoad(ctx context.Context, tabID int64) error
}

// ScrollOffset is a page scroll position.
type ScrollOffset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PageMessenger talks to the content script inside a tab. The script may not
// be loaded at all (restricted pages, fresh tabs); callers treat failures as
// a degraded side effect, never as an operation failure.
type PageMessenger interface {
	GetScroll(ctx context.Context, tabID int64) (ScrollOffset, error)
	SetScroll(ctx context.Context, tabID int64, offset ScrollOffset) error
}

// FeedbackEvent identifies a toast the extension UI can render.
type FeedbackEvent string

const (
	FeedbackAdded   FeedbackEvent = "added"
	FeedbackRevived FeedbackEvent = "revived"
	FeedbackFull    FeedbackEvent = "full"
)

// Notifier delivers best-effort UI feedback to a tab. It is a bare function
// type, distinct from the fallible ports on purpose: delivery failure is
// swallowed by the implementation and must never abort the core mutation it
// decorates.
type Notifier func(ctx context.Context, tabID int64, event FeedbackEvent, slot int)

// NopNotifier discards all feedback.
func NopNotifier(context.Context, int64, FeedbackEvent, int) {}
