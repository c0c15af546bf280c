package messaging

import (
	"sync"
	"time"
)

// EventDeduplicator drops repeated tab activation events. Window focus
// churn makes browsers re-fire onActivated for the tab that already has
// focus; counting each as a visit would inflate frecency scores.
type EventDeduplicator struct {
	mu              sync.Mutex
	lastActivation  map[int64]time.Time
	debounceWindow  time.Duration
	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time
}

// NewEventDeduplicator creates a deduplicator with a 500ms debounce window.
func NewEventDeduplicator() *EventDeduplicator {
	return &EventDeduplicator{
		lastActivation:  make(map[int64]time.Time),
		debounceWindow:  500 * time.Millisecond,
		cleanupInterval: 30 * time.Second,
		lastCleanup:     time.Now(),
		now:             time.Now,
	}
}

// IsDuplicateActivation reports whether this activation repeats one seen
// for the same tab within the debounce window, and records it either way.
func (d *EventDeduplicator) IsDuplicateActivation(tabID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastCleanup) > d.cleanupInterval {
		d.cleanup(now)
	}

	last, seen := d.lastActivation[tabID]
	d.lastActivation[tabID] = now
	return seen && now.Sub(last) < d.debounceWindow
}

// Forget drops a tab's record, called when the tab closes.
func (d *EventDeduplicator) Forget(tabID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.lastActivation, tabID)
}

func (d *EventDeduplicator) cleanup(now time.Time) {
	cutoff := d.debounceWindow * 3
	for tabID, last := range d.lastActivation {
		if now.Sub(last) > cutoff {
			delete(d.lastActivation, tabID)
		}
	}
	d.lastCleanup = now
}
