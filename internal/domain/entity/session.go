package entity

import (
	"strings"
	"time"
)

// MaxSessions caps the number of named session snapshots.
const MaxSessions = 4

// SessionEntry is one saved tab within a session. Tab IDs and slot numbers
// are deliberately absent: both are resolved against the live browser at
// load time.
type SessionEntry struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	ScrollX float64 `json:"scrollX"`
	ScrollY float64 `json:"scrollY"`
}

// TabManagerSession is a named snapshot of the slot list.
type TabManagerSession struct {
	Name    string         `json:"name"`
	Entries []SessionEntry `json:"entries"`
	SavedAt int64          `json:"savedAt"` // epoch milliseconds
}

// URLSequence returns the ordered URL list, the session's content identity.
func (s *TabManagerSession) URLSequence() []string {
	urls := make([]string, 0, len(s.Entries))
	for _, entry := range s.Entries {
		urls = append(urls, entry.URL)
	}
	return urls
}

// SessionFromSlots snapshots the current slot list under a name.
// Tab IDs and slot numbers are dropped; URL, title and scroll survive.
func SessionFromSlots(name string, slots *SlotList, savedAt time.Time) *TabManagerSession {
	entries := make([]SessionEntry, 0, slots.Len())
	for _, slot := range slots.Entries {
		entries = append(entries, SessionEntry{
			URL:     slot.URL,
			Title:   slot.Title,
			ScrollX: slot.ScrollX,
			ScrollY: slot.ScrollY,
		})
	}
	return &TabManagerSession{
		Name:    name,
		Entries: entries,
		SavedAt: savedAt.UnixMilli(),
	}
}

// SessionList holds sessions in insertion order.
type SessionList struct {
	Sessions []*TabManagerSession
}

// NewSessionList creates an empty session list.
func NewSessionList() *SessionList {
	return &SessionList{Sessions: make([]*TabManagerSession, 0, MaxSessions)}
}

// Len returns the number of sessions.
func (l *SessionList) Len() int {
	return len(l.Sessions)
}

// IsFull reports whether the list is at capacity.
func (l *SessionList) IsFull() bool {
	return len(l.Sessions) >= MaxSessions
}

// FindByName returns the session with a case-insensitively equal name, or nil.
func (l *SessionList) FindByName(name string) *TabManagerSession {
	for _, session := range l.Sessions {
		if strings.EqualFold(session.Name, name) {
			return session
		}
	}
	return nil
}

// FindIdentical returns the first session whose ordered URL sequence equals
// the given one, or nil.
func (l *SessionList) FindIdentical(urls []string) *TabManagerSession {
	for _, session := range l.Sessions {
		if equalSequence(session.URLSequence(), urls) {
			return session
		}
	}
	return nil
}

// Add appends a session. The caller is responsible for capacity and
// uniqueness checks.
func (l *SessionList) Add(session *TabManagerSession) {
	l.Sessions = append(l.Sessions, session)
}

// Remove deletes the session with a case-insensitively equal name.
// Returns true if one was deleted.
func (l *SessionList) Remove(name string) bool {
	for i, session := range l.Sessions {
		if strings.EqualFold(session.Name, name) {
			l.Sessions = append(l.Sessions[:i], l.Sessions[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns value copies of all sessions, in insertion order.
func (l *SessionList) Snapshot() []TabManagerSession {
	out := make([]TabManagerSession, 0, len(l.Sessions))
	for _, session := range l.Sessions {
		copied := *session
		copied.Entries = append([]SessionEntry(nil), session.Entries...)
		out = append(out, copied)
	}
	return out
}

func equalSequence(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
