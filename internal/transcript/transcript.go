package transcript

import (
	"sync"
	"time"
)

// Role is who produced an entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// Entry is one line of the call transcript.
type Entry struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Log is an append-only transcript. Entries keep the order they were
// appended in, which is the order they were received or sent.
type Log struct {
	mu      sync.Mutex
	now     func() time.Time
	entries []Entry
}

// New creates an empty log. A nil clock uses time.Now.
func New(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now}
}

// Append records text under role and returns the stored entry.
func (l *Log) Append(role Role, text string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := Entry{Role: role, Text: text, At: l.now()}
	l.entries = append(l.entries, e)
	return e
}

// Snapshot returns a copy of the entries.
func (l *Log) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Count returns the number of entries by role.
func (l *Log) Count(role Role) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Count(l.entries, role)
}

// Count returns the number of entries by role.
func Count(entries []Entry, role Role) int {
	n := 0
	for _, e := range entries {
		if e.Role == role {
			n++
		}
	}
	return n
}
