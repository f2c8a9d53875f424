// Package memory keeps the bounded short-term conversation log and the
// per-request snapshot that gives history reads stable "just now"
// semantics while a request is in flight.
package memory

import (
	"strings"
	"sync"
	"time"
)

// Role labels who produced a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one turn of conversation.
type Entry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a bounded, append-only log of turns. Taking a snapshot
// freezes the view that history reads see, so a request asking about "the
// previous question" is not confused by its own entry being appended.
type Conversation struct {
	mu       sync.RWMutex
	entries  []Entry
	max      int
	snapshot []Entry
	frozen   bool
}

// NewConversation builds a log keeping at most maxEntries turns.
func NewConversation(maxEntries int) *Conversation {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &Conversation{max: maxEntries}
}

// Append records a turn, dropping the oldest once the bound is reached.
func (c *Conversation) Append(role Role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, Entry{Role: role, Content: content, Timestamp: time.Now()})
	if len(c.entries) > c.max {
		c.entries = c.entries[len(c.entries)-c.max:]
	}
}

// Snapshot freezes the current entries as the view returned by View until
// ClearSnapshot. Taking a new snapshot replaces the old one.
func (c *Conversation) Snapshot() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = append([]Entry(nil), c.entries...)
	c.frozen = true
}

// ClearSnapshot unfreezes View back to the live log.
func (c *Conversation) ClearSnapshot() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
	c.frozen = false
}

// HasSnapshot reports whether a snapshot is active.
func (c *Conversation) HasSnapshot() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}

// View returns the entries history reads should see: the snapshot while
// one is active, otherwise the live log. The slice is a copy.
func (c *Conversation) View() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.frozen {
		return append([]Entry(nil), c.snapshot...)
	}
	return append([]Entry(nil), c.entries...)
}

// Entries returns a copy of the live log regardless of snapshot state.
func (c *Conversation) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry(nil), c.entries...)
}

// Len returns the live log length.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LastN returns up to n most recent entries of view, oldest first.
func LastN(view []Entry, n int) []Entry {
	if n <= 0 || len(view) == 0 {
		return nil
	}
	if n > len(view) {
		n = len(view)
	}
	return view[len(view)-n:]
}

// LastByRole returns the most recent entry with the given role.
func LastByRole(view []Entry, role Role) (Entry, bool) {
	for i := len(view) - 1; i >= 0; i-- {
		if view[i].Role == role {
			return view[i], true
		}
	}
	return Entry{}, false
}

// UserQuestions returns user entries that are substantive questions,
// filtering out bare greetings.
func UserQuestions(view []Entry) []Entry {
	var out []Entry
	for _, e := range view {
		if e.Role != RoleUser {
			continue
		}
		if IsGreeting(e.Content) {
			continue
		}
		out = append(out, e)
	}
	return out
}

var greetingWords = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "yo": {}, "greetings": {},
}

// IsGreeting reports whether text is a short salutation with no question
// in it. Matching is whole-word so "history" never matches "hi".
func IsGreeting(text string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" || len(trimmed) > 40 {
		return false
	}
	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '\''
	})
	if len(fields) == 0 || len(fields) > 4 {
		return false
	}
	if _, ok := greetingWords[fields[0]]; !ok {
		return false
	}
	// "hi, what's the weather" is a question, not a greeting.
	for _, f := range fields[1:] {
		switch f {
		case "there", "again", "everyone", "all", "team", "friend", "bot", "agent", "good", "morning", "afternoon", "evening":
		default:
			return false
		}
	}
	return true
}
