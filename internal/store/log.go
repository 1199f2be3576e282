package store

import (
	"sort"
	"sync"
)

// Log is the deduplicated, ordered in-memory view of the conversation.
// It is append-only: entries are never edited or removed, and the log is
// the sole writer of its contents. Entries are kept sorted by
// (CreatedAt, ID) at all times, so Snapshot never re-sorts.
type Log struct {
	mu   sync.Mutex
	msgs []Message
	ids  map[int64]struct{}
	subs map[int]func(Message)
	next int
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{
		ids:  make(map[int64]struct{}),
		subs: make(map[int]func(Message)),
	}
}

// Seed merges a historical snapshot into the log. Entries whose ID is
// already present are ignored, so seeding after live messages have begun
// arriving (a slow fetch racing an open channel) keeps both sides.
// Seed does not notify subscribers; callers render a Snapshot after it.
func (l *Log) Seed(history []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range history {
		l.insertLocked(m)
	}
}

// Append inserts a message at its sorted position and reports whether an
// insert happened. It is a no-op when the ID is already present (the same
// message delivered via both the history fetch and the live stream, or
// replayed after a reconnect). Subscribers are notified of each message
// actually inserted.
func (l *Log) Append(m Message) bool {
	l.mu.Lock()
	if !l.insertLocked(m) {
		l.mu.Unlock()
		return false
	}
	listeners := make([]func(Message), 0, len(l.subs))
	for _, fn := range l.subs {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	// Notify outside the lock so a listener may call Snapshot.
	for _, fn := range listeners {
		fn(m)
	}
	return true
}

// insertLocked places m at its sorted position, ignoring duplicate IDs.
// Reports whether an insert happened.
func (l *Log) insertLocked(m Message) bool {
	if _, dup := l.ids[m.ID]; dup {
		return false
	}
	i := sort.Search(len(l.msgs), func(i int) bool {
		return m.Before(l.msgs[i])
	})
	l.msgs = append(l.msgs, Message{})
	copy(l.msgs[i+1:], l.msgs[i:])
	l.msgs[i] = m
	l.ids[m.ID] = struct{}{}
	return true
}

// Snapshot returns a copy of the full conversation in ascending
// (CreatedAt, ID) order.
func (l *Log) Snapshot() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

// Subscribe registers fn to be called with every newly appended message.
// Returns a function that removes the subscription.
func (l *Log) Subscribe(fn func(Message)) func() {
	l.mu.Lock()
	id := l.next
	l.next++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}
