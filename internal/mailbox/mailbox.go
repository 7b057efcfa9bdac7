// Package mailbox implements the single-slot, latest-wins handoff between the
// ingest goroutine and the render loop.
//
// The slot holds at most one pending item. Put overwrites whatever is pending
// (counting it as dropped) and never blocks on the consumer. Take claims the
// pending item and clears the dirty flag. The mutex is held only for the
// swap, so no per-item work ever runs under the lock.
package mailbox

import "sync"

// Stats is a point-in-time view of the mailbox counters.
type Stats struct {
	Published uint64 `json:"published"`
	Taken     uint64 `json:"taken"`
	Dropped   uint64 `json:"dropped"`
	Pending   bool   `json:"pending"`
}

// Mailbox is a single-slot buffer with overwrite semantics. The zero value is
// ready to use.
type Mailbox[T any] struct {
	mu    sync.Mutex
	item  T
	dirty bool

	published uint64
	taken     uint64
	dropped   uint64
}

// New returns an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{}
}

// Put stores v, replacing any item not yet taken.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	if m.dirty {
		m.dropped++
	}
	m.item = v
	m.dirty = true
	m.published++
	m.mu.Unlock()
}

// Take returns the pending item and true, or the zero value and false when
// nothing new has arrived since the last Take. The slot is cleared so the
// same item is never returned twice.
func (m *Mailbox[T]) Take() (T, bool) {
	var zero T
	m.mu.Lock()
	if !m.dirty {
		m.mu.Unlock()
		return zero, false
	}
	v := m.item
	m.item = zero
	m.dirty = false
	m.taken++
	m.mu.Unlock()
	return v, true
}

// Stats returns the current counters.
func (m *Mailbox[T]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Published: m.published,
		Taken:     m.taken,
		Dropped:   m.dropped,
		Pending:   m.dirty,
	}
}
