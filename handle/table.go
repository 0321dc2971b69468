package handle

import (
	"sync"

	"github.com/wippyai/ffibridge/errors"
)

// Table maps handles to values of T.
type Table[T any] struct {
	entries   map[Handle]T
	observers []Observer
	next      Handle
	mu        sync.Mutex
	obsMu     sync.RWMutex
}

// NewTable creates an empty table whose first handle is 0.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		entries: make(map[Handle]T),
	}
}

// Insert stores v under the next handle and returns it.
func (t *Table[T]) Insert(v T) Handle {
	t.mu.Lock()
	h := t.next
	t.next++
	t.entries[h] = v
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Value: v})
	return h
}

// Get returns the value stored under h.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[h]
	if !ok {
		var zero T
		return zero, errors.StaleHandle(uint64(h))
	}
	return v, nil
}

// Remove deletes the entry for h and returns its value.
func (t *Table[T]) Remove(h Handle) (T, error) {
	t.mu.Lock()
	v, ok := t.entries[h]
	if !ok {
		t.mu.Unlock()
		var zero T
		return zero, errors.StaleHandle(uint64(h))
	}
	delete(t.entries, h)
	t.mu.Unlock()

	t.dropped(h, v)
	return v, nil
}

// Revoke deletes the entry for h without calling Drop. It undoes an Insert
// whose handle never reached native code; the caller still owns the value.
func (t *Table[T]) Revoke(h Handle) error {
	t.mu.Lock()
	v, ok := t.entries[h]
	if !ok {
		t.mu.Unlock()
		return errors.StaleHandle(uint64(h))
	}
	delete(t.entries, h)
	t.mu.Unlock()

	t.notify(Event{Type: EventDropped, Handle: h, Value: v})
	return nil
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Subscribe adds an observer for lifecycle events.
func (t *Table[T]) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer. Observers must be comparable.
func (t *Table[T]) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Close drops every live entry. The counter is kept, so handles issued after
// Close still never collide with earlier ones.
func (t *Table[T]) Close() error {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[Handle]T)
	t.mu.Unlock()

	for h, v := range entries {
		t.dropped(h, v)
	}
	return nil
}

func (t *Table[T]) dropped(h Handle, v T) {
	if d, ok := any(v).(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: h, Value: v})
}

func (t *Table[T]) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}
