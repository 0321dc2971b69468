// Package handle provides tables that let native code refer to Go objects by
// integer handle instead of by pointer.
//
// # Handle Assignment
//
// Handles come from a per-table counter that starts at 0 and only moves
// forward. A removed handle is never issued again, so a stale handle can
// only fail lookup; it cannot resolve to an unrelated object.
//
//	t := handle.NewTable[Listener]()
//	h := t.Insert(l)      // 0
//	t.Insert(other)       // 1
//	t.Remove(h)
//	_, err := t.Get(h)    // stale handle
//
// # Lifecycle
//
// Tables are created when a bridge runtime starts and closed when it shuts
// down. Values implementing Dropper are notified when their entry is removed
// or the table closes. Observers receive Created and Dropped events.
//
// # Thread Safety
//
// All operations serialize on one mutex per table.
package handle
