// Package txn implements the per-connection MULTI/EXEC/DISCARD buffer.
// Only SET, GET and INCR are queueable; every other command executes
// immediately even inside a MULTI block, and concurrent writers on
// other connections may interleave with a pending block.
package txn

// DeferredOp is one queued operation awaiting EXEC.
type DeferredOp struct {
	Name string // "SET", "GET", or "INCR"
	Args []string
}

// Queueable reports whether name is one of the three operations MULTI
// defers rather than executes immediately.
func Queueable(name string) bool {
	switch name {
	case "SET", "GET", "INCR":
		return true
	default:
		return false
	}
}

// Buffer holds one connection's transaction state.
type Buffer struct {
	InMulti bool
	Queue   []DeferredOp
}

// Multi starts a transaction. Returns false if one is already open
// (nested MULTI is an error).
func (b *Buffer) Multi() bool {
	if b.InMulti {
		return false
	}
	b.InMulti = true
	b.Queue = nil
	return true
}

// Enqueue appends a deferred op. Callers must only call this when
// InMulti is true and Queueable(name) is true.
func (b *Buffer) Enqueue(name string, args []string) {
	b.Queue = append(b.Queue, DeferredOp{Name: name, Args: args})
}

// Exec drains and returns the queue, clearing transaction state. ok is
// false if no MULTI was open.
func (b *Buffer) Exec() (ops []DeferredOp, ok bool) {
	if !b.InMulti {
		return nil, false
	}
	ops = b.Queue
	b.InMulti = false
	b.Queue = nil
	return ops, true
}

// Discard clears transaction state. ok is false if no MULTI was open.
func (b *Buffer) Discard() bool {
	if !b.InMulti {
		return false
	}
	b.InMulti = false
	b.Queue = nil
	return true
}
