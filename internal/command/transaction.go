package command

import (
	"github.com/adred-codev/respd/internal/resp"
)

func (srv *Server) applyMulti(conn *Conn) Result {
	if !conn.Txn.Multi() {
		return errResult("ERR MULTI calls can not be nested")
	}
	return single(resp.SimpleString("OK"))
}

func (srv *Server) applyDiscard(conn *Conn) Result {
	if !conn.Txn.Discard() {
		return errResult("ERR DISCARD without MULTI")
	}
	return single(resp.SimpleString("OK"))
}

// applyExec drains the queued ops and replays each one in order under a
// single store-lock acquisition, collecting one reply frame per op into
// an Array. The whole replay is one critical section, not one per op,
// so a concurrent non-transactional writer on another connection cannot
// interleave between this EXEC's queued ops.
func (srv *Server) applyExec(conn *Conn) Result {
	ops, ok := conn.Txn.Exec()
	if !ok {
		return errResult("ERR EXEC without MULTI")
	}
	srv.Store.Lock()
	defer srv.Store.Unlock()
	frames := make([]resp.Frame, len(ops))
	for i, op := range ops {
		frames[i] = srv.applyDeferredLocked(op.Name, op.Args)
	}
	return single(resp.ArrayOf(frames...))
}
