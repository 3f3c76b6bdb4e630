package command

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/adred-codev/respd/internal/resp"
	"github.com/adred-codev/respd/internal/store"
)

func (srv *Server) applyXAdd(cmd Command) Result {
	if len(cmd.Args) < 4 || len(cmd.Args)%2 != 0 {
		return errResult("ERR wrong number of arguments for 'xadd' command")
	}
	key, idSpec := cmd.Args[0], cmd.Args[1]
	fieldArgs := cmd.Args[2:]
	fields := make([]store.Field, 0, len(fieldArgs)/2)
	for i := 0; i < len(fieldArgs); i += 2 {
		fields = append(fields, store.Field{Name: fieldArgs[i], Value: []byte(fieldArgs[i+1])})
	}

	id, err := srv.Store.XAdd(key, idSpec, fields, uint64(time.Now().UnixMilli()))
	if err != nil {
		return errResult(err.Error())
	}
	return single(resp.BulkStringOf(id.String()))
}

func entryFrame(e store.StreamEntry) resp.Frame {
	fieldItems := make([]resp.Frame, 0, len(e.Fields)*2)
	for _, f := range e.Fields {
		fieldItems = append(fieldItems, resp.BulkStringOf(f.Name), resp.BulkString(f.Value))
	}
	return resp.ArrayOf(
		resp.BulkStringOf(e.ID.String()),
		resp.ArrayOf(fieldItems...),
	)
}

func (srv *Server) applyXRange(cmd Command) Result {
	if len(cmd.Args) != 3 {
		return errResult("ERR wrong number of arguments for 'xrange' command")
	}
	key := cmd.Args[0]
	start, err := store.ParseRangeBound(cmd.Args[1], true)
	if err != nil {
		return errResult(err.Error())
	}
	end, err := store.ParseRangeBound(cmd.Args[2], false)
	if err != nil {
		return errResult(err.Error())
	}
	entries, err := srv.Store.XRange(key, start, end)
	if err != nil {
		return errResult(err.Error())
	}
	items := make([]resp.Frame, len(entries))
	for i, e := range entries {
		items[i] = entryFrame(e)
	}
	return single(resp.ArrayOf(items...))
}

// applyXRead parses "[BLOCK ms] STREAMS key... id..." and reads from
// each named stream after the given id, resolving "$" to the stream's
// current top id at call time.
func (srv *Server) applyXRead(cmd Command) Result {
	args := cmd.Args
	var blockMS int64 = -1
	if len(args) >= 2 && strings.EqualFold(args[0], "BLOCK") {
		ms, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return errResult("ERR timeout is not an integer or out of range")
		}
		blockMS = ms
		args = args[2:]
	}
	if len(args) < 3 || !strings.EqualFold(args[0], "STREAMS") {
		return errResult("ERR syntax error")
	}
	args = args[1:]
	if len(args)%2 != 0 {
		return errResult("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified")
	}
	n := len(args) / 2
	keys := args[:n]
	ids := args[n:]

	afters := make([]store.StreamID, n)
	for i, idSpec := range ids {
		if idSpec == "$" {
			afters[i] = srv.Store.TopID(keys[i])
			continue
		}
		id, err := store.ParseRangeBound(idSpec, false)
		if err != nil {
			return errResult(err.Error())
		}
		// XREAD ids are exclusive lower bounds taken literally, not the
		// "+" max-sentinel ParseRangeBound(..., false) would otherwise
		// substitute for a bare ms.
		if !strings.Contains(idSpec, "-") {
			ms, _ := strconv.ParseUint(idSpec, 10, 64)
			id = store.StreamID{MS: ms, Seq: 0}
		}
		afters[i] = id
	}

	perStream := make([][]store.StreamEntry, n)
	any := false
	for i, key := range keys {
		perStream[i] = srv.Store.XReadAfter(key, afters[i])
		if len(perStream[i]) > 0 {
			any = true
		}
	}

	if !any && blockMS >= 0 {
		ctx := context.Background()
		var cancel context.CancelFunc
		var deadline time.Time
		if blockMS > 0 {
			deadline = time.Now().Add(time.Duration(blockMS) * time.Millisecond)
			ctx, cancel = context.WithDeadline(ctx, deadline)
			defer cancel()
		}
		for i, key := range keys {
			perStream[i] = srv.Store.XReadBlock(ctx, key, afters[i], deadline)
			if len(perStream[i]) > 0 {
				any = true
			}
		}
	}

	if !any {
		return single(resp.NullArray())
	}

	items := make([]resp.Frame, 0, n)
	for i, key := range keys {
		if len(perStream[i]) == 0 {
			continue
		}
		entryItems := make([]resp.Frame, len(perStream[i]))
		for j, e := range perStream[i] {
			entryItems[j] = entryFrame(e)
		}
		items = append(items, resp.ArrayOf(resp.BulkStringOf(key), resp.ArrayOf(entryItems...)))
	}
	return single(resp.ArrayOf(items...))
}
