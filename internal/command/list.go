package command

import (
	"context"
	"strconv"
	"time"

	"github.com/adred-codev/respd/internal/resp"
)

func (srv *Server) applyRPush(cmd Command) Result {
	if len(cmd.Args) < 2 {
		return errResult("ERR wrong number of arguments for 'rpush' command")
	}
	vals := bulkValues(cmd.Args[1:])
	n, err := srv.Store.RPush(cmd.Args[0], vals...)
	if err != nil {
		return errResult(err.Error())
	}
	return single(resp.IntegerFrame(int64(n)))
}

func (srv *Server) applyLPush(cmd Command) Result {
	if len(cmd.Args) < 2 {
		return errResult("ERR wrong number of arguments for 'lpush' command")
	}
	vals := bulkValues(cmd.Args[1:])
	n, err := srv.Store.LPush(cmd.Args[0], vals...)
	if err != nil {
		return errResult(err.Error())
	}
	return single(resp.IntegerFrame(int64(n)))
}

func bulkValues(args []string) [][]byte {
	vals := make([][]byte, len(args))
	for i, a := range args {
		vals[i] = []byte(a)
	}
	return vals
}

func (srv *Server) applyLRange(cmd Command) Result {
	if len(cmd.Args) != 3 {
		return errResult("ERR wrong number of arguments for 'lrange' command")
	}
	start, err := strconv.Atoi(cmd.Args[1])
	if err != nil {
		return errResult("ERR value is not an integer or out of range")
	}
	end, err := strconv.Atoi(cmd.Args[2])
	if err != nil {
		return errResult("ERR value is not an integer or out of range")
	}
	vals, err := srv.Store.LRange(cmd.Args[0], start, end)
	if err != nil {
		return errResult(err.Error())
	}
	items := make([]resp.Frame, len(vals))
	for i, v := range vals {
		items[i] = resp.BulkString(v)
	}
	return single(resp.ArrayOf(items...))
}

func (srv *Server) applyLLen(cmd Command) Result {
	if len(cmd.Args) != 1 {
		return errResult("ERR wrong number of arguments for 'llen' command")
	}
	n, err := srv.Store.LLen(cmd.Args[0])
	if err != nil {
		return errResult(err.Error())
	}
	return single(resp.IntegerFrame(int64(n)))
}

// applyLPop handles both the plain "LPOP key" form (pop one, reply a
// single bulk or nil) and "LPOP key count" (reply an array).
func (srv *Server) applyLPop(cmd Command) Result {
	switch len(cmd.Args) {
	case 1:
		vals, err := srv.Store.LPop(cmd.Args[0], 1)
		if err != nil {
			return errResult(err.Error())
		}
		if len(vals) == 0 {
			return single(resp.NullBulk())
		}
		return single(resp.BulkString(vals[0]))
	case 2:
		count, err := strconv.Atoi(cmd.Args[1])
		if err != nil || count < 0 {
			return errResult("ERR value is out of range, must be positive")
		}
		vals, err := srv.Store.LPop(cmd.Args[0], count)
		if err != nil {
			return errResult(err.Error())
		}
		if vals == nil {
			return single(resp.NullArray())
		}
		items := make([]resp.Frame, len(vals))
		for i, v := range vals {
			items[i] = resp.BulkString(v)
		}
		return single(resp.ArrayOf(items...))
	default:
		return errResult("ERR wrong number of arguments for 'lpop' command")
	}
}

// applyBLPop parses "BLPOP key timeout_sec_float" and blocks until the
// key has a head element or the deadline passes. A timeout <= 0 blocks
// forever.
func (srv *Server) applyBLPop(cmd Command) Result {
	if len(cmd.Args) != 2 {
		return errResult("ERR wrong number of arguments for 'blpop' command")
	}
	key := cmd.Args[0]
	secs, err := strconv.ParseFloat(cmd.Args[1], 64)
	if err != nil {
		return errResult("ERR timeout is not a float or out of range")
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	var deadline time.Time
	if secs > 0 {
		deadline = time.Now().Add(time.Duration(secs * float64(time.Second)))
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	v, ok := srv.Store.BLPop(ctx, key, deadline)
	if !ok {
		return single(resp.NullArray())
	}
	return single(resp.ArrayOf(resp.BulkStringOf(key), resp.BulkString(v)))
}
