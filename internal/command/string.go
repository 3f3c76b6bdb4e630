package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/adred-codev/respd/internal/resp"
)

func (srv *Server) applyString(cmd Command) Result {
	switch cmd.Name {
	case "GET":
		return srv.applyGet(cmd)
	case "SET":
		return srv.applySet(cmd)
	case "INCR":
		return srv.applyIncr(cmd)
	default:
		return errResult("ERR unreachable")
	}
}

func (srv *Server) applyGet(cmd Command) Result {
	if len(cmd.Args) != 1 {
		return errResult("ERR wrong number of arguments for 'get' command")
	}
	v, ok, err := srv.Store.Get(cmd.Args[0])
	if err != nil {
		return errResult(err.Error())
	}
	if !ok {
		return single(resp.NullBulk())
	}
	return single(resp.BulkString(v))
}

// parseSetArgs parses SET key val [EX seconds|PX milliseconds] into its
// key/value/ttl, shared by applySet and applyDeferredLocked so the two
// store-locking strategies (self-locking vs. already-locked) don't
// duplicate argument parsing.
func parseSetArgs(args []string) (key string, val []byte, ttl time.Duration, errFrame resp.Frame, ok bool) {
	if len(args) < 2 {
		return "", nil, 0, resp.ErrorString("ERR wrong number of arguments for 'set' command"), false
	}
	key, val = args[0], []byte(args[1])
	if len(args) >= 4 {
		switch strings.ToUpper(args[2]) {
		case "EX":
			secs, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				return "", nil, 0, resp.ErrorString("ERR value is not an integer or out of range"), false
			}
			ttl = time.Duration(secs) * time.Second
		case "PX":
			ms, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				return "", nil, 0, resp.ErrorString("ERR value is not an integer or out of range"), false
			}
			ttl = time.Duration(ms) * time.Millisecond
		default:
			return "", nil, 0, resp.ErrorString("ERR syntax error"), false
		}
	}
	return key, val, ttl, resp.Frame{}, true
}

// applySet parses SET key val [EX seconds|PX milliseconds] and marks
// the result as a writer command so the connection handler replicates
// it.
func (srv *Server) applySet(cmd Command) Result {
	key, val, ttl, errFrame, ok := parseSetArgs(cmd.Args)
	if !ok {
		return single(errFrame)
	}
	if err := srv.Store.Set(key, val, ttl); err != nil {
		return errResult(err.Error())
	}
	r := single(resp.SimpleString("OK"))
	r.IsWriter = true
	return r
}

func (srv *Server) applyIncr(cmd Command) Result {
	if len(cmd.Args) != 1 {
		return errResult("ERR wrong number of arguments for 'incr' command")
	}
	n, err := srv.Store.Incr(cmd.Args[0])
	if err != nil {
		return errResult(err.Error())
	}
	return single(resp.IntegerFrame(n))
}

// applyDeferredLocked replays one queued MULTI op and returns its reply
// frame. Used only by applyExec, which already holds Store.Lock()
// across the whole replay. It calls the store's *Locked entry points
// directly instead of applyGet/applySet/applyIncr, which would each try
// to re-acquire the mutex and deadlock.
func (srv *Server) applyDeferredLocked(name string, args []string) resp.Frame {
	switch name {
	case "GET":
		if len(args) != 1 {
			return resp.ErrorString("ERR wrong number of arguments for 'get' command")
		}
		v, ok, err := srv.Store.GetLocked(args[0])
		if err != nil {
			return resp.ErrorString(err.Error())
		}
		if !ok {
			return resp.NullBulk()
		}
		return resp.BulkString(v)

	case "SET":
		key, val, ttl, errFrame, ok := parseSetArgs(args)
		if !ok {
			return errFrame
		}
		if err := srv.Store.SetLocked(key, val, ttl); err != nil {
			return resp.ErrorString(err.Error())
		}
		return resp.SimpleString("OK")

	case "INCR":
		if len(args) != 1 {
			return resp.ErrorString("ERR wrong number of arguments for 'incr' command")
		}
		n, err := srv.Store.IncrLocked(args[0])
		if err != nil {
			return resp.ErrorString(err.Error())
		}
		return resp.IntegerFrame(n)

	default:
		return resp.ErrorString("ERR internal error replaying transaction")
	}
}
