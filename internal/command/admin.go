package command

import (
	"strconv"
	"time"

	"github.com/adred-codev/respd/internal/replication"
	"github.com/adred-codev/respd/internal/resp"
)

func (srv *Server) applyPing(cmd Command) Result {
	if len(cmd.Args) == 0 {
		return single(resp.SimpleString("PONG"))
	}
	return single(resp.BulkStringOf(cmd.Args[0]))
}

func (srv *Server) applyEcho(cmd Command) Result {
	if len(cmd.Args) != 1 {
		return errResult("ERR wrong number of arguments for 'echo' command")
	}
	return single(resp.BulkStringOf(cmd.Args[0]))
}

func (srv *Server) applyDel(cmd Command) Result {
	if len(cmd.Args) == 0 {
		return errResult("ERR wrong number of arguments for 'del' command")
	}
	n := srv.Store.Del(cmd.Args...)
	return single(resp.IntegerFrame(int64(n)))
}

func (srv *Server) applyExists(cmd Command) Result {
	if len(cmd.Args) == 0 {
		return errResult("ERR wrong number of arguments for 'exists' command")
	}
	n := srv.Store.Exists(cmd.Args...)
	return single(resp.IntegerFrame(int64(n)))
}

func (srv *Server) applyKeys(cmd Command) Result {
	if len(cmd.Args) != 1 {
		return errResult("ERR wrong number of arguments for 'keys' command")
	}
	keys := srv.Store.Keys(cmd.Args[0])
	items := make([]resp.Frame, len(keys))
	for i, k := range keys {
		items[i] = resp.BulkStringOf(k)
	}
	return single(resp.ArrayOf(items...))
}

func (srv *Server) applyType(cmd Command) Result {
	if len(cmd.Args) != 1 {
		return errResult("ERR wrong number of arguments for 'type' command")
	}
	return single(resp.SimpleString(srv.Store.Type(cmd.Args[0]).String()))
}

func (srv *Server) applyConfig(cmd Command) Result {
	if len(cmd.Args) != 2 || cmd.Args[0] != "GET" {
		return errResult("ERR unsupported CONFIG subcommand")
	}
	var value string
	switch cmd.Args[1] {
	case "dir":
		value = srv.Config.Dir
	case "dbfilename":
		value = srv.Config.DBFilename
	default:
		return single(resp.ArrayOf())
	}
	return single(resp.ArrayOf(resp.BulkStringOf(cmd.Args[1]), resp.BulkStringOf(value)))
}

func (srv *Server) applyInfo(conn *Conn, cmd Command) Result {
	section := ""
	if len(cmd.Args) > 0 {
		section = cmd.Args[0]
	}
	if section != "" && section != "replication" {
		return single(resp.BulkStringOf(""))
	}

	role := "master"
	if srv.Config.ReplicaOf != "" {
		role = "slave"
	}
	info := "role:" + role +
		"\r\nmaster_replid:" + replication.MasterID +
		"\r\nmaster_repl_offset:" + strconv.FormatInt(srv.Repl.Offset(), 10)
	if section == "" {
		header := "uptime_in_seconds:" + strconv.FormatInt(time.Now().Unix()-srv.StartedAt, 10)
		if srv.Sys != nil {
			header += "\r\nused_memory:" + strconv.FormatUint(srv.Sys.MemoryRSSBytes(), 10) +
				"\r\nused_cpu_percent:" + strconv.FormatFloat(srv.Sys.CPUPercent(), 'f', 2, 64)
		}
		info = header + "\r\n" + info
	}
	return single(resp.BulkStringOf(info))
}
