package command

import (
	"fmt"

	"github.com/adred-codev/respd/internal/resp"
	"github.com/adred-codev/respd/internal/txn"
)

// Result is what Dispatch produces for one applied command: zero or
// more reply frames to write in order, whether the command is a writer
// that must be replicated (currently only SET), and whether the
// connection should close after the reply is flushed.
type Result struct {
	Frames      []resp.Frame
	IsWriter    bool
	Close       bool
	BecameRepl  bool   // set after a successful PSYNC; server registers the replica
	RDBPayload  []byte // non-nil after PSYNC: raw RDB bytes the server writes via resp.WriteContentFile
	EnteredSubs bool   // set after the first SUBSCRIBE on this connection
	NoReply     bool   // true for REPLCONF ACK, which expects no response frame
}

func single(f resp.Frame) Result { return Result{Frames: []resp.Frame{f}} }

func errResult(msg string) Result { return single(resp.ErrorString(msg)) }

// Dispatch routes cmd to its apply behavior. srv is shared across all
// connections; conn is this connection's private state.
func (srv *Server) Dispatch(conn *Conn, cmd Command) Result {
	name := cmd.Name

	if conn.Subscribed() && !AllowedWhileSubscribed(name) {
		return errResult(fmt.Sprintf("ERR Can't execute '%s': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context", name))
	}

	// Inside a MULTI block, SET/GET/INCR are queued rather than applied;
	// everything else executes immediately.
	if conn.Txn.InMulti && name != "MULTI" && name != "EXEC" && name != "DISCARD" {
		if txn.Queueable(name) {
			conn.Txn.Enqueue(name, cmd.Args)
			return single(resp.SimpleString("QUEUED"))
		}
	}

	switch name {
	case "PING":
		return srv.applyPing(cmd)
	case "ECHO":
		return srv.applyEcho(cmd)
	case "QUIT":
		return Result{Frames: []resp.Frame{resp.SimpleString("OK")}, Close: true}
	case "RESET":
		conn.UnsubscribeAll()
		*conn = *NewConn(conn.ID)
		return single(resp.SimpleString("RESET"))

	case "GET", "SET", "INCR":
		return srv.applyString(cmd)
	case "DEL":
		return srv.applyDel(cmd)
	case "EXISTS":
		return srv.applyExists(cmd)
	case "KEYS":
		return srv.applyKeys(cmd)
	case "TYPE":
		return srv.applyType(cmd)

	case "MULTI":
		return srv.applyMulti(conn)
	case "EXEC":
		return srv.applyExec(conn)
	case "DISCARD":
		return srv.applyDiscard(conn)

	case "SUBSCRIBE":
		return srv.applySubscribe(conn, cmd)
	case "UNSUBSCRIBE":
		return srv.applyUnsubscribe(conn, cmd)
	case "PUBLISH":
		return srv.applyPublish(cmd)

	case "XADD":
		return srv.applyXAdd(cmd)
	case "XRANGE":
		return srv.applyXRange(cmd)
	case "XREAD":
		return srv.applyXRead(cmd)

	case "ZADD":
		return srv.applyZAdd(cmd)
	case "ZRANK":
		return srv.applyZRank(cmd)
	case "ZRANGE":
		return srv.applyZRange(cmd)
	case "ZCARD":
		return srv.applyZCard(cmd)
	case "ZSCORE":
		return srv.applyZScore(cmd)
	case "ZREM":
		return srv.applyZRem(cmd)

	case "GEOADD":
		return srv.applyGeoAdd(cmd)
	case "GEOPOS":
		return srv.applyGeoPos(cmd)
	case "GEODIST":
		return srv.applyGeoDist(cmd)
	case "GEOSEARCH":
		return srv.applyGeoSearch(cmd)

	case "RPUSH":
		return srv.applyRPush(cmd)
	case "LPUSH":
		return srv.applyLPush(cmd)
	case "LRANGE":
		return srv.applyLRange(cmd)
	case "LLEN":
		return srv.applyLLen(cmd)
	case "LPOP":
		return srv.applyLPop(cmd)
	case "BLPOP":
		return srv.applyBLPop(cmd)

	case "CONFIG":
		return srv.applyConfig(cmd)
	case "INFO":
		return srv.applyInfo(conn, cmd)

	case "REPLCONF":
		return srv.applyReplConf(conn, cmd)
	case "PSYNC":
		return srv.applyPSync(conn, cmd)
	case "WAIT":
		return srv.applyWait(cmd)

	case "ACL":
		return srv.applyACL(conn, cmd)
	case "AUTH":
		return srv.applyAuth(conn, cmd)

	default:
		return errResult(fmt.Sprintf("ERR unknown command '%s'", name))
	}
}
