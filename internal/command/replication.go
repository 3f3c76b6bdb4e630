package command

import (
	"strconv"
	"strings"

	"github.com/adred-codev/respd/internal/replication"
	"github.com/adred-codev/respd/internal/resp"
)

// applyReplConf handles both directions of REPLCONF:
// "listening-port"/"capa" during the handshake (reply +OK), and "ACK
// <offset>" from an already-registered replica (record the ack, no
// reply; ACKs are fire-and-forget).
func (srv *Server) applyReplConf(conn *Conn, cmd Command) Result {
	if len(cmd.Args) < 1 {
		return errResult("ERR wrong number of arguments for 'replconf' command")
	}
	switch strings.ToUpper(cmd.Args[0]) {
	case "LISTENING-PORT":
		if len(cmd.Args) != 2 {
			return errResult("ERR wrong number of arguments for 'replconf' command")
		}
		port, err := strconv.Atoi(cmd.Args[1])
		if err != nil {
			return errResult("ERR value is not an integer or out of range")
		}
		conn.ReplicaPort = port
		return single(resp.SimpleString("OK"))

	case "ACK":
		if len(cmd.Args) != 2 {
			return errResult("ERR wrong number of arguments for 'replconf' command")
		}
		offset, err := strconv.ParseInt(cmd.Args[1], 10, 64)
		if err != nil {
			return errResult("ERR value is not an integer or out of range")
		}
		if conn.ReplicaRef != nil {
			srv.Repl.RecordAck(conn.ReplicaRef, offset)
		}
		return Result{NoReply: true}

	default:
		// CAPA and any other sub-command negotiated during the
		// handshake: acknowledge and move on.
		return single(resp.SimpleString("OK"))
	}
}

// applyPSync begins a full resync: reply +FULLRESYNC <MasterID> 0,
// then hand the hard-coded empty RDB blob back to the server package as
// RDBPayload, which writes it via resp.WriteContentFile and registers
// the connection as a replica.
func (srv *Server) applyPSync(conn *Conn, cmd Command) Result {
	if len(cmd.Args) != 2 {
		return errResult("ERR wrong number of arguments for 'psync' command")
	}
	return Result{
		Frames:     []resp.Frame{resp.SimpleString("FULLRESYNC " + replication.MasterID + " 0")},
		BecameRepl: true,
		RDBPayload: replication.DecodeEmptyRDB(),
	}
}

// applyWait implements the WAIT n timeout_ms quorum wait.
func (srv *Server) applyWait(cmd Command) Result {
	if len(cmd.Args) != 2 {
		return errResult("ERR wrong number of arguments for 'wait' command")
	}
	n, err := strconv.Atoi(cmd.Args[0])
	if err != nil {
		return errResult("ERR value is not an integer or out of range")
	}
	timeoutMs, err := strconv.Atoi(cmd.Args[1])
	if err != nil {
		return errResult("ERR value is not an integer or out of range")
	}
	acked := srv.Repl.Wait(n, timeoutMs)
	return single(resp.IntegerFrame(int64(acked)))
}
