package command

import (
	"strings"

	"github.com/adred-codev/respd/internal/resp"
	"github.com/adred-codev/respd/internal/store"
)

const defaultUsername = "default"

// applyACL handles a narrow ACL grammar: WHOAMI, GETUSER <name>, and
// SETUSER <name> >password. Any other SETUSER grammar is unsupported
// and must not be silently extended.
func (srv *Server) applyACL(conn *Conn, cmd Command) Result {
	if len(cmd.Args) == 0 {
		return errResult("ERR wrong number of arguments for 'acl' command")
	}
	switch strings.ToUpper(cmd.Args[0]) {
	case "WHOAMI":
		// NOAUTH rather than a default username when this connection
		// hasn't authenticated.
		if !conn.Authed {
			return errResult("NOAUTH Authentication required.")
		}
		return single(resp.SimpleString(conn.Username))

	case "GETUSER":
		if len(cmd.Args) != 2 {
			return errResult("ERR wrong number of arguments for 'acl|getuser' command")
		}
		hash, ok := srv.Store.GetUserPasswordHash(cmd.Args[1])
		if !ok {
			return single(resp.NullArray())
		}
		return single(resp.ArrayOf(
			resp.BulkStringOf("flags"),
			resp.ArrayOf(resp.BulkStringOf("on")),
			resp.BulkStringOf("passwords"),
			resp.ArrayOf(resp.BulkStringOf(hash)),
		))

	case "SETUSER":
		return srv.applyACLSetUser(cmd.Args[1:])

	default:
		return errResult("ERR unsupported ACL subcommand")
	}
}

// applyACLSetUser parses only the "<name> >password" form.
func (srv *Server) applyACLSetUser(args []string) Result {
	if len(args) != 2 || !strings.HasPrefix(args[1], ">") {
		return errResult("ERR unsupported ACL SETUSER syntax")
	}
	name, plaintext := args[0], args[1][1:]
	srv.Store.InsertUser(name, store.HashPassword(plaintext))
	return single(resp.SimpleString("OK"))
}

// applyAuth verifies "AUTH user pass" against the stored password hash.
func (srv *Server) applyAuth(conn *Conn, cmd Command) Result {
	var username, password string
	switch len(cmd.Args) {
	case 1:
		username, password = defaultUsername, cmd.Args[0]
	case 2:
		username, password = cmd.Args[0], cmd.Args[1]
	default:
		return errResult("ERR wrong number of arguments for 'auth' command")
	}

	if _, ok := srv.Store.GetUserPasswordHash(username); !ok {
		return errResult("WRONGPASS invalid username-password pair or user is disabled.")
	}
	if !srv.Store.Verify(username, password) {
		return errResult("WRONGPASS invalid username-password pair or user is disabled.")
	}
	conn.Authed = true
	conn.Username = username
	return single(resp.SimpleString("OK"))
}
