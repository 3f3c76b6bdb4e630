// Package command implements the command model: parsing a RESP Array
// frame into a command, and dispatching each one to its apply behavior
// against the shared Store, the per-connection transaction buffer, the
// replication coordinator, and the connection itself.
package command

import (
	"strings"

	"github.com/adred-codev/respd/internal/resp"
)

// Command is the parsed form of one client request: an uppercased
// name plus its string arguments. Command identity is carried by Name
// and interpreted by Dispatch's per-group apply functions.
type Command struct {
	Name string
	Args []string
}

// Parse decodes frame (expected to be a non-null Array of bulk strings)
// into a Command. Any other frame shape is a protocol error.
func Parse(frame resp.Frame) (Command, error) {
	parts, err := resp.AsBulkStrings(frame)
	if err != nil {
		return Command{}, err
	}
	if len(parts) == 0 {
		return Command{}, resp.ErrProtocol
	}
	return Command{Name: strings.ToUpper(parts[0]), Args: parts[1:]}, nil
}
