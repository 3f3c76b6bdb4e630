package command

import (
	"github.com/rs/zerolog"

	"github.com/adred-codev/respd/internal/config"
	"github.com/adred-codev/respd/internal/metrics"
	"github.com/adred-codev/respd/internal/replication"
	"github.com/adred-codev/respd/internal/store"
	"github.com/adred-codev/respd/internal/txn"
	"github.com/adred-codev/respd/internal/workerpool"
)

// Server bundles the dependencies every command variant's apply
// behavior needs: the shared Store, the replication coordinator, the
// server configuration and a logger. One Server is shared by every
// connection.
type Server struct {
	Store     *store.Store
	Repl      *replication.Coordinator
	Config    *config.Config
	Fanout    *workerpool.Pool
	Sys       *metrics.System // nil-safe; feeds INFO's cpu/memory fields
	Logger    zerolog.Logger
	StartedAt int64 // unix seconds, used by INFO's uptime field
}

// Conn carries the per-connection state a command's apply behavior may
// read or mutate: the transaction buffer, auth state, and the set of
// channels this connection is subscribed to. It is deliberately free of
// any socket/IO handle. The server package owns the socket and drives
// the subscribed-mode read loop; Dispatch only ever returns data.
type Conn struct {
	ID          string
	Txn         txn.Buffer
	Authed      bool
	Username    string
	Subs        map[string]*store.Subscription
	IsReplica   bool // true once this connection completed PSYNC
	ReplicaRef  *replication.Replica
	ReplicaPort int // advertised via REPLCONF listening-port, used if this conn later PSYNCs
}

// NewConn returns a fresh per-connection state.
func NewConn(id string) *Conn {
	return &Conn{ID: id, Subs: make(map[string]*store.Subscription)}
}

// UnsubscribeAll tears down every live subscription, used by RESET and
// by the server on connection close.
func (c *Conn) UnsubscribeAll() {
	for ch, sub := range c.Subs {
		sub.Unsubscribe()
		delete(c.Subs, ch)
	}
}

// Subscribed reports whether this connection has any live
// subscriptions, which restricts the commands it may run.
func (c *Conn) Subscribed() bool { return len(c.Subs) > 0 }

// restrictedWhileSubscribed is the only command subset a subscribed
// connection may run until it unsubscribes from everything.
var restrictedWhileSubscribed = map[string]bool{
	"SUBSCRIBE": true, "UNSUBSCRIBE": true, "PING": true, "QUIT": true, "RESET": true,
}

// AllowedWhileSubscribed reports whether name may run on a connection
// currently in subscribed mode.
func AllowedWhileSubscribed(name string) bool { return restrictedWhileSubscribed[name] }
