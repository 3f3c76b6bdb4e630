package command

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adred-codev/respd/internal/config"
	"github.com/adred-codev/respd/internal/metrics"
	"github.com/adred-codev/respd/internal/replication"
	"github.com/adred-codev/respd/internal/resp"
	"github.com/adred-codev/respd/internal/store"
	"github.com/adred-codev/respd/internal/workerpool"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := zerolog.Nop()
	pool := workerpool.New(1, 8, logger)
	pool.Start(ctx)
	t.Cleanup(pool.Stop)

	return &Server{
		Store:  store.New(ctx),
		Repl:   replication.New(100, 5, logger),
		Config: &config.Config{Dir: "/data", DBFilename: "dump.rdb"},
		Fanout: pool,
		Logger: logger,
	}
}

func mustParse(t *testing.T, name string, args ...string) Command {
	t.Helper()
	return Command{Name: name, Args: args}
}

// TestPing checks the bare PING reply.
func TestPing(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")
	result := srv.Dispatch(conn, mustParse(t, "PING"))
	require.Len(t, result.Frames, 1)
	assert.Equal(t, resp.SimpleString("PONG"), result.Frames[0])
}

// TestSetGet checks that GET returns the most recent SET value.
func TestSetGet(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")

	setResult := srv.Dispatch(conn, mustParse(t, "SET", "k", "v"))
	require.Len(t, setResult.Frames, 1)
	assert.Equal(t, resp.SimpleString("OK"), setResult.Frames[0])
	assert.True(t, setResult.IsWriter)

	getResult := srv.Dispatch(conn, mustParse(t, "GET", "k"))
	require.Len(t, getResult.Frames, 1)
	assert.Equal(t, resp.BulkStringOf("v"), getResult.Frames[0])
}

// TestIncr checks INCR on an unset key and again on the result.
func TestIncr(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")

	r1 := srv.Dispatch(conn, mustParse(t, "INCR", "n"))
	assert.Equal(t, resp.IntegerFrame(1), r1.Frames[0])

	r2 := srv.Dispatch(conn, mustParse(t, "INCR", "n"))
	assert.Equal(t, resp.IntegerFrame(2), r2.Frames[0])
}

// TestMultiExec checks the queue-then-drain transaction flow.
func TestMultiExec(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")

	multi := srv.Dispatch(conn, mustParse(t, "MULTI"))
	assert.Equal(t, resp.SimpleString("OK"), multi.Frames[0])

	set := srv.Dispatch(conn, mustParse(t, "SET", "a", "1"))
	assert.Equal(t, resp.SimpleString("QUEUED"), set.Frames[0])

	incr := srv.Dispatch(conn, mustParse(t, "INCR", "a"))
	assert.Equal(t, resp.SimpleString("QUEUED"), incr.Frames[0])

	exec := srv.Dispatch(conn, mustParse(t, "EXEC"))
	require.Len(t, exec.Frames, 1)
	require.Equal(t, resp.Array, exec.Frames[0].Kind)
	require.Len(t, exec.Frames[0].Items, 2)
	assert.Equal(t, resp.SimpleString("OK"), exec.Frames[0].Items[0])
	assert.Equal(t, resp.IntegerFrame(2), exec.Frames[0].Items[1])
}

func TestExecWithoutMulti(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")
	result := srv.Dispatch(conn, mustParse(t, "EXEC"))
	require.Len(t, result.Frames, 1)
	assert.Equal(t, resp.Error, result.Frames[0].Kind)
	assert.Equal(t, "ERR EXEC without MULTI", result.Frames[0].Str)
}

func TestNestedMultiRejected(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")
	srv.Dispatch(conn, mustParse(t, "MULTI"))
	result := srv.Dispatch(conn, mustParse(t, "MULTI"))
	assert.Equal(t, resp.Error, result.Frames[0].Kind)
}

// TestXAddErrors checks the 0-0 and non-increasing ID rejections.
func TestXAddErrors(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")

	zero := srv.Dispatch(conn, mustParse(t, "XADD", "s", "0-0", "f", "v"))
	assert.Equal(t, resp.Error, zero.Frames[0].Kind)
	assert.Equal(t, "ERR The ID specified in XADD must be greater than 0-0", zero.Frames[0].Str)

	added := srv.Dispatch(conn, mustParse(t, "XADD", "s", "1-1", "f", "v"))
	assert.Equal(t, resp.BulkStringOf("1-1"), added.Frames[0])

	tooSmall := srv.Dispatch(conn, mustParse(t, "XADD", "s", "1-0", "f", "v"))
	assert.Equal(t, resp.Error, tooSmall.Frames[0].Kind)
	assert.Equal(t, "ERR The ID specified in XADD is equal or smaller than the target stream top item", tooSmall.Frames[0].Str)
}

// TestZAddZRange checks score-ordered range retrieval.
func TestZAddZRange(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")

	srv.Dispatch(conn, mustParse(t, "ZADD", "z", "1", "a"))
	srv.Dispatch(conn, mustParse(t, "ZADD", "z", "2", "b"))
	result := srv.Dispatch(conn, mustParse(t, "ZRANGE", "z", "0", "-1"))
	require.Len(t, result.Frames[0].Items, 2)
	assert.Equal(t, resp.BulkStringOf("a"), result.Frames[0].Items[0])
	assert.Equal(t, resp.BulkStringOf("b"), result.Frames[0].Items[1])
}

func TestUnknownCommand(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")
	result := srv.Dispatch(conn, mustParse(t, "NOPE"))
	assert.Equal(t, resp.Error, result.Frames[0].Kind)
	assert.Equal(t, "ERR unknown command 'NOPE'", result.Frames[0].Str)
}

func TestSubscribedModeRestrictsCommands(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")

	sub := srv.Dispatch(conn, mustParse(t, "SUBSCRIBE", "news"))
	assert.True(t, sub.EnteredSubs)

	blocked := srv.Dispatch(conn, mustParse(t, "GET", "k"))
	assert.Equal(t, resp.Error, blocked.Frames[0].Kind)

	ping := srv.Dispatch(conn, mustParse(t, "PING"))
	assert.Equal(t, resp.SimpleString("PONG"), ping.Frames[0])
}

func TestDelAndExists(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")

	srv.Dispatch(conn, mustParse(t, "SET", "k", "v"))
	exists := srv.Dispatch(conn, mustParse(t, "EXISTS", "k", "missing"))
	assert.Equal(t, resp.IntegerFrame(1), exists.Frames[0])

	del := srv.Dispatch(conn, mustParse(t, "DEL", "k", "missing"))
	assert.Equal(t, resp.IntegerFrame(1), del.Frames[0])
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")

	whoamiBefore := srv.Dispatch(conn, mustParse(t, "ACL", "WHOAMI"))
	require.Len(t, whoamiBefore.Frames, 1)
	assert.Equal(t, resp.Error, whoamiBefore.Frames[0].Kind)
	assert.Contains(t, whoamiBefore.Frames[0].Str, "NOAUTH")

	setUser := srv.Dispatch(conn, mustParse(t, "ACL", "SETUSER", "alice", ">secret"))
	assert.Equal(t, resp.SimpleString("OK"), setUser.Frames[0])

	badAuth := srv.Dispatch(conn, mustParse(t, "AUTH", "alice", "wrong"))
	assert.Equal(t, resp.Error, badAuth.Frames[0].Kind)

	goodAuth := srv.Dispatch(conn, mustParse(t, "AUTH", "alice", "secret"))
	assert.Equal(t, resp.SimpleString("OK"), goodAuth.Frames[0])
	assert.True(t, conn.Authed)

	whoamiAfter := srv.Dispatch(conn, mustParse(t, "ACL", "WHOAMI"))
	assert.Equal(t, resp.SimpleString("alice"), whoamiAfter.Frames[0])
}

func TestInfoSections(t *testing.T) {
	srv := newTestServer(t)
	srv.Sys = metrics.NewSystem()
	conn := NewConn("c1")

	repl := srv.Dispatch(conn, mustParse(t, "INFO", "replication"))
	require.Len(t, repl.Frames, 1)
	assert.Contains(t, string(repl.Frames[0].Bulk), "role:master")
	assert.NotContains(t, string(repl.Frames[0].Bulk), "used_memory")

	bare := srv.Dispatch(conn, mustParse(t, "INFO"))
	require.Len(t, bare.Frames, 1)
	body := string(bare.Frames[0].Bulk)
	assert.Contains(t, body, "uptime_in_seconds:")
	assert.Contains(t, body, "used_memory:")
	assert.Contains(t, body, "used_cpu_percent:")
}

func TestPSyncAndWait(t *testing.T) {
	srv := newTestServer(t)
	conn := NewConn("c1")

	result := srv.Dispatch(conn, mustParse(t, "PSYNC", "?", "-1"))
	require.Len(t, result.Frames, 1)
	assert.Equal(t, resp.Simple, result.Frames[0].Kind)
	assert.Contains(t, result.Frames[0].Str, "FULLRESYNC")
	assert.NotEmpty(t, result.RDBPayload)
	assert.True(t, result.BecameRepl)

	wait := srv.Dispatch(conn, mustParse(t, "WAIT", "0", "0"))
	require.Len(t, wait.Frames, 1)
	assert.Equal(t, resp.Integer, wait.Frames[0].Kind)
}
