package replication

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator() *Coordinator {
	return New(1000, 5, zerolog.Nop())
}

func pipePair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	return client, server
}

func TestRegisterUnregisterCount(t *testing.T) {
	c := newTestCoordinator()
	client, _ := pipePair(t)

	r := c.Register(client)
	assert.Equal(t, 1, c.Count())

	c.Unregister(r)
	assert.Equal(t, 0, c.Count())
}

func TestAddOffsetIsExact(t *testing.T) {
	c := newTestCoordinator()
	assert.EqualValues(t, 0, c.Offset())

	got := c.AddOffset(37)
	assert.EqualValues(t, 37, got)
	assert.EqualValues(t, 37, c.Offset())

	c.AddOffset(5)
	assert.EqualValues(t, 42, c.Offset())
}

func TestBroadcastWritesToEveryReplica(t *testing.T) {
	c := newTestCoordinator()
	client, server := pipePair(t)
	c.Register(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Broadcast([]byte("*1\r\n$4\r\nPING\r\n"), func(task func()) { task() })
	}()

	buf := make([]byte, len("*1\r\n$4\r\nPING\r\n"))
	_, err := io.ReadFull(server, buf)
	require.NoError(t, err)
	assert.Equal(t, "*1\r\n$4\r\nPING\r\n", string(buf))
	<-done
}

func TestBroadcastDropsReplicaOnWriteError(t *testing.T) {
	c := newTestCoordinator()
	client, server := pipePair(t)
	c.Register(client)
	server.Close() // force the next write on client to fail

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Broadcast([]byte("x"), func(task func()) { task() })
	}()
	<-done

	assert.Equal(t, 0, c.Count())
}

func TestWaitWithNoReplicasReturnsImmediately(t *testing.T) {
	c := newTestCoordinator()
	acked := c.Wait(0, 50)
	assert.Equal(t, 0, acked)
}

func TestWaitQuorumSatisfiedByAck(t *testing.T) {
	c := newTestCoordinator()
	client, server := pipePair(t)
	r := c.Register(client)
	c.AddOffset(10)

	// Drain whatever GETACK frame Wait fans out so the write doesn't block.
	go func() {
		buf := make([]byte, 256)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	go func() {
		time.Sleep(10 * time.Millisecond)
		c.RecordAck(r, c.Offset())
	}()

	acked := c.Wait(1, 500)
	assert.Equal(t, 1, acked)
}

func TestWaitTimesOutAndFallsBackToReplicaCount(t *testing.T) {
	c := newTestCoordinator()
	client, server := pipePair(t)
	c.Register(client)
	c.AddOffset(10)

	go func() {
		buf := make([]byte, 256)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	acked := c.Wait(1, 20)
	assert.Equal(t, 1, acked) // no ACK arrives; falls back to the total replica count
}

func TestDecodeEmptyRDBIsWellFormed(t *testing.T) {
	b := DecodeEmptyRDB()
	require.NotEmpty(t, b)
	assert.Equal(t, "REDIS0011", string(b[:9]))
}
