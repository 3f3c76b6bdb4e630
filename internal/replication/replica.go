package replication

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/respd/internal/resp"
)

// ReplicaClient runs the replica side of the handshake and the
// subsequent forward loop: connect, PING, REPLCONF listening-port/capa,
// PSYNC, absorb RDB, then read and react to every frame the master
// streams.
type ReplicaClient struct {
	masterAddr string
	ownPort    int
	logger     zerolog.Logger
	offset     int64 // atomic, in wire bytes consumed since the handshake
}

// NewReplicaClient prepares a replica client that will dial masterAddr
// ("host:port") and advertise ownPort via REPLCONF listening-port.
func NewReplicaClient(masterAddr string, ownPort int, logger zerolog.Logger) *ReplicaClient {
	return &ReplicaClient{masterAddr: masterAddr, ownPort: ownPort, logger: logger}
}

// Offset returns the replica's current consumed-bytes offset.
func (rc *ReplicaClient) Offset() int64 { return atomic.LoadInt64(&rc.offset) }

// Run performs the handshake and then forwards frames forever, until
// the connection breaks or done is closed. It returns nil only when it
// notices done closed between frames; a broken connection is reported
// as an error to the caller, which may choose to reconnect.
func (rc *ReplicaClient) Run(done <-chan struct{}) error {
	conn, err := net.Dial("tcp", rc.masterAddr)
	if err != nil {
		return fmt.Errorf("replica: dial master: %w", err)
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	if err := rc.handshake(r, w); err != nil {
		return err
	}

	rc.logger.Info().Str("master", rc.masterAddr).Msg("replication handshake complete, entering forward loop")
	return rc.forwardLoop(r, w, done)
}

func sendCommand(w *bufio.Writer, args ...string) error {
	items := make([]resp.Frame, len(args))
	for i, a := range args {
		items[i] = resp.BulkStringOf(a)
	}
	return resp.WriteFrame(w, resp.ArrayOf(items...))
}

func (rc *ReplicaClient) handshake(r *bufio.Reader, w *bufio.Writer) error {
	if err := sendCommand(w, "PING"); err != nil {
		return fmt.Errorf("replica: send PING: %w", err)
	}
	if _, err := resp.ReadFrame(r); err != nil {
		return fmt.Errorf("replica: read PING reply: %w", err)
	}

	if err := sendCommand(w, "REPLCONF", "listening-port", strconv.Itoa(rc.ownPort)); err != nil {
		return fmt.Errorf("replica: send REPLCONF listening-port: %w", err)
	}
	if _, err := resp.ReadFrame(r); err != nil {
		return fmt.Errorf("replica: read REPLCONF reply: %w", err)
	}

	if err := sendCommand(w, "REPLCONF", "capa", "psync2"); err != nil {
		return fmt.Errorf("replica: send REPLCONF capa: %w", err)
	}
	if _, err := resp.ReadFrame(r); err != nil {
		return fmt.Errorf("replica: read REPLCONF capa reply: %w", err)
	}

	if err := sendCommand(w, "PSYNC", "?", "-1"); err != nil {
		return fmt.Errorf("replica: send PSYNC: %w", err)
	}
	fullresync, err := resp.ReadFrame(r)
	if err != nil {
		return fmt.Errorf("replica: read FULLRESYNC: %w", err)
	}
	if fullresync.Kind != resp.Simple || !strings.HasPrefix(fullresync.Str, "FULLRESYNC") {
		return fmt.Errorf("replica: unexpected PSYNC reply %q", fullresync.Str)
	}

	n, err := resp.ReadBulkHeader(r)
	if err != nil {
		return fmt.Errorf("replica: read RDB bulk header: %w", err)
	}
	if _, err := resp.ReadFile(r, n); err != nil {
		return fmt.Errorf("replica: absorb RDB snapshot: %w", err)
	}
	return nil
}

// forwardLoop reads frames from the master: ACK GETACK requests,
// silently swallow PINGs, and forward anything else to a local loopback
// client connection so it's applied to this process's own store.
func (rc *ReplicaClient) forwardLoop(r *bufio.Reader, w *bufio.Writer, done <-chan struct{}) error {
	loopback, err := rc.dialLoopback()
	if err != nil {
		return fmt.Errorf("replica: dial loopback: %w", err)
	}
	defer loopback.Close()
	loopbackW := bufio.NewWriter(loopback)
	loopbackR := bufio.NewReader(loopback)

	for {
		select {
		case <-done:
			return nil
		default:
		}

		frame, err := resp.ReadFrame(r)
		if err != nil {
			return fmt.Errorf("replica: read from master: %w", err)
		}
		n := resp.WireLen(frame)

		args, err := resp.AsBulkStrings(frame)
		if err != nil || len(args) == 0 {
			atomic.AddInt64(&rc.offset, int64(n))
			continue
		}

		switch strings.ToUpper(args[0]) {
		case "REPLCONF":
			if len(args) >= 2 && strings.ToUpper(args[1]) == "GETACK" {
				// ACK reports the offset before this GETACK's own bytes
				// are counted; the GETACK frame is added afterwards.
				if err := sendCommand(w, "REPLCONF", "ACK", strconv.FormatInt(rc.Offset(), 10)); err != nil {
					return fmt.Errorf("replica: send REPLCONF ACK: %w", err)
				}
				if err := w.Flush(); err != nil {
					return fmt.Errorf("replica: flush ACK: %w", err)
				}
				atomic.AddInt64(&rc.offset, int64(n))
				continue
			}
			atomic.AddInt64(&rc.offset, int64(n))
		case "PING":
			atomic.AddInt64(&rc.offset, int64(n))
		default:
			if err := resp.WriteFrame(loopbackW, frame); err != nil {
				return fmt.Errorf("replica: forward to loopback: %w", err)
			}
			if _, err := resp.ReadFrame(loopbackR); err != nil {
				rc.logger.Warn().Err(err).Msg("loopback reply read failed")
			}
			atomic.AddInt64(&rc.offset, int64(n))
		}
	}
}

func (rc *ReplicaClient) dialLoopback() (net.Conn, error) {
	const dialTimeout = 5 * time.Second
	return net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", rc.ownPort), dialTimeout)
}
