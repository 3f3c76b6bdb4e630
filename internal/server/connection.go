package server

import (
	"bufio"
	"context"
	"io"
	"net"

	"github.com/rs/zerolog"

	"github.com/adred-codev/respd/internal/command"
	"github.com/adred-codev/respd/internal/metrics"
	"github.com/adred-codev/respd/internal/resp"
	"github.com/adred-codev/respd/internal/store"
)

// pubsubDelivery is one message handed from a subscription forwarder
// goroutine to the connection's main select loop.
type pubsubDelivery struct {
	channel string
	data    []byte
}

// frameEvent is one item off the connection's read-loop channel: either
// a successfully parsed frame or the error that ended the read loop.
type frameEvent struct {
	frame resp.Frame
	err   error
}

// connHandler owns one accepted socket end to end, interleaving
// pub/sub deliveries with the next incoming request on the same select
// loop instead of a second writer goroutine.
type connHandler struct {
	srv    *command.Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	id     string
	logger zerolog.Logger

	state   *command.Conn
	pubsub  chan pubsubDelivery
	spawned map[*store.Subscription]bool
}

func newConnHandler(srv *command.Server, conn net.Conn, id string, logger zerolog.Logger) *connHandler {
	return &connHandler{
		srv:     srv,
		conn:    conn,
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
		id:      id,
		logger:  logger,
		state:   command.NewConn(id),
		pubsub:  make(chan pubsubDelivery, 256),
		spawned: make(map[*store.Subscription]bool),
	}
}

// run drives the connection until it closes or ctx is cancelled: each
// iteration awaits the next frame, a pub/sub delivery, or shutdown.
func (h *connHandler) run(ctx context.Context) {
	defer h.cleanup()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan frameEvent, 1)
	go h.readLoop(connCtx, frames)

	for {
		select {
		case <-ctx.Done():
			return

		case delivery := <-h.pubsub:
			if err := h.writeFrame(pubsubMessageFrame(delivery)); err != nil {
				return
			}

		case ev, ok := <-frames:
			if !ok {
				return
			}
			if ev.err != nil {
				if ev.err == io.EOF {
					return
				}
				// Malformed RESP framing is connection-fatal.
				_ = h.writeFrame(resp.ErrorString("ERR Protocol error: " + ev.err.Error()))
				return
			}
			if !h.handleFrame(ev.frame) {
				return
			}
		}
	}
}

func pubsubMessageFrame(d pubsubDelivery) resp.Frame {
	return resp.ArrayOf(
		resp.BulkStringOf("message"),
		resp.BulkStringOf(d.channel),
		resp.BulkString(d.data),
	)
}

// readLoop feeds frames read from the socket onto ch and closes it once
// the connection ends (io.EOF or any read error).
func (h *connHandler) readLoop(ctx context.Context, ch chan<- frameEvent) {
	defer close(ch)
	for {
		frame, err := resp.ReadFrame(h.reader)
		select {
		case ch <- frameEvent{frame: frame, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// handleFrame parses and dispatches one request frame, writes its
// reply, and reports whether the connection should stay open.
func (h *connHandler) handleFrame(frame resp.Frame) bool {
	cmd, err := command.Parse(frame)
	if err != nil {
		// A frame that isn't a well-formed command array: reply with an
		// error and keep the connection open.
		_ = h.writeFrame(resp.ErrorString("ERR Protocol error: " + err.Error()))
		return true
	}

	result := h.srv.Dispatch(h.state, cmd)
	h.recordMetrics(cmd, result)

	for _, f := range result.Frames {
		if err := h.writeFrame(f); err != nil {
			return false
		}
	}
	if result.RDBPayload != nil {
		if err := resp.WriteContentFile(h.writer, result.RDBPayload); err != nil {
			return false
		}
	}

	if result.BecameRepl {
		h.state.IsReplica = true
		h.state.ReplicaRef = h.srv.Repl.Register(h.conn)
	}

	if result.IsWriter {
		h.replicate(frame)
	}

	if result.EnteredSubs {
		h.spawnForwarders()
	}

	return !result.Close
}

// replicate advances the master offset by the exact wire-byte length of
// the received frame and fans it out to every registered replica.
func (h *connHandler) replicate(frame resp.Frame) {
	wire := resp.Encode(frame)
	h.srv.Repl.AddOffset(len(wire))
	metrics.ReplicationOffset.Set(float64(h.srv.Repl.Offset()))
	h.srv.Repl.Broadcast(wire, func(task func()) { h.srv.Fanout.Submit(task) })
}

// spawnForwarders starts one goroutine per subscription that has not
// already been given a forwarder, copying messages from the store's
// broadcast channel onto this connection's unified pubsub channel so
// the main select loop can interleave them with new requests.
func (h *connHandler) spawnForwarders() {
	for _, sub := range h.state.Subs {
		if h.spawned[sub] {
			continue
		}
		h.spawned[sub] = true
		go func(sub *store.Subscription) {
			for msg := range sub.Messages {
				select {
				case h.pubsub <- pubsubDelivery{channel: sub.Channel, data: msg}:
				default:
					metrics.PubSubDroppedTotal.Inc()
				}
			}
		}(sub)
	}
}

func (h *connHandler) recordMetrics(cmd command.Command, result command.Result) {
	outcome := "ok"
	if len(result.Frames) > 0 && result.Frames[0].Kind == resp.Error {
		outcome = "error"
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Name, outcome).Inc()
	switch cmd.Name {
	case "WAIT":
		metrics.WaitRequestsTotal.Inc()
	case "PUBLISH":
		metrics.PubSubMessagesTotal.Inc()
	}
	if result.BecameRepl {
		metrics.ReplicaCount.Set(float64(h.srv.Repl.Count()))
	}
}

func (h *connHandler) writeFrame(f resp.Frame) error {
	return resp.WriteFrame(h.writer, f)
}

func (h *connHandler) cleanup() {
	h.state.UnsubscribeAll()
	if h.state.IsReplica && h.state.ReplicaRef != nil {
		h.srv.Repl.Unregister(h.state.ReplicaRef)
		metrics.ReplicaCount.Set(float64(h.srv.Repl.Count()))
	}
	h.conn.Close()
	h.logger.Debug().Msg("connection closed")
}
