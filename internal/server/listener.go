// Package server implements the listener and per-connection handler:
// the accept loop with back-pressure, and the per-connection
// read-dispatch-reply loop, including the subscribed-connection command
// restriction and the replica write broadcast.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adred-codev/respd/internal/command"
	"github.com/adred-codev/respd/internal/logging"
	"github.com/adred-codev/respd/internal/metrics"
)

// acquireTimeout bounds how long Listener will hold an accepted socket
// open while waiting for a free connection slot before rejecting it.
const acquireTimeout = 5 * time.Second

// Listener accepts client sockets, bounds total concurrent connections
// via a counting semaphore, and spawns one handler goroutine per
// accepted connection.
type Listener struct {
	addr    string
	srv     *command.Server
	sem     chan struct{}
	logger  zerolog.Logger
	wg      sync.WaitGroup
	ln      net.Listener
	closeMu sync.Mutex

	shuttingDown atomic.Bool
}

// New constructs a Listener bound to addr, capping concurrent
// connections at maxConnections via a counting semaphore.
func New(srv *command.Server, addr string, maxConnections int) *Listener {
	return &Listener{
		addr:   addr,
		srv:    srv,
		sem:    make(chan struct{}, maxConnections),
		logger: srv.Logger,
	}
}

// Start binds the listener and runs the accept loop until ctx is
// cancelled. Accept errors retry with exponential backoff, 1s doubling
// up to a 64s cap, matching the classic net/http Server.Serve retry
// shape.
func (l *Listener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", l.addr, err)
	}
	l.ln = ln
	l.logger.Info().Str("addr", l.addr).Msg("respd listening")

	go func() {
		<-ctx.Done()
		l.shuttingDown.Store(true)
		l.closeMu.Lock()
		defer l.closeMu.Unlock()
		ln.Close()
	}()

	var retryDelay time.Duration
acceptLoop:
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break acceptLoop
			}
			if retryDelay == 0 {
				retryDelay = time.Second
			} else {
				retryDelay *= 2
			}
			if retryDelay > 64*time.Second {
				retryDelay = 64 * time.Second
			}
			l.logger.Warn().Err(err).Dur("retry_in", retryDelay).Msg("accept error, backing off")
			select {
			case <-ctx.Done():
				break acceptLoop
			case <-time.After(retryDelay):
			}
			continue
		}
		retryDelay = 0

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.accept(ctx, conn)
		}()
	}

	l.wg.Wait()
	return nil
}

// accept admits one connection: it tries to reserve a semaphore slot for
// up to acquireTimeout, rejecting the connection if the server stays at
// capacity, then runs the connection's handler loop to completion.
func (l *Listener) accept(ctx context.Context, conn net.Conn) {
	select {
	case l.sem <- struct{}{}:
	case <-time.After(acquireTimeout):
		metrics.ConnectionsRejected.Inc()
		l.logger.Warn().Str("remote_addr", conn.RemoteAddr().String()).Msg("connection rejected, server at capacity")
		conn.Close()
		return
	case <-ctx.Done():
		conn.Close()
		return
	}
	defer func() { <-l.sem }()

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()

	id := uuid.NewString()
	logger := l.logger.With().Str("conn_id", id).Str("remote_addr", conn.RemoteAddr().String()).Logger()

	defer func() {
		if r := recover(); r != nil {
			logging.LogPanic(logger, r, "connection handler panicked, connection dropped", map[string]any{"conn_id": id})
		}
	}()

	h := newConnHandler(l.srv, conn, id, logger)
	h.run(ctx)
}

// ActiveConnections reports how many connection slots are currently in
// use, for the ambient /healthz surface.
func (l *Listener) ActiveConnections() int { return len(l.sem) }

// ShuttingDown reports whether Start's ctx has been cancelled, for the
// /healthz handler to reply 503 during graceful shutdown.
func (l *Listener) ShuttingDown() bool { return l.shuttingDown.Load() }
