// Command respd runs the RESP-compatible in-memory key/value server:
// flag parsing, configuration loading, store/replication wiring, the
// ambient metrics HTTP surface, and signal-driven graceful shutdown.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/adred-codev/respd/internal/command"
	"github.com/adred-codev/respd/internal/config"
	"github.com/adred-codev/respd/internal/logging"
	"github.com/adred-codev/respd/internal/metrics"
	"github.com/adred-codev/respd/internal/rdb"
	"github.com/adred-codev/respd/internal/replication"
	"github.com/adred-codev/respd/internal/server"
	"github.com/adred-codev/respd/internal/store"
	"github.com/adred-codev/respd/internal/workerpool"
)

func main() {
	var (
		port       = flag.Int("port", 6380, "port to listen on")
		replicaOf  = flag.String("replicaof", "", `"HOST PORT" of a master to replicate from`)
		dir        = flag.String("dir", "", "directory to load the RDB snapshot from")
		dbfilename = flag.String("dbfilename", "", "RDB snapshot filename")
	)
	flag.Parse()

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "respd: config: %v\n", err)
		os.Exit(1)
	}
	cfg.Addr = ":" + strconv.Itoa(*port)
	if *replicaOf != "" {
		cfg.ReplicaOf = *replicaOf
	}
	if *dir != "" {
		cfg.Dir = *dir
	}
	if *dbfilename != "" {
		cfg.DBFilename = *dbfilename
	}

	logger := logging.New(logging.Config{Level: logging.Level(cfg.LogLevel), Format: logging.Format(cfg.LogFormat)})
	cfg.LogConfig(logger)

	if _, err := maxprocs.Set(maxprocs.Logger(func(f string, args ...interface{}) { logger.Info().Msgf(f, args...) })); err != nil {
		logger.Warn().Err(err).Msg("automaxprocs: failed to set GOMAXPROCS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New(ctx)
	if err := loadSnapshot(st, cfg.Dir, cfg.DBFilename, logger); err != nil {
		logger.Warn().Err(err).Msg("failed to load RDB snapshot, starting empty")
	}

	repl := replication.New(cfg.ReplConnRateLimit, cfg.WaitPollInterval, logger)
	fanout := workerpool.New(8, 1024, logger)
	fanout.Start(ctx)
	sys := metrics.NewSystem()

	srv := &command.Server{
		Store:     st,
		Repl:      repl,
		Config:    cfg,
		Fanout:    fanout,
		Sys:       sys,
		Logger:    logger,
		StartedAt: time.Now().Unix(),
	}

	listener := server.New(srv, cfg.Addr, cfg.MaxConnections)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return listener.Start(gctx)
	})
	group.Go(func() error {
		metrics.RunSampler(gctx.Done(), sys, 2*time.Second)
		return nil
	})
	group.Go(func() error {
		metrics.RunFanoutSampler(gctx.Done(), fanout.QueueDepth, fanout.Dropped, 2*time.Second)
		return nil
	})
	group.Go(func() error {
		return runMetricsServer(gctx, cfg.MetricsAddr, listener)
	})
	if cfg.ReplicaOf != "" {
		group.Go(func() error {
			runReplicaLoop(gctx, cfg.ReplicaOf, *port, logger)
			return nil
		})
	}

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("respd exited with error")
		fanout.Stop()
		os.Exit(1)
	}
	fanout.Stop()
	logger.Info().Msg("respd shut down cleanly")
}

// loadSnapshot reads dir/dbfilename, if it exists, through the RDB
// parser and replays its entries into st. Already-expired entries are
// skipped rather than loaded and immediately reaped.
func loadSnapshot(st *store.Store, dir, dbfilename string, logger zerolog.Logger) error {
	if dir == "" || dbfilename == "" {
		return nil
	}
	path := filepath.Join(dir, dbfilename)
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("rdb: read %s: %w", path, err)
	}

	entries, err := rdb.Parse(buf)
	if err != nil {
		return fmt.Errorf("rdb: parse %s: %w", path, err)
	}

	now := time.Now()
	loaded := 0
	for _, e := range entries {
		if !e.ExpiresAt.IsZero() && !e.ExpiresAt.After(now) {
			continue
		}
		var ttl time.Duration
		if !e.ExpiresAt.IsZero() {
			ttl = time.Until(e.ExpiresAt)
		}
		if err := st.Set(e.Key, e.Value, ttl); err != nil {
			return fmt.Errorf("rdb: replay key %q: %w", e.Key, err)
		}
		loaded++
	}
	logger.Info().Str("path", path).Int("keys_loaded", loaded).Msg("RDB snapshot loaded")
	return nil
}

// runReplicaLoop runs the replica side of the replication handshake,
// reconnecting with capped exponential backoff if the master
// connection drops, until ctx is cancelled.
func runReplicaLoop(ctx context.Context, replicaOf string, ownPort int, logger zerolog.Logger) {
	parts := strings.Fields(replicaOf)
	if len(parts) != 2 {
		logger.Error().Str("replicaof", replicaOf).Msg(`--replicaof must be "HOST PORT"`)
		return
	}
	masterAddr := parts[0] + ":" + parts[1]

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		rc := replication.NewReplicaClient(masterAddr, ownPort, logger)
		err := rc.Run(ctx.Done())
		if ctx.Err() != nil {
			return
		}
		logger.Warn().Err(err).Str("master", masterAddr).Dur("retry_in", backoff).Msg("replication connection lost, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// runMetricsServer serves the operational HTTP surface: GET /healthz
// and GET /metrics, bound to a separate address from the RESP port.
func runMetricsServer(ctx context.Context, addr string, listener *server.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := "ok"
		if listener.ShuttingDown() {
			status = "shutting_down"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":      status,
			"connections": listener.ActiveConnections(),
		})
	})
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
