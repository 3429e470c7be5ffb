package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/offsync/internal/config"
	"github.com/roach88/offsync/internal/connectivity"
	"github.com/roach88/offsync/internal/engine"
	"github.com/roach88/offsync/internal/metrics"
	"github.com/roach88/offsync/internal/remote"
)

// DefaultSyncTimeout bounds each wait for in-flight fetches and pushes.
const DefaultSyncTimeout = 30 * time.Second

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Watch   bool
	Timeout time.Duration

	// Backend overrides the Redis backend from the config (for testing).
	Backend remote.Backend

	// Ping overrides the Redis PING health check (for testing). Only used
	// together with Backend.
	Ping connectivity.PingFunc
}

// SyncSummary reports one collection after a sync.
type SyncSummary struct {
	Collection string `json:"collection"`
	Records    int    `json:"records"`
	Pending    int    `json:"pending"`
	Online     bool   `json:"online"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync [collection...]",
		Short: "Push pending changes and refresh from the remote",
		Long: `Connect the collections to the Redis remote, push every pending change and
refresh the cached snapshot. Confirmed changes leave the change log.

Without arguments, the collections listed in the config file are synced.
With --watch, the command keeps the collections subscribed: remote changes
are pulled as they happen and pending changes are pushed whenever the remote
becomes reachable, until interrupted.

Exit codes:
  0 - All changes confirmed
  1 - Changes still pending (remote unreachable or rejecting them)
  2 - Command error (bad config, database or remote URL)

Examples:
  offsync sync todos
  offsync sync --config offsync.yaml --watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "keep syncing until interrupted")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", DefaultSyncTimeout, "max wait for in-flight remote calls")

	return cmd
}

func runSync(opts *SyncOptions, args []string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	names := args
	if len(names) == 0 {
		for _, c := range cfg.Collections {
			names = append(names, c.Name)
		}
	}
	if len(names) == 0 {
		return NewExitError(ExitCommandError, "no collections given and none configured")
	}

	backend, ping, closeBackend, err := openBackend(opts, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer stop()
	}

	probe := connectivity.NewProbe(ping, cfg.ProbeInterval, logger)
	stopWatch := probe.Watch(collector.SetOnline)
	defer stopWatch()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	registry := engine.NewRegistry(backend, probe,
		engine.WithPersister(st),
		engine.WithLogger(logger),
		engine.WithMetrics(collector),
	)

	var collections []*engine.Collection
	for _, name := range names {
		collOpts, err := collectionOptions(cfg, name)
		if err != nil {
			return err
		}
		coll := registry.Collection(name, collOpts...)
		unsubscribe := coll.Subscribe(func(v engine.View) {
			logger.Debug("view", "collection", name, "revision", v.Revision, "records", len(v.Records))
		})
		defer unsubscribe()
		collections = append(collections, coll)
	}

	// The initial fetches run before connectivity is known, so pushes
	// start from a loaded snapshot.
	if err := settleAll(ctx, collections, opts.Timeout); err != nil {
		return WrapExitError(ExitFailure, "initial fetch did not finish", err)
	}
	if probe.Check(ctx) {
		if err := settleAll(ctx, collections, opts.Timeout); err != nil {
			return WrapExitError(ExitFailure, "push did not finish", err)
		}
		for _, coll := range collections {
			coll.Refresh()
		}
		if err := settleAll(ctx, collections, opts.Timeout); err != nil {
			return WrapExitError(ExitFailure, "refresh did not finish", err)
		}
	}

	if opts.Watch {
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %d collection(s). Press Ctrl-C to stop.\n", len(collections))
		if err := probe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return WrapExitError(ExitFailure, "connectivity probe failed", err)
		}
		logger.Info("sync stopped gracefully")
	}

	return reportSync(opts, cmd, collections, probe.Online())
}

// openBackend returns the remote backend, its health check and a close
// function.
func openBackend(opts *SyncOptions, cfg *config.Config, logger *slog.Logger) (remote.Backend, connectivity.PingFunc, func(), error) {
	if opts.Backend != nil {
		ping := opts.Ping
		if ping == nil {
			ping = func(context.Context) error { return nil }
		}
		return opts.Backend, ping, func() {}, nil
	}

	r, err := remote.NewRedisFromURL(cfg.Redis.URL, cfg.Redis.Prefix)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "invalid redis url", err).WithErrCode(ErrCodeRemote)
	}
	closeFn := func() {
		if err := r.Client().Close(); err != nil {
			logger.Debug("error closing redis client", "error", err)
		}
	}
	return r, connectivity.RedisPing(r.Client()), closeFn, nil
}

// serveMetrics exposes reg on addr under /metrics until the returned
// function is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func settleAll(ctx context.Context, collections []*engine.Collection, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for _, coll := range collections {
		if err := coll.Settle(ctx); err != nil {
			return fmt.Errorf("settle %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func reportSync(opts *SyncOptions, cmd *cobra.Command, collections []*engine.Collection, online bool) error {
	summaries := make([]SyncSummary, 0, len(collections))
	pending := 0
	for _, coll := range collections {
		s := SyncSummary{
			Collection: coll.Name(),
			Records:    len(coll.Current()),
			Pending:    len(coll.Pending()),
			Online:     online,
		}
		pending += s.Pending
		summaries = append(summaries, s)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		if err := formatter.Success(summaries); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, s := range summaries {
			state := "offline"
			if s.Online {
				state = "online"
			}
			fmt.Fprintf(w, "%s: %d records, %d pending (%s)\n", s.Collection, s.Records, s.Pending, state)
		}
	}

	if pending > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d change(s) still pending", pending)).WithErrCode(ErrCodeRemote).MarkReported()
	}
	return nil
}
