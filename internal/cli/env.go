package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/offsync/internal/config"
	"github.com/roach88/offsync/internal/connectivity"
	"github.com/roach88/offsync/internal/engine"
	"github.com/roach88/offsync/internal/ir"
	"github.com/roach88/offsync/internal/store"
)

// commandContext returns the command's context, or Background when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadConfig reads the --config file (or the defaults) and applies flag
// overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err).WithErrCode(ErrCodeConfig)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	return cfg, nil
}

// newLogger returns a text logger on w; --verbose enables debug output.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore opens the configured database, creating it if needed.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err).WithErrCode(ErrCodeDatabase)
	}
	return st, nil
}

// collectionOptions returns the engine options configured for name.
func collectionOptions(cfg *config.Config, name string) ([]engine.Option, error) {
	var opts []engine.Option
	if c, ok := cfg.Collection(name); ok && c.IDGenerator != "" {
		gen, err := engine.GeneratorByName(c.IDGenerator)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid collection config", err).WithErrCode(ErrCodeConfig)
		}
		opts = append(opts, engine.WithIDGenerator(gen))
	}
	return opts, nil
}

// localSession is an offline collection over the persisted state. It never
// talks to the remote, so mutations only land in the change log.
type localSession struct {
	store *store.Store
	coll  *engine.Collection
}

func openLocal(opts *RootOptions, cmd *cobra.Command, name string) (*localSession, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	collOpts, err := collectionOptions(cfg, name)
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	collOpts = append(collOpts,
		engine.WithPersister(st),
		engine.WithLogger(newLogger(opts, cmd.ErrOrStderr())),
	)
	return &localSession{
		store: st,
		coll:  engine.NewCollection(name, nil, connectivity.Always(false), collOpts...),
	}, nil
}

func (s *localSession) Close() error {
	return s.store.Close()
}

// parseRecord decodes a --data argument into a record.
func parseRecord(data string) (ir.Object, error) {
	obj, err := ir.UnmarshalObject([]byte(data))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --data (must be a JSON object)", err).WithErrCode(ErrCodeInvalidData)
	}
	return obj, nil
}

// writeRecords prints one canonical JSON record per line.
func writeRecords(w io.Writer, records []ir.Object) error {
	for _, r := range records {
		data, err := ir.MarshalCanonical(r)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}
