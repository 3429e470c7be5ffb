package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CollectionSummary describes the persisted state of one collection.
type CollectionSummary struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
	Pending int    `json:"pending"`
}

// NewCollectionsCommand creates the collections command.
func NewCollectionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List collections with local state",
		Long: `List every collection with a cached snapshot or pending changes in the
database, with its visible record count and pending change count.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollections(rootOpts, cmd)
		},
	}
}

func runCollections(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	names, err := st.Collections(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list collections", err).WithErrCode(ErrCodeDatabase)
	}

	summaries := make([]CollectionSummary, 0, len(names))
	for _, name := range names {
		snapshot, err := st.LoadSnapshot(ctx, name)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read collection", err).WithErrCode(ErrCodeDatabase)
		}
		changes, err := st.LoadChanges(ctx, name)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read collection", err).WithErrCode(ErrCodeDatabase)
		}
		s := CollectionSummary{Name: name, Records: len(snapshot)}
		if changes != nil {
			s.Pending = changes.Len()
		}
		summaries = append(summaries, s)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(summaries)
	}
	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No collections.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d cached\t%d pending\n", s.Name, s.Records, s.Pending)
	}
	return nil
}

// ForgetOptions holds flags for the forget command.
type ForgetOptions struct {
	*RootOptions
	Force bool // drop pending changes too
}

// NewForgetCommand creates the forget command.
func NewForgetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ForgetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "forget <collection>",
		Short: "Drop the local state of a collection",
		Long: `Remove the cached snapshot and change log of a collection from the
database. The next sync starts from an empty cache.

Refuses while changes are pending unless --force is given, since those
changes were never pushed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForget(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "forget even if changes are pending")

	return cmd
}

func runForget(opts *ForgetOptions, name string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	changes, err := st.LoadChanges(ctx, name)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read collection", err).WithErrCode(ErrCodeDatabase)
	}
	if changes != nil && changes.Len() > 0 && !opts.Force {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%s has %d pending change(s); use --force to drop them", name, changes.Len()))
	}
	if err := st.Forget(ctx, name); err != nil {
		return WrapExitError(ExitCommandError, "failed to forget collection", err).WithErrCode(ErrCodeDatabase)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(map[string]string{"collection": name})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", name)
	return nil
}
