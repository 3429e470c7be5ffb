package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/offsync/internal/ir"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Snapshot bool // print the cached remote records instead of the merged view
}

// ShowResult is the JSON payload of the show command.
type ShowResult struct {
	Collection string      `json:"collection"`
	Records    []ir.Object `json:"records"`
	Digest     string      `json:"digest"` // ir.ViewDigest of Records
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <collection>",
		Short: "Print the merged view of a collection",
		Long: `Print the records of a collection as they would be visible right now:
the last fetched remote snapshot with every pending local change applied.

Nothing is fetched; the command works offline.

Examples:
  offsync show todos
  offsync show todos --snapshot
  offsync show todos --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Snapshot, "snapshot", false, "print the cached remote snapshot only")

	return cmd
}

func runShow(opts *ShowOptions, name string, cmd *cobra.Command) error {
	sess, err := openLocal(opts.RootOptions, cmd, name)
	if err != nil {
		return err
	}
	defer sess.Close()

	records := sess.coll.Current()
	if opts.Snapshot {
		records = sess.coll.Snapshot()
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		digest, err := ir.ViewDigest(records)
		if err != nil {
			return err
		}
		return formatter.Success(ShowResult{Collection: name, Records: records, Digest: digest})
	}
	return writeRecords(cmd.OutOrStdout(), records)
}
