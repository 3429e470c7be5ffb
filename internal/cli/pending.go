package cli

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/spf13/cobra"

	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/ir"
)

// PendingOptions holds flags for the pending command.
type PendingOptions struct {
	*RootOptions
	Diff bool // show the merge patch each entry applies
}

// PendingEntry is one change log entry in JSON output.
type PendingEntry struct {
	Change changelog.Change `json:"change"`
	Diff   json.RawMessage  `json:"diff,omitempty"`
}

// PendingResult is the JSON payload of the pending command.
type PendingResult struct {
	Collection string         `json:"collection"`
	Entries    []PendingEntry `json:"entries"`
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PendingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pending <collection>",
		Short: "List local changes not yet confirmed by the remote",
		Long: `List the change log of a collection in identifier order.

With --diff, each entry is shown as the JSON merge patch (RFC 7396) it applies
to the cached remote record: an insert diffs against an empty object and a
delete is the patch null.

Examples:
  offsync pending todos
  offsync pending todos --diff --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPending(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Diff, "diff", false, "show the merge patch of each entry")

	return cmd
}

func runPending(opts *PendingOptions, name string, cmd *cobra.Command) error {
	sess, err := openLocal(opts.RootOptions, cmd, name)
	if err != nil {
		return err
	}
	defer sess.Close()

	snapshot := make(map[ir.ID]ir.Object)
	for _, rec := range sess.coll.Snapshot() {
		if id, ok := rec.ID(); ok {
			if _, dup := snapshot[id]; !dup {
				snapshot[id] = rec
			}
		}
	}

	result := PendingResult{Collection: name, Entries: []PendingEntry{}}
	for _, change := range sess.coll.Pending() {
		entry := PendingEntry{Change: change}
		if opts.Diff {
			diff, err := changeDiff(snapshot[change.ID], change)
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("failed to diff %s %s", change.Kind, change.ID), err)
			}
			entry.Diff = diff
		}
		result.Entries = append(result.Entries, entry)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	for _, e := range result.Entries {
		detail := e.Diff
		if !opts.Diff && e.Change.Kind != changelog.KindDelete {
			data, err := ir.MarshalCanonical(e.Change.Data)
			if err != nil {
				return err
			}
			detail = data
		}
		if len(detail) == 0 {
			fmt.Fprintf(w, "%s %s\n", e.Change.Kind, e.Change.ID)
			continue
		}
		fmt.Fprintf(w, "%s %s %s\n", e.Change.Kind, e.Change.ID, detail)
	}
	return nil
}

// changeDiff returns the merge patch that takes the cached record (nil when
// the remote has none) to the record the change would produce.
func changeDiff(cached ir.Object, change changelog.Change) (json.RawMessage, error) {
	if change.Kind == changelog.KindDelete {
		return json.RawMessage("null"), nil
	}

	base := ir.Object{}
	if cached != nil && change.Kind == changelog.KindUpdate {
		base = cached
	}
	target := change.Data
	if change.Kind == changelog.KindUpdate {
		target = ir.Merge(base, change.Data)
	}

	original, err := ir.MarshalCanonical(base)
	if err != nil {
		return nil, err
	}
	modified, err := ir.MarshalCanonical(target)
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.CreateMergePatch(original, modified)
	if err != nil {
		return nil, err
	}
	return patch, nil
}
