package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/offsync/internal/ir"
)

// MutateOptions holds flags for the add, update and delete commands.
type MutateOptions struct {
	*RootOptions
	Data   string // record or patch as a JSON object
	KeepID bool   // add: use the record's own id instead of generating one
}

// MutateResult is the JSON payload of a local mutation.
type MutateResult struct {
	Collection string `json:"collection"`
	Op         string `json:"op"`
	ID         ir.ID  `json:"id"`
	Pending    int    `json:"pending"`
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <collection>",
		Short: "Record a local insert",
		Long: `Record a new record in the collection's change log. The record becomes
visible immediately and is pushed by the next sync.

A fresh id is generated unless --keep-id is set and the record carries a
string or integer "id".

Examples:
  offsync add todos --data '{"title":"buy milk"}'
  offsync add todos --data '{"id":7,"title":"call bob"}' --keep-id`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := parseRecord(opts.Data)
			if err != nil {
				return err
			}
			return mutate(opts, args[0], "add", cmd, func(s *localSession) ir.ID {
				return s.coll.Add(record, !opts.KeepID)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "record as a JSON object (required)")
	cmd.Flags().BoolVar(&opts.KeepID, "keep-id", false, "keep the record's id instead of generating one")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <collection>",
		Short: "Record a local field patch",
		Long: `Record a shallow patch for an existing record. The patch must carry the
target's "id"; its other fields overwrite the record's fields.

Example:
  offsync update todos --data '{"id":7,"done":true}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseRecord(opts.Data)
			if err != nil {
				return err
			}
			id, ok := patch.ID()
			if !ok {
				return NewExitError(ExitCommandError, `invalid --data: patch needs a string or integer "id"`).WithErrCode(ErrCodeInvalidData)
			}
			return mutate(opts, args[0], "update", cmd, func(s *localSession) ir.ID {
				s.coll.Update(patch)
				return id
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "patch as a JSON object with an id (required)")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Record a local removal",
		Long: `Record the removal of a record. Deleting a record that was added locally
and never synced simply cancels the add.

An id that parses as an integer is an integer id; prefix it with "s:" to
force a string id.

Examples:
  offsync delete todos 7
  offsync delete todos s:007`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ir.ParseID(args[1])
			return mutate(opts, args[0], "delete", cmd, func(s *localSession) ir.ID {
				s.coll.Delete(id)
				return id
			})
		},
	}

	return cmd
}

// mutate applies fn to the persisted collection and reports the result.
func mutate(opts *MutateOptions, name, op string, cmd *cobra.Command, fn func(*localSession) ir.ID) error {
	sess, err := openLocal(opts.RootOptions, cmd, name)
	if err != nil {
		return err
	}
	defer sess.Close()

	id := fn(sess)
	result := MutateResult{
		Collection: name,
		Op:         op,
		ID:         id,
		Pending:    len(sess.coll.Pending()),
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (%d pending)\n", op, name, id, result.Pending)
	return nil
}
