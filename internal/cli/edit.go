package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/embarcadero/internal/recording"
)

// EditResult reports a rename or delete.
type EditResult struct {
	RecordID string `json:"record_id"`
	Action   string `json:"action"`
	Name     string `json:"name,omitempty"`
}

func (r EditResult) String() string {
	switch {
	case r.Action == "deleted":
		return fmt.Sprintf("Deleted path %s", r.RecordID)
	case r.Name == "":
		return fmt.Sprintf("Cleared name of path %s", r.RecordID)
	default:
		return fmt.Sprintf("Renamed path %s to %q", r.RecordID, r.Name)
	}
}

// NewRenameCommand creates the rename command.
func NewRenameCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <path-id> <name>",
		Short: "Rename a path",
		Long: `Set the display name of a path. An empty name clears it.

Example:
  embarcadero rename 0192f3a4-5b6c-7d8e-9f00-112233445566 "Morning loop"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRename(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runRename(opts *RootOptions, recordID, name string, cmd *cobra.Command) error {
	ctx := context.Background()
	sess, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.user.Controller.RenamePath(ctx, recordID, name); err != nil {
		return pathError("failed to rename path", err)
	}
	return opts.formatter(cmd).Success(EditResult{
		RecordID: recordID,
		Action:   "renamed",
		Name:     recording.NormalizeName(name),
	})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <path-id>",
		Short: "Delete a path",
		Long: `Delete a recorded path. A recording in progress on that path ends.

Example:
  embarcadero delete 0192f3a4-5b6c-7d8e-9f00-112233445566`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runDelete(opts *RootOptions, recordID string, cmd *cobra.Command) error {
	ctx := context.Background()
	sess, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.user.Controller.DeletePath(ctx, recordID); err != nil {
		return pathError("failed to delete path", err)
	}
	return opts.formatter(cmd).Success(EditResult{RecordID: recordID, Action: "deleted"})
}
