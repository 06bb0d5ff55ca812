package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/embarcadero/internal/recording"
	"github.com/roach88/embarcadero/internal/refcount"
	"github.com/roach88/embarcadero/internal/store"
)

// ListResult holds every recorded path.
type ListResult struct {
	Paths []recording.ListItem `json:"paths"`
	Total int                  `json:"total"`
}

func (r ListResult) String() string {
	if r.Total == 0 {
		return "No paths recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s  %-20s  %-20s  %7s  %s\n", "ID", "STARTED", "STOPPED", "SAMPLES", "NAME")
	for _, p := range r.Paths {
		stop := "recording"
		if p.StopTimeMillis != nil {
			stop = formatMillis(*p.StopTimeMillis)
		}
		fmt.Fprintf(&b, "%-36s  %-20s  %-20s  %7d  %s\n",
			p.RecordID, formatMillis(p.StartTimeMillis), stop, p.SampleCount, p.Name)
	}
	fmt.Fprintf(&b, "%d path(s)", r.Total)
	return b.String()
}

// formatMillis renders Unix milliseconds as UTC RFC 3339.
func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded paths",
		Long: `List every recorded path of the account, oldest first.

Examples:
  embarcadero list
  embarcadero list --account alice --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
	return cmd
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	sess, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	var items []recording.ListItem
	err = refcount.With(sess.user.Handle, func(ds *store.Locked) error {
		ds.Lock()
		defer ds.Unlock()
		items, err = recording.QueryPathList(ctx, ds.Store())
		return err
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list paths", err)
	}
	formatter.VerboseLog("Found %d path(s) in %s", len(items), sess.manager.DatabasePath(sess.user.AccountID))

	return formatter.Success(ListResult{Paths: items, Total: len(items)})
}
