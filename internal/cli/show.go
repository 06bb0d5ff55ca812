package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/embarcadero/internal/geo"
	"github.com/roach88/embarcadero/internal/location"
	"github.com/roach88/embarcadero/internal/recording"
	"github.com/roach88/embarcadero/internal/refcount"
	"github.com/roach88/embarcadero/internal/store"
)

// ShowResult describes one path and its samples.
type ShowResult struct {
	Path           recording.ListItem `json:"path"`
	LengthMeters   float64            `json:"length_meters"`
	DurationMillis int64              `json:"duration_millis"`
	Coords         []location.Sample  `json:"coords"`
}

func (r ShowResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Path:     %s\n", r.Path.RecordID)
	if r.Path.Name != "" {
		fmt.Fprintf(&b, "Name:     %s\n", r.Path.Name)
	}
	fmt.Fprintf(&b, "Started:  %s\n", formatMillis(r.Path.StartTimeMillis))
	if r.Path.StopTimeMillis != nil {
		fmt.Fprintf(&b, "Stopped:  %s\n", formatMillis(*r.Path.StopTimeMillis))
	} else {
		fmt.Fprintf(&b, "Stopped:  (recording)\n")
	}
	fmt.Fprintf(&b, "Samples:  %d\n", len(r.Coords))
	fmt.Fprintf(&b, "Length:   %.1f m\n", r.LengthMeters)
	fmt.Fprintf(&b, "Duration: %s", time.Duration(r.DurationMillis)*time.Millisecond)
	if len(r.Coords) > 0 {
		fmt.Fprintf(&b, "\n\n%-20s  %11s  %12s  %8s  %8s", "TIME", "LATITUDE", "LONGITUDE", "ACCURACY", "ALTITUDE")
		for _, c := range r.Coords {
			fmt.Fprintf(&b, "\n%-20s  %11.6f  %12.6f  %8.1f  %8.1f",
				formatMillis(c.Time), c.Latitude, c.Longitude, c.Accuracy, c.Altitude)
		}
	}
	return b.String()
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <path-id>",
		Short: "Show one path with its samples",
		Long: `Show a recorded path: its times, length, and every sample.

Exit codes:
  0 - Path shown
  1 - No such path
  2 - Command error

Example:
  embarcadero show 0192f3a4-5b6c-7d8e-9f00-112233445566`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runShow(opts *RootOptions, recordID string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	sess, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	var result ShowResult
	err = refcount.With(sess.user.Handle, func(ds *store.Locked) error {
		ds.Lock()
		defer ds.Unlock()

		rec, err := ds.Store().Table(recording.PathsTable).Get(ctx, recordID)
		if err != nil {
			return err
		}
		if result.Path, err = recording.ListItemFrom(rec); err != nil {
			return err
		}
		result.Coords, err = recording.CoordsFrom(rec)
		return err
	})
	if err != nil {
		return pathError("failed to read path", err)
	}

	result.LengthMeters = geo.PathLength(result.Coords)
	result.DurationMillis = geo.Duration(result.Coords)
	return formatter.Success(result)
}
