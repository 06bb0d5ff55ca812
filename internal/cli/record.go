package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/embarcadero/internal/account"
	"github.com/roach88/embarcadero/internal/location"
	"github.com/roach88/embarcadero/internal/recording"
	"github.com/roach88/embarcadero/internal/refcount"
	"github.com/roach88/embarcadero/internal/statestream"
	"github.com/roach88/embarcadero/internal/store"
)

// errPathDeleted ends a recording whose path was deleted while it ran.
var errPathDeleted = errors.New("path was deleted during recording")

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Track    string
	Interval time.Duration
}

// RecordResult is the outcome of a recording.
type RecordResult struct {
	RecordID string `json:"record_id"`
	Samples  int    `json:"samples"`
	Complete bool   `json:"complete"`
}

func (r RecordResult) String() string {
	if r.Complete {
		return fmt.Sprintf("Recorded path %s (%d samples)", r.RecordID, r.Samples)
	}
	return fmt.Sprintf("Recorded path %s (%d samples, interrupted)", r.RecordID, r.Samples)
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a path from a location track",
		Long: `Record a new path, fed by replaying a YAML location track.

The recording starts at the first sample and stops when the track is
exhausted or on Ctrl-C. The new path id is printed on exit.

Example:
  embarcadero record --track ./tracks/loop.yaml
  embarcadero record --track ./tracks/loop.yaml --interval 200ms --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Track, "track", "", "path to YAML track file (required)")
	_ = cmd.MarkFlagRequired("track")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "delay between samples (overrides the track and config)")

	return cmd
}

func runRecord(opts *RecordOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	track, err := location.LoadTrack(opts.Track)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load track", err)
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = opts.ReplayInterval
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	// Workers outlive ctx so the stop time is still written after Ctrl-C.
	sess, err := openSession(context.Background(), opts.RootOptions, cmd,
		account.WithFatalHandler(func(error) { cancel() }))
	if err != nil {
		return err
	}
	defer sess.Close()
	ctl := sess.user.Controller

	go func() {
		select {
		case sig := <-sigChan:
			sess.logger.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// The feed starts once the recording subscribes, so no sample is missed.
	listening := make(chan struct{})
	var once sync.Once
	src := location.NewBroadcaster(location.WithUpstream(func() {
		once.Do(func() { close(listening) })
	}, nil))
	defer src.Close()

	states := ctl.State().Subscribe()
	defer states.Close()

	if err := ctl.StartRecording(src); err != nil {
		return WrapExitError(ExitCommandError, "failed to start recording", err)
	}
	formatter.VerboseLog("Recording %q (%d samples)", track.Name, len(track.Samples))

	// watchCtx also ends when the worker exits on its own or the path
	// disappears, so neither wait below outlives the recording.
	watchCtx, stopWatch := context.WithCancelCause(ctx)
	defer stopWatch(nil)
	go func() {
		_ = ctl.Wait(watchCtx)
		stopWatch(errPathDeleted)
	}()

	recordID, err := awaitRecordID(watchCtx, states)
	if err == nil {
		err = replayTrack(watchCtx, sess, track, src, listening, recordID, interval, stopWatch)
	}
	if err != nil && errors.Is(context.Cause(watchCtx), errPathDeleted) {
		err = errPathDeleted
	}

	if stopErr := ctl.StopRecording(); stopErr != nil && !errors.Is(stopErr, recording.ErrNotRecording) {
		return WrapExitError(ExitFailure, "failed to stop recording", stopErr)
	}
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	if waitErr := ctl.Wait(waitCtx); waitErr != nil {
		return WrapExitError(ExitFailure, "recording failed", waitErr)
	}

	if errors.Is(err, errPathDeleted) {
		return WrapExitError(ExitFailure, "recording ended early", err)
	}
	interrupted := errors.Is(err, context.Canceled)
	if err != nil && !interrupted {
		return WrapExitError(ExitFailure, "recording failed", err)
	}
	if recordID == "" {
		return NewExitError(ExitFailure, "recording stopped before the path was created")
	}

	samples, err := countSamples(sess.user.Handle, recordID)
	if err != nil {
		return pathError("failed to read recorded path", err)
	}
	return formatter.Success(RecordResult{
		RecordID: recordID,
		Samples:  samples,
		Complete: !interrupted,
	})
}

// awaitRecordID waits until the controller reports the new path id.
func awaitRecordID(ctx context.Context, states *statestream.Subscription[recording.State]) (string, error) {
	for {
		st, err := states.Next(ctx)
		if err != nil {
			return "", err
		}
		if st.RecordID != "" {
			return st.RecordID, nil
		}
	}
}

// replayTrack plays the track once the recording listens and waits until
// every sample has been committed. A path that can no longer be read ends
// the wait through abort.
func replayTrack(ctx context.Context, sess *session, track *location.Track, src *location.Broadcaster, listening <-chan struct{}, recordID string, interval time.Duration, abort context.CancelCauseFunc) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-listening:
	}

	coords, err := sess.user.Controller.PathCoords(ctx, recordID)
	if err != nil {
		return err
	}
	defer coords.Close()
	data := coords.Data().Subscribe()
	defer data.Close()

	errs := coords.Errors().Subscribe()
	defer errs.Close()
	go func() {
		for {
			err, nextErr := errs.Next(ctx)
			if nextErr != nil {
				return
			}
			if errors.Is(err, store.ErrNotFound) {
				abort(errPathDeleted)
				return
			}
		}
	}()

	feed := location.NewReplayFeed(track, src, interval)
	if err := feed.Run(ctx); err != nil {
		return err
	}
	sess.logger.Debug("track exhausted, waiting for commits", "samples", len(track.Samples))

	for {
		got, err := data.Next(ctx)
		if err != nil {
			return err
		}
		if len(got) >= len(track.Samples) {
			return nil
		}
	}
}

func countSamples(h *refcount.Handle[*store.Locked], recordID string) (int, error) {
	var n int
	err := refcount.With(h, func(ds *store.Locked) error {
		ds.Lock()
		defer ds.Unlock()
		rec, err := ds.Store().Table(recording.PathsTable).Get(context.Background(), recordID)
		if err != nil {
			return err
		}
		item, err := recording.ListItemFrom(rec)
		if err != nil {
			return err
		}
		n = item.SampleCount
		return nil
	})
	return n, err
}
