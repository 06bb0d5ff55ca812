package recording

import "errors"

var (
	// ErrAlreadyRecording is returned by StartRecording while a recording is active.
	ErrAlreadyRecording = errors.New("recording: already recording")

	// ErrNotRecording is returned by StopRecording when no recording is active.
	ErrNotRecording = errors.New("recording: not recording")

	// ErrUnexpectedInterrupt reports a worker whose wait for the next sample
	// was cancelled without a stop request.
	ErrUnexpectedInterrupt = errors.New("recording: wait interrupted without a stop request")

	// ErrInconsistentRecord reports coordinate lists of differing lengths.
	ErrInconsistentRecord = errors.New("recording: coordinate lists out of step")
)
