package location

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Track is a recorded sequence of fixes loaded from a YAML file:
//
//	name: ferry building loop
//	interval: 1s
//	samples:
//	  - {lat: 37.7955, lon: -122.3937, accuracy: 5, altitude: 3}
//	  - {lat: 37.7961, lon: -122.3929, accuracy: 5, altitude: 3}
type Track struct {
	Name     string        `yaml:"name"`
	Interval time.Duration `yaml:"interval,omitempty"`
	Samples  []Sample      `yaml:"samples"`
}

// LoadTrack reads and parses a track file. Unknown fields are rejected.
func LoadTrack(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track file: %w", err)
	}
	return ParseTrack(data)
}

// ParseTrack parses track YAML.
func ParseTrack(data []byte) (*Track, error) {
	var track Track
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&track); err != nil {
		return nil, fmt.Errorf("failed to parse track YAML: %w", err)
	}
	if len(track.Samples) == 0 {
		return nil, errors.New("track has no samples")
	}
	for i, s := range track.Samples {
		if s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 {
			return nil, fmt.Errorf("sample %d: coordinates out of range: %v", i, s)
		}
	}
	return &track, nil
}

// ReplayFeed publishes a Track's samples into a Broadcaster at a fixed pace.
type ReplayFeed struct {
	track    *Track
	target   *Broadcaster
	interval time.Duration
	now      func() time.Time
}

// NewReplayFeed creates a feed for track. interval overrides the track's own
// interval when positive. Samples with a zero time are stamped when published.
func NewReplayFeed(track *Track, target *Broadcaster, interval time.Duration) *ReplayFeed {
	if interval <= 0 {
		interval = track.Interval
	}
	return &ReplayFeed{
		track:    track,
		target:   target,
		interval: interval,
		now:      time.Now,
	}
}

// Run publishes every sample, waiting interval between them. It returns nil
// once the track is exhausted, or ctx.Err() if ctx is cancelled first.
func (f *ReplayFeed) Run(ctx context.Context) error {
	for i, s := range f.track.Samples {
		if i > 0 && f.interval > 0 {
			timer := time.NewTimer(f.interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if s.Time == 0 {
			s.Time = f.now().UnixMilli()
		}
		f.target.Publish(s)
	}
	return nil
}
