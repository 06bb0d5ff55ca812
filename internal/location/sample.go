// Package location adapts push-style location updates into a pull-style
// queue for a single consumer goroutine.
//
// A Source delivers Samples to subscribed callbacks on whatever goroutine it
// chooses. Queue subscribes to a Source and buffers every update so a worker
// can block on Take until the next Sample arrives.
package location

import "fmt"

// Sample is one location observation.
type Sample struct {
	// Time is the fix time in Unix milliseconds.
	Time int64 `yaml:"time" json:"time"`

	Latitude  float64 `yaml:"lat" json:"latitude"`
	Longitude float64 `yaml:"lon" json:"longitude"`

	// Accuracy is the horizontal accuracy radius in meters.
	Accuracy float64 `yaml:"accuracy" json:"accuracy"`

	// Altitude in meters above the WGS84 ellipsoid.
	Altitude float64 `yaml:"altitude" json:"altitude"`
}

func (s Sample) String() string {
	return fmt.Sprintf("%.6f,%.6f (±%.0fm) @%d", s.Latitude, s.Longitude, s.Accuracy, s.Time)
}
