package recording

import "time"

// Clock supplies wall-clock timestamps for start and stop times.
type Clock interface {
	NowMillis() int64
}

// SystemClock reads the system clock.
type SystemClock struct{}

// NowMillis returns the current time in Unix milliseconds.
func (SystemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}
