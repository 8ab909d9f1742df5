package helpers

import "time"

func IntSecondDefault(x int, def time.Duration) time.Duration {
	if x <= 0 {
		return def
	}
	return time.Duration(x) * time.Second
}

// IntervalMillis converts protocol interval seconds into timer milliseconds.
func IntervalMillis(sec uint32) uint64 { return uint64(sec) * 1000 }

func IntMillisecondDefault(x int, def time.Duration) time.Duration {
	if x <= 0 {
		return def
	}
	return time.Duration(x) * time.Millisecond
}
