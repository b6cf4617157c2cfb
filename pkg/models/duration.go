package models

import "time"

// timeoutMsPtr converts an optional Executable.Timeout into the
// milliseconds form the JSON encoding carries, preserving nil (absent).
func timeoutMsPtr(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

// durationFromMsPtr is the inverse of timeoutMsPtr.
func durationFromMsPtr(ms *int64) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}
