// Package monitoring holds the diagnostic logger shared by the capture,
// isolation, decode and persistence paths. User-facing progress goes to the
// presentation sinks instead.
package monitoring

import "log"

// Logf receives per-channel decode errors, capture hiccups and store
// failures. Swap it with SetLogger; tests mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger installs f as Logf. nil silences diagnostics.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
