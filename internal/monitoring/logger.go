// Package monitoring holds the process-wide diagnostic logger used by library
// packages. Binaries and tests may redirect or mute it.
package monitoring

import "log"

// Logger is the printf-style signature shared by every component that logs.
type Logger func(format string, v ...interface{})

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger.
var Logf Logger = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f Logger) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Prefixed returns a logger that tags every line with a component name and
// forwards to whatever Logf is at call time.
func Prefixed(component string) Logger {
	return func(format string, v ...interface{}) {
		Logf("["+component+"] "+format, v...)
	}
}
