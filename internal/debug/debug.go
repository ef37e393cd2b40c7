// Package debug provides conditional logging for devlens.
//
// Debug logging is enabled by setting the DEVLENS_DEBUG environment variable:
//
//	DEVLENS_DEBUG=1 devlens --source http://localhost:8080
//
// Messages go to stderr with timestamps, or to the writer set with
// SetOutput (the TUI redirects to a file so the alt screen stays clean).
// Warnings are additionally handed to the sink registered with SetWarnSink,
// which is how the overlay's Logs tab sees its own failures.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const prefix = "[DEVLENS] "

var (
	mu      sync.RWMutex
	enabled bool
	logger  *log.Logger
	sink    func(string)
)

func init() {
	if os.Getenv("DEVLENS_DEBUG") != "" {
		enabled = true
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	if e && logger == nil {
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, prefix, log.Ltime|log.Lmicroseconds)
}

// SetWarnSink registers fn to receive every warning. Pass nil to detach.
func SetWarnSink(fn func(string)) {
	mu.Lock()
	defer mu.Unlock()
	sink = fn
}

// Log writes a debug message if debug logging is enabled.
func Log(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled {
		return
	}
	logger.Printf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	Log("%s took %v", name, d)
}

// Warn records a recoverable failure. It is always forwarded to the sink and
// written to the log when debugging is on.
func Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	mu.RLock()
	fn := sink
	on := enabled
	l := logger
	mu.RUnlock()
	if on && l != nil {
		l.Print("WARN " + msg)
	}
	if fn != nil {
		fn(msg)
	}
}
