package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ConsoleLogger writes plain lines to a terminal stream, stderr by default.
// Safe for concurrent use.
type ConsoleLogger struct {
	verbose bool
	w       io.Writer
	mu      sync.Mutex
}

// NewConsoleLogger creates a logger on stderr. Verbose lines are dropped unless verbose is set.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	return NewConsoleLoggerTo(os.Stderr, verbose)
}

// NewConsoleLoggerTo creates a logger writing to w.
func NewConsoleLoggerTo(w io.Writer, verbose bool) *ConsoleLogger {
	return &ConsoleLogger{verbose: verbose, w: w}
}

func (l *ConsoleLogger) Verbose(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.write("[VERBOSE] ", format, args)
}

func (l *ConsoleLogger) Info(format string, args ...interface{}) {
	l.write("", format, args)
}

func (l *ConsoleLogger) Error(format string, args ...interface{}) {
	l.write("[ERROR] ", format, args)
}

func (l *ConsoleLogger) write(prefix, format string, args []interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.w, prefix+msg+"\n")
}
