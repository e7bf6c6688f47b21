package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger wraps a standard library logger with a debug switch. Debug output is
// dropped unless enabled, so the reader can log every buffer load without
// flooding the default output.
type Logger struct {
	l     *log.Logger
	debug bool
}

var std = NewFromLogger(log.Default(), false)

// Default returns the standard logger used by the package-level output functions.
func Default() *Logger { return std }

// Discard returns a logger that writes nowhere.
func Discard() *Logger {
	return New(io.Discard, "", 0, false)
}

func New(out io.Writer, prefix string, flag int, debug bool) *Logger {
	return NewFromLogger(log.New(out, prefix, flag), debug)
}

func NewFromLogger(l *log.Logger, debug bool) *Logger {
	return &Logger{l: l, debug: debug}
}

// Debug reports whether debug output is enabled.
func (l *Logger) Debug() bool {
	return l.debug
}

// SetDebug enables or disables debug output.
func (l *Logger) SetDebug(debug bool) {
	l.debug = debug
}

// SetOutput sets the output destination for the logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.l.SetOutput(w)
}

// Writer returns the output destination for the logger.
func (l *Logger) Writer() io.Writer {
	return l.l.Writer()
}

// Printf calls l.Output to print to the logger.
// Arguments are handled in the manner of [fmt.Printf].
func (l *Logger) Printf(format string, v ...any) {
	l.l.Output(2, fmt.Sprintf(format, v...))
}

// Println calls l.Output to print to the logger.
// Arguments are handled in the manner of [fmt.Println].
func (l *Logger) Println(v ...any) {
	l.l.Output(2, fmt.Sprintln(v...))
}

// Debugf is like Printf but only prints when debug output is enabled. Lines
// are prefixed with "debug: ".
func (l *Logger) Debugf(format string, v ...any) {
	if !l.debug {
		return
	}
	l.l.Output(2, "debug: "+fmt.Sprintf(format, v...))
}

// Fatalf is equivalent to l.Printf() followed by a call to [os.Exit](1).
func (l *Logger) Fatalf(format string, v ...any) {
	l.l.Output(2, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Fatalln is equivalent to l.Println() followed by a call to [os.Exit](1).
func (l *Logger) Fatalln(v ...any) {
	l.l.Output(2, fmt.Sprintln(v...))
	os.Exit(1)
}

// SetOutput sets the output destination for the standard logger.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// SetDebug enables or disables debug output on the standard logger.
func SetDebug(debug bool) {
	std.SetDebug(debug)
}

// These functions write to the standard logger.

// Printf calls Output to print to the standard logger.
// Arguments are handled in the manner of [fmt.Printf].
func Printf(format string, v ...any) {
	std.l.Output(2, fmt.Sprintf(format, v...))
}

// Println calls Output to print to the standard logger.
// Arguments are handled in the manner of [fmt.Println].
func Println(v ...any) {
	std.l.Output(2, fmt.Sprintln(v...))
}

// Debugf prints to the standard logger when debug output is enabled.
func Debugf(format string, v ...any) {
	if !std.debug {
		return
	}
	std.l.Output(2, "debug: "+fmt.Sprintf(format, v...))
}

// Fatalln is equivalent to [Println] followed by a call to [os.Exit](1).
func Fatalln(v ...any) {
	std.l.Output(2, fmt.Sprintln(v...))
	os.Exit(1)
}
