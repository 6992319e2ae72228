package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gookit/color"
)

// Logger receives the progress output of a conversion.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// ConsoleLogger writes colored lines. Quiet suppresses Debug and Info.
type ConsoleLogger struct {
	out     io.Writer
	errOut  io.Writer
	quiet   bool
	verbose bool
	lock    sync.Mutex
}

func New(quiet bool) *ConsoleLogger {
	return &ConsoleLogger{
		out:    os.Stdout,
		errOut: os.Stderr,
		quiet:  quiet,
	}
}

// NewWithWriter sends every level to w.
func NewWithWriter(w io.Writer, quiet bool) *ConsoleLogger {
	return &ConsoleLogger{
		out:    w,
		errOut: w,
		quiet:  quiet,
	}
}

func (l *ConsoleLogger) SetVerbose(v bool) {
	l.verbose = v
}

func (l *ConsoleLogger) Debug(format string, args ...any) {
	if l.quiet || !l.verbose {
		return
	}
	l.print(l.out, "<grey>DEBUG</> ", format, args...)
}

func (l *ConsoleLogger) Info(format string, args ...any) {
	if l.quiet {
		return
	}
	l.print(l.out, "<cyan>INFO</> ", format, args...)
}

func (l *ConsoleLogger) Warn(format string, args ...any) {
	l.print(l.errOut, "<yellow>WARN</> ", format, args...)
}

func (l *ConsoleLogger) Error(format string, args ...any) {
	l.print(l.errOut, "<red>ERROR</> ", format, args...)
}

func (l *ConsoleLogger) print(w io.Writer, tag, format string, args ...any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	// the message itself may contain '<' (esbuild output, paths); keep it out of the markup
	color.Fprint(w, tag)
	fmt.Fprintf(w, format+"\n", args...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop discards everything.
var Nop Logger = nopLogger{}
