package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	glog "github.com/goliatone/go-logger/glog"
)

func debugLog(format string, a ...any) {
	if Debug {
		fmt.Fprintf(os.Stderr, "[deployer] %s", fmt.Sprintf(format, a...))
	}
}

// cliLogger writes deployer logs to stderr as key=value lines. Trace and
// debug lines are dropped unless --debug is set.
type cliLogger struct {
	mu    *sync.Mutex
	out   io.Writer
	debug bool
}

var _ glog.Logger = (*cliLogger)(nil)

func newCLILogger(out io.Writer, debug bool) *cliLogger {
	return &cliLogger{mu: &sync.Mutex{}, out: out, debug: debug}
}

func (l *cliLogger) Trace(msg string, args ...any) {
	if l.debug {
		l.write("TRACE", msg, args)
	}
}

func (l *cliLogger) Debug(msg string, args ...any) {
	if l.debug {
		l.write("DEBUG", msg, args)
	}
}

func (l *cliLogger) Info(msg string, args ...any)  { l.write("INFO", msg, args) }
func (l *cliLogger) Warn(msg string, args ...any)  { l.write("WARN", msg, args) }
func (l *cliLogger) Error(msg string, args ...any) { l.write("ERROR", msg, args) }

func (l *cliLogger) Fatal(msg string, args ...any) {
	l.write("FATAL", msg, args)
	os.Exit(1)
}

func (l *cliLogger) WithContext(context.Context) glog.Logger { return l }

func (l *cliLogger) write(level string, msg string, args []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "[deployer] %-5s %s", level, msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fmt.Fprintf(&b, " !extra=%v", args[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, b.String())
}
