// Package logging provides the leveled, tagged diagnostic logger used across
// the library. Verbosity is configured through the LOGLEVEL environment
// variable, as a comma-separated list of "tag=level" directives; a directive
// without a tag sets the default level.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

const envVar = "LOGLEVEL"

var tagLevels = map[string]Level{}

func init() {
	for _, d := range strings.Split(os.Getenv(envVar), ",") {
		if d == "" {
			continue
		}
		v := strings.SplitN(d, "=", 2)
		level, err := parseLevel(v[len(v)-1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid %s directive %q: %s\n", envVar, d, err)
			continue
		}
		if len(v) == 1 {
			defaultLevel = level
		} else {
			tagLevels[v[0]] = level
		}
	}

	DefaultLogger.Level = defaultLevel
}

type Logger struct {
	// The level at which this logger logs. Messages intended for a more
	// verbose level are ignored.
	Level

	// Tag used to filter and classify log messages.
	Tag string

	out io.Writer

	// Shared by all derived loggers, so their lines do not interleave.
	mu *sync.Mutex
}

// DefaultLogger writes to stderr.
var DefaultLogger = &Logger{defaultLevel, "", os.Stderr, new(sync.Mutex)}

// SetDestination overrides the output of this logger.
func (log *Logger) SetDestination(out io.Writer) {
	log.out = out
}

// WithTag derives a new logger with the given tag. The level is looked up
// from the LOGLEVEL directives, falling back to the parent's level.
func (log *Logger) WithTag(tag string) *Logger {
	level := log.Level
	if l, ok := tagLevels[tag]; ok {
		level = l
	}
	return &Logger{level, tag, log.out, log.mu}
}

// Log a message at the given level. Include the file and line number from
// 'calldepth' steps up the call stack.
func (log *Logger) Log(level Level, calldepth int, format string, a ...interface{}) {
	if level > log.Level {
		return
	}

	var buf strings.Builder
	buf.WriteString(ansiWhite)
	buf.WriteString(time.Now().Format(timestampFormat))
	fmt.Fprintf(&buf, " %s%c/%s", level.color(), level.letter(), log.Tag)

	// Identify the caller of Error()/Warn()/Info()/etc.
	_, file, line, ok := runtime.Caller(calldepth + 1)
	if !ok {
		file = "?"
	}
	fmt.Fprintf(&buf, "[%s:%d] %s", filepath.Base(file), line, ansiReset)

	fmt.Fprintf(&buf, format, a...)
	if n := len(format); n == 0 || format[n-1] != '\n' {
		buf.WriteByte('\n')
	}

	log.mu.Lock()
	io.WriteString(log.out, buf.String())
	log.mu.Unlock()
}

func (log *Logger) Error(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
}

func (log *Logger) Warn(format string, a ...interface{}) {
	log.Log(Warn, 1, format, a...)
}

func (log *Logger) Info(format string, a ...interface{}) {
	log.Log(Info, 1, format, a...)
}

func (log *Logger) Debug(format string, a ...interface{}) {
	log.Log(Debug, 1, format, a...)
}

func (log *Logger) Trace(n int, format string, a ...interface{}) {
	log.Log(Level(n), 1, format, a...)
}

// Fatalf logs at Error level and exits the process.
func (log *Logger) Fatalf(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
	os.Exit(1)
}
