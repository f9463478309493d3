package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Logger interface {
	DebugEnabled() bool
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

func ParseLevel(s string) (Level, error) {
	for i, n := range levelNames {
		if strings.EqualFold(s, n) {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// StdLogger writes "[name] LEVEL: message" lines. Warnings and errors go to
// the error writer. Loggers returned by Named share the level and writers of
// their parent.
type StdLogger struct {
	name  string
	state *logState
}

type logState struct {
	mu    sync.Mutex
	level Level
	out   *log.Logger
	err   *log.Logger
}

func NewDefaultLogger(name string, debug bool) *StdLogger {
	level := LevelInfo
	if debug {
		level = LevelDebug
	}
	return NewStdLogger(name, level, os.Stdout, os.Stderr)
}

func NewStdLogger(name string, level Level, out, errOut io.Writer) *StdLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &StdLogger{
		name: name,
		state: &logState{
			level: level,
			out:   log.New(out, "", flags),
			err:   log.New(errOut, "", flags),
		},
	}
}

// Named returns a child logger tagged "parent/sub".
func (l *StdLogger) Named(sub string) *StdLogger {
	name := sub
	if l.name != "" {
		name = l.name + "/" + sub
	}
	return &StdLogger{name: name, state: l.state}
}

func (l *StdLogger) Level() Level {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	return l.state.level
}

func (l *StdLogger) SetLevel(level Level) {
	l.state.mu.Lock()
	l.state.level = level
	l.state.mu.Unlock()
}

func (l *StdLogger) DebugEnabled() bool { return l.Level() <= LevelDebug }

func (l *StdLogger) logf(level Level, format string, args ...any) {
	if level < l.Level() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.name != "" {
		msg = fmt.Sprintf("[%s] %s: %s", l.name, level, msg)
	} else {
		msg = fmt.Sprintf("%s: %s", level, msg)
	}
	if level >= LevelWarn {
		l.state.err.Print(msg)
		return
	}
	l.state.out.Print(msg)
}

func (l *StdLogger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *StdLogger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *StdLogger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *StdLogger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

type nopLogger struct{}

func NewNopLogger() Logger                          { return nopLogger{} }
func (nopLogger) DebugEnabled() bool                { return false }
func (nopLogger) Debugf(format string, args ...any) {}
func (nopLogger) Infof(format string, args ...any)  {}
func (nopLogger) Warnf(format string, args ...any)  {}
func (nopLogger) Errorf(format string, args ...any) {}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

// Sub returns l.Named(name) when l is a *StdLogger, and l otherwise.
func Sub(l Logger, name string) Logger {
	if s, ok := l.(*StdLogger); ok {
		return s.Named(name)
	}
	return OrNop(l)
}
