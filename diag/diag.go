// Package diag is the logging front-end used throughout the daemon. Every
// log statement produces an Event which is fanned out to the registered
// handlers; handlers decide whether and where the event is rendered.
package diag

import (
	"fmt"
	"path"
	"runtime"
	"sync"
)

// Level is an ordered log severity. Higher levels are more severe.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	Critical
)

var levelNames = [...]string{
	Debug:    "DEBUG",
	Info:     "INFO",
	Warn:     "WARN",
	Error:    "ERROR",
	Critical: "CRITICAL",
}

// ValidLevels lists every recognized level name in severity order.
const ValidLevels = "DEBUG, INFO, WARN, ERROR, CRITICAL"

// Name returns the human-readable name of the level.
func (l Level) Name() string {
	if l < Debug || l > Critical {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// LevelFromName maps a level name to its Level. The error message lists the
// valid names since it travels to operators verbatim.
func LevelFromName(name string) (Level, error) {
	for l, n := range levelNames {
		if n == name {
			return Level(l), nil
		}
	}
	return 0, fmt.Errorf("The provided log level is invalid, please specify one of [%s]", ValidLevels)
}

// Event is a single log statement. Formatting of the message is deferred so
// that handlers which discard the event never pay for it.
type Event struct {
	Level  Level
	File   string
	Line   int
	Format string
	Args   []interface{}
}

// Message expands the event's format string with its arguments.
func (e Event) Message() string {
	if len(e.Args) == 0 {
		return e.Format
	}
	return fmt.Sprintf(e.Format, e.Args...)
}

// Handler consumes log events. Implementations must be safe for concurrent
// use; Log is invoked from every goroutine that logs.
type Handler interface {
	Log(e Event)
}

// Logger is the entry point log statements go through. It captures the
// calling site and hands the event to each registered handler.
type Logger struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewLogger(handlers ...Handler) *Logger {
	return &Logger{handlers: handlers}
}

// AddHandler registers h for all future events.
func (l *Logger) AddHandler(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// RemoveHandler unregisters a previously added handler.
func (l *Logger) RemoveHandler(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.handlers {
		if l.handlers[i] == h {
			l.handlers = append(l.handlers[:i], l.handlers[i+1:]...)
			break
		}
	}
}

func (l *Logger) Debugf(format string, args ...interface{})    { l.log(Debug, format, args) }
func (l *Logger) Infof(format string, args ...interface{})     { l.log(Info, format, args) }
func (l *Logger) Warnf(format string, args ...interface{})     { l.log(Warn, format, args) }
func (l *Logger) Errorf(format string, args ...interface{})    { l.log(Error, format, args) }
func (l *Logger) Criticalf(format string, args ...interface{}) { l.log(Critical, format, args) }

func (l *Logger) log(lvl Level, format string, args []interface{}) {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file, line = "???", 0
	}
	e := Event{
		Level: lvl,
		// Strip the path to keep log lines short.
		File:   path.Base(file),
		Line:   line,
		Format: format,
		Args:   args,
	}
	l.mu.RLock()
	handlers := l.handlers
	l.mu.RUnlock()
	for _, h := range handlers {
		h.Log(e)
	}
}
