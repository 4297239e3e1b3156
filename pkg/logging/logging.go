package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

// Level is the logging verbosity. Messages above the configured level are dropped.
type Level int

const (
	LevelNone Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

var levelNames = [...]string{"NONE", "ERROR", "WARN", "INFO", "DEBUG"}

func (l Level) String() string {
	if l < LevelNone || l > LevelDebug {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel parses a level name, case insensitive.
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelNone, fmt.Errorf("unknown log level %q", s)
}

// Logger writes levelled lines in the form "H:MM:SS.mmm LEVEL: message",
// stamped with the time elapsed since the logger was created.
type Logger struct {
	out   *log.Logger
	start time.Time
	now   func() time.Time

	mu    sync.RWMutex
	level Level
}

// New creates a logger writing to w.
func New(w io.Writer, level Level) *Logger {
	return &Logger{
		out:   log.New(w, "", 0),
		start: time.Now(),
		now:   time.Now,
		level: level,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, LevelNone)
}

// SetLevel changes the verbosity.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Level returns the current verbosity.
func (l *Logger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }

func (l *Logger) logf(level Level, format string, args ...any) {
	if l == nil || level > l.Level() || level == LevelNone {
		return
	}
	l.out.Printf("%s %s: %s", uptime(l.now().Sub(l.start)), level, fmt.Sprintf(format, args...))
}

// uptime formats d as H:MM:SS.mmm. Hours are not wrapped.
func uptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms%1000)
}
