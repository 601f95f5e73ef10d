// Package logging provides the leveled console logger used by the harness.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a log severity threshold.
type Level int

// Log levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger is the logging interface accepted throughout the harness.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// Config configures a Logger.
type Config struct {
	Level  Level
	Prefix string    // e.g. "harness"
	Out    io.Writer // defaults to os.Stderr
	// File enables a rotated log file next to Out when non-empty.
	File      string
	MaxSizeMB int
	NoColor   bool
}

type logger struct {
	mu     sync.Mutex
	level  Level
	prefix string
	out    io.Writer
	colors map[Level]*color.Color
	now    func() time.Time
	exit   func(int)
}

// New creates a Logger from cfg.
func New(cfg Config) Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if cfg.File != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})
	}

	colors := map[Level]*color.Color{
		LevelDebug: color.New(color.FgBlue),
		LevelInfo:  color.New(color.FgGreen),
		LevelWarn:  color.New(color.FgYellow),
		LevelError: color.New(color.FgRed),
	}
	if cfg.NoColor {
		for _, c := range colors {
			c.DisableColor()
		}
	}

	return &logger{
		level:  cfg.Level,
		prefix: cfg.Prefix,
		out:    out,
		colors: colors,
		now:    time.Now,
		exit:   os.Exit,
	}
}

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	return New(Config{Level: LevelError + 1, Out: io.Discard, NoColor: true})
}

// ParseLevel maps "debug", "info", "warn", "error" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelDebug, fmt.Errorf("unknown log level %q", s)
	}
}

func (l *logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, "DEBUG", format, args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.log(LevelInfo, "INFO", format, args...) }
func (l *logger) Warnf(format string, args ...interface{})  { l.log(LevelWarn, "WARN", format, args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.log(LevelError, "ERROR", format, args...) }

func (l *logger) Fatalf(format string, args ...interface{}) {
	l.write(LevelError, "FATAL", format, args...)
	l.exit(1)
}

func (l *logger) log(level Level, tag, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.write(level, tag, format, args...)
}

func (l *logger) write(level Level, tag, format string, args ...interface{}) {
	var sb strings.Builder
	sb.WriteString(l.now().Format(time.StampMilli))
	sb.WriteByte(' ')
	if l.prefix != "" {
		sb.WriteString("[" + l.prefix + "] ")
	}
	sb.WriteString(l.colors[level].Sprintf("[%s]", tag))
	sb.WriteByte(' ')
	sb.WriteString(fmt.Sprintf(format, args...))
	sb.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := io.WriteString(l.out, sb.String()); err != nil {
		fmt.Fprintf(os.Stderr, "log write failed: %v\n", err)
	}
}
