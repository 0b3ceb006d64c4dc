// Package logging provides the small leveled wrapper around the standard
// log package that the rest of this repo uses for diagnostics. The
// BB-emit and BB-execute hot path does not log at all; CoverageEngine
// logs from Init (Infof) and when an annotation dump fails (Errorf), and
// the CLI and batch tools use Infof/Errorf.
package logging

import (
	"log"
	"os"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// Logger is a thin leveled front-end over *log.Logger. Create one with
// New; the zero value has no underlying *log.Logger and panics when it
// logs.
type Logger struct {
	min Level
	l   *log.Logger
}

func New(min Level) *Logger {
	return &Logger{min: min, l: log.New(os.Stderr, "", log.LstdFlags)}
}

var std = New(LevelInfo)

func Default() *Logger { return std }

func SetLevel(l Level) { std.min = l }

func (lg *Logger) logf(level Level, format string, args ...interface{}) {
	if level < lg.min {
		return
	}
	lg.l.Printf("["+level.String()+"] "+format, args...)
}

func (lg *Logger) Debugf(format string, args ...interface{}) { lg.logf(LevelDebug, format, args...) }
func (lg *Logger) Infof(format string, args ...interface{})  { lg.logf(LevelInfo, format, args...) }
func (lg *Logger) Warnf(format string, args ...interface{})  { lg.logf(LevelWarn, format, args...) }
func (lg *Logger) Errorf(format string, args ...interface{}) { lg.logf(LevelError, format, args...) }

func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { std.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { std.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }
