package ome

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
)

type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

// Logger provides a way for the application to log messages at different severities.
// A Logger is handed to each component at construction; there is no package-level logger.
type Logger interface {
	// Debugf formats its arguments analogous to fmt.Printf and records the text as a log
	// message at Debug level.
	Debugf(format string, args ...interface{})

	// Infof is like Debugf, but at Info level.
	Infof(format string, args ...interface{})

	// Warningf is like Debugf, but at Warning level.
	Warningf(format string, args ...interface{})

	// Errorf is like Debugf, but at Error level.
	Errorf(format string, args ...interface{})

	// Criticalf is like Debugf, but at Critical level.
	Criticalf(format string, args ...interface{})

	// Shutdown makes sure logs are closed.
	Shutdown()
}

// LogConfig is the [logging] section of a TOML configuration.
type LogConfig struct {
	Logfile string
	MaxSize int `toml:"max_log_size"`
	MaxAge  int `toml:"max_log_age"`
}

type stdLogger struct {
	mode   ModeFlag
	l      *log.Logger
	closer io.Closer
}

// NewLogger returns a logger that saves to a rotating log file if one is configured,
// or sends messages to stderr otherwise.  Messages below the given mode are dropped.
func NewLogger(c *LogConfig, mode ModeFlag) Logger {
	if c == nil || c.Logfile == "" {
		return NewWriterLogger(os.Stderr, mode)
	}
	lj := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	return &stdLogger{mode: mode, l: log.New(lj, "", log.LstdFlags), closer: lj}
}

// NewWriterLogger returns a logger writing to w.
func NewWriterLogger(w io.Writer, mode ModeFlag) Logger {
	return &stdLogger{mode: mode, l: log.New(w, "", log.LstdFlags)}
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() Logger {
	return &stdLogger{mode: SilentMode, l: log.New(io.Discard, "", 0)}
}

func (slog *stdLogger) printf(level ModeFlag, prefix, format string, args []interface{}) {
	if level < slog.mode {
		return
	}
	slog.l.Output(3, prefix+fmt.Sprintf(format, args...))
}

func (slog *stdLogger) Debugf(format string, args ...interface{}) {
	slog.printf(DebugMode, "   DEBUG ", format, args)
}

func (slog *stdLogger) Infof(format string, args ...interface{}) {
	slog.printf(InfoMode, "    INFO ", format, args)
}

func (slog *stdLogger) Warningf(format string, args ...interface{}) {
	slog.printf(WarningMode, " WARNING ", format, args)
}

func (slog *stdLogger) Errorf(format string, args ...interface{}) {
	slog.printf(ErrorMode, "   ERROR ", format, args)
}

func (slog *stdLogger) Criticalf(format string, args ...interface{}) {
	slog.printf(CriticalMode, "CRITICAL ", format, args)
}

func (slog *stdLogger) Shutdown() {
	if slog.closer != nil {
		slog.closer.Close()
	}
}

// TimeLog adds elapsed time to logging.
// Example:
//
//	mylog := NewTimeLog(logger)
//	...
//	mylog.Debugf("stuff happened")  // Appends elapsed time from NewTimeLog() to message.
type TimeLog struct {
	logger Logger
	start  time.Time
}

func NewTimeLog(logger Logger) TimeLog {
	return TimeLog{logger, time.Now()}
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	t.logger.Debugf(format+": %s\n", append(args, time.Since(t.start))...)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	t.logger.Infof(format+": %s\n", append(args, time.Since(t.start))...)
}
