package logger

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Logger writes entries for one subsystem. Loggers are cheap to share between
// goroutines; the level may be adjusted at runtime.
type Logger struct {
	level   uint32 // Level, accessed atomically
	tag     string
	backend *Backend
}

// Level returns the logger's current level.
func (l *Logger) Level() Level {
	return Level(atomic.LoadUint32(&l.level))
}

// SetLevel changes the minimum level this logger emits.
func (l *Logger) SetLevel(level Level) {
	atomic.StoreUint32(&l.level, uint32(level))
}

// Backend returns the backend this logger writes to.
func (l *Logger) Backend() *Backend {
	return l.backend
}

func (l *Logger) write(level Level, args ...interface{}) {
	if level < l.Level() {
		return
	}
	l.backend.write(level, l.tag, fmt.Sprint(args...))
}

func (l *Logger) writef(level Level, format string, args ...interface{}) {
	if level < l.Level() {
		return
	}
	l.backend.write(level, l.tag, fmt.Sprintf(format, args...))
}

// Trace formats its arguments like fmt.Sprint and writes them at LevelTrace.
func (l *Logger) Trace(args ...interface{}) { l.write(LevelTrace, args...) }

// Tracef formats its arguments like fmt.Sprintf and writes them at LevelTrace.
func (l *Logger) Tracef(format string, args ...interface{}) {
	l.writef(LevelTrace, format, args...)
}

// Debug formats its arguments like fmt.Sprint and writes them at LevelDebug.
func (l *Logger) Debug(args ...interface{}) { l.write(LevelDebug, args...) }

// Debugf formats its arguments like fmt.Sprintf and writes them at LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.writef(LevelDebug, format, args...)
}

// Info formats its arguments like fmt.Sprint and writes them at LevelInfo.
func (l *Logger) Info(args ...interface{}) { l.write(LevelInfo, args...) }

// Infof formats its arguments like fmt.Sprintf and writes them at LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.writef(LevelInfo, format, args...)
}

// Warn formats its arguments like fmt.Sprint and writes them at LevelWarn.
func (l *Logger) Warn(args ...interface{}) { l.write(LevelWarn, args...) }

// Warnf formats its arguments like fmt.Sprintf and writes them at LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.writef(LevelWarn, format, args...)
}

// Error formats its arguments like fmt.Sprint and writes them at LevelError.
func (l *Logger) Error(args ...interface{}) { l.write(LevelError, args...) }

// Errorf formats its arguments like fmt.Sprintf and writes them at LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.writef(LevelError, format, args...)
}

// Critical formats its arguments like fmt.Sprint and writes them at LevelCritical.
func (l *Logger) Critical(args ...interface{}) { l.write(LevelCritical, args...) }

// Criticalf formats its arguments like fmt.Sprintf and writes them at LevelCritical.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.writef(LevelCritical, format, args...)
}

// SubsystemTags holds the tag of every logging subsystem in the application.
var SubsystemTags = struct {
	GSTD,
	GAME,
	STOR,
	DAEM,
	MOVR string
}{
	GSTD: "GSTD",
	GAME: "GAME",
	STOR: "STOR",
	DAEM: "DAEM",
	MOVR: "MOVR",
}

var (
	backendLog = NewBackend()

	subsystemLoggers = map[string]*Logger{}
)

func init() {
	for _, tag := range []string{
		SubsystemTags.GSTD,
		SubsystemTags.GAME,
		SubsystemTags.STOR,
		SubsystemTags.DAEM,
		SubsystemTags.MOVR,
	} {
		subsystemLoggers[tag] = &Logger{
			level:   uint32(LevelInfo),
			tag:     tag,
			backend: backendLog,
		}
	}
	backendLog.AddLogWriter(NewWriterSink(os.Stdout), LevelInfo)
	backendLog.AddLogWriter(NewWriterSink(os.Stderr), LevelWarn)
}

// Get returns the logger registered for the given subsystem tag.
func Get(tag string) (*Logger, bool) {
	logger, ok := subsystemLoggers[tag]
	return logger, ok
}

// BackendLog returns the backend shared by all subsystem loggers, so that the
// application can flush it on shutdown.
func BackendLog() *Backend {
	return backendLog
}

// InitLog attaches the standard pair of rotated log files to the shared
// backend: everything at logFile, errors and above at errLogFile.
func InitLog(logFile, errLogFile string) error {
	err := backendLog.AddLogFile(logFile, LevelTrace)
	if err != nil {
		return errors.Wrapf(err, "error adding log file %s", logFile)
	}
	err = backendLog.AddLogFile(errLogFile, LevelWarn)
	if err != nil {
		return errors.Wrapf(err, "error adding log file %s", errLogFile)
	}
	return nil
}

// SetLogLevels sets the level of every registered subsystem logger.
func SetLogLevels(level string) error {
	parsed, ok := LevelFromString(level)
	if !ok {
		return errors.Errorf("unknown log level: %s", level)
	}
	for _, logger := range subsystemLoggers {
		logger.SetLevel(parsed)
	}
	return nil
}

// SetLogLevel sets the level of a single subsystem logger.
func SetLogLevel(tag string, level string) error {
	parsed, ok := LevelFromString(level)
	if !ok {
		return errors.Errorf("unknown log level: %s", level)
	}
	logger, ok := subsystemLoggers[tag]
	if !ok {
		return errors.Errorf("unknown logging subsystem: %s", tag)
	}
	logger.SetLevel(parsed)
	return nil
}
