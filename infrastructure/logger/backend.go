package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
)

const (
	defaultThresholdKB = 10 * 1000 // roll log files at 10 MB
	defaultMaxRolls    = 8
)

// logWriter is a sink attached to a Backend together with the minimum level
// it is interested in.
type logWriter struct {
	io.WriteCloser
	level Level
}

// Backend fans out formatted log entries to a set of writers. Writes are
// serialized so that entries from different subsystems do not interleave.
type Backend struct {
	mtx     sync.Mutex
	writers []logWriter
}

// NewBackend creates an empty logging backend. Writers are attached with
// AddLogFile and AddLogWriter.
func NewBackend() *Backend {
	return &Backend{}
}

// AddLogFile attaches a rotated log file receiving entries at or above the
// given level. The containing directory is created if necessary.
func (b *Backend) AddLogFile(logFile string, level Level) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		err := os.MkdirAll(logDir, 0700)
		if err != nil {
			return errors.Wrapf(err, "failed to create log directory %s", logDir)
		}
	}
	r, err := rotator.New(logFile, defaultThresholdKB, false, defaultMaxRolls)
	if err != nil {
		return errors.Wrapf(err, "failed to create file rotator for %s", logFile)
	}
	b.AddLogWriter(r, level)
	return nil
}

// AddLogWriter attaches an arbitrary writer receiving entries at or above the
// given level.
func (b *Backend) AddLogWriter(w io.WriteCloser, level Level) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.writers = append(b.writers, logWriter{WriteCloser: w, level: level})
}

// write formats a single entry and hands it to every writer whose threshold
// admits it.
func (b *Backend) write(level Level, tag string, msg string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	entry := []byte(fmt.Sprintf("%s [%s] %s: %s\n", timestamp, level, tag, msg))

	b.mtx.Lock()
	defer b.mtx.Unlock()
	for _, w := range b.writers {
		if level >= w.level {
			_, _ = w.Write(entry)
		}
	}
}

// Close flushes and closes all attached writers. The backend must not be used
// afterwards.
func (b *Backend) Close() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for _, w := range b.writers {
		_ = w.Close()
	}
	b.writers = nil
}

// nopWriteCloser wraps a plain io.Writer, such as os.Stdout, so that it can be
// attached to a Backend.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewWriterSink adapts an io.Writer into the io.WriteCloser a Backend expects.
func NewWriterSink(w io.Writer) io.WriteCloser {
	return nopWriteCloser{w}
}
