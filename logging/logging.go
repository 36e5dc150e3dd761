package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"car_scrooper/models"
)

const DefaultMaxSize = 2 * 1024 * 1024 // 2MB

var minLevel atomic.Int32

func init() {
	minLevel.Store(int32(models.LogLevelInfo.Rank()))
}

// SetLevel drops Debugf/Infof/Warnf/Errorf calls below level.
func SetLevel(level models.LogLevel) {
	minLevel.Store(int32(level.Rank()))
}

func Enabled(level models.LogLevel) bool {
	return int32(level.Rank()) >= minLevel.Load()
}

func logf(level models.LogLevel, format string, args ...any) {
	if !Enabled(level) {
		return
	}
	log.Output(3, fmt.Sprintf("[%s] ", level)+fmt.Sprintf(format, args...))
}

// Log writes msg at level, attributing it to the caller of Log.
func Log(level models.LogLevel, msg string) { logf(level, "%s", msg) }

func Debugf(format string, args ...any) { logf(models.LogLevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(models.LogLevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(models.LogLevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(models.LogLevelError, format, args...) }

// RotatingWriter is a size-capped log file keeping a single ".1" backup.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Setup opens logPath and mirrors the standard logger to it and stdout.
func Setup(logPath string, maxSize int64) (*RotatingWriter, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	rw, err := NewRotatingWriter(logPath, maxSize)
	if err != nil {
		return nil, err
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rw))
	return rw, nil
}

func NewRotatingWriter(logPath string, maxSize int64) (*RotatingWriter, error) {
	// Truncate if too large on startup
	if info, err := os.Stat(logPath); err == nil && info.Size() > maxSize {
		os.Truncate(logPath, 0)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	return &RotatingWriter{
		file:    f,
		path:    logPath,
		size:    size,
		maxSize: maxSize,
	}, nil
}

func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	n, err = w.file.Write(p)
	w.size += int64(n)

	if w.size > w.maxSize {
		if rerr := w.rotate(); rerr != nil && err == nil {
			err = rerr
		}
	}

	return n, err
}

func (w *RotatingWriter) rotate() error {
	w.file.Close()
	w.file = nil

	if err := os.Rename(w.path, w.path+".1"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate log: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("reopen log: %w", err)
	}

	w.file = f
	w.size = 0
	return nil
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
