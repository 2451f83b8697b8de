package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/getsentry/sentry-go"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger instances for different log levels. They write to stderr until Init is called.
var (
	AuditLogger = log.New(os.Stderr, "AUDIT: ", log.LstdFlags)
	DebugLogger = log.New(os.Stderr, "DEBUG: ", log.LstdFlags)
	ErrorLogger = log.New(os.Stderr, "Error: ", log.LstdFlags)
)

var (
	mu      sync.Mutex
	closers []io.Closer
)

// Init points the loggers at rotating files under dir/audit, dir/debug and dir/error.
func Init(dir string) error {
	audit, err := rotatingFile(dir, "audit")
	if err != nil {
		return err
	}
	debug, err := rotatingFile(dir, "debug")
	if err != nil {
		return err
	}
	errLog, err := rotatingFile(dir, "error")
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	closers = []io.Closer{audit, debug, errLog}

	AuditLogger.SetOutput(audit)
	DebugLogger.SetOutput(debug)
	ErrorLogger.SetOutput(io.MultiWriter(errLog, os.Stderr))
	return nil
}

// Close flushes and closes the rotating files and falls back to stderr.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	AuditLogger.SetOutput(os.Stderr)
	DebugLogger.SetOutput(os.Stderr)
	ErrorLogger.SetOutput(os.Stderr)
}

// Capture logs err to the error log and reports it to Sentry.
// Sentry drops the event when it was never initialised.
func Capture(err error, format string, args ...interface{}) {
	if err == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	ErrorLogger.Printf("%s: %v", msg, err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetExtra("context", msg)
		sentry.CaptureException(err)
	})
}

func rotatingFile(dir, name string) (*lumberjack.Logger, error) {
	sub := filepath.Join(dir, name)
	if err := os.MkdirAll(sub, os.ModePerm); err != nil {
		return nil, fmt.Errorf("could not create log directory %s: %w", sub, err)
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(sub, name+".log"),
		MaxSize:    1,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}, nil
}

// closeLocked assumes mu is held.
func closeLocked() {
	for _, c := range closers {
		_ = c.Close()
	}
	closers = nil
}
