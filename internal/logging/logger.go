package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/logger"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Path  string
	Level logger.LogLevel
	// Console also writes every line to stderr.
	Console bool
}

// FileLogger implements the Wails logger.Logger over a rotating log file so
// framework and backend messages share one sink.
type FileLogger struct {
	mu     sync.Mutex
	level  logger.LogLevel
	out    *log.Logger
	closer io.Closer
}

var _ logger.Logger = (*FileLogger)(nil)

func NewFileLogger(cfg Config) (*FileLogger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if cfg.Level == 0 {
		cfg.Level = logger.INFO
	}

	file := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	var w io.Writer = file
	if cfg.Console {
		w = io.MultiWriter(file, os.Stderr)
	}

	return &FileLogger{
		level:  cfg.Level,
		out:    log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		closer: file,
	}, nil
}

// ParseLevel maps names such as "debug" or "warning" to a log level.
// An empty name means info.
func ParseLevel(name string) (logger.LogLevel, error) {
	if name == "" {
		return logger.INFO, nil
	}
	return logger.StringToLogLevel(name)
}

func (l *FileLogger) SetLevel(level logger.LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *FileLogger) write(level logger.LogLevel, tag, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	l.out.Printf("%-7s | %s", tag, message)
}

func (l *FileLogger) Print(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Print(message)
}

func (l *FileLogger) Trace(message string)   { l.write(logger.TRACE, "TRACE", message) }
func (l *FileLogger) Debug(message string)   { l.write(logger.DEBUG, "DEBUG", message) }
func (l *FileLogger) Info(message string)    { l.write(logger.INFO, "INFO", message) }
func (l *FileLogger) Warning(message string) { l.write(logger.WARNING, "WARNING", message) }
func (l *FileLogger) Error(message string)   { l.write(logger.ERROR, "ERROR", message) }

func (l *FileLogger) Fatal(message string) {
	l.write(logger.ERROR, "FATAL", message)
	l.Close()
	os.Exit(1)
}

func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closer.Close()
}
