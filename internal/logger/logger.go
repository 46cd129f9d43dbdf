package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps the zap logger with additional functionality
type Logger struct {
	*zap.Logger
}

// NewLogger creates a new logger instance with production configuration
func NewLogger() (*Logger, error) {
	config := zap.NewProductionConfig()

	// Set the output to stdout
	config.OutputPaths = []string{"stdout"}

	// Set the error output to stderr
	config.ErrorOutputPaths = []string{"stderr"}

	// Set the log level
	config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	// Create the logger
	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger: zapLogger,
	}, nil
}

// NewNopLogger returns a logger that discards everything. Used by tests.
func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// NewStrategyLogger tees l into the per-strategy log file <dir>/<tag>.log.
// Every record is tagged with the owning strategy.
func NewStrategyLogger(l *Logger, files *FileRegistry, dir string, tag string) (*Logger, error) {
	tagged := l.With(zap.String("strategy", tag))
	if files == nil || dir == "" {
		return &Logger{Logger: tagged}, nil
	}

	sink, err := files.Open(filepath.Join(dir, tag+".log"))
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, zapcore.InfoLevel)

	return &Logger{
		Logger: tagged.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore.With([]zap.Field{zap.String("strategy", tag)}))
		})),
	}, nil
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	if l.Logger != nil {
		return l.Logger.Sync()
	}
	return nil
}

// FileRegistry hands out one shared writer per log destination.
// Engine instances that log under the same strategy tag share the file,
// and writes to it are serialized by that destination's lock.
type FileRegistry struct {
	mu    sync.Mutex
	files map[string]*lockedFile
}

func NewFileRegistry() *FileRegistry {
	return &FileRegistry{
		mu:    sync.Mutex{},
		files: make(map[string]*lockedFile),
	}
}

type lockedFile struct {
	mu   sync.Mutex
	file *os.File
	refs int
}

func (f *lockedFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.file.Write(p)
}

func (f *lockedFile) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.file.Sync()
}

// Open returns the writer for path, creating the file (and its directory) on first use.
func (r *FileRegistry) Open(path string) (zapcore.WriteSyncer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.files[path]; ok {
		f.refs++

		return f, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	f := &lockedFile{mu: sync.Mutex{}, file: file, refs: 1}
	r.files[path] = f

	return f, nil
}

// Release drops one reference to path and closes the file when none remain.
func (r *FileRegistry) Release(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[path]
	if !ok {
		return nil
	}

	f.refs--
	if f.refs > 0 {
		return nil
	}

	delete(r.files, path)

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.file.Close()
}

// CloseAll closes every open destination.
func (r *FileRegistry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error

	for path, f := range r.files {
		f.mu.Lock()
		if err := f.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		f.mu.Unlock()

		delete(r.files, path)
	}

	return firstErr
}
