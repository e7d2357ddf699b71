package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/toeverything/edge-workers/internal/common/configtypes"
)

const (
	DefaultMaxSize    = 100 // MB
	DefaultMaxAge     = 30  // days
	DefaultMaxBackups = 10  // files
)

// FileEmitter writes events to a log file with rotation support.
// Lines are JSON unless a template is configured.
type FileEmitter struct {
	writer    *lumberjack.Logger
	formatter *TemplateFormatter
	logger    *zap.Logger
}

// NewFileEmitter creates a new file-based event emitter.
// Returns error if the template is invalid or directory creation fails.
func NewFileEmitter(config configtypes.EventFileConfig, logger *zap.Logger) (*FileEmitter, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	var formatter *TemplateFormatter
	if config.Template != "" {
		f, err := NewTemplateFormatter(config.Template)
		if err != nil {
			return nil, fmt.Errorf("invalid template for event log %s: %w", config.Path, err)
		}
		formatter = f
	}

	maxSize := config.Rotation.MaxSize
	if maxSize == 0 {
		maxSize = DefaultMaxSize
	}

	maxAge := config.Rotation.MaxAge
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}

	maxBackups := config.Rotation.MaxBackups
	if maxBackups == 0 {
		maxBackups = DefaultMaxBackups
	}

	writer := &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    maxSize,
		MaxAge:     maxAge,
		MaxBackups: maxBackups,
		Compress:   config.Rotation.Compress,
	}

	return &FileEmitter{
		writer:    writer,
		formatter: formatter,
		logger:    logger,
	}, nil
}

// Emit formats the event and writes it to the log file.
// Fire-and-forget: errors are logged but not returned.
func (f *FileEmitter) Emit(event *RequestEvent) {
	line, err := f.format(event)
	if err == nil {
		_, err = f.writer.Write(line)
	}
	if err != nil {
		f.logger.Warn("failed to write event to log file",
			zap.Error(err),
			zap.String("request_id", event.RequestID),
		)
	}
}

func (f *FileEmitter) format(event *RequestEvent) ([]byte, error) {
	if f.formatter != nil {
		return []byte(f.formatter.Format(event) + "\n"), nil
	}
	line, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// Close closes the underlying file handle.
func (f *FileEmitter) Close() error {
	return f.writer.Close()
}
