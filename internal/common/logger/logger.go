package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/toeverything/edge-workers/internal/common/configtypes"
)

// DynamicLogger is a zap.Logger whose per-output levels can change at runtime
type DynamicLogger struct {
	*zap.Logger
	outputs    []output
	configured configtypes.LogConfig
}

// output is one enabled sink with its own adjustable level
type output struct {
	name     string
	level    zap.AtomicLevel
	override string
}

// NewLogger builds a logger with console and/or file outputs
func NewLogger(config configtypes.LogConfig) (*DynamicLogger, error) {
	global := parseLogLevel(config.Level)

	var cores []zapcore.Core
	var outputs []output

	if config.Console.Enabled {
		level := zap.NewAtomicLevelAt(resolveLogLevel(config.Console.Level, global))
		outputs = append(outputs, output{name: "console", level: level, override: config.Console.Level})
		cores = append(cores, zapcore.NewCore(createEncoder(config.Console.Format), zapcore.Lock(os.Stdout), level))
	}

	if config.File.Enabled {
		if config.File.Path == "" {
			return nil, fmt.Errorf("file.path must be specified when file logging is enabled")
		}
		level := zap.NewAtomicLevelAt(resolveLogLevel(config.File.Level, global))
		outputs = append(outputs, output{name: "file", level: level, override: config.File.Level})
		cores = append(cores, zapcore.NewCore(createEncoder(config.File.Format), createFileWriter(config.File.Path, config.File.Rotation), level))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one log output (console or file) must be enabled")
	}

	return &DynamicLogger{
		Logger:     zap.New(zapcore.NewTee(cores...)),
		outputs:    outputs,
		configured: config,
	}, nil
}

// NewLoggerWithStartupOverride starts at INFO when the configured level is quieter,
// so startup lines stay visible. Call SwitchToConfiguredLevel once startup completes.
func NewLoggerWithStartupOverride(config configtypes.LogConfig) (*DynamicLogger, error) {
	if parseLogLevel(config.Level) <= zap.InfoLevel {
		return NewLogger(config)
	}

	startup := config
	startup.Level = configtypes.LogLevelInfo
	if startup.Console.Enabled && startup.Console.Level == "" {
		startup.Console.Level = configtypes.LogLevelInfo
	}
	if startup.File.Enabled && startup.File.Level == "" {
		startup.File.Level = configtypes.LogLevelInfo
	}

	dl, err := NewLogger(startup)
	if err != nil {
		return nil, err
	}
	dl.configured = config
	for i := range dl.outputs {
		dl.outputs[i].override = outputOverride(config, dl.outputs[i].name)
	}
	return dl, nil
}

// NewDefaultLogger is used before configuration is loaded
func NewDefaultLogger() (*DynamicLogger, error) {
	return NewLogger(configtypes.LogConfig{
		Level: configtypes.LogLevelDebug,
		Console: configtypes.ConsoleLogConfig{
			Enabled: true,
			Format:  configtypes.LogFormatConsole,
		},
	})
}

// SwitchToConfiguredLevel applies the levels from the loaded configuration
func (dl *DynamicLogger) SwitchToConfiguredLevel() {
	dl.Info("Switching logger to configured level", zap.String("level", dl.configured.Level))

	global := parseLogLevel(dl.configured.Level)
	for _, out := range dl.outputs {
		out.level.SetLevel(resolveLogLevel(out.override, global))
	}
}

// EnsureInfoLevelForShutdown lowers every output to INFO so the shutdown sequence is logged
func (dl *DynamicLogger) EnsureInfoLevelForShutdown() {
	changed := false
	for _, out := range dl.outputs {
		if out.level.Level() > zap.InfoLevel {
			out.level.SetLevel(zap.InfoLevel)
			changed = true
		}
	}
	if changed {
		dl.Info("Switched to INFO level for shutdown visibility")
	}
}

// Level reports the current level of the named output ("console" or "file")
func (dl *DynamicLogger) Level(name string) (zapcore.Level, bool) {
	for _, out := range dl.outputs {
		if out.name == name {
			return out.level.Level(), true
		}
	}
	return zapcore.InvalidLevel, false
}

// ForWorker tags every entry with the worker identifier
func (dl *DynamicLogger) ForWorker(workerID string) *zap.Logger {
	if workerID == "" {
		return dl.Logger
	}
	return dl.Logger.With(zap.String("worker_id", workerID))
}

func outputOverride(config configtypes.LogConfig, name string) string {
	if name == "file" {
		return config.File.Level
	}
	return config.Console.Level
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case configtypes.LogLevelDebug:
		return zap.DebugLevel
	case configtypes.LogLevelWarn:
		return zap.WarnLevel
	case configtypes.LogLevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// resolveLogLevel prefers the per-output level over the global one
func resolveLogLevel(outputLevel string, global zapcore.Level) zapcore.Level {
	if outputLevel != "" {
		return parseLogLevel(outputLevel)
	}
	return global
}

func createEncoder(format string) zapcore.Encoder {
	if format == configtypes.LogFormatJSON {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if format == configtypes.LogFormatText {
		// no color codes in files
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func createFileWriter(path string, rotation configtypes.RotationConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSize,
		MaxAge:     rotation.MaxAge,
		MaxBackups: rotation.MaxBackups,
		Compress:   rotation.Compress,
	})
}
