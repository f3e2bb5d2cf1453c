package logger

import "io"

// Fields carries structured log context.
type Fields map[string]any

// Logger is the logging facade used across the service. Components scope it
// with WithField/WithFields (component, connection_id, channel).
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...any)
	Info(msg string)
	Infof(format string, args ...any)
	Warn(msg string)
	Warnf(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
	Fatal(msg string)
	Fatalf(format string, args ...any)

	WithField(key string, value any) Logger
	WithFields(fields Fields) Logger

	SetLevel(level string)
	SetOutput(output io.Writer)
}

// Config controls level, format, destination and file rotation.
type Config struct {
	Level    string `yaml:"level"`     // debug, info, warn, error
	Format   string `yaml:"format"`    // json, console, text
	Output   string `yaml:"output"`    // stdout, stderr, file
	FilePath string `yaml:"file_path"` // used when Output is "file"

	// Rotation settings, only relevant for file output.
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// DefaultConfig returns console logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	}
}
