// Package logger wraps zerolog with request-scoped fields carried on the
// context and an optional rotating file sink.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/angelmondragon/designdrop-backend/pkg/config"
)

const defaultMaxSizeMB = 100

type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a stack trace to warnings as well as errors.
	WarnStack bool
	// Format is "json" unless set to "console".
	Format string
	Output io.Writer
	File   *FileOptions
}

// FileOptions mirrors every entry into a size-rotated file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Logger struct {
	root      zerolog.Logger
	warnStack bool
	file      io.Closer
}

func New(opts Options) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	sink, file := opts.sink()
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	root := zerolog.New(sink).
		Level(level).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()

	l := &Logger{root: root, warnStack: opts.WarnStack}
	if file != nil {
		l.file = file
	}
	return l
}

// sink resolves the primary writer and, when configured, tees it into a
// rotating file.
func (o Options) sink() (io.Writer, *lumberjack.Logger) {
	out := o.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(strings.TrimSpace(o.Format), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	if o.File == nil || strings.TrimSpace(o.File.Path) == "" {
		return out, nil
	}
	file := &lumberjack.Logger{
		Filename:   o.File.Path,
		MaxSize:    o.File.MaxSizeMB,
		MaxBackups: o.File.MaxBackups,
		MaxAge:     o.File.MaxAgeDays,
		Compress:   o.File.Compress,
	}
	if file.MaxSize <= 0 {
		file.MaxSize = defaultMaxSizeMB
	}
	return zerolog.MultiLevelWriter(out, file), file
}

// Close flushes the rotating file sink. It is a no-op without one.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel falls back to info for blank or unknown values.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func NewFromConfig(serviceName string, cfg *config.Config) *Logger {
	opts := Options{
		ServiceName: serviceName,
		Level:       ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	}
	if f := cfg.LogFile; strings.TrimSpace(f.Path) != "" {
		opts.File = &FileOptions{
			Path:       f.Path,
			MaxSizeMB:  f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAgeDays: f.MaxAgeDays,
			Compress:   f.Compress,
		}
	}
	return New(opts)
}
