package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// LevelTrace is more verbose than slog.LevelDebug.
	LevelTrace slog.Level = slog.LevelDebug - 4
	// levelNone is used to turn logging off.
	levelNone slog.Level = slog.LevelError + 100
)

type LogConfiguration struct {
	// Level is the default log level: trace, debug, info, warn, error or
	// none. An offset may be appended, ie "info-1" is one level more
	// verbose than info.
	Level string `yaml:"defaultLevel"`
	// Format selects the handler: "text" (default) or "json".
	Format string `yaml:"format"`
	// OutputPath is a file name, "stdout", "stderr" or "discard".
	OutputPath string `yaml:"outputPath"`
	// TimeFormat overrides the handler's time attribute format,
	// "none" drops the time attribute.
	TimeFormat string `yaml:"timeFormat"`
}

// New creates a slog logger based on the configuration. Nil configuration
// means defaults (info level text handler on stderr).
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	if cfg == nil {
		cfg = &LogConfiguration{}
	}
	out, err := cfg.output()
	if err != nil {
		return nil, fmt.Errorf("opening log output: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level:       cfg.logLevel(),
		ReplaceAttr: composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatLevelAttr),
	}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		h = slog.NewTextHandler(out, opts)
	case "json":
		h = slog.NewJSONHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(h), nil
}

// LoadConfiguration reads a LogConfiguration from a YAML file.
func LoadConfiguration(fileName string) (*LogConfiguration, error) {
	buf, err := os.ReadFile(filepath.Clean(fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read logger config file: %w", err)
	}
	cfg := &LogConfiguration{}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal logger config: %w", err)
	}
	return cfg, nil
}

func (cfg *LogConfiguration) output() (io.Writer, error) {
	switch cfg.OutputPath {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "discard", os.DevNull:
		return io.Discard, nil
	}
	return os.OpenFile(filepath.Clean(cfg.OutputPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // -rw-------
}

func (cfg *LogConfiguration) logLevel() slog.Level {
	if cfg.OutputPath == "discard" || cfg.OutputPath == os.DevNull {
		return levelNone
	}
	name, offset := cfg.Level, 0
	if i := strings.IndexAny(name, "+-"); i > 0 {
		if n, err := fmt.Sscanf(name[i:], "%d", &offset); n != 1 || err != nil {
			offset = 0
		}
		name = name[:i]
	}
	var lvl slog.Level
	switch strings.ToLower(name) {
	case "", "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "debug":
		lvl = slog.LevelDebug
	case "trace":
		lvl = LevelTrace
	case "none":
		lvl = levelNone
	default:
		lvl = slog.LevelInfo
	}
	return lvl + slog.Level(offset)
}

// formatLevelAttr renames the custom trace level, slog would print it as DEBUG-4.
func formatLevelAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
