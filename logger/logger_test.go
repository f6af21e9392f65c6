package logger

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_LogConfiguration_logLevel(t *testing.T) {
	var cases = []struct {
		name  string
		level slog.Level
	}{
		{"", slog.LevelInfo},
		{"error", slog.LevelError},
		{"InfO", slog.LevelInfo},
		{"ERROR", slog.LevelError},
		{"WARNING", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"INFO", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"TRACE", LevelTrace},
		{"NONE", levelNone},
		{"info-1", slog.LevelInfo - 1},
		{"info+1", slog.LevelInfo + 1},
	}

	for _, tc := range cases {
		cfg := LogConfiguration{Level: tc.name}
		if lvl := cfg.logLevel(); lvl != tc.level {
			t.Errorf("expected %q to return %d (%s) but got %d (%s)", tc.name, tc.level, tc.level, lvl, lvl)
		}
	}

	// special case - when OutputPath is "discard" return levelNone
	cfg := LogConfiguration{Level: "info", OutputPath: "discard"}
	if lvl := cfg.logLevel(); lvl != levelNone {
		t.Errorf("expected %d but got %d for level", levelNone, lvl)
	}

	cfg = LogConfiguration{Level: "info", OutputPath: os.DevNull}
	if lvl := cfg.logLevel(); lvl != levelNone {
		t.Errorf("expected %d but got %d for level", levelNone, lvl)
	}
}

func Test_formatTimeAttr(t *testing.T) {
	t.Run("empty format string", func(t *testing.T) {
		f := formatTimeAttr("")
		require.Nil(t, f)
	})

	t.Run("format: none", func(t *testing.T) {
		f := formatTimeAttr("none")
		require.NotNil(t, f)
		now := time.Now()

		a := f(nil, slog.Time(slog.TimeKey, now))
		require.Equal(t, slog.Attr{}, a)

		// when not time key value is preserved
		a = f(nil, slog.Time("foo", now))
		require.True(t, a.Equal(slog.Time("foo", now)))
	})

	t.Run("format: format string", func(t *testing.T) {
		f := formatTimeAttr("15:04:05")
		require.NotNil(t, f)
		now := time.Now()
		a := f(nil, slog.Time(slog.TimeKey, now))
		require.Equal(t, now.Format("15:04:05"), a.Value.String())
	})
}

func Test_New(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		log, err := New(nil)
		require.NoError(t, err)
		require.NotNil(t, log)
		require.True(t, log.Enabled(context.Background(), slog.LevelInfo))
		require.False(t, log.Enabled(context.Background(), slog.LevelDebug))
	})

	t.Run("json format", func(t *testing.T) {
		log, err := New(&LogConfiguration{Format: "json", Level: "debug", OutputPath: "discard"})
		require.NoError(t, err)
		require.NotNil(t, log)
	})

	t.Run("unknown format", func(t *testing.T) {
		log, err := New(&LogConfiguration{Format: "ecs"})
		require.ErrorContains(t, err, `unknown log format "ecs"`)
		require.Nil(t, log)
	})
}

func Test_LoadConfiguration(t *testing.T) {
	fileName := t.TempDir() + "/logger.yaml"
	require.NoError(t, os.WriteFile(fileName, []byte("defaultLevel: debug\nformat: json\n"), 0600))
	cfg, err := LoadConfiguration(fileName)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Level)
	require.Equal(t, "json", cfg.Format)

	_, err = LoadConfiguration(t.TempDir() + "/missing.yaml")
	require.ErrorContains(t, err, "failed to read logger config file")
}
