package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/seqledger/seqledger/logger"
)

// New returns a logger for test t on trace level.
func New(t testing.TB) *slog.Logger {
	return NewLvl(t, logger.LevelTrace)
}

// NewLvl returns a logger for test t which logs everything at or above
// the given level through t.Log.
func NewLvl(t testing.TB, level slog.Level) *slog.Logger {
	return slog.New(&testHandler{t: t, level: level, attrs: &strings.Builder{}})
}

// NOP returns a logger which doesn't log anything.
func NOP() *slog.Logger {
	log, err := logger.New(&logger.LogConfiguration{OutputPath: "discard"})
	if err != nil {
		panic(fmt.Errorf("creating no-op logger: %w", err))
	}
	return log
}

/*
testHandler implements slog.Handler on top of t.Log so that log output
ends up attached to the test which generated it.
*/
type testHandler struct {
	t      testing.TB
	level  slog.Level
	prefix string
	attrs  *strings.Builder
	mu     sync.Mutex
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := &strings.Builder{}
	fmt.Fprintf(b, "%s %s%s %s", r.Level, h.prefix, r.Message, h.attrs.String())
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(b, " %s=%v", a.Key, a.Value)
		return true
	})
	h.t.Log(b.String())
	return nil
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := &testHandler{t: h.t, level: h.level, prefix: h.prefix, attrs: &strings.Builder{}}
	nh.attrs.WriteString(h.attrs.String())
	for _, a := range attrs {
		fmt.Fprintf(nh.attrs, " %s=%v", a.Key, a.Value)
	}
	return nh
}

func (h *testHandler) WithGroup(name string) slog.Handler {
	nh := &testHandler{t: h.t, level: h.level, prefix: h.prefix + name + ".", attrs: &strings.Builder{}}
	nh.attrs.WriteString(h.attrs.String())
	return nh
}
