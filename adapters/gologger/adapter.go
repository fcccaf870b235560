package gologger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	LevelTrace = slog.LevelDebug - 4
	LevelFatal = slog.LevelError + 4
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Logger writes glog calls to a slog handler. Fatal logs at LevelFatal and
// leaves process shutdown to the caller.
type Logger struct {
	logger *slog.Logger
	ctx    context.Context
}

func New(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	return &Logger{logger: slog.New(handler), ctx: context.Background()}
}

// NewWriterLogger builds a JSON or text logger on w at the given level.
func NewWriterLogger(w io.Writer, format string, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevelNames}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return New(slog.NewJSONHandler(w, opts))
	}
	return New(slog.NewTextHandler(w, opts))
}

func (l *Logger) Trace(msg string, args ...any) { l.log(LevelTrace, msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }
func (l *Logger) Fatal(msg string, args ...any) { l.log(LevelFatal, msg, args...) }

func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Logger{logger: l.logger, ctx: ctx}
}

// WithFields attaches fields in key order so output is stable.
func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return &Logger{logger: l.logger.With(args...), ctx: l.ctx}
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Log(l.ctx, level, msg, args...)
}

// Provider hands out named children of a root Logger.
type Provider struct {
	root *Logger
}

func NewProvider(root *Logger) *Provider {
	if root == nil {
		root = New(nil)
	}
	return &Provider{root: root}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	if p == nil || p.root == nil {
		return glog.Nop()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return p.root
	}
	return &Logger{logger: p.root.logger.With("logger", name), ctx: p.root.ctx}
}

func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	return slog.LevelInfo, fmt.Errorf("gologger: unknown level %q", raw)
}

func replaceLevelNames(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key != slog.LevelKey {
		return attr
	}
	level, ok := attr.Value.Any().(slog.Level)
	if !ok {
		return attr
	}
	switch {
	case level <= LevelTrace:
		attr.Value = slog.StringValue("TRACE")
	case level >= LevelFatal:
		attr.Value = slog.StringValue("FATAL")
	}
	return attr
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)
