// Package logger provides the structured logging facility used across the
// server: a package-level slog.Logger with a level and format that can be
// reconfigured at process startup from internal/config.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level mirrors the four levels the config layer accepts.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config drives Configure; it is populated from the [logging] config section.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

var (
	mu     sync.RWMutex
	slog0  *slog.Logger
	level  atomic.Int32
	closer io.Closer
)

func init() {
	level.Store(int32(LevelInfo))
	slog0 = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Configure rebuilds the package logger according to cfg. It is called once
// at startup; it is not safe to call concurrently with logging calls.
func Configure(cfg Config) error {
	lvl := parseLevel(cfg.Level)
	level.Store(int32(lvl))

	var w io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		w = f
		closer = f
	}

	opts := &slog.HandlerOptions{Level: lvl.slogLevel()}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	mu.Lock()
	slog0 = slog.New(h)
	mu.Unlock()
	return nil
}

// Close releases any file handle opened by Configure.
func Close() error {
	if closer != nil {
		return closer.Close()
	}
	return nil
}

func parseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slog0
}

func enabled(l Level) bool {
	return int32(l) >= level.Load()
}

// Debug/Info/Warn/Error log at the package level without a context.
func Debug(msg string, args ...any) {
	if enabled(LevelDebug) {
		current().Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	if enabled(LevelInfo) {
		current().Info(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if enabled(LevelWarn) {
		current().Warn(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if enabled(LevelError) {
		current().Error(msg, args...)
	}
}

// ctxKey carries request-scoped fields (xid, client address, share) that the
// *Ctx variants splice into every log line automatically.
type ctxKey struct{}

type fields struct {
	args []any
}

// WithFields returns a context carrying the given key/value pairs; subsequent
// *Ctx log calls append them automatically.
func WithFields(ctx context.Context, args ...any) context.Context {
	existing, _ := ctx.Value(ctxKey{}).(*fields)
	merged := make([]any, 0, len(args)+len(existingArgs(existing)))
	merged = append(merged, existingArgs(existing)...)
	merged = append(merged, args...)
	return context.WithValue(ctx, ctxKey{}, &fields{args: merged})
}

func existingArgs(f *fields) []any {
	if f == nil {
		return nil
	}
	return f.args
}

func ctxArgs(ctx context.Context) []any {
	f, _ := ctx.Value(ctxKey{}).(*fields)
	return existingArgs(f)
}

func DebugCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelDebug) {
		current().DebugContext(ctx, msg, append(ctxArgs(ctx), args...)...)
	}
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelInfo) {
		current().InfoContext(ctx, msg, append(ctxArgs(ctx), args...)...)
	}
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelWarn) {
		current().WarnContext(ctx, msg, append(ctxArgs(ctx), args...)...)
	}
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelError) {
		current().ErrorContext(ctx, msg, append(ctxArgs(ctx), args...)...)
	}
}
