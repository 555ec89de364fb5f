package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey struct{}

var discardLogger = New(io.Discard, slog.LevelInfo)

type Options struct {
	Level string
	File  string
}

func New(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// FromOptions builds the process logger. Output goes to stderr unless a file is
// configured, in which case it is rotated by lumberjack.
func FromOptions(opts Options) *slog.Logger {
	var w io.Writer = os.Stderr
	if opts.File != "" {
		w = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
	}
	return New(w, ParseLevel(opts.Level))
}

func ParseLevel(s string) slog.Level {
	levels := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	level, ok := levels[strings.ToLower(strings.TrimSpace(s))]
	return lo.Ternary(ok, level, slog.LevelInfo)
}

func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

func FromContextOrDiscard(ctx context.Context) *slog.Logger {
	if v, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return v
	}
	return discardLogger
}
