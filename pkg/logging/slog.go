package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mochivi/lifecycle-agent/internal/common"
	"github.com/mochivi/lifecycle-agent/pkg/utils"
)

type contextKey string

const loggerKey contextKey = "logger"

func handlerOptions(logLevel slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "time",
					Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05.000")),
				}
			}
			return a
		},
	}
}

// SetupTextLogger can be used during development for more readable logs
func SetupTextLogger(w io.Writer, logLevel slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, handlerOptions(logLevel)))
}

// SetupJSONLogger is used when the agent output is shipped to a log collector
func SetupJSONLogger(w io.Writer, logLevel slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, handlerOptions(logLevel)))
}

// NewTestLogger is a test logger that is used for testing
func NewTestLogger(logLevel slog.Level, discard bool) *slog.Logger {
	if discard {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return SetupTextLogger(os.Stdout, logLevel)
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", level)
	}
}

// InitLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and sets it as the slog default.
// Logs go to stderr so that one-shot commands keep stdout for their result.
func InitLogger() (*slog.Logger, error) {
	logLevel, err := ParseLevel(utils.GetEnvString("LOG_LEVEL", "warn"))
	if err != nil {
		return nil, err
	}

	var logger *slog.Logger
	switch format := utils.GetEnvString("LOG_FORMAT", "text"); format {
	case "text":
		logger = SetupTextLogger(os.Stderr, logLevel)
	case "json":
		logger = SetupJSONLogger(os.Stderr, logLevel)
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	// Set as default logger -- for calling slog.Info etc
	slog.SetDefault(logger)

	return logger, nil
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default() // Fallback to default logger
}

func FromContextWithOperation(ctx context.Context, operation string, kvs ...any) (context.Context, *slog.Logger) {
	logger := OperationLogger(FromContext(ctx), operation, kvs...)
	return WithLogger(ctx, logger), logger
}

// Extend logger with additional attributes
func ExtendLogger(logger *slog.Logger, kvs ...any) *slog.Logger {
	return logger.With(kvs...)
}

// Add some operation specific attributes to the logger
func OperationLogger(logger *slog.Logger, operation string, kvs ...any) *slog.Logger {
	attrs := append(kvs, slog.String(common.LogOperation, operation))
	return ExtendLogger(logger, attrs...)
}

func ServiceLogger(logger *slog.Logger, service string, kvs ...any) *slog.Logger {
	attrs := append(kvs, slog.String(common.LogService, service))
	return ExtendLogger(logger, attrs...)
}
