package grpcutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mochivi/lifecycle-agent/internal/apperr"
	"github.com/mochivi/lifecycle-agent/internal/common"
	"github.com/mochivi/lifecycle-agent/pkg/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorsInterceptor is a gRPC unary interceptor that translates application errors into status errors.
func ErrorsInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return nil, status.Error(appErr.Code, appErr.Message)
	}

	var translator apperr.AppErrorTranslator
	if errors.As(err, &translator) {
		appErr = translator.ToAppError()
		return nil, status.Error(appErr.Code, appErr.Message)
	}

	// Already a status error, e.g. from the Unimplemented server
	if _, ok := status.FromError(err); ok {
		return nil, err
	}

	logging.FromContext(ctx).Error("Unexpected error", slog.String(common.LogError, err.Error()))
	return nil, status.Error(codes.Internal, "an unexpected internal error occurred")
}

// RecoveryInterceptor turns a panicking handler into an Internal error instead of crashing the agent.
func RecoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("Recovered from panic in handler",
				slog.String(common.LogMethod, info.FullMethod),
				slog.String(common.LogError, fmt.Sprintf("%v", r)))
			resp, err = nil, apperr.Internal(fmt.Errorf("panic: %v", r))
		}
	}()
	return handler(ctx, req)
}

func NewLoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		requestID := generateRequestID()
		requestLogger := logging.ExtendLogger(logger, slog.String(common.LogRequestID, requestID))

		requestLogger.Info("Request started",
			slog.String(common.LogMethod, info.FullMethod),
			slog.Time(common.LogTimestamp, start))

		ctx = logging.WithLogger(ctx, requestLogger)

		resp, err := handler(ctx, req)

		duration := time.Since(start)

		// Error translation happens in ErrorsInterceptor, only the outcome is logged here
		if err != nil {
			requestLogger.Info("Request completed with error",
				slog.String(common.LogMethod, info.FullMethod),
				slog.String(common.LogError, err.Error()),
				slog.Duration(common.LogDuration, duration),
				slog.String(common.LogStatus, status.Code(err).String()))
		} else {
			requestLogger.Info("Request completed successfully",
				slog.String(common.LogMethod, info.FullMethod),
				slog.Duration(common.LogDuration, duration))
		}

		return resp, err
	}
}

// ServerOptions chains the interceptors in the order the agent expects:
// logging outermost so it sees the translated status, recovery innermost.
func ServerOptions(logger *slog.Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(NewLoggingInterceptor(logger), ErrorsInterceptor, RecoveryInterceptor),
	}
}

func generateRequestID() string {
	return uuid.NewString()
}
