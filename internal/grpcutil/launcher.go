package grpcutil

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mochivi/lifecycle-agent/internal/common"
	"google.golang.org/grpc"
)

type GRPCSetupFunc func(*sync.WaitGroup, chan error) (*grpc.Server, net.Listener, error)
type BackgroundLaunchFunc func(*sync.WaitGroup, chan error)

// Launch starts the gRPC server and the background controllers, then blocks until a signal,
// a server error or a controller error asks for shutdown.
// Cancelling ctx from outside also triggers the shutdown sequence.
func Launch(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger,
	grpcSetup GRPCSetupFunc, backgroundLaunch BackgroundLaunchFunc, shutdownTimeout time.Duration) error {

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	grpcServer, listener, err := grpcSetup(&wg, errChan)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to set up gRPC server: %w", err)
	}
	launchServer(ctx, &wg, errChan, grpcServer, listener, logger)

	backgroundLaunch(&wg, errChan)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info(fmt.Sprintf("Received %s signal, initiating graceful shutdown...", sig.String()))
	case err := <-errChan:
		logger.Error("Received error, initiating shutdown", slog.String(common.LogError, err.Error()))
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}

	// Cancel context to signal context-aware goroutines to stop
	cancel()

	// In-flight dispatches finish before GracefulStop returns, bounded by shutdownTimeout
	stopDone := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopDone)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("All goroutines finished gracefully")
	case <-time.After(shutdownTimeout):
		logger.Info("Timeout waiting for goroutines to finish, forcing shutdown")
	}

	select {
	case <-stopDone:
		logger.Info("gRPC server stopped gracefully")
	case <-time.After(shutdownTimeout):
		logger.Info("Timeout waiting for gRPC server to stop gracefully, forcing stop")
		grpcServer.Stop()
	}

	if err := listener.Close(); err != nil {
		logger.Debug("Listener already closed", slog.String(common.LogError, err.Error()))
	}

	logger.Info("Server stopped")
	return nil
}

func launchServer(ctx context.Context, wg *sync.WaitGroup, errChan chan error, grpcServer *grpc.Server,
	listener net.Listener, logger *slog.Logger) {
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Recovered from panic in gRPC server", slog.String(common.LogError, fmt.Sprintf("%v", r)))
				grpcServer.GracefulStop()
			}
		}()

		logger.Info(fmt.Sprintf("Starting gRPC server on %s", listener.Addr().String()))
		if err := grpcServer.Serve(listener); err != nil {
			select {
			case <-ctx.Done():
				logger.Info("gRPC server stopped due to graceful shutdown")
			default:
				errChan <- fmt.Errorf("gRPC server failed: %w", err)
			}
		}
	}()
}
