package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/mochivi/lifecycle-agent/internal/agent"
	"github.com/mochivi/lifecycle-agent/internal/common"
	"github.com/mochivi/lifecycle-agent/internal/component"
	"github.com/mochivi/lifecycle-agent/internal/config"
	"github.com/mochivi/lifecycle-agent/internal/dispatcher"
	"github.com/mochivi/lifecycle-agent/internal/executor"
	"github.com/mochivi/lifecycle-agent/internal/grpcutil"
	"github.com/mochivi/lifecycle-agent/internal/retry"
	"github.com/mochivi/lifecycle-agent/pkg/agentapi"
	"github.com/mochivi/lifecycle-agent/pkg/logging"
	"github.com/mochivi/lifecycle-agent/pkg/tracing"
	"github.com/mochivi/lifecycle-agent/pkg/utils"
	"google.golang.org/grpc"
)

func main() {
	// .env is optional, real deployments configure through the environment or agent.yaml
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	appConfig, err := config.LoadAgentConfig(utils.GetEnvString("AGENT_CONFIG_PATH", "."))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := appConfig.Agent

	rootLogger, err := logging.InitLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger := logging.ServiceLogger(rootLogger, common.ServiceAgent, slog.String(common.LogNodeID, cfg.ID))

	shutdownTracing, err := tracing.Init(context.Background(), appConfig.Tracing, common.ServiceAgent, cfg.ID)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("Failed to flush traces", slog.String(common.LogError, err.Error()))
		}
	}()

	registry, err := loadRegistry(cfg.RegistryPath)
	if err != nil {
		log.Fatalf("Failed to load component registry: %v", err)
	}
	logger.Info("Loaded component registry", slog.Int("components", registry.Len()), slog.String("path", cfg.RegistryPath))

	handlers, err := executor.BuildHandlers(registry)
	if err != nil {
		log.Fatalf("Failed to build action handlers: %v", err)
	}

	d, err := dispatcher.NewDispatcher(registry, handlers, retry.NewPolicy(appConfig.Retry), appConfig.Dispatcher, logger)
	if err != nil {
		log.Fatalf("Failed to create dispatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober := agent.NewStatusProbeController(ctx, appConfig.Probe, d, logger)

	grpcSetup := func(wg *sync.WaitGroup, errChan chan error) (*grpc.Server, net.Listener, error) {
		listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
		if err != nil {
			return nil, nil, err
		}
		grpcServer := grpc.NewServer(grpcutil.ServerOptions(logger)...)
		agentapi.RegisterAgentServiceServer(grpcServer, agent.NewAgentServer(d))
		return grpcServer, listener, nil
	}

	if err := grpcutil.Launch(ctx, cancel, logger, grpcSetup, launchControllers(prober, logger), cfg.ShutdownTimeout); err != nil {
		logger.Error("Agent failed", slog.String(common.LogError, err.Error()))
		os.Exit(1)
	}
}

func loadRegistry(path string) (*component.Registry, error) {
	if path == "" {
		return component.BuiltinRegistry()
	}
	return component.LoadRegistryFile(path)
}

// launchControllers runs the background controllers. They share the launch context, so the shutdown
// sequence stops them; stopping for any other reason brings the agent down.
func launchControllers(prober agent.StatusProber, logger *slog.Logger) grpcutil.BackgroundLaunchFunc {
	return func(wg *sync.WaitGroup, errChan chan error) {
		wg.Add(1)

		go func() {
			defer wg.Done()
			if err := prober.Run(); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("status probe controller stopped: %w", err)
				return
			}
			logger.Info("Status probe controller stopped")
		}()
	}
}
