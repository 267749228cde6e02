package config

import (
	"time"

	"github.com/google/uuid"
	"github.com/mochivi/lifecycle-agent/pkg/utils"
)

// AgentAppConfig is the root configuration for the agent daemon.
type AgentAppConfig struct {
	Agent      AgentConfig       `mapstructure:"agent" validate:"required"`
	Dispatcher DispatcherConfig  `mapstructure:"dispatcher" validate:"required"`
	Retry      RetryConfig       `mapstructure:"retry" validate:"required"`
	Probe      StatusProbeConfig `mapstructure:"probe"`
	Tracing    TracingConfig     `mapstructure:"tracing"`
}

func DefaultAgentAppConfig() AgentAppConfig {
	return AgentAppConfig{
		Agent:      DefaultAgentConfig(),
		Dispatcher: DefaultDispatcherConfig(),
		Retry:      DefaultRetryConfig(),
		Probe:      DefaultStatusProbeConfig(),
		Tracing:    DefaultTracingConfig(),
	}
}

type AgentConfig struct {
	ID              string        `mapstructure:"id"`
	Host            string        `mapstructure:"host" validate:"required,hostname_rfc1123"`
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	RegistryPath    string        `mapstructure:"registry_path"` // empty uses the built-in storage roles
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		ID:              uuid.NewString(),
		Host:            utils.GetEnvString("AGENT_HOST", "0.0.0.0"),
		Port:            8090,
		ShutdownTimeout: 30 * time.Second,
	}
}

type DispatcherConfig struct {
	ActionTimeout           time.Duration `mapstructure:"action_timeout" validate:"required,gt=0"`
	InstallTimeout          time.Duration `mapstructure:"install_timeout" validate:"required,gt=0"` // installs pull packages, they get their own budget
	CancelGrace             time.Duration `mapstructure:"cancel_grace" validate:"required,gt=0"`    // wait for a timed out action to stop before abandoning it
	MaxConcurrentDispatches int           `mapstructure:"max_concurrent_dispatches" validate:"required,gt=0"`
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		ActionTimeout:           10 * time.Minute,
		InstallTimeout:          30 * time.Minute,
		CancelGrace:             5 * time.Second,
		MaxConcurrentDispatches: 16,
	}
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"required,gte=1"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gte=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Control loop that refreshes the observable state of every component
type StatusProbeConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"` // 0 disables probing
}

func DefaultStatusProbeConfig() StatusProbeConfig {
	return StatusProbeConfig{
		Interval: 1 * time.Minute,
	}
}

type TracingConfig struct {
	Exporter    string  `mapstructure:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint    string  `mapstructure:"endpoint" validate:"required_if=Exporter otlp"` // otlp gRPC collector, host:port
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Exporter:    "none",
		Endpoint:    "localhost:4317",
		Insecure:    true,
		SampleRatio: 1,
	}
}

// CtlConfig configures the one-shot agentctl command.
type CtlConfig struct {
	Address string        `mapstructure:"address" validate:"required,hostname_port"`
	Timeout time.Duration `mapstructure:"timeout" validate:"required,gt=0"`
}

// The default deadline covers an install that uses every attempt of the default agent
// configuration, plus some slack for waiting on the component lock.
func DefaultCtlConfig() CtlConfig {
	return CtlConfig{
		Address: "localhost:8090",
		Timeout: DispatchBudget(DefaultDispatcherConfig(), DefaultRetryConfig()) + 5*time.Minute,
	}
}

// DispatchBudget is the longest a single Install dispatch can run once it holds the component lock:
// every attempt timing out after its grace period, with the capped exponential backoff in between.
func DispatchBudget(d DispatcherConfig, r RetryConfig) time.Duration {
	attempts := max(r.MaxAttempts, 1)
	perAttempt := max(d.InstallTimeout, d.ActionTimeout) + d.CancelGrace
	budget := time.Duration(attempts) * perAttempt

	delay := r.BaseDelay
	for i := 1; i < attempts; i++ {
		budget += min(delay, r.MaxDelay)
		if delay < r.MaxDelay {
			delay *= 2
		}
	}
	return budget
}
