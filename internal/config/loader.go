package config

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LoadAgentConfig reads agent configuration from file and environment variables.
// path may be a directory holding agent.yaml, a config file, or empty to skip file reading.
func LoadAgentConfig(path string) (*AgentAppConfig, error) {
	v := viper.New()

	// Set defaults, leaf by leaf so that every key can be overridden from the environment
	defaults := DefaultAgentAppConfig()
	v.SetDefault("agent.id", defaults.Agent.ID)
	v.SetDefault("agent.host", defaults.Agent.Host)
	v.SetDefault("agent.port", defaults.Agent.Port)
	v.SetDefault("agent.registry_path", defaults.Agent.RegistryPath)
	v.SetDefault("agent.shutdown_timeout", defaults.Agent.ShutdownTimeout)
	v.SetDefault("dispatcher.action_timeout", defaults.Dispatcher.ActionTimeout)
	v.SetDefault("dispatcher.install_timeout", defaults.Dispatcher.InstallTimeout)
	v.SetDefault("dispatcher.cancel_grace", defaults.Dispatcher.CancelGrace)
	v.SetDefault("dispatcher.max_concurrent_dispatches", defaults.Dispatcher.MaxConcurrentDispatches)
	v.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", defaults.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", defaults.Retry.MaxDelay)
	v.SetDefault("probe.interval", defaults.Probe.Interval)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", defaults.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", defaults.Tracing.Insecure)
	v.SetDefault("tracing.sample_ratio", defaults.Tracing.SampleRatio)

	// Configure file reading
	if path != "" {
		if filepath.Ext(path) != "" {
			v.SetConfigFile(path) // an explicit file must exist
		} else {
			v.SetConfigName("agent") // a file named `agent.yaml` can be used
			v.SetConfigType("yaml")
			v.AddConfigPath(path)
		}

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err // Only return error if it's not a "file not found" error
			}
		}
	}

	// Configure environment variable reading
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal and validate
	var cfg AgentAppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadCtlConfig resolves agentctl settings from flags, AGENTCTL_* environment variables and defaults, in that order.
func LoadCtlConfig(flags *pflag.FlagSet) (*CtlConfig, error) {
	v := viper.New()

	defaults := DefaultCtlConfig()
	v.SetDefault("address", defaults.Address)
	v.SetDefault("timeout", defaults.Timeout)

	v.SetEnvPrefix("AGENTCTL")
	v.AutomaticEnv()

	for _, name := range []string{"address", "timeout"} {
		if flag := flags.Lookup(name); flag != nil {
			if err := v.BindPFlag(name, flag); err != nil {
				return nil, err
			}
		}
	}

	var cfg CtlConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
