package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mochivi/lifecycle-agent/internal/action"
	"github.com/mochivi/lifecycle-agent/internal/clients"
	"github.com/mochivi/lifecycle-agent/internal/common"
	"github.com/mochivi/lifecycle-agent/internal/config"
	"github.com/mochivi/lifecycle-agent/pkg/logging"
	"github.com/mochivi/lifecycle-agent/pkg/utils"
	"github.com/spf13/pflag"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Exit codes beyond the ones carried by action outcomes
const (
	exitTransport  = 1
	exitUsageError = 2
	exitNoAnswer   = 3 // deadline hit before the agent answered, the action may still be running
)

const usage = `usage: agentctl [--address host:port] [--timeout duration] <command>

commands:
  dispatch <component> <action> [key=value ...]   run one action, exit code follows the outcome
  batch <action> <component> [component ...]      run one action on several components
  list                                            show registered components and their state
`

type clientFactory func(address string) (clients.IAgentClient, error)

func main() {
	newClient := func(address string) (clients.IAgentClient, error) {
		return clients.NewAgentClient(address)
	}
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, newClient))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, newClient clientFactory) int {
	level, err := logging.ParseLevel(utils.GetEnvString("LOG_LEVEL", "warn"))
	if err != nil {
		level = slog.LevelWarn
	}
	logger := logging.ServiceLogger(logging.SetupTextLogger(stderr, level), common.ServiceAgentCtl)

	flags := pflag.NewFlagSet("agentctl", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { fmt.Fprint(stderr, usage) }
	flags.String("address", config.DefaultCtlConfig().Address, "agent address")
	flags.Duration("timeout", config.DefaultCtlConfig().Timeout, "overall deadline for the call")
	if err := flags.Parse(args); err != nil {
		return exitUsageError
	}

	cfg, err := config.LoadCtlConfig(flags)
	if err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return exitUsageError
	}

	rest := flags.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsageError
	}

	client, err := newClient(cfg.Address)
	if err != nil {
		fmt.Fprintf(stderr, "failed to create client for %s: %v\n", cfg.Address, err)
		return exitTransport
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, logger)

	switch rest[0] {
	case "dispatch":
		return runDispatch(ctx, client, rest[1:], stdout, stderr)
	case "batch":
		return runBatch(ctx, client, rest[1:], stdout, stderr)
	case "list":
		return runList(ctx, client, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		fmt.Fprint(stderr, usage)
		return exitUsageError
	}
}

func runDispatch(ctx context.Context, client clients.IAgentClient, args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stderr, usage)
		return exitUsageError
	}
	params, err := parseParams(args[2:])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsageError
	}

	req := common.DispatchRequest{Component: args[0], Action: args[1], Params: params}
	logging.FromContext(ctx).Debug("Dispatching", slog.String(common.LogComponent, req.Component), slog.String(common.LogAction, req.Action))

	resp, err := client.Dispatch(ctx, req)
	if err != nil {
		return reportCallError(err, client.Address(), stderr)
	}

	fmt.Fprintf(stdout, "%s %s: %s (attempt %d, %dms) %s\n", req.Component, req.Action, resp.Outcome, resp.Attempt, resp.DurationMs, resp.Message)
	return outcomeExitCode(resp.Outcome)
}

func runBatch(ctx context.Context, client clients.IAgentClient, args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stderr, usage)
		return exitUsageError
	}

	req := common.DispatchBatchRequest{}
	for _, name := range args[1:] {
		req.Commands = append(req.Commands, common.DispatchRequest{Component: name, Action: args[0]})
	}

	resp, err := client.DispatchBatch(ctx, req)
	if err != nil {
		return reportCallError(err, client.Address(), stderr)
	}

	exitCode := action.ExitSuccess
	for _, item := range resp.Results {
		code := exitUsageError
		if item.Error != "" {
			fmt.Fprintf(stdout, "%s %s: rejected (%s) %s\n", item.Component, item.Action, item.ErrorCode, item.Error)
		} else {
			fmt.Fprintf(stdout, "%s %s: %s (attempt %d, %dms) %s\n", item.Component, item.Action,
				item.Response.Outcome, item.Response.Attempt, item.Response.DurationMs, item.Response.Message)
			code = outcomeExitCode(item.Response.Outcome)
		}
		exitCode = worseExitCode(exitCode, code)
	}
	return exitCode
}

func runList(ctx context.Context, client clients.IAgentClient, stdout, stderr io.Writer) int {
	resp, err := client.ListComponents(ctx, common.ListComponentsRequest{})
	if err != nil {
		return reportCallError(err, client.Address(), stderr)
	}
	for _, c := range resp.Components {
		fmt.Fprintln(stdout, c.String())
	}
	return action.ExitSuccess
}

// reportCallError separates requests the agent rejected from calls that never got an answer
func reportCallError(err error, address string, stderr io.Writer) int {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.NotFound, codes.InvalidArgument:
		fmt.Fprintf(stderr, "rejected: %s\n", st.Message())
		return exitUsageError
	case codes.DeadlineExceeded:
		fmt.Fprintf(stderr, "no answer from %s before the deadline, the action may still be running on the agent (raise --timeout and check with list)\n", address)
		return exitNoAnswer
	default:
		fmt.Fprintf(stderr, "call to %s failed: %s: %s\n", address, st.Code(), st.Message())
		return exitTransport
	}
}

func outcomeExitCode(outcome string) int {
	parsed, err := action.ParseOutcome(outcome)
	if err != nil {
		return exitTransport
	}
	return parsed.ExitCode()
}

// worseExitCode orders exit codes by severity: timed out, rejected input, failed, success.
func worseExitCode(a, b int) int {
	rank := func(code int) int {
		switch code {
		case action.ExitTimedOut:
			return 3
		case exitUsageError:
			return 2
		case action.ExitFailed:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func parseParams(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", arg)
		}
		params[key] = value
	}
	return params, nil
}
