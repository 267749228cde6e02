package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shirou/gopsutil/process"

	"github.com/mochivi/lifecycle-agent/internal/action"
	"github.com/mochivi/lifecycle-agent/internal/component"
)

const (
	scriptShell     = "/bin/sh"
	scriptWaitDelay = time.Second // how long to wait for output pipes once the shell is killed
	maxMessageBytes = 512
)

var (
	ErrScriptFailed   = errors.New("script failed")
	ErrProcessMissing = errors.New("process not running")
)

// ScriptHandler runs the shell commands configured on a descriptor.
// Actions without a command fall back to built-in behaviour where one exists.
type ScriptHandler struct {
	descriptor *component.Descriptor
	pidExists  func(pid int32) (bool, error) // for testing
}

func NewScriptHandler(d *component.Descriptor) *ScriptHandler {
	return &ScriptHandler{
		descriptor: d,
		pidExists:  process.PidExists,
	}
}

func (h *ScriptHandler) Handle(ctx context.Context, req Request) (string, error) {
	if command, ok := h.descriptor.Command(req.Action); ok {
		return h.run(ctx, req, req.Action, command)
	}

	switch req.Action {
	case action.Status:
		return h.checkPidFile()

	case action.Restart:
		stop, hasStop := h.descriptor.Command(action.Stop)
		start, hasStart := h.descriptor.Command(action.Start)
		if !hasStop || !hasStart {
			return "", fmt.Errorf("%w: restart needs either a restart command or both stop and start commands", ErrSkipped)
		}
		if _, err := h.run(ctx, req, action.Stop, stop); err != nil {
			return "", fmt.Errorf("restart: %w", err)
		}
		return h.run(ctx, req, action.Start, start)

	default:
		return "", fmt.Errorf("%w: no command configured for %s", ErrSkipped, req.Action)
	}
}

func (h *ScriptHandler) run(ctx context.Context, req Request, step action.Kind, command string) (string, error) {
	cmd := exec.CommandContext(ctx, scriptShell, "-c", command)
	cmd.Dir = h.descriptor.Executor().WorkDir
	cmd.Env = append(os.Environ(), scriptEnv(req, step)...)
	cmd.WaitDelay = scriptWaitDelay

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	message := tail(output.String(), maxMessageBytes)
	if err == nil {
		if message == "" {
			message = fmt.Sprintf("%s completed", step)
		}
		return message, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%s interrupted: %w", step, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "", fmt.Errorf("%w: %s exited with code %d: %s", ErrScriptFailed, step, exitErr.ExitCode(), message)
	}
	return "", fmt.Errorf("%w: %s: %v", ErrScriptFailed, step, err)
}

func (h *ScriptHandler) checkPidFile() (string, error) {
	pidFile := h.descriptor.Executor().PidFile
	if pidFile == "" {
		return "", fmt.Errorf("%w: no status command or pid file configured", ErrSkipped)
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: pid file %s does not exist", ErrProcessMissing, pidFile)
		}
		return "", fmt.Errorf("failed to read pid file: %w", err)
	}

	pid, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
	if err != nil || pid <= 0 {
		return "", fmt.Errorf("invalid pid in %s: %q", pidFile, strings.TrimSpace(string(data)))
	}

	exists, err := h.pidExists(int32(pid))
	if err != nil {
		return "", fmt.Errorf("failed to check pid %d: %w", pid, err)
	}
	if !exists {
		return "", fmt.Errorf("%w: pid %d from %s", ErrProcessMissing, pid, pidFile)
	}
	return fmt.Sprintf("running with pid %d", pid), nil
}

// scriptEnv exposes the request to the script. Credential keys are passed as
// pointers into the node configuration, the script resolves the secret itself.
func scriptEnv(req Request, step action.Kind) []string {
	env := []string{
		"COMPONENT_NAME=" + req.Component.Name(),
		"COMPONENT_ACTION=" + step.String(),
		"ACTION_ATTEMPT=" + strconv.Itoa(req.Attempt),
	}
	for _, purpose := range req.Component.CredentialPurposes() {
		key, err := req.Component.LookupCredential(purpose)
		if err != nil {
			continue
		}
		prefix := "CREDENTIAL_" + envName(string(purpose))
		env = append(env, prefix+"_SECTION="+key.Section, prefix+"_FIELD="+key.Field)
	}
	for k, v := range req.Params {
		env = append(env, "PARAM_"+envName(k)+"="+v)
	}
	return env
}

func envName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, s)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
