package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// DefaultBuildTimeout bounds a single external build invocation.
const DefaultBuildTimeout = 30 * time.Minute

// logTailLines bounds how much build output is kept for error reporting.
const logTailLines = 40

// BuildConfig describes one external build invocation.
type BuildConfig struct {
	// Script is the shell command that drives the external build tool.
	Script string
	// WorkDir is the configured source tree the build runs in.
	WorkDir m.Path
	// Target is the cross-compilation target triple, exported to the script.
	Target string
	// Env holds additional environment variables for the script.
	Env map[string]string
	// Timeout bounds the invocation; zero means DefaultBuildTimeout.
	Timeout time.Duration
}

// BuildOutcome is what the pipeline learns from the build tool: success or a
// non-zero exit, plus a bounded log tail either way.
type BuildOutcome struct {
	ExitCode int
	LogTail  string
	Duration time.Duration
}

// BuildRunner invokes the external build-tool collaborator. The only contract
// is "input tree in, named file out, or non-zero failure".
type BuildRunner interface {
	Run(ctx context.Context, cfg BuildConfig) (BuildOutcome, error)
}

// LocalBuildRunner executes the build script with /bin/sh.
type LocalBuildRunner struct{}

// NewLocalBuildRunner constructs a LocalBuildRunner.
func NewLocalBuildRunner() *LocalBuildRunner {
	return &LocalBuildRunner{}
}

// Run executes the configured build script. A non-zero exit is returned as a
// BuildToolError carrying the log tail; the caller treats it as fatal.
func (r *LocalBuildRunner) Run(ctx context.Context, cfg BuildConfig) (BuildOutcome, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultBuildTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 - the script comes from validated configuration
	cmd := exec.CommandContext(execCtx, "/bin/sh", "-c", cfg.Script)
	cmd.Dir = string(cfg.WorkDir)

	env := os.Environ()
	if cfg.Target != "" {
		env = append(env, "VKDFORGE_TARGET="+cfg.Target)
	}

	for key, value := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	cmd.Env = env

	var output bytes.Buffer

	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()

	outcome := BuildOutcome{
		LogTail:  tailLines(output.String(), logTailLines),
		Duration: time.Since(start),
	}

	if err == nil {
		return outcome, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		outcome.ExitCode = exitErr.ExitCode()
	} else {
		outcome.ExitCode = -1
	}

	return outcome, &m.BuildToolError{
		ExitCode: outcome.ExitCode,
		LogTail:  outcome.LogTail,
		Err:      err,
	}
}

// tailLines returns at most n trailing lines of s.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	return strings.Join(lines, "\n")
}
