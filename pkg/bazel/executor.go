package bazel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ritzau/syncgraph/pkg/logging"
)

// ErrQueryFailed is returned when bazel exits with an error that is not a keep-going partial result
var ErrQueryFailed = errors.New("bazel query failed")

// exitPartialSuccess is bazel's exit code for "--keep_going produced partial results"
const exitPartialSuccess = 3

// Executor handles the execution of Bazel commands
type Executor interface {
	// Run executes bazel with args in workspace and returns stdout.
	Run(ctx context.Context, workspace string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default implementation of Executor that runs actual commands
type DefaultExecutor struct {
	Binary string
}

// NewExecutor creates a new default Bazel executor
func NewExecutor(binary string) *DefaultExecutor {
	if binary == "" {
		binary = "bazel"
	}
	return &DefaultExecutor{Binary: binary}
}

// Run executes bazel and returns its stdout.
// It respects the provided context for cancellation.
func (e *DefaultExecutor) Run(ctx context.Context, workspace string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Dir = workspace
	cmd.Stderr = &stderr

	logging.TraceContext(ctx, "running bazel", "args", strings.Join(args, " "))
	output, err := cmd.Output()
	if err == nil {
		return output, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == exitPartialSuccess {
		logging.WarnContext(ctx, "bazel returned partial results", "args", strings.Join(args, " "), "stderr", lastLine(stderr.String()))
		return output, nil
	}
	return nil, fmt.Errorf("%w: %w\nOutput: %s", ErrQueryFailed, err, stderr.String())
}

// queryArgs builds the argument list of a bazel query
func queryArgs(expr, output string, keepGoing bool) []string {
	args := []string{"query", expr, "--output=" + output}
	if keepGoing {
		args = append(args, "--keep_going")
	}
	return args
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
