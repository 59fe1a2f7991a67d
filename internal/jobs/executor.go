package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	prerrors "github.com/mrz1836/go-perf-matrix/internal/errors"
)

// Outcome is what an executed job produced
type Outcome struct {
	Output   string
	ExitCode int
	Duration time.Duration
}

// Executor runs rendered jobs
type Executor interface {
	Execute(ctx context.Context, job Job) (*Outcome, error)
}

// CommandExecutor runs jobs as child processes without a shell
type CommandExecutor struct {
	logger *zap.Logger
	stream io.Writer
	mu     sync.Mutex
}

// NewCommandExecutor creates an executor. Output of jobs with ShowOutput set is
// copied to stream as it is produced.
func NewCommandExecutor(logger *zap.Logger, stream io.Writer) *CommandExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stream == nil {
		stream = io.Discard
	}
	return &CommandExecutor{logger: logger, stream: stream}
}

// lockedWriter serializes streamed output from concurrent jobs
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Execute runs the job and returns its captured output
func (e *CommandExecutor) Execute(ctx context.Context, job Job) (*Outcome, error) {
	if len(job.Argv) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCommand, job.Name)
	}

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, job.Argv[0], job.Argv[1:]...) //nolint:gosec // argv comes from the job definitions file
	cmd.Dir = job.Dir
	cmd.Env = append(os.Environ(), job.Env...)

	var output bytes.Buffer
	var sink io.Writer = &output
	if job.ShowOutput {
		sink = io.MultiWriter(&output, lockedWriter{mu: &e.mu, w: e.stream})
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	e.logger.Debug("starting job",
		zap.String("job", job.Name),
		zap.Strings("argv", job.Argv),
		zap.String("dir", job.Dir),
		zap.Duration("timeout", job.Timeout),
	)

	start := time.Now()
	err := cmd.Run()
	outcome := &Outcome{
		Output:   output.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err == nil {
		e.logger.Debug("job finished", zap.String("job", job.Name), zap.Duration("duration", outcome.Duration))
		return outcome, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return outcome, prerrors.NewJobExecutionError(
			job.Name,
			job.CommandLine(),
			outcome.Output,
			fmt.Sprintf("Job timed out after %v. Raise the job timeout in perf-matrix.yaml or PERF_MATRIX_JOB_TIMEOUT_SECONDS.", job.Timeout),
		)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return outcome, ctx.Err()
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return outcome, prerrors.NewJobExecutionError(
			job.Name,
			job.CommandLine(),
			err.Error(),
			fmt.Sprintf("Make sure '%s' is installed and on PATH.", job.Argv[0]),
		)
	}

	return outcome, prerrors.NewJobExecutionError(
		job.Name,
		job.CommandLine(),
		outcome.Output,
		fmt.Sprintf("Job exited with code %d. Run with --verbose to see its output.", outcome.ExitCode),
	)
}
