// Package errors defines common errors for the performance test matrix
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrTasksFailed is returned when one or more plan jobs fail
	ErrTasksFailed = errors.New("tasks failed")

	// ErrNoTasksToRun is returned when a run selects nothing to execute
	ErrNoTasksToRun = errors.New("no tasks to run")

	// ErrUnknownTask is returned when a requested task is not part of the plan
	ErrUnknownTask = errors.New("unknown task")

	// ErrEnvFileNotFound is returned when no environment configuration can be found
	ErrEnvFileNotFound = errors.New("failed to find environment configuration (.github/env/ directory or .github/.env.perf)")

	// ErrJobFileNotFound is returned when the job definitions file cannot be found
	ErrJobFileNotFound = errors.New("job definitions file not found")

	// ErrMissingCredentials is returned when a distributed task lacks coordinator credentials
	ErrMissingCredentials = errors.New("missing distributed coordinator credentials")

	// ErrSampleGenerationFailed is returned when a sample generator job fails
	ErrSampleGenerationFailed = errors.New("sample generation failed")

	// ErrJobExecutionFailed is returned when a job process exits unsuccessfully
	ErrJobExecutionFailed = errors.New("job execution failed")

	// ErrPredecessorFailed is returned for jobs skipped because a dependency did not succeed
	ErrPredecessorFailed = errors.New("predecessor did not succeed")

	// ErrGracefulSkip is returned when a job is gracefully skipped
	ErrGracefulSkip = errors.New("job gracefully skipped")
)

// TaskError represents an enhanced error with context and suggestions
type TaskError struct {
	// Base error
	Err error

	// Human-readable message explaining what went wrong
	Message string

	// Actionable suggestion for how to fix the issue
	Suggestion string

	// Command that failed (if applicable)
	Command string

	// Raw output from the failed command
	Output string

	// Task or job the error belongs to
	Task string

	// Whether this error allows graceful degradation
	CanSkip bool
}

// Error implements the error interface
func (e *TaskError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements the error unwrapping interface
func (e *TaskError) Unwrap() error {
	return e.Err
}

// Is implements the error checking interface
func (e *TaskError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTaskError creates a new TaskError
func NewTaskError(err error, message, suggestion string) *TaskError {
	return &TaskError{
		Err:        err,
		Message:    message,
		Suggestion: suggestion,
	}
}

// NewMissingCredentialsError reports which coordinator settings a distributed task lacks
func NewMissingCredentialsError(task string, missing []string) *TaskError {
	return &TaskError{
		Err:        ErrMissingCredentials,
		Task:       task,
		Message:    fmt.Sprintf("%s cannot reach the coordinator: missing %v", task, missing),
		Suggestion: "Set the missing values in .github/env/ or export them before running distributed tasks",
	}
}

// NewJobExecutionError creates an error for job process failures
func NewJobExecutionError(task, command, output, suggestion string) *TaskError {
	return &TaskError{
		Err:        ErrJobExecutionFailed,
		Task:       task,
		Command:    command,
		Output:     output,
		Message:    fmt.Sprintf("command '%s' failed", command),
		Suggestion: suggestion,
	}
}

// NewPredecessorFailedError creates an error for a job skipped after a failed dependency
func NewPredecessorFailedError(task, predecessor string) *TaskError {
	return &TaskError{
		Err:     ErrPredecessorFailed,
		Task:    task,
		Message: fmt.Sprintf("%s skipped: %s did not succeed", task, predecessor),
		CanSkip: true,
	}
}

// NewGracefulSkipError creates an error for gracefully skipped jobs
func NewGracefulSkipError(reason string) *TaskError {
	return &TaskError{
		Err:        ErrGracefulSkip,
		Message:    reason,
		Suggestion: "This job was skipped to allow other jobs to continue",
		CanSkip:    true,
	}
}
