package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	prerrors "github.com/mrz1836/go-perf-matrix/internal/errors"
	"github.com/mrz1836/go-perf-matrix/internal/plan"
	"github.com/mrz1836/go-perf-matrix/internal/results"
)

// execute runs one node and, for measurement tasks, the finalizers attached to it
func (r *Runner) execute(ctx context.Context, n *node, runID string) (JobResult, []JobResult) {
	if n.task != nil {
		return r.measure(ctx, *n.task, runID)
	}

	start := time.Now()
	var res JobResult
	switch n.job.Kind {
	case plan.JobGenerator:
		res = r.generate(ctx, n.job)
	case plan.JobPrepareSamples:
		res = JobResult{Status: StatusPassed}
	case plan.JobCleanSamples:
		res = r.cleanSamples()
	case plan.JobCheckDuplicates:
		res = r.checkDuplicates(ctx)
	case plan.JobReport:
		res = r.report(ctx, "")
	case plan.JobResultsArchive:
		// targeted on its own, the archive packages whatever its task left behind
		task, ok := r.deps.Plan.Task(n.job.Task)
		if !ok {
			res = failed(fmt.Errorf("%w: %s", prerrors.ErrUnknownTask, n.job.Task))
			break
		}
		res = r.packageResults(ctx, task, runID)
	default:
		res = failed(fmt.Errorf("%w: %s", prerrors.ErrUnknownTask, n.name))
	}
	res.Duration = time.Since(start)
	return res, nil
}

// measure runs a measurement task and then every job it finalizes
func (r *Runner) measure(ctx context.Context, task plan.TaskSpec, runID string) (JobResult, []JobResult) {
	start := time.Now()
	res := r.runMeasurement(ctx, task)
	res.Duration = time.Since(start)

	var finals []JobResult
	for _, e := range r.deps.Plan.Graph().Outgoing(task.Name, plan.Finalizes) {
		finals = append(finals, r.finalize(ctx, e.To, task, runID))
	}
	return res, finals
}

func (r *Runner) runMeasurement(ctx context.Context, task plan.TaskSpec) JobResult {
	log := r.log.With(zap.String("task", task.Name), zap.String("channel", task.Channel))

	if task.Distributed != nil {
		if err := task.Distributed.Validate(task.Name); err != nil {
			log.Warn("distributed task is missing coordinator settings", zap.Error(err))
			return failed(err)
		}
	}

	job, err := r.deps.Builder.Measurement(task)
	if err != nil {
		return failed(err)
	}

	log.Info("running measurement", zap.String("command", job.CommandLine()))
	outcome, err := r.deps.Executor.Execute(ctx, job)
	res := JobResult{Command: job.CommandLine()}
	if outcome != nil {
		res.Output = outcome.Output
	}
	if err != nil {
		return withError(res, err)
	}
	res.Status = StatusPassed

	junitDir, err := r.deps.Builder.JUnitDir(task)
	if err != nil {
		res.Warning = err.Error()
		return res
	}
	summary, reports, ignored, err := results.Summarize(junitDir, "")
	if err != nil {
		res.Warning = err.Error()
		return res
	}
	res.Tests = summary.Tests
	res.Skipped = summary.Skipped
	if ignored > 0 {
		res.Warning = fmt.Sprintf("%d unreadable test reports", ignored)
	}
	log.Debug("test reports summarized",
		zap.Int("reports", reports),
		zap.Int("tests", summary.Tests),
		zap.Int("skipped", summary.Skipped),
	)
	return res
}

// finalize runs one finalizer instance for task
func (r *Runner) finalize(ctx context.Context, name string, task plan.TaskSpec, runID string) JobResult {
	job, _ := r.deps.Plan.Job(name)

	start := time.Now()
	var res JobResult
	switch {
	case ctx.Err() != nil:
		res = JobResult{
			Status: StatusSkipped,
			Error:  prerrors.NewGracefulSkipError(fmt.Sprintf("%s skipped: run interrupted", name)).Error(),
		}
	case job.Kind == plan.JobReport:
		res = r.report(ctx, task.Channel)
	case job.Kind == plan.JobResultsArchive:
		res = r.packageResults(ctx, task, runID)
	default:
		res = failed(fmt.Errorf("%w: %s", prerrors.ErrUnknownTask, name))
	}

	res.Name = name
	res.Kind = job.Kind.String()
	res.Finalizes = task.Name
	res.Duration = time.Since(start)
	return res
}

func (r *Runner) generate(ctx context.Context, node plan.Job) JobResult {
	job, err := r.deps.Builder.Generator(node)
	if err != nil {
		return failed(err)
	}
	r.log.Info("generating samples", zap.String("generator", node.Name), zap.Int("max_projects", node.MaxProjects))

	outcome, err := r.deps.Executor.Execute(ctx, job)
	res := JobResult{Command: job.CommandLine()}
	if outcome != nil {
		res.Output = outcome.Output
	}
	if err != nil {
		return withError(res, err)
	}
	res.Status = StatusPassed
	return res
}

// report runs the report job with the channel of the task it finalizes
func (r *Runner) report(ctx context.Context, channel string) JobResult {
	job, ok, err := r.deps.Builder.Report(r.deps.Plan.Report(), channel)
	if err != nil {
		return failed(err)
	}
	if !ok {
		return JobResult{Status: StatusPassed, Warning: "no report command configured"}
	}

	outcome, err := r.deps.Executor.Execute(ctx, job)
	res := JobResult{Command: job.CommandLine()}
	if outcome != nil {
		res.Output = outcome.Output
	}
	if err != nil {
		return withError(res, err)
	}
	res.Status = StatusPassed
	return res
}

// PackageTask archives the results of one local task outside a full run
func (r *Runner) PackageTask(ctx context.Context, name, runID string) (JobResult, error) {
	task, ok := r.deps.Plan.Task(name)
	if !ok || task.ResultsArchive == "" {
		return JobResult{}, fmt.Errorf("%w: %s has no results archive", prerrors.ErrUnknownTask, name)
	}
	res := r.packageResults(ctx, task, runID)
	res.Name = task.ResultsArchive
	res.Kind = plan.JobResultsArchive.String()
	res.Finalizes = task.Name
	if res.Status == StatusFailed {
		return res, errors.New(res.Error)
	}
	return res, nil
}

// CleanTaskArchive deletes the results archive of a local task and returns its path
func (r *Runner) CleanTaskArchive(name string) (string, error) {
	task, ok := r.deps.Plan.Task(name)
	if !ok || task.ResultsArchive == "" {
		return "", fmt.Errorf("%w: %s has no results archive", prerrors.ErrUnknownTask, name)
	}
	junitDir, err := r.deps.Builder.JUnitDir(task)
	if err != nil {
		return "", err
	}
	path := filepath.Join(r.deps.ArchiveDir, results.ArchiveName(junitDir))
	if err := r.deps.Packager.Clean(path); err != nil {
		return "", err
	}
	r.log.Debug("removed results archive", zap.String("archive", path))
	return path, nil
}

func (r *Runner) packageResults(ctx context.Context, task plan.TaskSpec, runID string) JobResult {
	junitDir, err := r.deps.Builder.JUnitDir(task)
	if err != nil {
		return failed(err)
	}
	debugDir, err := r.deps.Builder.DebugDir(task)
	if err != nil {
		return failed(err)
	}

	archive, err := r.deps.Packager.Package(ctx, results.PackageRequest{
		Task:     task.Name,
		JUnitDir: junitDir,
		DebugDir: debugDir,
		DestDir:  r.deps.ArchiveDir,
	})
	if err != nil {
		return failed(err)
	}

	res := JobResult{
		Status:      StatusPassed,
		Archive:     archive.Path,
		ArchiveSize: archive.Size,
		Output: fmt.Sprintf("%d reports archived, %d fully skipped reports left out, %d debug files",
			len(archive.Included), len(archive.Excluded), len(archive.DebugFiles)),
	}

	if r.deps.Publisher != nil {
		key, pubErr := r.deps.Publisher.Publish(ctx, results.PublishRequest{
			RunID:       runID,
			Task:        task.Name,
			Channel:     task.Channel,
			ArchivePath: archive.Path,
		})
		if pubErr != nil {
			r.log.Warn("archive publish failed", zap.String("archive", archive.Path), zap.Error(pubErr))
			res.Warning = "publish failed: " + pubErr.Error()
		} else {
			r.log.Info("archive published", zap.String("key", key), zap.Int("entries", archive.Entries()))
		}
	}
	return res
}

func (r *Runner) cleanSamples() JobResult {
	for _, dir := range r.deps.Builder.OutputDirs() {
		if err := os.RemoveAll(dir); err != nil {
			return failed(fmt.Errorf("remove %s: %w", dir, err))
		}
		r.log.Debug("removed sample output", zap.String("dir", dir))
	}
	return JobResult{Status: StatusPassed}
}

// checkDuplicates is diagnostic only and never fails the run
func (r *Runner) checkDuplicates(ctx context.Context) JobResult {
	root := r.deps.Builder.BuildDir()
	groups, err := r.deps.Detector.Find(ctx, root, r.deps.DuplicateSuffix)
	if err != nil {
		r.log.Warn("duplicate detection incomplete", zap.String("root", root), zap.Error(err))
		return JobResult{Status: StatusPassed, Warning: err.Error()}
	}

	res := JobResult{Status: StatusPassed}
	if len(groups) > 0 {
		if err := groups.Report(r.deps.Out); err != nil {
			r.log.Warn("failed to write duplicate report", zap.Error(err))
		}
		res.Warning = fmt.Sprintf("%d groups of identical build files (%d files)", len(groups), groups.Files())
	}
	return res
}

func failed(err error) JobResult {
	return withError(JobResult{}, err)
}

func withError(res JobResult, err error) JobResult {
	res.Status = StatusFailed
	res.Error = err.Error()

	var taskErr *prerrors.TaskError
	if errors.As(err, &taskErr) {
		res.Suggestion = taskErr.Suggestion
		if taskErr.Command != "" {
			res.Command = taskErr.Command
		}
		if taskErr.Output != "" {
			res.Output = taskErr.Output
		}
	}
	return res
}
