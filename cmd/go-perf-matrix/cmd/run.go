package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrz1836/go-perf-matrix/internal/output"
	"github.com/mrz1836/go-perf-matrix/internal/plan"
	"github.com/mrz1836/go-perf-matrix/internal/progress"
	"github.com/mrz1836/go-perf-matrix/internal/runner"
)

// maxOutputLines bounds how much captured job output is echoed for a failure
const maxOutputLines = 20

// runFlags are shared by every command that executes plan nodes
type runFlags struct {
	parallel     int
	failFast     bool
	quiet        bool
	showProgress bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.parallel, "parallel", "p", -1, "Parallel sample generators (0 = auto, default from configuration)")
	cmd.Flags().BoolVar(&f.failFast, "fail-fast", false, "Skip everything not yet started after the first failure")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Suppress progress messages, show only errors and results")
	cmd.Flags().BoolVar(&f.showProgress, "progress", true, "Print heartbeats while measurements run")
}

// BuildRunCmd creates the run command
func (cb *CommandBuilder) BuildRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <task>...",
		Short: "Run measurement tasks with their samples and finalizers",
		Long: `Run the named plan nodes together with everything they depend on.

Sample generators run first and in parallel. Measurement tasks then run one
at a time. Each task that ran is followed by report generation with its own
channel and, for local tasks, by its results archive.

Tasks:
  ` + strings.Join(plan.TaskNames(), "\n  "),
		Example: `  # Run the regular local suite
  go-perf-matrix run performanceTest

  # Run two tasks, stopping after the first failure
  go-perf-matrix run performanceTest performanceExperiment --fail-fast`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cb.execute(cmd.Context(), args, flags, cmd.Flags().Changed("fail-fast"))
		},
	}
	flags.register(cmd)
	return cmd
}

// execute runs targets and reports the outcome. explicitFailFast keeps the flag
// value over the configured default.
func (cb *CommandBuilder) execute(ctx context.Context, targets []string, flags *runFlags, explicitFailFast bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := cb.openWorkspace(true, nil)
	if err != nil {
		return err
	}
	defer ws.close()

	r, err := cb.newRunner(ws)
	if err != nil {
		return err
	}

	opts := runner.Options{
		Targets:  targets,
		Parallel: ws.cfg.Jobs.ParallelWorkers,
		FailFast: ws.cfg.Jobs.FailFast,
	}
	if flags.parallel >= 0 {
		opts.Parallel = flags.parallel
	}
	if explicitFailFast {
		opts.FailFast = flags.failFast
	}

	trackers := progress.NewGroup(func(name string) progress.Options {
		return progress.Options{
			Operation: "Measurement",
			Subject:   name,
			Timeout:   seconds(ws.cfg.Timeout),
			Message:   progress.MeasurementMessage(name),
			Out:       cb.app.out,
			Color:     ws.out.ColorEnabled(),
		}
	})
	defer trackers.StopAll()

	if !flags.quiet {
		opts.ProgressCallback = func(name, status string) {
			_, isTask := ws.plan.Task(name)
			switch status {
			case "running":
				ws.out.Progress("Running %s...", name)
				if isTask && flags.showProgress {
					trackers.Begin(ctx, name)
				}
				return
			case "passed":
				ws.out.Success("%s passed", name)
			case "failed":
				ws.out.Error("%s failed", name)
			case "skipped":
				ws.out.Skipped("%s skipped", name)
			}
			if isTask {
				trackers.End(name)
			}
		}
	}

	if cb.app.config.Verbose && !flags.quiet {
		ws.out.Info("Targets: %s", ws.out.FormatNameList(targets, 5))
		if len(ws.plan.Generators()) > 0 {
			ws.out.Info("Sample generators: %s", ws.out.FormatNameList(ws.plan.Generators(), 5))
		}
	}

	res, err := r.Run(ctx, opts)
	if res != nil {
		displayResults(ws.out, res, flags.quiet)
	}
	if err != nil {
		ws.out.Error("Run did not complete: %v", err)
		return err
	}

	if runErr := res.Err(); runErr != nil {
		return fmt.Errorf("%w: %d failed", runErr, res.Failed)
	}
	ws.out.Success("All jobs passed! %s", ws.out.FormatExecutionStats(res.Passed, res.Failed, res.Skipped, res.TotalDuration))
	return nil
}

func displayResults(f *output.Formatter, res *runner.Results, quiet bool) {
	var failed []runner.JobResult
	for _, jr := range res.JobResults {
		if jr.Status == runner.StatusFailed {
			failed = append(failed, jr)
		}
	}

	if !quiet {
		for _, jr := range res.JobResults {
			if jr.Status != runner.StatusPassed {
				continue
			}
			if jr.Archive != "" {
				f.Info("%s: %s", jr.Name, jr.Archive)
				f.Detail("%s, %s", jr.Output, f.Size(jr.ArchiveSize))
			}
			if jr.Tests > 0 {
				f.Info("%s: %d test cases, %d skipped", jr.Name, jr.Tests, jr.Skipped)
			}
		}
	}

	for _, jr := range res.JobResults {
		if jr.Warning != "" {
			f.Warning("%s: %s", displayName(jr), jr.Warning)
		}
	}

	for _, jr := range failed {
		f.Error("%s failed: %s", displayName(jr), jr.Error)
		if jr.Command != "" {
			f.Detail("command: %s", jr.Command)
		}
		if out := tail(jr.Output, maxOutputLines); out != "" {
			f.CodeBlock(out)
		}
		// a diagnosis from the output beats the generic suggestion
		suggestion := jr.Suggestion
		if jr.Output != "" {
			_, parsed := f.ParseCommandError(jr.Command, jr.Output)
			if suggestion == "" || !strings.HasPrefix(parsed, "Run '") {
				suggestion = parsed
			}
		}
		if suggestion != "" {
			f.SuggestAction(suggestion)
		}
	}

	if len(failed) > 0 || res.Skipped > 0 {
		f.Info("Run %s: %s", res.RunID, f.FormatExecutionStats(res.Passed, res.Failed, res.Skipped, res.TotalDuration))
	}
}

func displayName(jr runner.JobResult) string {
	if jr.Finalizes != "" {
		return fmt.Sprintf("%s (for %s)", jr.Name, jr.Finalizes)
	}
	return jr.Name
}

// tail returns the last n lines of s
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) == 1 && strings.TrimSpace(lines[0]) == "" {
		return ""
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
