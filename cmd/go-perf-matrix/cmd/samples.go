package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrz1836/go-perf-matrix/internal/dupes"
	"github.com/mrz1836/go-perf-matrix/internal/plan"
)

// BuildPrepareSamplesCmd creates the prepare-samples command
func (cb *CommandBuilder) BuildPrepareSamplesCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "prepare-samples",
		Short: "Run every sample generator without measuring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cb.execute(cmd.Context(), []string{plan.PrepareSamplesJob}, flags, cmd.Flags().Changed("fail-fast"))
		},
	}
	flags.register(cmd)
	return cmd
}

// BuildCleanSamplesCmd creates the clean-samples command
func (cb *CommandBuilder) BuildCleanSamplesCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "clean-samples",
		Short: "Delete every sample generator output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cb.execute(cmd.Context(), []string{plan.CleanSamplesJob}, flags, false)
		},
	}
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Show only errors and results")
	flags.parallel = -1
	return cmd
}

// BuildCheckDuplicatesCmd creates the check-duplicates command
func (cb *CommandBuilder) BuildCheckDuplicatesCmd() *cobra.Command {
	var (
		suffix string
		quiet  bool
	)
	cmd := &cobra.Command{
		Use:   "check-duplicates",
		Short: "Report byte-identical generated build files",
		Long: `Hash every file under the build directory whose name ends with the suffix
and report groups of identical files. Duplicates mean two generators produced
the same build script. The check never fails and needs no job definitions file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := cb.openWorkspace(false, nil)
			if err != nil {
				return err
			}
			defer ws.close()

			return cb.checkDuplicates(cmd.Context(), ws, suffix, quiet)
		},
	}
	cmd.Flags().StringVar(&suffix, "suffix", "", "File name suffix to compare (default from configuration, .gradle)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Show only the duplicate report")
	return cmd
}

// checkDuplicates scans the build directory and reports identical build files.
// Scan problems are warnings.
func (cb *CommandBuilder) checkDuplicates(ctx context.Context, ws *workspace, suffix string, quiet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if suffix == "" {
		suffix = ws.cfg.Duplicates.Suffix
	}
	root := ws.cfg.BuildPath()

	if !quiet {
		ws.out.Progress("Looking for identical *%s files under %s...", suffix, root)
	}
	groups, err := dupes.NewDetector(ws.log, ws.cfg.Jobs.ParallelWorkers).Find(ctx, root, suffix)
	if err != nil {
		ws.out.Warning("%s: %v", plan.CheckDuplicatesJob, err)
		return nil
	}
	if len(groups) == 0 {
		if !quiet {
			ws.out.Success("No identical build files")
		}
		return nil
	}

	if err := groups.Report(cb.app.out); err != nil {
		ws.log.Warn("failed to write duplicate report", zap.Error(err))
	}
	ws.out.Warning("%s: %d groups of identical build files (%d files)", plan.CheckDuplicatesJob, len(groups), groups.Files())
	return nil
}
