package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// BuildPackageResultsCmd creates the package-results command
func (cb *CommandBuilder) BuildPackageResultsCmd() *cobra.Command {
	var (
		runID string
		clean bool
	)

	cmd := &cobra.Command{
		Use:   "package-results <task>",
		Short: "Archive the test reports a local task left behind",
		Long: `Package the JUnit reports and debug artifacts of a local measurement task
into test-results-<dir>.zip. Reports in which every test case was skipped are
left out. The archive is uploaded when PERF_ARCHIVE_BUCKET is configured.
With --clean the archive is deleted instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := cb.openWorkspace(true, nil)
			if err != nil {
				return err
			}
			defer ws.close()

			r, err := cb.newRunner(ws)
			if err != nil {
				return err
			}

			if clean {
				path, cleanErr := r.CleanTaskArchive(args[0])
				if cleanErr != nil {
					ws.out.Error("Failed to clean %s: %v", args[0], cleanErr)
					return cleanErr
				}
				ws.out.Success("Removed %s", path)
				return nil
			}

			if runID == "" {
				runID = uuid.NewString()
			}
			res, err := r.PackageTask(cmd.Context(), args[0], runID)
			if err != nil {
				ws.out.Error("Failed to package %s: %v", args[0], err)
				return err
			}

			ws.out.Success("%s", res.Archive)
			ws.out.Detail("%s, %s", res.Output, ws.out.Size(res.ArchiveSize))
			if res.Warning != "" {
				ws.out.Warning("%s", res.Warning)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clean, "clean", false, "Delete the archive instead of building it")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id used as the upload prefix (random when empty)")
	return cmd
}
