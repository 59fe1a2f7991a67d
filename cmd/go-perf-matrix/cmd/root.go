// Package cmd implements the go-perf-matrix command line interface
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrz1836/go-perf-matrix/internal/config"
	"github.com/mrz1836/go-perf-matrix/internal/jobs"
	"github.com/mrz1836/go-perf-matrix/internal/output"
	"github.com/mrz1836/go-perf-matrix/internal/runner"
)

// CLIApp holds the application state and its injectable collaborators
type CLIApp struct {
	version   string
	commit    string
	buildDate string
	config    *AppConfig

	out    io.Writer
	errOut io.Writer

	loadConfig func() (*config.Config, error)
	executor   jobs.Executor
	publisher  runner.Publisher
	logger     *zap.Logger
}

// AppConfig holds global flag values
type AppConfig struct {
	Verbose   bool
	NoColor   bool
	ColorMode string // "auto", "always", "never"
}

// NewCLIApp creates a new CLI application instance
func NewCLIApp(version, commit, buildDate string) *CLIApp {
	return &CLIApp{
		version:    version,
		commit:     commit,
		buildDate:  buildDate,
		config:     &AppConfig{},
		out:        os.Stdout,
		errOut:     os.Stderr,
		loadConfig: config.Load,
	}
}

// CommandBuilder creates cobra commands with dependency injection
type CommandBuilder struct {
	app *CLIApp
}

// NewCommandBuilder creates a new command builder
func NewCommandBuilder(app *CLIApp) *CommandBuilder {
	return &CommandBuilder{app: app}
}

// BuildRootCmd creates the root command
func (cb *CommandBuilder) BuildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "go-perf-matrix",
		Short: "Plan and run the performance test matrix",
		Long: `go-perf-matrix decides which performance measurement tasks exist, how they
are configured, and in which order they run against sample generation and
report generation.

Key features:
  - Fixed matrix of local and distributed measurement tasks
  - Measurements never overlap; sample generators run in parallel
  - Late-bound configuration via .github/env/ (modular) or .github/.env.perf
  - Results archives that leave out fully skipped test reports
  - Duplicate generated build file detection`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cb.app.config.Verbose, _ = cmd.Flags().GetBool("verbose")
			cb.app.config.NoColor, _ = cmd.Flags().GetBool("no-color")
			cb.app.config.ColorMode, _ = cmd.Flags().GetString("color")
			cb.initColor()
		},
	}

	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", cb.app.version, cb.app.commit, cb.app.buildDate)
	cmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
	cmd.SetOut(cb.app.out)
	cmd.SetErr(cb.app.errOut)

	cmd.PersistentFlags().Bool("verbose", false, "Enable verbose output and debug logging")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output (same as --color=never)")
	cmd.PersistentFlags().String("color", "auto", "Control color output: auto, always, never")

	return cmd
}

// Build returns the root command with every subcommand attached
func (cb *CommandBuilder) Build() *cobra.Command {
	rootCmd := cb.BuildRootCmd()

	rootCmd.AddCommand(cb.BuildPlanCmd())
	rootCmd.AddCommand(cb.BuildTasksCmd())
	rootCmd.AddCommand(cb.BuildRunCmd())
	rootCmd.AddCommand(cb.BuildPrepareSamplesCmd())
	rootCmd.AddCommand(cb.BuildCleanSamplesCmd())
	rootCmd.AddCommand(cb.BuildCheckDuplicatesCmd())
	rootCmd.AddCommand(cb.BuildPackageResultsCmd())
	rootCmd.AddCommand(cb.BuildConfigHelpCmd())

	return rootCmd
}

// Execute runs the CLI with the given arguments
func (cb *CommandBuilder) Execute(args []string) error {
	rootCmd := cb.Build()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// BuildConfigHelpCmd prints every supported configuration variable
func (cb *CommandBuilder) BuildConfigHelpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-help",
		Short: "Show configuration variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), config.GetConfigHelp())
			return err
		},
	}
}

// colorMode resolves the color flags, --no-color winning over --color
func (cb *CommandBuilder) colorMode() output.ColorMode {
	if cb.app.config.NoColor {
		return output.ColorNever
	}
	switch cb.app.config.ColorMode {
	case "never":
		return output.ColorNever
	case "always":
		return output.ColorAlways
	default:
		return output.ColorAuto
	}
}

func (cb *CommandBuilder) initColor() {
	switch cb.colorMode() {
	case output.ColorNever:
		color.NoColor = true
	case output.ColorAlways:
		color.NoColor = false
	default:
		color.NoColor = os.Getenv("NO_COLOR") != ""
	}
}

// formatter builds the output formatter for the resolved color mode and configuration
func (cb *CommandBuilder) formatter(cfg *config.Config) *output.Formatter {
	enabled := output.NewWithColorMode(cb.colorMode()).ColorEnabled()
	if cfg != nil && !cfg.UI.ColorOutput && cb.colorMode() != output.ColorAlways {
		enabled = false
	}
	return output.New(output.Options{
		ColorEnabled: enabled,
		Out:          cb.app.out,
		Err:          cb.app.errOut,
	})
}
