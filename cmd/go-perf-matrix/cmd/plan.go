package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/go-perf-matrix/internal/output"
	"github.com/mrz1836/go-perf-matrix/internal/plan"
)

// ErrUnknownFormat is returned for an unsupported --format value
var ErrUnknownFormat = errors.New("unknown output format")

// BuildPlanCmd creates the plan command
func (cb *CommandBuilder) BuildPlanCmd() *cobra.Command {
	var (
		format string
		tasks  []string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the resolved performance test matrix",
		Long: `Resolve the matrix against the current configuration and print every
measurement task, supporting job and ordering edge. Secrets are masked.`,
		Example: `  # Human readable
  go-perf-matrix plan

  # Only the distributed tasks, as JSON
  go-perf-matrix plan --format json --task distributedPerformanceTest,distributedFullPerformanceTest`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := cb.openWorkspace(false, tasks)
			if err != nil {
				return err
			}
			defer ws.close()

			return writePlan(cmd.OutOrStdout(), ws.out, ws.plan, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, yaml")
	cmd.Flags().StringSliceVar(&tasks, "task", nil, "Restrict the matrix to these tasks")
	return cmd
}

func writePlan(w io.Writer, f *output.Formatter, p *plan.Plan, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p.Describe())
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p.Describe()); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		printPlan(f, p)
		return nil
	default:
		return fmt.Errorf("%w: %s (use text, json or yaml)", ErrUnknownFormat, format)
	}
}

func printPlan(f *output.Formatter, p *plan.Plan) {
	desc := p.Describe()

	f.Header("Measurement tasks")
	for _, t := range desc.Tasks {
		f.Subheader(t.Name)
		f.Detail("kind: %s", t.Kind)
		if t.Channel != "" {
			f.Detail("channel: %s", t.Channel)
		}
		f.Detail("tests: %s", t.Category)
		if t.UsesDefaultBaselines() {
			f.Detail("baselines: default")
		} else {
			f.Detail("baselines: %s", strings.Join(t.Baselines, ", "))
		}
		f.Detail("checks: %s", t.Checks)
		f.Detail("max parallelism: %d", t.MaxParallelism)
		f.Detail("result store: %s", t.Store.Class)
		for _, name := range t.PropertyNames() {
			f.Detail("-D%s=%s", name, t.SystemProperties[name])
		}
		if d := t.Distributed; d != nil {
			f.Detail("worker task: %s", d.WorkerTaskName)
			f.Detail("coordinator: %s", d.CoordinatorURL)
			if d.BranchName != "" {
				f.Detail("branch: %s", d.BranchName)
			}
		}
		if t.ResultsArchive != "" {
			f.Detail("results archive: %s", t.ResultsArchive)
		}
	}

	f.Header("Supporting jobs")
	for _, j := range desc.Jobs {
		if j.Description != "" {
			f.Detail("%s (%s): %s", j.Name, j.Kind, j.Description)
		} else {
			f.Detail("%s (%s)", j.Name, j.Kind)
		}
	}

	f.Header("Ordering")
	edges := append([]plan.Edge(nil), desc.Edges...)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].From < edges[j].From })
	for _, e := range edges {
		f.Detail("%s -> %s (%s)", e.From, e.To, e.Kind)
	}
}

// BuildTasksCmd creates the tasks command
func (cb *CommandBuilder) BuildTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the measurement tasks in the matrix",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ws, err := cb.openWorkspace(false, nil)
			if err != nil {
				return err
			}
			defer ws.close()

			ws.out.Header("Measurement tasks")
			for _, t := range ws.plan.Tasks() {
				channel := t.Channel
				if channel == "" {
					channel = "-"
				}
				ws.out.Detail("%-34s %-12s %-20s %s", t.Name, t.Kind, channel, t.Category)
			}
			if gens := ws.plan.Generators(); len(gens) > 0 {
				ws.out.Header("Sample generators")
				for _, g := range gens {
					ws.out.Detail("%s", g)
				}
			}
			return nil
		},
	}
}
