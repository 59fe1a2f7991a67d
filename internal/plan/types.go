// Package plan builds the performance test matrix: which measurement tasks exist,
// how they are configured, and how they are ordered against sample generation and
// report generation.
//
// Planning happens in two phases. Define turns the fixed catalog into placeholder
// definitions without reading any external input. Resolve reads every late-bound
// value from a config.Source exactly once and freezes the result into a Plan.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mrz1836/go-perf-matrix/internal/errors"
)

// Kind distinguishes tasks measured on this machine from tasks dispatched to a coordinator
type Kind int

const (
	// KindLocal runs the measurement in-process on the current agent
	KindLocal Kind = iota
	// KindDistributed dispatches scenarios to coordinator workers
	KindDistributed
)

// String returns the lowercase kind name
func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindDistributed:
		return "distributed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText renders the kind for json and yaml output
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FilterMode says whether a category filter includes or excludes its category
type FilterMode int

const (
	// FilterNone runs every test case
	FilterNone FilterMode = iota
	// FilterInclude runs only test cases tagged with the category
	FilterInclude
	// FilterExclude runs every test case not tagged with the category
	FilterExclude
)

// CategoryFilter selects test cases by a single category tag. The zero value runs all.
type CategoryFilter struct {
	Mode     FilterMode
	Category string
}

// Include returns a filter selecting only category
func Include(category string) CategoryFilter {
	return CategoryFilter{Mode: FilterInclude, Category: category}
}

// Exclude returns a filter dropping category
func Exclude(category string) CategoryFilter {
	return CategoryFilter{Mode: FilterExclude, Category: category}
}

// IsZero reports whether the filter runs every test case
func (f CategoryFilter) IsZero() bool {
	return f.Mode == FilterNone
}

// String renders the filter as include:<category>, exclude:<category> or all
func (f CategoryFilter) String() string {
	switch f.Mode {
	case FilterInclude:
		return "include:" + f.Category
	case FilterExclude:
		return "exclude:" + f.Category
	default:
		return "all"
	}
}

// MarshalText renders the filter for json and yaml output
func (f CategoryFilter) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// ChecksPolicy controls whether regressions fail the task
type ChecksPolicy int

const (
	// ChecksDefault fails the task on detected regressions
	ChecksDefault ChecksPolicy = iota
	// ChecksNone records results without failing on regressions
	ChecksNone
)

// String returns the policy name understood by the test runner
func (c ChecksPolicy) String() string {
	if c == ChecksNone {
		return "none"
	}
	return "all"
}

// MarshalText renders the policy for json and yaml output
func (c ChecksPolicy) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// StoreRoute carries the routing parameters of the result store a task writes to
type StoreRoute struct {
	Class   string `json:"class" yaml:"class"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Channel string `json:"channel,omitempty" yaml:"channel,omitempty"`
	Local   bool   `json:"local,omitempty" yaml:"local,omitempty"`
}

// DistributedParams holds the coordinator connection parameters of a distributed task.
// They are resolved at plan time but only validated when the task is about to run.
type DistributedParams struct {
	WorkerTaskName     string `json:"workerTaskName" yaml:"workerTaskName"`
	CoordinatorURL     string `json:"coordinatorUrl" yaml:"coordinatorUrl"`
	CoordinatorBuildID string `json:"coordinatorBuildId,omitempty" yaml:"coordinatorBuildId,omitempty"`
	BuildTypeID        string `json:"buildTypeId,omitempty" yaml:"buildTypeId,omitempty"`
	BranchName         string `json:"branchName,omitempty" yaml:"branchName,omitempty"`
	Username           string `json:"username,omitempty" yaml:"username,omitempty"`
	Password           string `json:"-" yaml:"-"`
	ScenarioList       string `json:"scenarioList" yaml:"scenarioList"`
	ScenarioReport     string `json:"scenarioReport" yaml:"scenarioReport"`
}

// Validate reports missing coordinator settings for task
func (p DistributedParams) Validate(task string) error {
	var missing []string
	if strings.TrimSpace(p.CoordinatorURL) == "" {
		missing = append(missing, "PERF_COORDINATOR_URL")
	}
	if strings.TrimSpace(p.BuildTypeID) == "" {
		missing = append(missing, "PERF_BUILD_TYPE_ID")
	}
	if strings.TrimSpace(p.Username) == "" {
		missing = append(missing, "PERF_TEAMCITY_USERNAME")
	}
	if p.Password == "" {
		missing = append(missing, "PERF_TEAMCITY_PASSWORD")
	}
	if len(missing) > 0 {
		return errors.NewMissingCredentialsError(task, missing)
	}
	return nil
}

// Profiling holds the local-only profiler switches
type Profiling struct {
	YourKit             bool `json:"yourkit,omitempty" yaml:"yourkit,omitempty"`
	HonestProfiler      bool `json:"honestProfiler,omitempty" yaml:"honestProfiler,omitempty"`
	ShowStandardStreams bool `json:"showStandardStreams,omitempty" yaml:"showStandardStreams,omitempty"`
	AlwaysRun           bool `json:"alwaysRun,omitempty" yaml:"alwaysRun,omitempty"`
}

// TaskSpec is a resolved performance measurement task
type TaskSpec struct {
	Name             string             `json:"name" yaml:"name"`
	Kind             Kind               `json:"kind" yaml:"kind"`
	Category         CategoryFilter     `json:"category" yaml:"category"`
	Channel          string             `json:"channel,omitempty" yaml:"channel,omitempty"`
	Baselines        []string           `json:"baselines,omitempty" yaml:"baselines,omitempty"`
	Checks           ChecksPolicy       `json:"checks" yaml:"checks"`
	MaxParallelism   int                `json:"maxParallelism" yaml:"maxParallelism"`
	Store            StoreRoute         `json:"store" yaml:"store"`
	SystemProperties map[string]string  `json:"systemProperties,omitempty" yaml:"systemProperties,omitempty"`
	Profiling        Profiling          `json:"profiling" yaml:"profiling"`
	Distributed      *DistributedParams `json:"distributed,omitempty" yaml:"distributed,omitempty"`
	ResultsArchive   string             `json:"resultsArchive,omitempty" yaml:"resultsArchive,omitempty"`
}

// UsesDefaultBaselines reports whether the runner should pick its single default baseline
func (t TaskSpec) UsesDefaultBaselines() bool {
	return len(t.Baselines) == 0
}

// PropertyNames returns the system property names in sorted order
func (t TaskSpec) PropertyNames() []string {
	names := make([]string, 0, len(t.SystemProperties))
	for name := range t.SystemProperties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy so callers cannot mutate a frozen plan
func (t TaskSpec) Clone() TaskSpec {
	c := t
	if t.Baselines != nil {
		c.Baselines = append([]string(nil), t.Baselines...)
	}
	if t.SystemProperties != nil {
		c.SystemProperties = make(map[string]string, len(t.SystemProperties))
		for k, v := range t.SystemProperties {
			c.SystemProperties[k] = v
		}
	}
	if t.Distributed != nil {
		d := *t.Distributed
		c.Distributed = &d
	}
	return c
}

// Redacted returns a copy with secrets masked, for display
func (t TaskSpec) Redacted() TaskSpec {
	c := t.Clone()
	for name := range c.SystemProperties {
		if strings.HasSuffix(name, "password") {
			c.SystemProperties[name] = "****"
		}
	}
	return c
}

// JobKind classifies the supporting jobs around the measurement tasks
type JobKind int

const (
	// JobGenerator produces one sample project directory
	JobGenerator JobKind = iota
	// JobPrepareSamples completes once every generator has completed
	JobPrepareSamples
	// JobCleanSamples deletes generator output
	JobCleanSamples
	// JobCheckDuplicates reports byte-identical generated build files
	JobCheckDuplicates
	// JobReport generates the performance report from the result store
	JobReport
	// JobResultsArchive packages a local task's test results
	JobResultsArchive
)

// String returns the job kind name
func (k JobKind) String() string {
	switch k {
	case JobGenerator:
		return "generator"
	case JobPrepareSamples:
		return "prepare-samples"
	case JobCleanSamples:
		return "clean-samples"
	case JobCheckDuplicates:
		return "check-duplicates"
	case JobReport:
		return "report"
	case JobResultsArchive:
		return "results-archive"
	default:
		return fmt.Sprintf("job(%d)", int(k))
	}
}

// MarshalText renders the job kind for json and yaml output
func (k JobKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Job is a supporting node of the plan that is not itself a measurement
type Job struct {
	Name        string  `json:"name" yaml:"name"`
	Kind        JobKind `json:"kind" yaml:"kind"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	// Task names the measurement task a results archive belongs to
	Task string `json:"task,omitempty" yaml:"task,omitempty"`
	// MaxProjects caps how many projects a generator produces; zero leaves its own default
	MaxProjects int `json:"maxProjects,omitempty" yaml:"maxProjects,omitempty"`
}

// ReportSpec configures the shared report generation job
type ReportSpec struct {
	Name             string            `json:"name" yaml:"name"`
	ResultStoreClass string            `json:"resultStoreClass" yaml:"resultStoreClass"`
	ReportDir        string            `json:"reportDir" yaml:"reportDir"`
	SystemProperties map[string]string `json:"systemProperties,omitempty" yaml:"systemProperties,omitempty"`
}

// EdgeKind is the relation an Edge expresses
type EdgeKind int

const (
	// DependsOn means To may only start after From succeeded
	DependsOn EdgeKind = iota
	// Finalizes means To runs after From finished, whether From passed or failed, unless From was skipped
	Finalizes
	// MustRunAfter orders To after From when both are scheduled, without scheduling From
	MustRunAfter
)

// String returns the edge kind name
func (k EdgeKind) String() string {
	switch k {
	case DependsOn:
		return "dependsOn"
	case Finalizes:
		return "finalizes"
	case MustRunAfter:
		return "mustRunAfter"
	default:
		return fmt.Sprintf("edge(%d)", int(k))
	}
}

// MarshalText renders the edge kind for json and yaml output
func (k EdgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Edge is a directed relation: From always runs before To
type Edge struct {
	From string   `json:"from" yaml:"from"`
	To   string   `json:"to" yaml:"to"`
	Kind EdgeKind `json:"kind" yaml:"kind"`
}
