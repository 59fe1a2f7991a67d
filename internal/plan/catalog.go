package plan

import (
	"github.com/mrz1836/go-perf-matrix/internal/baseline"
)

// Measurement task names
const (
	PerformanceTest                  = "performanceTest"
	PerformanceExperiment            = "performanceExperiment"
	FullPerformanceTest              = "fullPerformanceTest"
	PerformanceAdhocTest             = "performanceAdhocTest"
	DistributedPerformanceTest       = "distributedPerformanceTest"
	DistributedPerformanceExperiment = "distributedPerformanceExperiment"
	DistributedFullPerformanceTest   = "distributedFullPerformanceTest"
)

// Supporting job names
const (
	PrepareSamplesJob  = "prepareSamples"
	CleanSamplesJob    = "cleanSamples"
	CheckDuplicatesJob = "checkNoIdenticalBuildFiles"
	ReportJob          = "performanceReport"

	resultsZipSuffix = "ResultsZip"
)

// Routing and layout constants shared with the test harness
const (
	ExperimentCategory    = "org.gradle.performance.categories.PerformanceExperiment"
	ResultStoreClass      = "org.gradle.performance.results.AllResultsStore"
	LocalStoreURL         = "jdbc:h2:./build/database"
	DefaultCoordinatorURL = "https://builds.gradle.org/"
	DefaultWorkerTask     = FullPerformanceTest
	ScenarioListFile      = "performance-tests/scenario-list.csv"
	ScenarioReportFile    = "performance-tests/scenario-report.html"
	ReportDir             = "performance-tests/report"
)

// System property names handed to the measurement and report processes
const (
	SysPropDBURL          = "org.gradle.performance.db.url"
	SysPropDBUsername     = "org.gradle.performance.db.username"
	SysPropDBPassword     = "org.gradle.performance.db.password"
	SysPropBaselines      = "org.gradle.performance.baselines"
	SysPropChannel        = "org.gradle.performance.execution.channel"
	SysPropUseYourkit     = "org.gradle.performance.use_yourkit"
	SysPropHonestProfiler = "org.gradle.performance.honestprofiler"
)

// ResultsZipJob returns the name of the results archive job finalizing a local task
func ResultsZipJob(task string) string {
	return task + resultsZipSuffix
}

// definition is a catalog row before late-bound inputs are applied
type definition struct {
	name     string
	kind     Kind
	category CategoryFilter
	channel  string
	checks   ChecksPolicy

	// historical pins the baselines to baseline.Historical regardless of any override
	historical bool
	// localStore routes results to the local database instead of the shared one
	localStore bool
}

// catalog returns the fixed set of measurement tasks in declaration order
func catalog() []definition {
	return []definition{
		{name: PerformanceTest, kind: KindLocal, category: Exclude(ExperimentCategory)},
		{name: PerformanceExperiment, kind: KindLocal, category: Include(ExperimentCategory)},
		{name: FullPerformanceTest, kind: KindLocal},
		{name: PerformanceAdhocTest, kind: KindLocal, channel: "adhoc", localStore: true},
		{name: DistributedPerformanceTest, kind: KindDistributed, category: Exclude(ExperimentCategory), channel: "commits"},
		{name: DistributedPerformanceExperiment, kind: KindDistributed, category: Include(ExperimentCategory), channel: "experiments"},
		{name: DistributedFullPerformanceTest, kind: KindDistributed, channel: "historical", checks: ChecksNone, historical: true},
	}
}

// TaskNames returns the catalog task names in declaration order
func TaskNames() []string {
	defs := catalog()
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.name)
	}
	return names
}

func (d definition) baselines(override []string) []string {
	if d.historical {
		return baseline.Historical()
	}
	if len(override) == 0 {
		return nil
	}
	return append([]string(nil), override...)
}
