package config

import (
	"os"
	"strings"
)

// Property names read late by the planner. Values are optional; absence is never an error.
const (
	PropBaselines          = "PERF_BASELINES"
	PropBranchName         = "PERF_BRANCH_NAME"
	PropCoordinatorBuildID = "PERF_COORDINATOR_BUILD_ID"
	PropCoordinatorURL     = "PERF_COORDINATOR_URL"
	PropBuildTypeID        = "PERF_BUILD_TYPE_ID"
	PropWorkerTestTaskName = "PERF_WORKER_TEST_TASK_NAME"
	PropTeamCityUsername   = "PERF_TEAMCITY_USERNAME"
	PropTeamCityPassword   = "PERF_TEAMCITY_PASSWORD"
	PropDBURL              = "PERF_DB_URL"
	PropDBUsername         = "PERF_DB_USERNAME"
	PropDBPassword         = "PERF_DB_PASSWORD"
	PropUseYourkit         = "PERF_USE_YOURKIT"
	PropHonestProfiler     = "PERF_HONESTPROFILER"
	PropVerbose            = "PERF_VERBOSE"
	PropMaxProjects        = "PERF_MAX_PROJECTS"
)

// Source answers optional string lookups by name
type Source interface {
	GetOptionalString(name string) (string, bool)
}

// MapSource is a Source backed by a fixed map
type MapSource map[string]string

// GetOptionalString returns the value for name if present
func (m MapSource) GetOptionalString(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// EnvSource reads from the process environment
type EnvSource struct{}

// GetOptionalString returns the environment value for name if set
func (EnvSource) GetOptionalString(name string) (string, bool) {
	return os.LookupEnv(name)
}

// Chain consults each Source in order and returns the first hit
type Chain []Source

// GetOptionalString returns the first value found across the chain
func (c Chain) GetOptionalString(name string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.GetOptionalString(name); ok {
			return v, true
		}
	}
	return "", false
}

// Select returns the subset of names that are present in src, keyed by name
func Select(src Source, names ...string) map[string]string {
	selected := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := src.GetOptionalString(name); ok {
			selected[name] = v
		}
	}
	return selected
}

// NonEmpty returns the trimmed value for name, or "" when absent or blank
func NonEmpty(src Source, name string) string {
	v, ok := src.GetOptionalString(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Has reports whether name is present in src at all
func Has(src Source, name string) bool {
	_, ok := src.GetOptionalString(name)
	return ok
}
