package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/mrz1836/go-perf-matrix/internal/config"
	prerrors "github.com/mrz1836/go-perf-matrix/internal/errors"
	"github.com/mrz1836/go-perf-matrix/internal/jobs"
	"github.com/mrz1836/go-perf-matrix/internal/plan"
)

const testJobFile = `
generators:
  - name: smallProject
    output: samples/small
    command: generate small
  - name: largeProject
    output: samples/large
    command: generate large
test:
  command: measure {{.Name}} --channel={{.Channel}}
report:
  command: report
`

type stubExecutor struct {
	mu    sync.Mutex
	fail  map[string]bool
	names []string
}

func (e *stubExecutor) Execute(_ context.Context, job jobs.Job) (*jobs.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.names = append(e.names, job.Name)
	if e.fail[job.Name] {
		return &jobs.Outcome{Output: "FAILURE: Build failed with an exception.", ExitCode: 1},
			prerrors.NewJobExecutionError(job.Name, job.CommandLine(), "FAILURE: Build failed with an exception.", "Job exited with code 1")
	}
	return &jobs.Outcome{Output: "ok"}, nil
}

// CLITestSuite drives the command tree against a temporary workspace
type CLITestSuite struct {
	suite.Suite

	root   string
	props  config.MapSource
	exec   *stubExecutor
	out    bytes.Buffer
	errOut bytes.Buffer
	cfgErr error
}

func (s *CLITestSuite) SetupTest() {
	s.root = s.T().TempDir()
	s.props = config.MapSource{}
	s.exec = &stubExecutor{fail: map[string]bool{}}
	s.out.Reset()
	s.errOut.Reset()
	s.cfgErr = nil
	s.write("perf-matrix.yaml", testJobFile)
}

func (s *CLITestSuite) write(rel, content string) string {
	path := filepath.Join(s.root, filepath.FromSlash(rel))
	s.Require().NoError(os.MkdirAll(filepath.Dir(path), 0o750))
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *CLITestSuite) execute(args ...string) error {
	app := NewCLIApp("1.2.3", "abc1234", "2026-01-01")
	app.out = &s.out
	app.errOut = &s.errOut
	app.executor = s.exec
	app.logger = zap.NewNop()
	app.loadConfig = func() (*config.Config, error) {
		if s.cfgErr != nil {
			return nil, s.cfgErr
		}
		return config.FromSource(s.root, s.props)
	}
	return NewCommandBuilder(app).Execute(append([]string{"--no-color"}, args...))
}

func (s *CLITestSuite) TestVersion() {
	s.Require().NoError(s.execute("--version"))
	s.Contains(s.out.String(), "version 1.2.3 (commit: abc1234, built: 2026-01-01)")
}

func (s *CLITestSuite) TestPlanJSON() {
	s.props[config.PropTeamCityPassword] = "hunter2"
	s.Require().NoError(s.execute("plan", "--format", "json"))

	var raw struct {
		Tasks []struct {
			Name           string `json:"name"`
			Kind           string `json:"kind"`
			MaxParallelism int    `json:"maxParallelism"`
		} `json:"tasks"`
	}
	s.Require().NoError(json.Unmarshal(s.out.Bytes(), &raw))
	s.Len(raw.Tasks, len(plan.TaskNames()))
	for _, t := range raw.Tasks {
		s.Equal(1, t.MaxParallelism, t.Name)
	}
	s.Equal("distributed", raw.Tasks[len(raw.Tasks)-1].Kind)
	s.NotContains(s.out.String(), "hunter2")
}

func (s *CLITestSuite) TestPlanYAMLAndText() {
	s.Require().NoError(s.execute("plan", "--format", "yaml", "--task", plan.PerformanceAdhocTest))
	s.Contains(s.out.String(), "name: performanceAdhocTest")
	s.Contains(s.out.String(), "channel: adhoc")
	s.NotContains(s.out.String(), "name: performanceTest\n")

	s.out.Reset()
	s.Require().NoError(s.execute("plan"))
	text := s.out.String()
	s.Contains(text, "Measurement tasks")
	s.Contains(text, "max parallelism: 1")
	s.Contains(text, "smallProject -> prepareSamples (dependsOn)")
	s.Contains(text, "baselines: default")
}

func (s *CLITestSuite) TestPlanErrors() {
	err := s.execute("plan", "--format", "xml")
	s.Require().ErrorIs(err, ErrUnknownFormat)

	err = s.execute("plan", "--task", "nope")
	s.Require().ErrorIs(err, prerrors.ErrUnknownTask)
	s.Contains(s.out.String(), "Known tasks")
}

func (s *CLITestSuite) TestPlanWithoutJobFile() {
	s.Require().NoError(os.Remove(filepath.Join(s.root, "perf-matrix.yaml")))
	s.Require().NoError(s.execute("plan"))
	s.NotContains(s.out.String(), "smallProject")

	err := s.execute("run", plan.PerformanceTest)
	s.Require().ErrorIs(err, prerrors.ErrJobFileNotFound)
}

func (s *CLITestSuite) TestTasks() {
	s.props[config.PropBranchName] = "main"
	s.Require().NoError(s.execute("tasks"))
	s.Contains(s.out.String(), plan.DistributedFullPerformanceTest)
	s.Contains(s.out.String(), "historical-main")
	s.Contains(s.out.String(), "Sample generators")
}

func (s *CLITestSuite) TestRunPasses() {
	s.write("build/test-results/performanceAdhocTest/TEST-a.xml", `<testsuite tests="3" skipped="1"/>`)

	s.Require().NoError(s.execute("run", plan.PerformanceAdhocTest, "--progress=false"))
	out := s.out.String()
	s.Contains(out, "Running performanceAdhocTest...")
	s.Contains(out, "performanceAdhocTest: 3 test cases, 1 skipped")
	s.Contains(out, "test-results-performanceAdhocTest.zip")
	s.Contains(out, "All jobs passed!")
	s.ElementsMatch([]string{"smallProject", "largeProject", plan.PerformanceAdhocTest, plan.ReportJob}, s.exec.names)
}

func (s *CLITestSuite) TestRunGeneratorFailure() {
	s.exec.fail["largeProject"] = true

	err := s.execute("run", plan.PerformanceTest, "--quiet")
	s.Require().ErrorIs(err, prerrors.ErrSampleGenerationFailed)
	s.Contains(s.errOut.String(), "largeProject failed")
	s.Contains(s.out.String(), "What went wrong")
	s.NotContains(s.exec.names, plan.PerformanceTest)
}

func (s *CLITestSuite) TestRunUnknownTarget() {
	err := s.execute("run", "nope")
	s.Require().ErrorIs(err, prerrors.ErrUnknownTask)

	err = s.execute("run")
	s.Require().Error(err)
}

func (s *CLITestSuite) TestSampleHousekeeping() {
	s.write("build/samples/small/build.gradle", "apply plugin: 'java'")
	s.write("build/samples/large/build.gradle", "apply plugin: 'java'")
	s.write("build/samples/large/settings.gradle", "include 'a'")

	s.Require().NoError(s.execute("check-duplicates", "--quiet"))
	s.Contains(s.out.String(), "Duplicate build files found for hash")
	s.Contains(s.errOut.String(), "1 groups of identical build files")

	s.out.Reset()
	s.Require().NoError(s.execute("check-duplicates", "--suffix", ".kts"))
	s.NotContains(s.out.String(), "Duplicate build files found")

	s.Require().NoError(s.execute("clean-samples"))
	s.NoDirExists(filepath.Join(s.root, "build", "samples", "small"))

	s.Require().NoError(s.execute("prepare-samples"))
	s.ElementsMatch([]string{"smallProject", "largeProject"}, s.exec.names)
}

func (s *CLITestSuite) TestCheckDuplicatesWithoutJobFile() {
	s.Require().NoError(os.Remove(filepath.Join(s.root, "perf-matrix.yaml")))
	s.write("build/a/build.gradle", "apply plugin: 'java'")
	s.write("build/b/build.gradle", "apply plugin: 'java'")

	s.Require().NoError(s.execute("check-duplicates"))
	s.Contains(s.out.String(), "Duplicate build files found for hash")
	s.Contains(s.out.String(), filepath.Join(s.root, "build", "a", "build.gradle"))
	s.Contains(s.errOut.String(), "1 groups of identical build files (2 files)")
	s.NotContains(s.errOut.String(), "job definitions")
	s.Empty(s.exec.names)
}

func (s *CLITestSuite) TestCheckDuplicatesWithoutBuildDir() {
	s.Require().NoError(s.execute("check-duplicates"))
	s.Contains(s.out.String(), "No identical build files")
}

func (s *CLITestSuite) TestPackageResults() {
	s.write("build/test-results/performanceTest/TEST-a.xml", `<testsuite tests="2" skipped="0"/>`)
	s.write("build/test-results/performanceTest/TEST-b.xml", `<testsuite tests="2" skipped="2"/>`)

	s.Require().NoError(s.execute("package-results", plan.PerformanceTest, "--run-id", "r1"))
	archive := filepath.Join(s.root, "build", "test-results-performanceTest.zip")
	s.FileExists(archive)
	s.Contains(s.out.String(), "1 reports archived, 1 fully skipped reports left out")
	s.Regexp(`0 debug files, \d+ B`, s.out.String())

	s.out.Reset()
	s.Require().NoError(s.execute("package-results", plan.PerformanceTest, "--clean"))
	s.NoFileExists(archive)
	s.Contains(s.out.String(), "Removed")

	err := s.execute("package-results", plan.DistributedPerformanceTest)
	s.Require().ErrorIs(err, prerrors.ErrUnknownTask)
}

func (s *CLITestSuite) TestConfigErrors() {
	s.cfgErr = prerrors.ErrEnvFileNotFound
	err := s.execute("tasks")
	s.Require().ErrorIs(err, prerrors.ErrEnvFileNotFound)
	s.Contains(s.errOut.String(), "Failed to load configuration")
	s.Contains(s.out.String(), "config-help")

	s.cfgErr = errors.New("boom")
	s.Require().Error(s.execute("plan"))
}

func (s *CLITestSuite) TestConfigHelp() {
	s.Require().NoError(s.execute("config-help"))
	s.Contains(s.out.String(), "Performance Test Matrix Configuration Help")
}

func TestCLITestSuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}
