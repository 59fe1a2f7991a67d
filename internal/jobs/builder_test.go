package jobs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/go-perf-matrix/internal/config"
	"github.com/mrz1836/go-perf-matrix/internal/plan"
)

func newTestBuilder(t *testing.T, doc string) *Builder {
	t.Helper()
	f, err := Parse([]byte(doc))
	require.NoError(t, err)
	b, err := NewBuilder(f, "/ws", "/ws/build", time.Hour)
	require.NoError(t, err)
	return b
}

func testPlan(t *testing.T, src config.MapSource) *plan.Plan {
	t.Helper()
	p, err := plan.Build(plan.Inputs{}, src)
	require.NoError(t, err)
	return p
}

func TestBuilder_Generator(t *testing.T) {
	b := newTestBuilder(t, sampleFile)

	job, err := b.Generator(plan.Job{Name: "smallJavaMultiProject", Kind: plan.JobGenerator})
	require.NoError(t, err)
	assert.Equal(t, []string{"./gradlew", ":generator:run", "--args", "small {{.Name}}"}, job.Argv, "generator commands are not templated")
	assert.Equal(t, "/ws", job.Dir)
	assert.Equal(t, 10*time.Minute, job.Timeout)
	assert.Contains(t, job.Env, "PERF_SAMPLE_OUTPUT=/ws/build/smallJavaMultiProject")
	for _, kv := range job.Env {
		assert.NotContains(t, kv, "PERF_MAX_PROJECTS", "no limit unless configured")
	}

	job, err = b.Generator(plan.Job{Name: "largeMonolith", Kind: plan.JobGenerator})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, job.Timeout)
	assert.Contains(t, job.Env, "SAMPLE_SEED=42")

	_, err = b.Generator(plan.Job{Name: "missing", Kind: plan.JobGenerator})
	require.ErrorIs(t, err, ErrUnknownJob)

	assert.Equal(t, []string{"/ws/build/smallJavaMultiProject", "/ws/build/samples/largeMonolith"}, b.OutputDirs())
}

func TestBuilder_GeneratorProjectLimit(t *testing.T) {
	b := newTestBuilder(t, sampleFile)

	p, err := plan.Build(plan.Inputs{Generators: []string{"smallJavaMultiProject"}}, config.MapSource{config.PropMaxProjects: " 25 "})
	require.NoError(t, err)
	node, ok := p.Job("smallJavaMultiProject")
	require.True(t, ok)

	job, err := b.Generator(node)
	require.NoError(t, err)
	assert.Contains(t, job.Env, "PERF_MAX_PROJECTS=25")
}

func TestBuilder_Measurement(t *testing.T) {
	b := newTestBuilder(t, `
test:
  command: run-perf --task {{.Name}} "--exclude={{.ExcludeCategory}}" --checks {{.Checks}}
  dir: perf
`)
	p := testPlan(t, config.MapSource{config.PropDBURL: "jdbc:h2:mem", config.PropBaselines: "2.0,last"})
	task, _ := p.Task(plan.PerformanceTest)

	job, err := b.Measurement(task)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"run-perf", "--task", "performanceTest",
		"--exclude=" + plan.ExperimentCategory,
		"--checks", "all",
		"-D" + plan.SysPropBaselines + "=2.0,last",
		"-D" + plan.SysPropDBURL + "=jdbc:h2:mem",
	}, job.Argv)
	assert.Equal(t, filepath.Join("/ws", "perf"), job.Dir)
	assert.Contains(t, job.Env, "PERF_TASK_BASELINES=2.0,last")
	assert.Contains(t, job.Env, "PERF_TASK_MAX_PARALLELISM=1")
	assert.False(t, job.ShowOutput)
}

func TestBuilder_MeasurementDistributed(t *testing.T) {
	b := newTestBuilder(t, "test:\n  command: run-perf {{.Name}} --worker {{.WorkerTask}} --channel {{.Channel}}\n")
	p := testPlan(t, config.MapSource{config.PropBranchName: "main", config.PropTeamCityUsername: "bot"})
	task, _ := p.Task(plan.DistributedFullPerformanceTest)

	job, err := b.Measurement(task)
	require.NoError(t, err)

	assert.Equal(t, []string{"run-perf", "distributedFullPerformanceTest", "--worker", "fullPerformanceTest", "--channel", "historical-main"}, job.Argv[:6])
	assert.Contains(t, job.Env, "PERF_TEAMCITY_USERNAME=bot")
	assert.Contains(t, job.Env, "PERF_SCENARIO_LIST=/ws/build/performance-tests/scenario-list.csv")
	assert.Contains(t, job.Env, "PERF_TASK_CHECKS=none")
}

func TestBuilder_MeasurementTemplateErrors(t *testing.T) {
	b := newTestBuilder(t, "test:\n  command: run {{.Nope}}\n")
	task, _ := testPlan(t, config.MapSource{}).Task(plan.PerformanceTest)

	_, err := b.Measurement(task)
	require.Error(t, err)
}

func TestBuilder_ResultDirs(t *testing.T) {
	b := newTestBuilder(t, "test:\n  command: run\n  debug_dir: /tmp/debug/{{.Name}}\n")
	task, _ := testPlan(t, config.MapSource{}).Task(plan.PerformanceExperiment)

	junit, err := b.JUnitDir(task)
	require.NoError(t, err)
	assert.Equal(t, "/ws/build/test-results/performanceExperiment", junit)

	debug, err := b.DebugDir(task)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/debug/performanceExperiment", debug)
}

func TestBuilder_Report(t *testing.T) {
	p := testPlan(t, config.MapSource{config.PropDBURL: "jdbc:h2:mem"})

	none := newTestBuilder(t, "test:\n  command: run\n")
	_, ok, err := none.Report(p.Report(), "commits")
	require.NoError(t, err)
	assert.False(t, ok, "no report command configured")

	b := newTestBuilder(t, sampleFile)
	job, ok, err := b.Report(p.Report(), "commits-main")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []string{
		"./gradlew", "performanceReport",
		"-D" + plan.SysPropDBURL + "=jdbc:h2:mem",
		"-D" + plan.SysPropChannel + "=commits-main",
	}, job.Argv)
	assert.Contains(t, job.Env, "PERF_RESULT_STORE_CLASS="+plan.ResultStoreClass)
	assert.Contains(t, job.Env, "PERF_REPORT_DIR=/ws/build/performance-tests/report")

	job, _, err = b.Report(p.Report(), "")
	require.NoError(t, err)
	assert.NotContains(t, job.Argv, "-D"+plan.SysPropChannel+"=")
	assert.Len(t, job.Argv, 3)
}

func TestNewBuilder_NilFile(t *testing.T) {
	_, err := NewBuilder(nil, "/ws", "/ws/build", time.Minute)
	require.ErrorIs(t, err, ErrFileNil)
}
