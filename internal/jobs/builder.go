package jobs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/google/shlex"

	"github.com/mrz1836/go-perf-matrix/internal/baseline"
	"github.com/mrz1836/go-perf-matrix/internal/plan"
)

// Job is a fully rendered process invocation
type Job struct {
	Name       string
	Argv       []string
	Dir        string
	Env        []string
	Timeout    time.Duration
	ShowOutput bool
}

// CommandLine returns the argv joined for display
func (j Job) CommandLine() string {
	return strings.Join(j.Argv, " ")
}

// TaskData is the template context for test commands and result directories
type TaskData struct {
	Name            string
	Kind            string
	Channel         string
	Baselines       string
	Category        string
	IncludeCategory string
	ExcludeCategory string
	Checks          string
	BuildDir        string
	WorkerTask      string
}

// Builder renders plan nodes into Jobs
type Builder struct {
	file           *File
	root           string
	buildDir       string
	defaultTimeout time.Duration
}

// NewBuilder creates a Builder. Relative directories resolve against root,
// generator outputs against buildDir.
func NewBuilder(file *File, root, buildDir string, defaultTimeout time.Duration) (*Builder, error) {
	if file == nil {
		return nil, ErrFileNil
	}
	return &Builder{file: file, root: root, buildDir: buildDir, defaultTimeout: defaultTimeout}, nil
}

// File returns the underlying definitions
func (b *Builder) File() *File {
	return b.file
}

// BuildDir returns the absolute build directory
func (b *Builder) BuildDir() string {
	return b.buildDir
}

// Generator renders the generator job for a plan generator node. A project
// limit on the node is exported as PERF_MAX_PROJECTS.
func (b *Builder) Generator(node plan.Job) (Job, error) {
	for _, g := range b.file.Generators {
		if g.Name != node.Name {
			continue
		}
		output := b.OutputDir(g)
		job, err := b.command(g.Name, g.CommandDef, nil)
		if err != nil {
			return Job{}, err
		}
		job.Env = append(job.Env, "PERF_SAMPLE_OUTPUT="+output, "PERF_SAMPLE_NAME="+g.Name)
		if node.MaxProjects > 0 {
			job.Env = append(job.Env, "PERF_MAX_PROJECTS="+strconv.Itoa(node.MaxProjects))
		}
		return job, nil
	}
	return Job{}, fmt.Errorf("%w: %s", ErrUnknownJob, node.Name)
}

// OutputDir returns the absolute output directory of a generator
func (b *Builder) OutputDir(g GeneratorDef) string {
	return filepath.Join(b.buildDir, g.Output)
}

// OutputDirs returns every generator output directory in file order
func (b *Builder) OutputDirs() []string {
	dirs := make([]string, 0, len(b.file.Generators))
	for _, g := range b.file.Generators {
		dirs = append(dirs, b.OutputDir(g))
	}
	return dirs
}

// Measurement renders the process that runs a measurement task
func (b *Builder) Measurement(task plan.TaskSpec) (Job, error) {
	data := b.taskData(task)

	job, err := b.command(task.Name, b.file.Test.CommandDef, data)
	if err != nil {
		return Job{}, err
	}
	for _, name := range task.PropertyNames() {
		job.Argv = append(job.Argv, fmt.Sprintf(b.file.Test.PropertyFlag, name, task.SystemProperties[name]))
	}

	job.Env = append(job.Env,
		"PERF_TASK_NAME="+data.Name,
		"PERF_TASK_KIND="+data.Kind,
		"PERF_TASK_CHANNEL="+data.Channel,
		"PERF_TASK_BASELINES="+data.Baselines,
		"PERF_TASK_CHECKS="+data.Checks,
		"PERF_TASK_MAX_PARALLELISM=1",
	)
	if task.Distributed != nil {
		d := task.Distributed
		job.Env = append(job.Env,
			"PERF_WORKER_TEST_TASK_NAME="+d.WorkerTaskName,
			"PERF_COORDINATOR_URL="+d.CoordinatorURL,
			"PERF_COORDINATOR_BUILD_ID="+d.CoordinatorBuildID,
			"PERF_BUILD_TYPE_ID="+d.BuildTypeID,
			"PERF_BRANCH_NAME="+d.BranchName,
			"PERF_TEAMCITY_USERNAME="+d.Username,
			"PERF_TEAMCITY_PASSWORD="+d.Password,
			"PERF_SCENARIO_LIST="+filepath.Join(b.buildDir, d.ScenarioList),
			"PERF_SCENARIO_REPORT="+filepath.Join(b.buildDir, d.ScenarioReport),
		)
	}
	job.ShowOutput = task.Profiling.ShowStandardStreams
	return job, nil
}

// JUnitDir returns the absolute JUnit XML directory of a task
func (b *Builder) JUnitDir(task plan.TaskSpec) (string, error) {
	return b.resultDir("junit_dir", b.file.Test.JUnitDir, task)
}

// DebugDir returns the absolute debug artifacts directory of a task
func (b *Builder) DebugDir(task plan.TaskSpec) (string, error) {
	return b.resultDir("debug_dir", b.file.Test.DebugDir, task)
}

// Report renders the report generation process for the given channel
func (b *Builder) Report(report plan.ReportSpec, channel string) (Job, bool, error) {
	if b.file.Report.Command == "" {
		return Job{}, false, nil
	}

	job, err := b.command(report.Name, b.file.Report, nil)
	if err != nil {
		return Job{}, false, err
	}

	props := make(map[string]string, len(report.SystemProperties)+1)
	for k, v := range report.SystemProperties {
		props[k] = v
	}
	if channel != "" {
		props[plan.SysPropChannel] = channel
	}
	for _, name := range sortedKeys(props) {
		job.Argv = append(job.Argv, fmt.Sprintf(b.file.Test.PropertyFlag, name, props[name]))
	}

	job.Env = append(job.Env,
		"PERF_RESULT_STORE_CLASS="+report.ResultStoreClass,
		"PERF_REPORT_DIR="+filepath.Join(b.buildDir, report.ReportDir),
	)
	return job, true, nil
}

func (b *Builder) resultDir(field, tmpl string, task plan.TaskSpec) (string, error) {
	rendered, err := render(field, tmpl, b.taskData(task))
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(rendered) {
		return rendered, nil
	}
	return filepath.Join(b.buildDir, rendered), nil
}

func (b *Builder) taskData(task plan.TaskSpec) TaskData {
	data := TaskData{
		Name:      task.Name,
		Kind:      task.Kind.String(),
		Channel:   task.Channel,
		Baselines: baseline.Format(task.Baselines),
		Category:  task.Category.String(),
		Checks:    task.Checks.String(),
		BuildDir:  b.buildDir,
	}
	switch task.Category.Mode {
	case plan.FilterInclude:
		data.IncludeCategory = task.Category.Category
	case plan.FilterExclude:
		data.ExcludeCategory = task.Category.Category
	}
	if task.Distributed != nil {
		data.WorkerTask = task.Distributed.WorkerTaskName
	}
	return data
}

// command splits the command line first and renders each word, so template
// output never changes word boundaries
func (b *Builder) command(name string, def CommandDef, data any) (Job, error) {
	words, err := shlex.Split(def.Command)
	if err != nil {
		return Job{}, fmt.Errorf("%s: cannot split command: %w", name, err)
	}

	argv := make([]string, 0, len(words))
	for _, w := range words {
		if data != nil {
			if w, err = render(name, w, data); err != nil {
				return Job{}, err
			}
		}
		if w != "" {
			argv = append(argv, w)
		}
	}
	if len(argv) == 0 {
		return Job{}, fmt.Errorf("%w: %s", ErrEmptyCommand, name)
	}

	dir := b.root
	if def.Dir != "" {
		dir = def.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(b.root, dir)
		}
	}

	timeout := b.defaultTimeout
	if def.Timeout != "" {
		if timeout, err = time.ParseDuration(def.Timeout); err != nil {
			return Job{}, fmt.Errorf("%s: invalid timeout format: %w", name, err)
		}
	}

	env := make([]string, 0, len(def.Environment))
	for _, k := range sortedKeys(def.Environment) {
		env = append(env, k+"="+os.ExpandEnv(def.Environment[k]))
	}

	return Job{Name: name, Argv: argv, Dir: dir, Env: env, Timeout: timeout}, nil
}

func render(name, tmpl string, data any) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%s: bad template %q: %w", name, tmpl, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%s: render %q: %w", name, tmpl, err)
	}
	return buf.String(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
