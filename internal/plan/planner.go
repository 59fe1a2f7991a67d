package plan

import (
	"fmt"
	"strconv"

	"github.com/mrz1836/go-perf-matrix/internal/baseline"
	"github.com/mrz1836/go-perf-matrix/internal/config"
	prerrors "github.com/mrz1836/go-perf-matrix/internal/errors"
)

// Inputs are the plan-definition inputs. Nothing here is late-bound.
type Inputs struct {
	// Tasks restricts the catalog to the named tasks; empty keeps the whole catalog
	Tasks []string
	// Generators names the sample generator jobs every measurement waits for
	Generators []string
}

// Definition is the first planning phase: catalog rows with late-bound fields still open
type Definition struct {
	defs       []definition
	generators []string
}

// Define selects catalog rows and records the generator jobs. It reads no external input.
func Define(in Inputs) (*Definition, error) {
	all := catalog()

	selected := all
	if len(in.Tasks) > 0 {
		byName := make(map[string]definition, len(all))
		for _, d := range all {
			byName[d.name] = d
		}

		want := make(map[string]bool, len(in.Tasks))
		for _, name := range in.Tasks {
			if _, ok := byName[name]; !ok {
				return nil, fmt.Errorf("%w: %s", prerrors.ErrUnknownTask, name)
			}
			want[name] = true
		}

		selected = nil
		for _, d := range all {
			if want[d.name] {
				selected = append(selected, d)
			}
		}
	}

	return &Definition{
		defs:       selected,
		generators: append([]string(nil), in.Generators...),
	}, nil
}

// lateInputs is every externally supplied value, read in a single pass
type lateInputs struct {
	baselines          []string
	branch             string
	workerTask         string
	coordinatorBuildID string
	coordinatorURL     string
	buildTypeID        string
	username           string
	password           string
	db                 map[string]string
	yourkit            bool
	honestProfiler     bool
	verbose            bool
	maxProjects        int
}

func readInputs(src config.Source) lateInputs {
	if src == nil {
		src = config.MapSource{}
	}

	in := lateInputs{
		baselines:          baseline.Parse(config.NonEmpty(src, config.PropBaselines)),
		branch:             config.NonEmpty(src, config.PropBranchName),
		workerTask:         config.NonEmpty(src, config.PropWorkerTestTaskName),
		coordinatorBuildID: config.NonEmpty(src, config.PropCoordinatorBuildID),
		coordinatorURL:     config.NonEmpty(src, config.PropCoordinatorURL),
		buildTypeID:        config.NonEmpty(src, config.PropBuildTypeID),
		username:           config.NonEmpty(src, config.PropTeamCityUsername),
		yourkit:            config.Has(src, config.PropUseYourkit),
		honestProfiler:     config.Has(src, config.PropHonestProfiler),
		verbose:            config.Has(src, config.PropVerbose),
		db:                 make(map[string]string, 3),
	}
	in.password, _ = src.GetOptionalString(config.PropTeamCityPassword)
	if n, err := strconv.Atoi(config.NonEmpty(src, config.PropMaxProjects)); err == nil && n > 0 {
		in.maxProjects = n
	}

	dbProps := map[string]string{
		config.PropDBURL:      SysPropDBURL,
		config.PropDBUsername: SysPropDBUsername,
		config.PropDBPassword: SysPropDBPassword,
	}
	for name, value := range config.Select(src, config.PropDBURL, config.PropDBUsername, config.PropDBPassword) {
		in.db[dbProps[name]] = value
	}

	if in.workerTask == "" {
		in.workerTask = DefaultWorkerTask
	}
	if in.coordinatorURL == "" {
		in.coordinatorURL = DefaultCoordinatorURL
	}
	return in
}

// Resolve is the second planning phase. Every late-bound value is read from src
// exactly once, applied to every task, and the result is frozen into a Plan.
func (d *Definition) Resolve(src config.Source) (*Plan, error) {
	in := readInputs(src)

	p := &Plan{
		report: ReportSpec{
			Name:             ReportJob,
			ResultStoreClass: ResultStoreClass,
			ReportDir:        ReportDir,
			SystemProperties: copyProps(in.db),
		},
	}

	for _, name := range d.generators {
		p.jobs = append(p.jobs, Job{
			Name:        name,
			Kind:        JobGenerator,
			Description: "generate sample project " + name,
			MaxProjects: in.maxProjects,
		})
	}
	p.jobs = append(p.jobs, Job{Name: PrepareSamplesJob, Kind: JobPrepareSamples, Description: "all sample projects generated"})

	for _, def := range d.defs {
		p.tasks = append(p.tasks, def.resolve(in))
	}

	p.jobs = append(p.jobs, Job{Name: ReportJob, Kind: JobReport, Description: "generate the performance report"})
	for _, t := range p.tasks {
		if t.ResultsArchive != "" {
			p.jobs = append(p.jobs, Job{
				Name:        t.ResultsArchive,
				Kind:        JobResultsArchive,
				Task:        t.Name,
				Description: "package test results of " + t.Name,
			})
		}
	}
	p.jobs = append(p.jobs,
		Job{Name: CleanSamplesJob, Kind: JobCleanSamples, Description: "delete generated sample projects"},
		Job{Name: CheckDuplicatesJob, Kind: JobCheckDuplicates, Description: "report identical generated build files"},
	)

	graph, err := NewGraph(p.nodeNames(), p.buildEdges(d.generators))
	if err != nil {
		return nil, err
	}
	p.graph = graph
	return p, nil
}

// Build runs both planning phases
func Build(in Inputs, src config.Source) (*Plan, error) {
	def, err := Define(in)
	if err != nil {
		return nil, err
	}
	return def.Resolve(src)
}

func (d definition) resolve(in lateInputs) TaskSpec {
	t := TaskSpec{
		Name:             d.name,
		Kind:             d.kind,
		Category:         d.category,
		Channel:          d.channel,
		Baselines:        d.baselines(in.baselines),
		Checks:           d.checks,
		MaxParallelism:   1,
		SystemProperties: copyProps(in.db),
	}

	if len(t.Baselines) > 0 {
		t.SystemProperties[SysPropBaselines] = baseline.Format(t.Baselines)
	}
	if d.localStore {
		t.SystemProperties[SysPropDBURL] = LocalStoreURL
	}

	switch d.kind {
	case KindDistributed:
		if in.branch != "" {
			t.Channel = t.Channel + "-" + in.branch
		}
		t.Distributed = &DistributedParams{
			WorkerTaskName:     in.workerTask,
			CoordinatorURL:     in.coordinatorURL,
			CoordinatorBuildID: in.coordinatorBuildID,
			BuildTypeID:        in.buildTypeID,
			BranchName:         in.branch,
			Username:           in.username,
			Password:           in.password,
			ScenarioList:       ScenarioListFile,
			ScenarioReport:     ScenarioReportFile,
		}
	case KindLocal:
		t.ResultsArchive = ResultsZipJob(d.name)
		if in.yourkit {
			t.Profiling.YourKit = true
			t.Profiling.ShowStandardStreams = true
			t.Profiling.AlwaysRun = true
			t.SystemProperties[SysPropUseYourkit] = "1"
		}
		if in.honestProfiler {
			t.Profiling.HonestProfiler = true
			t.SystemProperties[SysPropHonestProfiler] = "1"
		}
		if in.verbose {
			t.Profiling.ShowStandardStreams = true
		}
	}

	t.Store = StoreRoute{
		Class:   ResultStoreClass,
		URL:     t.SystemProperties[SysPropDBURL],
		Channel: t.Channel,
		Local:   d.localStore,
	}
	return t
}

func copyProps(props map[string]string) map[string]string {
	out := make(map[string]string, len(props)+2)
	for k, v := range props {
		out[k] = v
	}
	return out
}

// Plan is the frozen result of planning
type Plan struct {
	tasks  []TaskSpec
	jobs   []Job
	report ReportSpec
	graph  *Graph
}

// Tasks returns copies of the measurement tasks in catalog order
func (p *Plan) Tasks() []TaskSpec {
	out := make([]TaskSpec, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// Task looks up a measurement task by name
func (p *Plan) Task(name string) (TaskSpec, bool) {
	for _, t := range p.tasks {
		if t.Name == name {
			return t.Clone(), true
		}
	}
	return TaskSpec{}, false
}

// Jobs returns the supporting jobs
func (p *Plan) Jobs() []Job {
	return append([]Job(nil), p.jobs...)
}

// Job looks up a supporting job by name
func (p *Plan) Job(name string) (Job, bool) {
	for _, j := range p.jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

// Generators returns the names of the sample generator jobs
func (p *Plan) Generators() []string {
	var names []string
	for _, j := range p.jobs {
		if j.Kind == JobGenerator {
			names = append(names, j.Name)
		}
	}
	return names
}

// Report returns the report job configuration
func (p *Plan) Report() ReportSpec {
	r := p.report
	r.SystemProperties = copyProps(p.report.SystemProperties)
	return r
}

// Graph returns the validated dependency graph
func (p *Plan) Graph() *Graph {
	return p.graph
}

// Edges returns every edge of the plan
func (p *Plan) Edges() []Edge {
	return p.graph.Edges()
}

// Describe returns a display form of the plan with secrets masked
func (p *Plan) Describe() Description {
	desc := Description{
		Jobs:   p.Jobs(),
		Report: p.Report(),
		Edges:  p.Edges(),
	}
	for _, t := range p.tasks {
		desc.Tasks = append(desc.Tasks, t.Redacted())
	}
	for name := range desc.Report.SystemProperties {
		if name == SysPropDBPassword {
			desc.Report.SystemProperties[name] = "****"
		}
	}
	return desc
}

// Description is the serializable view printed by the plan command
type Description struct {
	Tasks  []TaskSpec `json:"tasks" yaml:"tasks"`
	Jobs   []Job      `json:"jobs" yaml:"jobs"`
	Report ReportSpec `json:"report" yaml:"report"`
	Edges  []Edge     `json:"edges" yaml:"edges"`
}

func (p *Plan) nodeNames() []string {
	names := make([]string, 0, len(p.tasks)+len(p.jobs))
	for _, j := range p.jobs {
		if j.Kind == JobGenerator || j.Kind == JobPrepareSamples {
			names = append(names, j.Name)
		}
	}
	for _, t := range p.tasks {
		names = append(names, t.Name)
	}
	for _, j := range p.jobs {
		if j.Kind != JobGenerator && j.Kind != JobPrepareSamples {
			names = append(names, j.Name)
		}
	}
	return names
}

func (p *Plan) buildEdges(generators []string) []Edge {
	var edges []Edge
	for _, g := range generators {
		edges = append(edges, Edge{From: g, To: PrepareSamplesJob, Kind: DependsOn})
	}
	for _, t := range p.tasks {
		edges = append(edges, Edge{From: PrepareSamplesJob, To: t.Name, Kind: DependsOn})
		for _, g := range generators {
			edges = append(edges, Edge{From: g, To: t.Name, Kind: MustRunAfter})
		}
		edges = append(edges, Edge{From: t.Name, To: ReportJob, Kind: Finalizes})
		if t.ResultsArchive != "" {
			edges = append(edges, Edge{From: t.Name, To: t.ResultsArchive, Kind: Finalizes})
		}
	}
	return edges
}

// String summarizes the plan for log lines
func (p *Plan) String() string {
	return fmt.Sprintf("plan(%d tasks, %d jobs)", len(p.tasks), len(p.jobs))
}
