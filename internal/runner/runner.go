// Package runner executes a resolved performance test plan
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrz1836/go-perf-matrix/internal/dupes"
	prerrors "github.com/mrz1836/go-perf-matrix/internal/errors"
	"github.com/mrz1836/go-perf-matrix/internal/jobs"
	"github.com/mrz1836/go-perf-matrix/internal/plan"
	"github.com/mrz1836/go-perf-matrix/internal/results"
)

// Status is the final state of one executed node
type Status int

const (
	// StatusPassed means the node ran and succeeded
	StatusPassed Status = iota
	// StatusFailed means the node ran and failed
	StatusFailed
	// StatusSkipped means the node never ran
	StatusSkipped
)

// String returns the status as reported to progress callbacks
func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// DefaultDuplicateSuffix selects generated build scripts for duplicate detection
const DefaultDuplicateSuffix = ".gradle"

// Publisher uploads packaged archives
type Publisher interface {
	Publish(ctx context.Context, req results.PublishRequest) (string, error)
}

// Deps are the collaborators a Runner drives
type Deps struct {
	Plan     *plan.Plan
	Builder  *jobs.Builder
	Executor jobs.Executor
	Packager *results.Packager
	// Publisher is optional; archives stay local when nil
	Publisher Publisher
	Detector  *dupes.Detector
	Logger    *zap.Logger
	// Out receives duplicate reports
	Out io.Writer

	// ArchiveDir receives results archives (the build dir when empty)
	ArchiveDir      string
	Timeout         time.Duration
	DuplicateSuffix string
}

// Runner executes plan nodes in dependency order
type Runner struct {
	deps Deps
	log  *zap.Logger
}

// Options configures a run
type Options struct {
	Targets          []string
	Parallel         int
	FailFast         bool
	ProgressCallback ProgressCallback
}

// Results contains the results of a run
type Results struct {
	RunID         string
	JobResults    []JobResult
	Passed        int
	Failed        int
	Skipped       int
	TotalDuration time.Duration

	sampleFailure bool
}

// JobResult contains the result of one executed node or finalizer instance
type JobResult struct {
	Name        string
	Kind        string
	Status      Status
	Finalizes   string
	Error       string
	Output      string
	Suggestion  string
	Command     string
	Warning     string
	Archive     string
	ArchiveSize int64
	Tests       int
	Skipped     int
	Duration    time.Duration
}

// ProgressCallback is called during execution for progress updates
type ProgressCallback func(name, status string)

// Err summarizes the run as an error: sample generation failures first, then any failure
func (r *Results) Err() error {
	switch {
	case r.sampleFailure:
		return prerrors.ErrSampleGenerationFailed
	case r.Failed > 0:
		return prerrors.ErrTasksFailed
	default:
		return nil
	}
}

// New creates a Runner
func New(deps Deps) (*Runner, error) {
	if deps.Plan == nil {
		return nil, errors.New("runner needs a plan")
	}
	if deps.Builder == nil || deps.Executor == nil {
		return nil, errors.New("runner needs a job builder and executor")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Packager == nil {
		deps.Packager = results.NewPackager(deps.Logger)
	}
	if deps.Detector == nil {
		deps.Detector = dupes.NewDetector(deps.Logger, 0)
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.DuplicateSuffix == "" {
		deps.DuplicateSuffix = DefaultDuplicateSuffix
	}
	if deps.ArchiveDir == "" {
		deps.ArchiveDir = deps.Builder.BuildDir()
	}
	return &Runner{deps: deps, log: deps.Logger}, nil
}

// node is one schedulable unit of a run
type node struct {
	name     string
	pos      int
	task     *plan.TaskSpec
	job      plan.Job
	preds    []plan.Edge
	succs    []string
	waiting  int
	finished bool
	result   JobResult
	finals   []JobResult
}

func (n *node) kind() string {
	if n.task != nil {
		return "task"
	}
	return n.job.Kind.String()
}

// Run executes the targets, everything they depend on, and their finalizers
func (r *Runner) Run(ctx context.Context, opts Options) (*Results, error) {
	start := time.Now()

	if len(opts.Targets) == 0 {
		return nil, prerrors.ErrNoTasksToRun
	}
	nodes, err := r.selectNodes(opts.Targets)
	if err != nil {
		return nil, err
	}

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}

	if r.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.deps.Timeout)
		defer cancel()
	}

	res := &Results{RunID: uuid.NewString()}
	r.log.Info("starting run",
		zap.String("run_id", res.RunID),
		zap.Strings("targets", opts.Targets),
		zap.Int("nodes", len(nodes)),
	)

	s := &scheduler{
		runner:   r,
		res:      res,
		opts:     opts,
		parallel: parallel,
		nodes:    nodes,
		done:     make(chan *node, len(nodes)),
	}
	s.run(ctx)

	res.TotalDuration = time.Since(start)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("run interrupted: %w", ctxErr)
	}
	return res, nil
}

// selectNodes returns the DependsOn closure of targets in canonical order
func (r *Runner) selectNodes(targets []string) (map[string]*node, error) {
	g := r.deps.Plan.Graph()

	selected := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if selected[name] {
			return
		}
		selected[name] = true
		for _, e := range g.Incoming(name, plan.DependsOn) {
			visit(e.From)
		}
	}
	for _, t := range targets {
		if !g.Has(t) {
			return nil, fmt.Errorf("%w: %s", prerrors.ErrUnknownTask, t)
		}
		visit(t)
	}

	// a finalizer only runs standalone when nothing it finalizes is part of the run
	for name := range selected {
		for _, e := range g.Incoming(name, plan.Finalizes) {
			if selected[e.From] {
				delete(selected, name)
				break
			}
		}
	}

	nodes := make(map[string]*node, len(selected))
	for i, name := range g.TopoOrder() {
		if !selected[name] {
			continue
		}
		n := &node{name: name, pos: i}
		if t, ok := r.deps.Plan.Task(name); ok {
			n.task = &t
		} else if j, ok := r.deps.Plan.Job(name); ok {
			n.job = j
		}
		nodes[name] = n
	}

	for _, n := range nodes {
		for _, e := range g.Incoming(n.name, plan.DependsOn, plan.MustRunAfter) {
			pred, ok := nodes[e.From]
			if !ok {
				continue
			}
			n.preds = append(n.preds, e)
			n.waiting++
			pred.succs = append(pred.succs, n.name)
		}
	}
	return nodes, nil
}

// scheduler owns all run state; workers only execute and report back on done
type scheduler struct {
	runner   *Runner
	res      *Results
	opts     Options
	parallel int
	nodes    map[string]*node
	done     chan *node

	ready     []*node
	inFlight  int
	measuring bool
	finished  int
	stopped   bool
}

func (s *scheduler) run(ctx context.Context) {
	for _, n := range s.nodes {
		if n.waiting == 0 {
			s.ready = append(s.ready, n)
		}
	}

	for s.finished < len(s.nodes) {
		s.dispatch(ctx)
		if s.inFlight == 0 {
			if len(s.ready) == 0 {
				// unreachable for an acyclic graph; settle leftovers so the loop ends
				for _, n := range s.nodes {
					if !n.finished {
						s.settle(n, JobResult{Status: StatusSkipped, Error: "not reachable"})
					}
				}
			}
			continue
		}

		n := <-s.done
		s.inFlight--
		if n.task != nil {
			s.measuring = false
		}
		s.settle(n, n.result)
	}
}

// dispatch skips or launches every ready node it can, in canonical order
func (s *scheduler) dispatch(ctx context.Context) {
	sort.Slice(s.ready, func(i, j int) bool { return s.ready[i].pos < s.ready[j].pos })

	var keep []*node
	for i := 0; i < len(s.ready); i++ {
		n := s.ready[i]

		if reason := s.skipReason(ctx, n); reason != nil {
			s.settle(n, JobResult{Status: StatusSkipped, Error: reason.Error()})
			// settle may append newly ready nodes; the loop bound picks them up
			continue
		}

		if n.task != nil {
			// measurements run alone so nothing else perturbs the timings
			if s.inFlight > 0 || s.measuring {
				keep = append(keep, n)
				continue
			}
			s.measuring = true
		} else if s.measuring || s.inFlight >= s.parallel {
			keep = append(keep, n)
			continue
		}

		s.launch(ctx, n)
	}
	s.ready = keep
}

func (s *scheduler) skipReason(ctx context.Context, n *node) error {
	if ctx.Err() != nil {
		return prerrors.NewGracefulSkipError(fmt.Sprintf("%s skipped: run interrupted", n.name))
	}
	if s.stopped {
		return prerrors.NewGracefulSkipError(fmt.Sprintf("%s skipped: fail-fast after an earlier failure", n.name))
	}
	for _, e := range n.preds {
		if e.Kind != plan.DependsOn {
			continue
		}
		if s.nodes[e.From].result.Status != StatusPassed {
			return prerrors.NewPredecessorFailedError(n.name, e.From)
		}
	}
	return nil
}

func (s *scheduler) launch(ctx context.Context, n *node) {
	s.inFlight++
	if s.opts.ProgressCallback != nil {
		s.opts.ProgressCallback(n.name, "running")
	}
	go func() {
		n.result, n.finals = s.runner.execute(ctx, n, s.res.RunID)
		s.done <- n
	}()
}

// settle records a finished node and releases its successors
func (s *scheduler) settle(n *node, result JobResult) {
	if n.finished {
		return
	}
	result.Name = n.name
	result.Kind = n.kind()
	n.result = result
	n.finished = true
	s.finished++

	s.record(result)
	for _, fin := range n.finals {
		s.record(fin)
	}

	if result.Status == StatusFailed {
		if n.task == nil && n.job.Kind == plan.JobGenerator {
			s.res.sampleFailure = true
		}
		if s.opts.FailFast {
			s.stopped = true
		}
	}

	for _, name := range n.succs {
		succ := s.nodes[name]
		succ.waiting--
		if succ.waiting == 0 {
			s.ready = append(s.ready, succ)
		}
	}
}

func (s *scheduler) record(result JobResult) {
	s.res.JobResults = append(s.res.JobResults, result)
	switch result.Status {
	case StatusPassed:
		s.res.Passed++
	case StatusFailed:
		s.res.Failed++
	default:
		s.res.Skipped++
	}
	if s.opts.ProgressCallback != nil {
		s.opts.ProgressCallback(result.Name, result.Status.String())
	}
}
