package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrz1836/go-perf-matrix/internal/config"
	"github.com/mrz1836/go-perf-matrix/internal/dupes"
	prerrors "github.com/mrz1836/go-perf-matrix/internal/errors"
	"github.com/mrz1836/go-perf-matrix/internal/jobs"
	"github.com/mrz1836/go-perf-matrix/internal/output"
	"github.com/mrz1836/go-perf-matrix/internal/plan"
	"github.com/mrz1836/go-perf-matrix/internal/results"
	"github.com/mrz1836/go-perf-matrix/internal/runner"
)

// workspace is everything a command needs after configuration is loaded
type workspace struct {
	cfg     *config.Config
	out     *output.Formatter
	log     *zap.Logger
	file    *jobs.File
	plan    *plan.Plan
	builder *jobs.Builder
}

// close flushes buffered log entries
func (w *workspace) close() {
	_ = w.log.Sync()
}

// openWorkspace loads configuration, the job definitions file and the plan.
// Without requireJobs a missing job file yields a plan with no generators.
func (cb *CommandBuilder) openWorkspace(requireJobs bool, tasks []string) (*workspace, error) {
	cfg, err := cb.app.loadConfig()
	if err != nil {
		f := cb.formatter(nil)
		f.Error("Failed to load configuration: %v", err)
		if errors.Is(err, prerrors.ErrEnvFileNotFound) {
			f.SuggestAction("Create .github/env/*.env or .github/.env.perf; run 'go-perf-matrix config-help' for the variables")
		}
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	ws := &workspace{cfg: cfg, out: cb.formatter(cfg)}

	ws.log, err = cb.logger(cfg)
	if err != nil {
		return nil, err
	}

	ws.file, err = jobs.Load(cfg.JobFilePath())
	switch {
	case err == nil:
	case errors.Is(err, prerrors.ErrJobFileNotFound) && !requireJobs:
		ws.log.Debug("no job definitions file, planning without generators", zap.String("path", cfg.JobFilePath()))
		ws.file = nil
	default:
		ws.out.Error("Failed to load job definitions: %v", err)
		return nil, err
	}

	var generators []string
	if ws.file != nil {
		generators = ws.file.GeneratorNames()
	}
	ws.plan, err = plan.Build(plan.Inputs{Tasks: tasks, Generators: generators}, cfg.Properties)
	if err != nil {
		ws.out.Error("Failed to build the plan: %v", err)
		if errors.Is(err, prerrors.ErrUnknownTask) {
			ws.out.SuggestAction("Known tasks: " + strings.Join(plan.TaskNames(), ", "))
		}
		return nil, err
	}

	if ws.file != nil {
		ws.builder, err = jobs.NewBuilder(ws.file, cfg.Root, cfg.BuildPath(), seconds(cfg.Jobs.DefaultTimeout))
		if err != nil {
			return nil, err
		}
	}
	return ws, nil
}

// logger returns the injected logger or a production zap logger at the configured level
func (cb *CommandBuilder) logger(cfg *config.Config) (*zap.Logger, error) {
	if cb.app.logger != nil {
		return cb.app.logger, nil
	}

	zcfg := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	if cb.app.config.Verbose {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zcfg.Level = level
	zcfg.Encoding = "console"
	zcfg.DisableStacktrace = !cb.app.config.Verbose

	log, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// newRunner wires the runner to the workspace
func (cb *CommandBuilder) newRunner(ws *workspace) (*runner.Runner, error) {
	executor := cb.app.executor
	if executor == nil {
		executor = jobs.NewCommandExecutor(ws.log, cb.app.out)
	}

	publisher := cb.app.publisher
	if publisher == nil && ws.cfg.Archive.Bucket != "" {
		pub, err := results.NewPublisher(results.StoreConfig{
			Endpoint:  ws.cfg.Archive.Endpoint,
			Region:    ws.cfg.Archive.Region,
			AccessKey: ws.cfg.Archive.AccessKey,
			SecretKey: ws.cfg.Archive.SecretKey,
			Bucket:    ws.cfg.Archive.Bucket,
			UseSSL:    ws.cfg.Archive.UseSSL,
		}, ws.log)
		if err != nil {
			ws.out.Error("Failed to configure archive publishing: %v", err)
			return nil, err
		}
		publisher = pub
	}

	deps := runner.Deps{
		Plan:            ws.plan,
		Builder:         ws.builder,
		Executor:        executor,
		Packager:        results.NewPackager(ws.log),
		Detector:        dupes.NewDetector(ws.log, ws.cfg.Jobs.ParallelWorkers),
		Logger:          ws.log,
		Out:             cb.app.out,
		Timeout:         seconds(ws.cfg.Timeout),
		DuplicateSuffix: ws.cfg.Duplicates.Suffix,
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	return runner.New(deps)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
