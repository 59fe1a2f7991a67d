// Package config provides configuration loading for the performance test matrix
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mrz1836/go-perf-matrix/internal/baseline"
	"github.com/mrz1836/go-perf-matrix/internal/envfile"
	prerrors "github.com/mrz1836/go-perf-matrix/internal/errors"
)

const (
	// ModularEnvDir holds layered *.env files, loaded in lexical order
	ModularEnvDir = ".github/env"

	// LegacyEnvFile is the single-file configuration fallback
	LegacyEnvFile = ".github/.env.perf"
)

// Config holds the configuration for the performance test matrix
type Config struct {
	// Core settings
	Root     string // Workspace root (directory holding .github/)
	LogLevel string // PERF_MATRIX_LOG_LEVEL
	Timeout  int    // PERF_MATRIX_TIMEOUT_SECONDS
	BuildDir string // PERF_MATRIX_BUILD_DIR, relative to Root
	JobFile  string // PERF_MATRIX_JOB_FILE, relative to Root

	// Job execution
	Jobs struct {
		DefaultTimeout  int  // PERF_MATRIX_JOB_TIMEOUT_SECONDS
		ParallelWorkers int  // PERF_MATRIX_PARALLEL_WORKERS
		FailFast        bool // PERF_MATRIX_FAIL_FAST
	}

	// Duplicate build file detection
	Duplicates struct {
		Suffix string // PERF_MATRIX_DUPLICATE_SUFFIX
	}

	// Archive publishing (disabled when Bucket is empty)
	Archive struct {
		Bucket    string // PERF_ARCHIVE_BUCKET
		Endpoint  string // PERF_ARCHIVE_ENDPOINT
		Region    string // PERF_ARCHIVE_REGION
		AccessKey string // PERF_ARCHIVE_ACCESS_KEY
		SecretKey string // PERF_ARCHIVE_SECRET_KEY
		UseSSL    bool   // PERF_ARCHIVE_USE_SSL
	}

	// UI settings
	UI struct {
		ColorOutput bool // PERF_MATRIX_COLOR_OUTPUT
	}

	// Properties is the late-bound input source handed to the planner
	Properties Source
}

// Load reads configuration from .github/env/ or .github/.env.perf.
// Process environment values take precedence over file values.
func Load() (*Config, error) {
	root, fileValues, err := loadFileValues()
	if err != nil {
		return nil, err
	}
	return FromSource(root, Chain{EnvSource{}, MapSource(fileValues)})
}

// FromSource builds a Config from an arbitrary Source
func FromSource(root string, src Source) (*Config, error) {
	cfg := &Config{
		Root:       root,
		Properties: src,
	}

	cfg.LogLevel = getString(src, "PERF_MATRIX_LOG_LEVEL", "info")
	cfg.Timeout = getInt(src, "PERF_MATRIX_TIMEOUT_SECONDS", 4*60*60)
	cfg.BuildDir = getString(src, "PERF_MATRIX_BUILD_DIR", "build")
	cfg.JobFile = getString(src, "PERF_MATRIX_JOB_FILE", "perf-matrix.yaml")

	cfg.Jobs.DefaultTimeout = getInt(src, "PERF_MATRIX_JOB_TIMEOUT_SECONDS", 60*60)
	cfg.Jobs.ParallelWorkers = getInt(src, "PERF_MATRIX_PARALLEL_WORKERS", 0) // 0 = auto
	cfg.Jobs.FailFast = getBool(src, "PERF_MATRIX_FAIL_FAST", false)

	cfg.Duplicates.Suffix = getString(src, "PERF_MATRIX_DUPLICATE_SUFFIX", ".gradle")

	cfg.Archive.Bucket = getString(src, "PERF_ARCHIVE_BUCKET", "")
	cfg.Archive.Endpoint = getString(src, "PERF_ARCHIVE_ENDPOINT", "")
	cfg.Archive.Region = getString(src, "PERF_ARCHIVE_REGION", "us-east-1")
	cfg.Archive.AccessKey = getString(src, "PERF_ARCHIVE_ACCESS_KEY", "")
	cfg.Archive.SecretKey = getString(src, "PERF_ARCHIVE_SECRET_KEY", "")
	cfg.Archive.UseSSL = getBool(src, "PERF_ARCHIVE_USE_SSL", true)

	cfg.UI.ColorOutput = getBool(src, "PERF_MATRIX_COLOR_OUTPUT", true)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration and provides helpful error messages
func (c *Config) Validate() error {
	var errors []string

	if c.Timeout <= 0 {
		errors = append(errors, "PERF_MATRIX_TIMEOUT_SECONDS must be greater than 0")
	}

	if c.Jobs.DefaultTimeout <= 0 {
		errors = append(errors, "PERF_MATRIX_JOB_TIMEOUT_SECONDS must be greater than 0")
	}

	if c.Jobs.ParallelWorkers < 0 {
		errors = append(errors, "PERF_MATRIX_PARALLEL_WORKERS must be 0 (auto) or positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errors = append(errors, "PERF_MATRIX_LOG_LEVEL must be one of: debug, info, warn, error")
	}

	if strings.TrimSpace(c.BuildDir) == "" {
		errors = append(errors, "PERF_MATRIX_BUILD_DIR must not be empty")
	}

	if strings.TrimSpace(c.Duplicates.Suffix) == "" {
		errors = append(errors, "PERF_MATRIX_DUPLICATE_SUFFIX must not be empty")
	}

	if c.Properties != nil {
		if value, ok := c.Properties.GetOptionalString(PropBaselines); ok {
			for _, problem := range baseline.Validate(baseline.Parse(value)) {
				errors = append(errors, PropBaselines+": "+problem)
			}
		}
		if value := NonEmpty(c.Properties, PropMaxProjects); value != "" {
			if n, err := strconv.Atoi(value); err != nil || n <= 0 {
				errors = append(errors, PropMaxProjects+" must be a positive integer")
			}
		}
	}

	if c.Archive.Bucket != "" {
		if c.Archive.Endpoint == "" {
			errors = append(errors, "PERF_ARCHIVE_ENDPOINT is required when PERF_ARCHIVE_BUCKET is set")
		}
		if c.Archive.AccessKey == "" || c.Archive.SecretKey == "" {
			errors = append(errors, "PERF_ARCHIVE_ACCESS_KEY and PERF_ARCHIVE_SECRET_KEY are required when PERF_ARCHIVE_BUCKET is set")
		}
	}

	if len(errors) > 0 {
		return &ValidationError{
			Errors: errors,
		}
	}

	return nil
}

// BuildPath returns the absolute build directory
func (c *Config) BuildPath() string {
	if filepath.IsAbs(c.BuildDir) {
		return c.BuildDir
	}
	return filepath.Join(c.Root, c.BuildDir)
}

// JobFilePath returns the absolute path of the job definitions file
func (c *Config) JobFilePath() string {
	if filepath.IsAbs(c.JobFile) {
		return c.JobFile
	}
	return filepath.Join(c.Root, c.JobFile)
}

// ValidationError represents configuration validation errors
type ValidationError struct {
	Errors []string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// IsCI detects if we're running in a CI environment
func IsCI() bool {
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"CIRCLECI",
		"TRAVIS",
		"BUILDKITE",
		"DRONE",
		"TEAMCITY_VERSION",
		"TF_BUILD", // Azure DevOps
		"APPVEYOR",
		"CODEBUILD_BUILD_ID", // AWS CodeBuild
	}

	for _, envVar := range ciEnvVars {
		if value := os.Getenv(envVar); value == "true" || value == "1" || (envVar != "CI" && value != "") {
			return true
		}
	}

	return false
}

// GetConfigHelp returns helpful information about configuration options
func GetConfigHelp() string {
	return `Performance Test Matrix Configuration Help

Environment Variables (.github/env/*.env or .github/.env.perf):

Core Settings:
  PERF_MATRIX_LOG_LEVEL=info                 Log level (debug, info, warn, error)
  PERF_MATRIX_TIMEOUT_SECONDS=14400          Global timeout for a run
  PERF_MATRIX_BUILD_DIR=build                Build output directory
  PERF_MATRIX_JOB_FILE=perf-matrix.yaml      Job definitions file

Job Execution:
  PERF_MATRIX_JOB_TIMEOUT_SECONDS=3600       Default per-job timeout
  PERF_MATRIX_PARALLEL_WORKERS=0             Parallel generator workers (0=auto)
  PERF_MATRIX_FAIL_FAST=false                Stop scheduling after the first failure

Duplicate Detection:
  PERF_MATRIX_DUPLICATE_SUFFIX=.gradle       File suffix compared by check-duplicates

Archive Publishing:
  PERF_ARCHIVE_BUCKET=                       Upload result archives when set
  PERF_ARCHIVE_ENDPOINT=                     S3-compatible endpoint
  PERF_ARCHIVE_REGION=us-east-1
  PERF_ARCHIVE_ACCESS_KEY= / PERF_ARCHIVE_SECRET_KEY=
  PERF_ARCHIVE_USE_SSL=true

Planner Inputs (read once per run, all optional):
  PERF_BASELINES                 Baseline override for ad-hoc runs
  PERF_BRANCH_NAME               Appended to distributed channels
  PERF_WORKER_TEST_TASK_NAME     Worker task for distributed runs (default fullPerformanceTest)
  PERF_COORDINATOR_BUILD_ID      Coordinator build id
  PERF_COORDINATOR_URL           Coordinator URL
  PERF_BUILD_TYPE_ID             Coordinator build type id
  PERF_TEAMCITY_USERNAME / PERF_TEAMCITY_PASSWORD
  PERF_DB_URL / PERF_DB_USERNAME / PERF_DB_PASSWORD
  PERF_USE_YOURKIT / PERF_HONESTPROFILER / PERF_VERBOSE
  PERF_MAX_PROJECTS              Project limit exported to sample generators

UI Settings:
  PERF_MATRIX_COLOR_OUTPUT=true              Enable colored output
`
}

// loadFileValues locates the workspace configuration and reads it without mutating the environment
func loadFileValues() (string, map[string]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	for {
		modular := filepath.Join(cwd, ModularEnvDir)
		if info, statErr := os.Stat(modular); statErr == nil && info.IsDir() {
			values, readErr := envfile.ReadDir(modular, IsCI())
			if readErr != nil {
				return "", nil, fmt.Errorf("failed to load %s: %w", modular, readErr)
			}
			return cwd, values, nil
		}

		legacy := filepath.Join(cwd, LegacyEnvFile)
		if _, statErr := os.Stat(legacy); statErr == nil {
			values, readErr := envfile.Read(legacy)
			if readErr != nil {
				return "", nil, fmt.Errorf("failed to load %s: %w", legacy, readErr)
			}
			return cwd, values, nil
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return "", nil, prerrors.ErrEnvFileNotFound
}

// Helpers for property parsing
func getBool(src Source, key string, defaultValue bool) bool {
	val := NonEmpty(src, key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

func getInt(src Source, key string, defaultValue int) int {
	val := NonEmpty(src, key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

func getString(src Source, key, defaultValue string) string {
	val := NonEmpty(src, key)
	if val == "" {
		return defaultValue
	}
	return val
}
