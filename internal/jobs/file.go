// Package jobs loads the job definitions file and turns plan nodes into
// executable commands.
package jobs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"

	prerrors "github.com/mrz1836/go-perf-matrix/internal/errors"
)

// Define job file errors
var (
	ErrFileNil      = errors.New("job file cannot be nil")
	ErrInvalidFile  = errors.New("invalid job file")
	ErrUnknownJob   = errors.New("unknown job")
	ErrEmptyCommand = errors.New("job command is empty")
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// File is the perf-matrix.yaml document
type File struct {
	Generators []GeneratorDef `yaml:"generators"`
	Test       TestDef        `yaml:"test"`
	Report     CommandDef     `yaml:"report"`
}

// CommandDef is a command line plus its execution settings
type CommandDef struct {
	Command     string            `yaml:"command"`
	Dir         string            `yaml:"dir,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Timeout     string            `yaml:"timeout,omitempty"`
}

// GeneratorDef declares one sample project generator
type GeneratorDef struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Output is the generated project directory, relative to the build directory
	Output     string `yaml:"output"`
	CommandDef `yaml:",inline"`
}

// TestDef declares how a measurement task is launched.
// Command, JUnitDir and DebugDir are templates over TaskData.
type TestDef struct {
	CommandDef `yaml:",inline"`
	JUnitDir   string `yaml:"junit_dir,omitempty"`
	DebugDir   string `yaml:"debug_dir,omitempty"`
	// PropertyFlag formats each system property as an extra argument
	PropertyFlag string `yaml:"property_flag,omitempty"`
}

// Defaults applied to an unset TestDef
const (
	DefaultJUnitDir     = "test-results/{{.Name}}"
	DefaultDebugDir     = "performance-test-debug/{{.Name}}"
	DefaultPropertyFlag = "-D%s=%s"
)

// Load reads and validates a job definitions file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", prerrors.ErrJobFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a job definitions document, rejecting unknown keys
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse job file: %w", err)
	}

	f.applyDefaults()
	if problems := Validate(&f); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return &f, nil
}

func (f *File) applyDefaults() {
	if f.Test.JUnitDir == "" {
		f.Test.JUnitDir = DefaultJUnitDir
	}
	if f.Test.DebugDir == "" {
		f.Test.DebugDir = DefaultDebugDir
	}
	if f.Test.PropertyFlag == "" {
		f.Test.PropertyFlag = DefaultPropertyFlag
	}
}

// GeneratorNames returns the generator names in file order
func (f *File) GeneratorNames() []string {
	names := make([]string, 0, len(f.Generators))
	for _, g := range f.Generators {
		names = append(names, g.Name)
	}
	return names
}

// ValidationError lists every problem found in a job file
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	msg := "invalid job file:"
	for _, p := range e.Problems {
		msg += "\n  - " + p
	}
	return msg
}

// Unwrap lets callers match ErrInvalidFile
func (e *ValidationError) Unwrap() error {
	return ErrInvalidFile
}

// Validate checks a job file without executing anything
func Validate(f *File) []string {
	if f == nil {
		return []string{ErrFileNil.Error()}
	}

	var problems []string
	seen := make(map[string]bool, len(f.Generators))
	for i, g := range f.Generators {
		switch {
		case g.Name == "":
			problems = append(problems, fmt.Sprintf("generator %d: name is required", i))
		case !namePattern.MatchString(g.Name):
			problems = append(problems, fmt.Sprintf("generator %q: name must match %s", g.Name, namePattern))
		case seen[g.Name]:
			problems = append(problems, fmt.Sprintf("generator %q: declared more than once", g.Name))
		}
		seen[g.Name] = true

		if g.Output == "" {
			problems = append(problems, fmt.Sprintf("generator %q: output directory is required", g.Name))
		} else if filepath.IsAbs(g.Output) {
			problems = append(problems, fmt.Sprintf("generator %q: output must be relative to the build directory", g.Name))
		}
		problems = append(problems, validateCommand("generator "+g.Name, g.CommandDef, true)...)
	}

	problems = append(problems, validateCommand("test", f.Test.CommandDef, true)...)
	problems = append(problems, validateCommand("report", f.Report, false)...)
	return problems
}

func validateCommand(owner string, c CommandDef, required bool) []string {
	var problems []string
	if c.Command == "" {
		if required {
			problems = append(problems, owner+": command is required")
		}
	} else if _, err := shlex.Split(c.Command); err != nil {
		problems = append(problems, fmt.Sprintf("%s: command cannot be split: %v", owner, err))
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid timeout format: %v", owner, err))
		}
	}
	return problems
}
