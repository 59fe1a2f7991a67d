package jobs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prerrors "github.com/mrz1836/go-perf-matrix/internal/errors"
)

const sampleFile = `
generators:
  - name: smallJavaMultiProject
    description: small multi-project build
    output: smallJavaMultiProject
    command: ./gradlew :generator:run --args "small {{.Name}}"
    timeout: 10m
  - name: largeMonolith
    output: samples/largeMonolith
    command: generate-sample --size large
    environment:
      SAMPLE_SEED: "42"
test:
  command: ./gradlew {{.Name}} --channel={{.Channel}}
  timeout: 2h
report:
  command: ./gradlew performanceReport
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleFile))
	require.NoError(t, err)

	assert.Equal(t, []string{"smallJavaMultiProject", "largeMonolith"}, f.GeneratorNames())
	assert.Equal(t, "10m", f.Generators[0].Timeout)
	assert.Equal(t, "42", f.Generators[1].Environment["SAMPLE_SEED"])
	assert.Equal(t, DefaultJUnitDir, f.Test.JUnitDir)
	assert.Equal(t, DefaultDebugDir, f.Test.DebugDir)
	assert.Equal(t, DefaultPropertyFlag, f.Test.PropertyFlag)
	assert.Equal(t, "./gradlew performanceReport", f.Report.Command)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "test:\n  command: x\n  bogus: 1\n", "bogus"},
		{"missing test command", "generators: []\n", "test: command is required"},
		{
			"generator problems",
			"generators:\n  - name: 1bad\n    command: x\n  - name: ok\n    command: x\n    output: /abs\n  - name: ok\n    output: o\ntest:\n  command: run\n",
			"name must match",
		},
		{"bad timeout", "test:\n  command: run\n  timeout: soon\n", "invalid timeout format"},
		{"unbalanced quotes", "test:\n  command: run \"oops\n", "cannot be split"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ListsEveryProblem(t *testing.T) {
	f := &File{
		Generators: []GeneratorDef{
			{Name: "", Output: "a", CommandDef: CommandDef{Command: "x"}},
			{Name: "dup", Output: "b", CommandDef: CommandDef{Command: "x"}},
			{Name: "dup", CommandDef: CommandDef{Command: "x"}},
		},
	}

	problems := Validate(f)
	assert.Contains(t, problems, "generator 0: name is required")
	assert.Contains(t, problems, `generator "dup": declared more than once`)
	assert.Contains(t, problems, `generator "dup": output directory is required`)
	assert.Contains(t, problems, "test: command is required")
	assert.Equal(t, []string{ErrFileNil.Error()}, Validate(nil))

	err := &ValidationError{Problems: problems}
	require.ErrorIs(t, err, ErrInvalidFile)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "perf-matrix.yaml"))
	require.ErrorIs(t, err, prerrors.ErrJobFileNotFound)

	path := filepath.Join(dir, "perf-matrix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Generators, 2)
}
