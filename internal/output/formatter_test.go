package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newPlain() (*Formatter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return New(Options{ColorEnabled: false, Out: &out, Err: &errOut}), &out, &errOut
}

func TestShouldUseColor(t *testing.T) {
	assert.True(t, shouldUseColor(ColorAlways))
	assert.False(t, shouldUseColor(ColorNever))
	assert.False(t, shouldUseColor(ColorMode(42)))

	t.Run("NO_COLOR disables color", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		assert.False(t, shouldUseColor(ColorAuto))
	})

	t.Run("PERF_MATRIX_COLOR_OUTPUT disables color", func(t *testing.T) {
		t.Setenv("NO_COLOR", "")
		t.Setenv("PERF_MATRIX_COLOR_OUTPUT", "false")
		assert.False(t, shouldUseColor(ColorAuto))
	})

	t.Run("CI disables color", func(t *testing.T) {
		t.Setenv("NO_COLOR", "")
		t.Setenv("PERF_MATRIX_COLOR_OUTPUT", "")
		t.Setenv("CI", "true")
		assert.False(t, shouldUseColor(ColorAuto))
	})
}

func TestFormatterOutput(t *testing.T) {
	f, out, errOut := newPlain()

	tests := []struct {
		name  string
		print func()
		buf   *bytes.Buffer
		want  string
	}{
		{"Success", func() { f.Success("%d archived", 2) }, out, "✓ 2 archived\n"},
		{"Error", func() { f.Error("task failed") }, errOut, "✗ task failed\n"},
		{"Warning", func() { f.Warning("publish failed") }, errOut, "⚠ publish failed\n"},
		{"Info", func() { f.Info("run id %s", "abc") }, out, "ℹ run id abc\n"},
		{"Progress", func() { f.Progress("measuring") }, out, "⏳ measuring\n"},
		{"Skipped", func() { f.Skipped("performanceTest") }, out, "⊘ performanceTest\n"},
		{"Detail", func() { f.Detail("channel: %s", "commits") }, out, "  channel: commits\n"},
		{"Subheader", func() { f.Subheader("Tasks") }, out, "\nTasks:\n"},
		{"Header", func() { f.Header("Plan") }, out, "\nPlan\n────\n"},
		{"SuggestAction", func() { f.SuggestAction("retry") }, out, "💡 retry\n"},
		{"CodeBlock", func() { f.CodeBlock("a\nb") }, out, "    a\n    b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			errOut.Reset()
			tt.print()
			assert.Equal(t, tt.want, tt.buf.String())
		})
	}
}

func TestDurationFormatting(t *testing.T) {
	f, _, _ := newPlain()

	tests := []struct {
		duration time.Duration
		want     string
	}{
		{500 * time.Microsecond, "500μs"},
		{250 * time.Millisecond, "250ms"},
		{2500 * time.Millisecond, "2.5s"},
		{90 * time.Second, "1.5m"},
		{90 * time.Minute, "1.5h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.Duration(tt.duration))
	}
}

func TestSize(t *testing.T) {
	f, _, _ := newPlain()
	assert.Equal(t, "0 B", f.Size(-5))
	assert.Equal(t, "1.5 kB", f.Size(1500))
	assert.Equal(t, "2.0 MB", f.Size(2_000_000))
}

func TestParseCommandError(t *testing.T) {
	f, _, _ := newPlain()

	tests := []struct {
		name       string
		output     string
		message    string
		suggestion string
	}{
		{"oom", "java.lang.OutOfMemoryError: Java heap space", "ran out of memory", "heap"},
		{"network", "java.net.ConnectException: Connection refused", "remote service", "PERF_COORDINATOR_URL"},
		{"auth", "HTTP 401 Unauthorized", "rejected the credentials", "PERF_TEAMCITY_USERNAME"},
		{"build", "FAILURE: Build failed with an exception.", "Build invoked by './gradlew' failed", "What went wrong"},
		{"missing tool", "sh: gradlew: command not found", "not found", "PATH"},
		{"permissions", "mkdir build: Permission denied", "Permission denied", "writable"},
		{"other", "something odd", "Command './gradlew' failed", "manually"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			message, suggestion := f.ParseCommandError("./gradlew", tt.output)
			assert.Contains(t, message, tt.message)
			assert.Contains(t, suggestion, tt.suggestion)
		})
	}
}

func TestFormatNameList(t *testing.T) {
	f, _, _ := newPlain()
	assert.Equal(t, "none", f.FormatNameList(nil, 3))
	assert.Equal(t, "a, b", f.FormatNameList([]string{"a", "b"}, 3))
	assert.Equal(t, "a, b ... and 2 more", f.FormatNameList([]string{"a", "b", "c", "d"}, 2))
}

func TestFormatExecutionStats(t *testing.T) {
	f, _, _ := newPlain()
	assert.Equal(t, "3 passed, 1 failed, 2 skipped in 1.5s", f.FormatExecutionStats(3, 1, 2, 1500*time.Millisecond))
	assert.Equal(t, "4 passed in 250ms", f.FormatExecutionStats(4, 0, 0, 250*time.Millisecond))
	assert.Equal(t, "nothing ran in 0μs", f.FormatExecutionStats(0, 0, 0, 0))

	colored := New(Options{ColorEnabled: true, Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})
	assert.Contains(t, colored.FormatExecutionStats(1, 0, 0, time.Second), "1 passed")
}

