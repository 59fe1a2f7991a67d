// Package output formats user-facing messages for the performance matrix CLI
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/mrz1836/go-perf-matrix/internal/config"
)

// Formatter handles all user-facing output
type Formatter struct {
	colorEnabled bool
	out          io.Writer
	err          io.Writer
}

// Options for configuring the formatter
type Options struct {
	ColorEnabled bool
	Out          io.Writer
	Err          io.Writer
}

// New creates a new formatter with the given options
func New(opts Options) *Formatter {
	f := &Formatter{
		colorEnabled: opts.ColorEnabled,
		out:          opts.Out,
		err:          opts.Err,
	}
	if f.out == nil {
		f.out = os.Stdout
	}
	if f.err == nil {
		f.err = os.Stderr
	}
	return f
}

// ColorMode represents the color output mode
type ColorMode int

const (
	// ColorAuto automatically detects the best color setting
	ColorAuto ColorMode = iota
	// ColorAlways always enables color output
	ColorAlways
	// ColorNever never enables color output
	ColorNever
)

// NewWithColorMode creates a formatter with the specified color mode
func NewWithColorMode(mode ColorMode) *Formatter {
	return New(Options{
		ColorEnabled: shouldUseColor(mode),
		Out:          os.Stdout,
		Err:          os.Stderr,
	})
}

// ColorEnabled reports whether the formatter colors its output
func (f *Formatter) ColorEnabled() bool {
	return f.colorEnabled
}

// Out returns the writer for regular output
func (f *Formatter) Out() io.Writer {
	return f.out
}

func shouldUseColor(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		if os.Getenv("NO_COLOR") != "" {
			return false
		}
		if os.Getenv("PERF_MATRIX_COLOR_OUTPUT") == "false" {
			return false
		}
		if os.Getenv("TERM") == "dumb" {
			return false
		}
		if config.IsCI() {
			return false
		}
		return isatty.IsTerminal(os.Stdout.Fd())
	default:
		return false
	}
}

func (f *Formatter) print(w io.Writer, attrs []color.Attribute, format string, args ...interface{}) {
	if f.colorEnabled {
		c := color.New(attrs...)
		c.SetWriter(w)
		_, _ = c.Fprintf(w, format, args...)
		return
	}
	_, _ = fmt.Fprintf(w, format, args...)
}

// Success prints a success message with green checkmark
func (f *Formatter) Success(format string, args ...interface{}) {
	f.print(f.out, []color.Attribute{color.FgGreen}, "✓ "+format+"\n", args...)
}

// Error prints an error message with red X
func (f *Formatter) Error(format string, args ...interface{}) {
	f.print(f.err, []color.Attribute{color.FgRed}, "✗ "+format+"\n", args...)
}

// Warning prints a warning message with yellow warning symbol
func (f *Formatter) Warning(format string, args ...interface{}) {
	f.print(f.err, []color.Attribute{color.FgYellow}, "⚠ "+format+"\n", args...)
}

// Info prints an info message with blue info symbol
func (f *Formatter) Info(format string, args ...interface{}) {
	f.print(f.out, []color.Attribute{color.FgBlue}, "ℹ "+format+"\n", args...)
}

// Progress prints a progress message
func (f *Formatter) Progress(format string, args ...interface{}) {
	f.print(f.out, []color.Attribute{color.FgCyan}, "⏳ "+format+"\n", args...)
}

// Skipped prints a dimmed message for a job that never ran
func (f *Formatter) Skipped(format string, args ...interface{}) {
	f.print(f.out, []color.Attribute{color.FgWhite, color.Faint}, "⊘ "+format+"\n", args...)
}

// Header prints a section header
func (f *Formatter) Header(text string) {
	f.print(f.out, []color.Attribute{color.FgCyan, color.Bold}, "\n%s\n", text)
	f.print(f.out, []color.Attribute{color.FgCyan}, "%s\n", strings.Repeat("─", len([]rune(text))))
}

// Subheader prints a subsection header
func (f *Formatter) Subheader(text string) {
	f.print(f.out, []color.Attribute{color.FgWhite, color.Bold}, "\n%s:\n", text)
}

// Detail prints detailed information with indentation
func (f *Formatter) Detail(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(f.out, "  "+format+"\n", args...)
}

// Duration formats a duration compactly
func (f *Formatter) Duration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dμs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	default:
		return fmt.Sprintf("%.1fh", d.Hours())
	}
}

// Size formats a byte count for humans
func (f *Formatter) Size(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n)) //nolint:gosec // clamped to zero above
}

// ParseCommandError analyzes job output and returns a short diagnosis with a suggestion
func (f *Formatter) ParseCommandError(command, output string) (message, suggestion string) {
	output = strings.TrimSpace(output)

	switch {
	case strings.Contains(output, "OutOfMemoryError"):
		return "The measured build ran out of memory",
			"Raise the heap of the test JVM or pick a smaller sample project."
	case strings.Contains(output, "Connection refused") || strings.Contains(output, "UnknownHostException"):
		return "Could not reach a remote service",
			"Check PERF_COORDINATOR_URL and PERF_DB_URL, and that the machine has network access."
	case strings.Contains(output, "401") && strings.Contains(strings.ToLower(output), "unauthorized"):
		return "The coordinator rejected the credentials",
			"Check PERF_TEAMCITY_USERNAME and PERF_TEAMCITY_PASSWORD."
	case strings.Contains(output, "BUILD FAILED") || strings.Contains(output, "FAILURE: Build failed"):
		return fmt.Sprintf("Build invoked by '%s' failed", command),
			"Scroll up to the first 'What went wrong' section of the build output."
	case strings.Contains(output, "command not found") ||
		strings.Contains(output, "No such file or directory") ||
		strings.Contains(output, "executable file not found"):
		return fmt.Sprintf("Command '%s' not found", command),
			"Check the command in the job definitions file and that the tool is on PATH."
	case strings.Contains(output, "Permission denied"):
		return "Permission denied",
			"Check that the build directory and sample output directories are writable."
	default:
		return fmt.Sprintf("Command '%s' failed", command),
			fmt.Sprintf("Run '%s' manually to see detailed error output.", command)
	}
}

// FormatNameList formats a list of names, eliding after maxNames entries
func (f *Formatter) FormatNameList(names []string, maxNames int) string {
	switch {
	case len(names) == 0:
		return "none"
	case len(names) <= maxNames:
		return strings.Join(names, ", ")
	default:
		return fmt.Sprintf("%s ... and %d more", strings.Join(names[:maxNames], ", "), len(names)-maxNames)
	}
}

// FormatExecutionStats formats run statistics
func (f *Formatter) FormatExecutionStats(passed, failed, skipped int, duration time.Duration) string {
	var stats []string
	add := func(n int, label string, attr color.Attribute) {
		if n == 0 {
			return
		}
		text := fmt.Sprintf("%d %s", n, label)
		if f.colorEnabled {
			text = color.New(attr).Sprint(text)
		}
		stats = append(stats, text)
	}
	add(passed, "passed", color.FgGreen)
	add(failed, "failed", color.FgRed)
	add(skipped, "skipped", color.FgYellow)

	if len(stats) == 0 {
		stats = append(stats, "nothing ran")
	}
	return strings.Join(stats, ", ") + " in " + f.Duration(duration)
}

// CodeBlock prints indented text, typically captured job output
func (f *Formatter) CodeBlock(text string) {
	for _, line := range strings.Split(text, "\n") {
		f.print(f.out, []color.Attribute{color.FgWhite, color.Faint}, "    %s\n", line)
	}
}

// SuggestAction prints an actionable suggestion
func (f *Formatter) SuggestAction(action string) {
	f.print(f.out, []color.Attribute{color.FgMagenta}, "💡 %s\n", action)
}
