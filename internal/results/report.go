// Package results decides which test reports are worth archiving, packages them,
// and optionally publishes the archives to object storage.
package results

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar"
)

var (
	// ErrFieldMissing is returned when a report lacks a tests or skipped field
	ErrFieldMissing = errors.New("report field missing")
	// ErrFieldInvalid is returned when a report field is not an integer
	ErrFieldInvalid = errors.New("report field is not an integer")
)

const (
	fieldTests   = "tests"
	fieldSkipped = "skipped"
)

// Summary is the pair of counts the archive policy looks at
type Summary struct {
	Tests   int
	Skipped int
}

// FullySkipped reports whether no test case in the report actually executed
func (s Summary) FullySkipped() bool {
	return s.Tests == s.Skipped
}

// ReadSummary parses a structured test report and returns its first tests and
// skipped values. A field is either an element or an attribute with that name;
// the first one in document order wins. The whole document must be well-formed.
func ReadSummary(r io.Reader) (Summary, error) {
	var (
		raw    = map[string]string{}
		dec    = xml.NewDecoder(r)
		target string
		depth  int
		text   strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Summary{}, fmt.Errorf("parse report: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			for _, attr := range t.Attr {
				remember(raw, attr.Name.Local, attr.Value)
			}
			if target != "" {
				depth++
				continue
			}
			if name := t.Name.Local; isField(name) {
				if _, seen := raw[name]; !seen {
					target = name
					depth = 0
					text.Reset()
				}
			}
		case xml.CharData:
			if target != "" {
				text.Write(t)
			}
		case xml.EndElement:
			if target == "" {
				continue
			}
			if depth > 0 {
				depth--
				continue
			}
			remember(raw, target, text.String())
			target = ""
		}
	}

	tests, err := parseField(raw, fieldTests)
	if err != nil {
		return Summary{}, err
	}
	skipped, err := parseField(raw, fieldSkipped)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Tests: tests, Skipped: skipped}, nil
}

// ShouldInclude reports whether the report at path belongs in a results archive.
// Anything that cannot be read or parsed is treated as fully skipped.
func ShouldInclude(path string) bool {
	summary, err := readSummaryFile(path)
	if err != nil {
		return false
	}
	return !summary.FullySkipped()
}

// Include applies the archive policy to an already opened report
func Include(r io.Reader) bool {
	summary, err := ReadSummary(r)
	if err != nil {
		return false
	}
	return !summary.FullySkipped()
}

func isField(name string) bool {
	return name == fieldTests || name == fieldSkipped
}

func remember(raw map[string]string, name, value string) {
	if !isField(name) {
		return
	}
	if _, seen := raw[name]; !seen {
		raw[name] = value
	}
}

func parseField(raw map[string]string, name string) (int, error) {
	value, ok := raw[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrFieldMissing, name)
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrFieldInvalid, name, value)
	}
	return n, nil
}

// Summarize adds up the counts of every parseable report under dir matching
// pattern (DefaultReportPattern when empty). Unparseable reports are counted
// in ignored and otherwise skipped.
func Summarize(dir, pattern string) (total Summary, reports, ignored int, err error) {
	if pattern == "" {
		pattern = DefaultReportPattern
	}
	matches, err := doublestar.Glob(filepath.Join(dir, filepath.FromSlash(pattern)))
	if err != nil {
		return Summary{}, 0, 0, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(matches)

	for _, path := range matches {
		s, readErr := readSummaryFile(path)
		if readErr != nil {
			ignored++
			continue
		}
		total.Tests += s.Tests
		total.Skipped += s.Skipped
		reports++
	}
	return total, reports, ignored, nil
}

func readSummaryFile(path string) (Summary, error) {
	f, err := os.Open(path) //nolint:gosec // report paths come from globbing the results directory
	if err != nil {
		return Summary{}, err
	}
	defer func() { _ = f.Close() }()
	return ReadSummary(f)
}
