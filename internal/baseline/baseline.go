// Package baseline parses and compares the version tags a performance run is measured against
package baseline

import (
	"fmt"
	"strings"
)

// Symbolic tags resolved by the test runner rather than naming a release
const (
	Last     = "last"
	Nightly  = "nightly"
	Defaults = "defaults"
	None     = "none"
)

// Historical is the fixed sweep used by full distributed runs
func Historical() []string {
	return []string{"1.1", "1.12", "2.0", "2.1", "2.4", "2.9", "2.12", "2.14.1", Last}
}

// Parse splits a baseline property value into tags.
// Both "1.1,2.0,last" and the bracketed "[1.1, 2.0, last]" forms are accepted.
func Parse(value string) []string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "[")
	value = strings.TrimSuffix(value, "]")
	if strings.TrimSpace(value) == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := NormalizeTag(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Format renders tags in the comma separated form Parse accepts
func Format(tags []string) string {
	return strings.Join(tags, ",")
}

// NormalizeTag trims whitespace and a leading "v" from release tags
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if IsSymbolic(strings.ToLower(tag)) {
		return strings.ToLower(tag)
	}
	return strings.TrimPrefix(tag, "v")
}

// IsSymbolic reports whether tag is one of the runner-resolved names
func IsSymbolic(tag string) bool {
	switch tag {
	case Last, Nightly, Defaults, None:
		return true
	default:
		return false
	}
}

// Compare compares two tags.
// Returns:
//   - 1 if a > b
//   - 0 if a == b
//   - -1 if a < b
//
// Symbolic tags sort after every release and compare equal to each other.
func Compare(a, b string) int {
	aSym := IsSymbolic(a)
	bSym := IsSymbolic(b)

	if aSym && bSym {
		return 0
	}
	if aSym {
		return 1
	}
	if bSym {
		return -1
	}

	parts1 := parseVersion(a)
	parts2 := parseVersion(b)

	n := len(parts1)
	if len(parts2) > n {
		n = len(parts2)
	}
	for i := 0; i < n; i++ {
		val1 := 0
		val2 := 0
		if i < len(parts1) {
			val1 = parts1[i]
		}
		if i < len(parts2) {
			val2 = parts2[i]
		}

		if val1 > val2 {
			return 1
		}
		if val1 < val2 {
			return -1
		}
	}

	return 0
}

// Validate returns human-readable problems with a baseline list; an empty result means usable
func Validate(tags []string) []string {
	var problems []string
	seen := make(map[string]bool, len(tags))

	for i, tag := range tags {
		if seen[tag] {
			problems = append(problems, fmt.Sprintf("baseline %q is listed more than once", tag))
		}
		seen[tag] = true

		if !IsSymbolic(tag) && len(parseVersion(tag)) == 0 {
			problems = append(problems, fmt.Sprintf("baseline %q is neither a release nor one of %s, %s, %s, %s", tag, Last, Nightly, Defaults, None))
			continue
		}

		if i > 0 && Compare(tags[i-1], tag) > 0 {
			problems = append(problems, fmt.Sprintf("baseline %q comes after newer %q", tag, tags[i-1]))
		}
	}

	return problems
}

// parseVersion parses a release tag into its numeric components
func parseVersion(version string) []int {
	// Remove any suffixes like -rc-1, +build etc.
	if idx := strings.IndexAny(version, "-+"); idx != -1 {
		version = version[:idx]
	}

	parts := strings.Split(version, ".")
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		var num int
		if _, err := fmt.Sscanf(part, "%d", &num); err == nil {
			result = append(result, num)
		}
	}

	return result
}
