package baseline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistorical(t *testing.T) {
	assert.Equal(t, []string{"1.1", "1.12", "2.0", "2.1", "2.4", "2.9", "2.12", "2.14.1", "last"}, Historical())

	// Callers get their own copy
	h := Historical()
	h[0] = "mutated"
	assert.Equal(t, "1.1", Historical()[0])
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"comma separated", "1.1,2.0,last", []string{"1.1", "2.0", "last"}},
		{"bracketed with spaces", "[1.1, 1.12, 2.14.1, last]", []string{"1.1", "1.12", "2.14.1", "last"}},
		{"v prefix and case", " v4.0 , LAST ", []string{"4.0", "last"}},
		{"drops empty entries", "1.1,,2.0,", []string{"1.1", "2.0"}},
		{"empty", "", nil},
		{"empty brackets", "[]", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Parse(tt.input))
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	assert.Equal(t, "1.1,1.12,2.0,2.1,2.4,2.9,2.12,2.14.1,last", Format(Historical()))
	assert.Equal(t, Historical(), Parse(Format(Historical())))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"1.1", "1.12", -1},
		{"2.12", "2.9", 1},
		{"2.14.1", "2.14", 1},
		{"2.0", "2.0.0", 0},
		{"last", "9.9", 1},
		{"1.0", "nightly", -1},
		{"last", "defaults", 0},
		{"4.0-rc-1", "4.0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, Compare(tt.a, tt.b))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.Empty(t, Validate(Historical()))
	assert.Empty(t, Validate(nil))

	problems := Validate([]string{"2.0", "1.1", "2.0", "banana"})
	assert.Len(t, problems, 3)
	assert.Contains(t, problems[0], `"1.1" comes after newer "2.0"`)
	assert.Contains(t, problems[1], `"2.0" is listed more than once`)
	assert.Contains(t, problems[2], `"banana"`)
}
