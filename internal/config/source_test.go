package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapSource(t *testing.T) {
	src := MapSource{"A": "1", "EMPTY": ""}

	v, ok := src.GetOptionalString("A")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok = src.GetOptionalString("EMPTY")
	assert.True(t, ok, "present but empty is still present")
	assert.Empty(t, v)

	_, ok = src.GetOptionalString("MISSING")
	assert.False(t, ok)
}

func TestEnvSource(t *testing.T) {
	t.Setenv("PERF_SOURCE_TEST", "value")

	v, ok := EnvSource{}.GetOptionalString("PERF_SOURCE_TEST")
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestChain_FirstHitWins(t *testing.T) {
	chain := Chain{nil, MapSource{"A": "first"}, MapSource{"A": "second", "B": "only-second"}}

	v, ok := chain.GetOptionalString("A")
	assert.True(t, ok)
	assert.Equal(t, "first", v)

	v, ok = chain.GetOptionalString("B")
	assert.True(t, ok)
	assert.Equal(t, "only-second", v)

	_, ok = chain.GetOptionalString("C")
	assert.False(t, ok)
}

func TestSelect(t *testing.T) {
	src := MapSource{PropDBURL: "jdbc:h2:mem", PropDBUsername: "sa"}

	selected := Select(src, PropDBURL, PropDBUsername, PropDBPassword)
	assert.Equal(t, map[string]string{PropDBURL: "jdbc:h2:mem", PropDBUsername: "sa"}, selected)
}

func TestNonEmptyAndHas(t *testing.T) {
	src := MapSource{"BLANK": "   ", "SET": " x "}

	assert.Empty(t, NonEmpty(src, "BLANK"))
	assert.Equal(t, "x", NonEmpty(src, "SET"))
	assert.Empty(t, NonEmpty(src, "MISSING"))

	assert.True(t, Has(src, "BLANK"))
	assert.False(t, Has(src, "MISSING"))
}
