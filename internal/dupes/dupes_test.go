package dupes

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type DetectorTestSuite struct {
	suite.Suite

	root     string
	detector *Detector
}

func TestDetectorTestSuite(t *testing.T) {
	suite.Run(t, new(DetectorTestSuite))
}

func (s *DetectorTestSuite) SetupTest() {
	s.root = s.T().TempDir()
	s.detector = NewDetector(zap.NewNop(), 2)
}

func (s *DetectorTestSuite) write(rel, content string) string {
	path := filepath.Join(s.root, rel)
	s.Require().NoError(os.MkdirAll(filepath.Dir(path), 0o750))
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *DetectorTestSuite) TestOneGroupOfTwo() {
	a := s.write("small/build.gradle", "apply plugin: 'java'\n")
	b := s.write("medium/project1/build.gradle", "apply plugin: 'java'\n")
	c := s.write("large/build.gradle", "apply plugin: 'groovy'\n")

	groups, err := s.detector.Find(context.Background(), s.root, ".gradle")
	s.Require().NoError(err)

	s.Require().Len(groups, 1)
	for _, paths := range groups {
		s.ElementsMatch([]string{a, b}, paths)
		s.NotContains(paths, c)
	}
	s.Equal(2, groups.Files())
}

func (s *DetectorTestSuite) TestNoMatchingFiles() {
	s.write("readme.md", "same")
	s.write("other.md", "same")

	groups, err := s.detector.Find(context.Background(), s.root, ".gradle")
	s.Require().NoError(err)
	s.Empty(groups)
}

func (s *DetectorTestSuite) TestAllUnique() {
	s.write("a/build.gradle", "one")
	s.write("b/build.gradle", "two")
	s.write("c/settings.gradle", "three")

	groups, err := s.detector.Find(context.Background(), s.root, ".gradle")
	s.Require().NoError(err)
	s.Empty(groups)
}

func (s *DetectorTestSuite) TestSuffixFilter() {
	s.write("a/build.gradle", "same")
	s.write("b/build.gradle.kts", "same")

	groups, err := s.detector.Find(context.Background(), s.root, ".gradle")
	s.Require().NoError(err)
	s.Empty(groups, "a .kts file does not end with .gradle")
}

func (s *DetectorTestSuite) TestWalkOrderWithinGroup() {
	var want []string
	for _, dir := range []string{"a", "b", "c", "d", "e"} {
		want = append(want, s.write(filepath.Join(dir, "build.gradle"), "identical"))
	}

	groups, err := s.detector.Find(context.Background(), s.root, ".gradle")
	s.Require().NoError(err)
	s.Require().Len(groups, 1)
	s.Equal(want, groups[groups.Hashes()[0]])
}

func (s *DetectorTestSuite) TestDoesNotModifyTree() {
	path := s.write("a/build.gradle", "same")
	s.write("b/build.gradle", "same")
	before, err := os.Stat(path)
	s.Require().NoError(err)

	_, err = s.detector.Find(context.Background(), s.root, ".gradle")
	s.Require().NoError(err)

	after, err := os.Stat(path)
	s.Require().NoError(err)
	s.Equal(before.ModTime(), after.ModTime())
	s.Equal(before.Size(), after.Size())
}

func (s *DetectorTestSuite) TestMissingRoot() {
	groups, err := s.detector.Find(context.Background(), filepath.Join(s.root, "missing"), ".gradle")
	s.Require().NoError(err)
	s.Empty(groups)
}

func (s *DetectorTestSuite) TestCanceledContext() {
	s.write("a/build.gradle", "same")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.detector.Find(ctx, s.root, ".gradle")
	s.Require().ErrorIs(err, context.Canceled)
}

func TestGroupsReport(t *testing.T) {
	groups := Groups{
		"bbbb": {"/x/build.gradle", "/y/build.gradle"},
		"aaaa": {"/p/settings.gradle", "/q/settings.gradle", "/r/settings.gradle"},
	}

	var buf bytes.Buffer
	require.NoError(t, groups.Report(&buf))

	assert.Equal(t,
		"Duplicate build files found for hash 'aaaa' : [/p/settings.gradle, /q/settings.gradle, /r/settings.gradle]\n"+
			"Duplicate build files found for hash 'bbbb' : [/x/build.gradle, /y/build.gradle]\n",
		buf.String())
	assert.Equal(t, []string{"aaaa", "bbbb"}, groups.Hashes())
}

func TestNewDetectorDefaults(t *testing.T) {
	d := NewDetector(nil, 0)
	assert.NotNil(t, d.logger)
	assert.Positive(t, d.workers)
}
