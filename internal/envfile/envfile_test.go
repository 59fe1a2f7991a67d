package envfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

// EnvFileTestSuite is a test suite for the envfile package
type EnvFileTestSuite struct {
	suite.Suite

	tempDir string
}

func TestEnvFileTestSuite(t *testing.T) {
	suite.Run(t, new(EnvFileTestSuite))
}

// SetupTest creates a temporary directory for each test
func (s *EnvFileTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
}

func (s *EnvFileTestSuite) write(name, content string) string {
	path := filepath.Join(s.tempDir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *EnvFileTestSuite) TestRead() {
	path := s.write(".env", `# Comment line
PERF_BRANCH_NAME=feature-x
QUOTED_VALUE="quoted value with spaces"
SINGLE_QUOTED='single quoted value'
`)

	values, err := Read(path)
	s.Require().NoError(err)
	s.Equal("feature-x", values["PERF_BRANCH_NAME"])
	s.Equal("quoted value with spaces", values["QUOTED_VALUE"])
	s.Equal("single quoted value", values["SINGLE_QUOTED"])
}

func (s *EnvFileTestSuite) TestRead_DoesNotTouchEnvironment() {
	path := s.write(".env", "ENVFILE_SHOULD_NOT_LEAK=1\n")

	_, err := Read(path)
	s.Require().NoError(err)

	_, present := os.LookupEnv("ENVFILE_SHOULD_NOT_LEAK")
	s.False(present)
}

func (s *EnvFileTestSuite) TestRead_MissingFile() {
	_, err := Read(filepath.Join(s.tempDir, "missing.env"))
	s.Require().Error(err)
}

func (s *EnvFileTestSuite) TestReadDir_LastWins() {
	s.write("00-core.env", "ORDER_VAR=core\nCORE_VAR=1\n")
	s.write("10-project.env", "ORDER_VAR=project\nPROJECT_VAR=2\n")
	s.write(LocalOverrideFile, "ORDER_VAR=local\n")

	values, err := ReadDir(s.tempDir, false)
	s.Require().NoError(err)
	s.Equal("local", values["ORDER_VAR"])
	s.Equal("1", values["CORE_VAR"])
	s.Equal("2", values["PROJECT_VAR"])
}

func (s *EnvFileTestSuite) TestReadDir_SkipLocal() {
	s.write("00-core.env", "ORDER_VAR=core\n")
	s.write(LocalOverrideFile, "ORDER_VAR=local\n")

	values, err := ReadDir(s.tempDir, true)
	s.Require().NoError(err)
	s.Equal("core", values["ORDER_VAR"])
}

func (s *EnvFileTestSuite) TestReadDir_Errors() {
	s.Run("missing directory", func() {
		_, err := ReadDir(filepath.Join(s.tempDir, "nope"), false)
		s.Require().Error(err)
	})

	s.Run("not a directory", func() {
		path := s.write("file.env", "A=1\n")
		_, err := ReadDir(path, false)
		s.Require().ErrorIs(err, ErrNotDirectory)
	})

	s.Run("only local file while skipping local", func() {
		dir := filepath.Join(s.tempDir, "only-local")
		s.Require().NoError(os.MkdirAll(dir, 0o750))
		s.Require().NoError(os.WriteFile(filepath.Join(dir, LocalOverrideFile), []byte("A=1\n"), 0o600))

		_, err := ReadDir(dir, true)
		s.Require().ErrorIs(err, ErrNoEnvFiles)
	})
}
