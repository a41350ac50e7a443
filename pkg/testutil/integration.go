package testutil

import (
	"context"
	"os"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// IntegrationTestSuite provides a context, a logger and a scratch directory
// that is recreated for every test.
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()
}

// SetupTest creates a fresh scratch directory
func (s *IntegrationTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "shapecsv-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownTest removes the scratch directory
func (s *IntegrationTestSuite) TearDownTest() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()
	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// Context returns the test context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the scratch directory of the current test
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}

// Logger returns a logger writing to the current test's output
func (s *IntegrationTestSuite) Logger() *zap.Logger {
	return zaptest.NewLogger(s.T())
}

// WriteFile writes content under the scratch directory and returns its path
func (s *IntegrationTestSuite) WriteFile(name, content string) string {
	return WriteFile(s.T(), s.tempDir, name, content)
}
