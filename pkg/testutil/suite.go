package testutil

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Suite provides base functionality for suites that need a logger, a
// context and scratch files.
type Suite struct {
	suite.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	tempDir string
	logger  *zap.Logger
}

// SetupSuite runs before all tests in the suite
func (s *Suite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), time.Minute)

	tempDir, err := os.MkdirTemp("", "reservoir-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// SetupTest gives every test a logger bound to its own output
func (s *Suite) SetupTest() {
	s.logger = zaptest.NewLogger(s.T())
}

// TearDownSuite runs after all tests in the suite
func (s *Suite) TearDownSuite() {
	s.cancel()
	if s.tempDir != "" {
		_ = os.RemoveAll(s.tempDir)
	}
}

// Context returns the suite context
func (s *Suite) Context() context.Context {
	return s.ctx
}

// Logger returns the per-test logger
func (s *Suite) Logger() *zap.Logger {
	return s.logger
}

// TempDir returns the suite scratch directory
func (s *Suite) TempDir() string {
	return s.tempDir
}

// CreateTempFile writes content to name inside the scratch directory
func (s *Suite) CreateTempFile(name string, content []byte) string {
	path := filepath.Join(s.tempDir, name)
	require.NoError(s.T(), os.WriteFile(path, content, 0o600))
	return path
}
