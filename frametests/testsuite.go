package frametests

import (
	"context"

	"github.com/pitabwire/util"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/tenantkit/frametests/definition"
)

// FrameBaseTestSuite starts the containers an integration suite depends on and stops
// them once it completes.
type FrameBaseTestSuite struct {
	suite.Suite
	resources []definition.TestResource

	InitResourceFunc func(ctx context.Context) []definition.TestResource
}

// SetupSuite initialises the test environment for the test suite.
func (s *FrameBaseTestSuite) SetupSuite() {
	t := s.T()
	ctx := t.Context()
	log := util.Log(ctx)

	require.NotNil(t, s.InitResourceFunc, "InitResourceFunc is required")
	s.resources = s.InitResourceFunc(ctx)

	for _, dep := range s.resources {
		log.WithField("image", dep.Name()).Info("Setting up container...")
		err := dep.Setup(ctx)
		require.NoError(t, err, "could not setup tests")
	}
}

func (s *FrameBaseTestSuite) Resources() []definition.TestResource {
	return s.resources
}

// TearDownSuite cleans up resources after all tests are completed.
func (s *FrameBaseTestSuite) TearDownSuite() {
	ctx := context.WithoutCancel(s.T().Context())
	for _, dep := range s.resources {
		dep.Cleanup(ctx)
	}
}
