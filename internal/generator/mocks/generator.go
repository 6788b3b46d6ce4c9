package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/generator"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
)

// MockSceneGenerator is a mock type for the SceneGenerator type
type MockSceneGenerator struct {
	mock.Mock
}

func (m *MockSceneGenerator) GenerateScene(ctx context.Context, sctx generator.SceneContext) (*models.Scene, error) {
	args := m.Called(ctx, sctx)
	var scene *models.Scene
	if args.Get(0) != nil {
		scene = args.Get(0).(*models.Scene)
	}
	return scene, args.Error(1)
}

func (m *MockSceneGenerator) GenerateSummary(ctx context.Context, sctx generator.SummaryContext) (string, error) {
	args := m.Called(ctx, sctx)
	return args.String(0), args.Error(1)
}

var _ generator.SceneGenerator = (*MockSceneGenerator)(nil)

// MockAIClient is a mock type for the AIClient type
type MockAIClient struct {
	mock.Mock
}

func (m *MockAIClient) GenerateText(ctx context.Context, sessionID, systemPrompt, userInput string, params generator.GenerationParams) (string, generator.UsageInfo, error) {
	args := m.Called(ctx, sessionID, systemPrompt, userInput, params)
	var usage generator.UsageInfo
	if args.Get(1) != nil {
		usage = args.Get(1).(generator.UsageInfo)
	}
	return args.String(0), usage, args.Error(2)
}

var _ generator.AIClient = (*MockAIClient)(nil)
