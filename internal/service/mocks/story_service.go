package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/service"
)

// Mock StoryService
type StoryService struct {
	mock.Mock
}

func (m *StoryService) StartStory(ctx context.Context, params models.StoryParams) (*models.Session, error) {
	args := m.Called(ctx, params)
	sess, _ := args.Get(0).(*models.Session)
	return sess, args.Error(1)
}

func (m *StoryService) ProgressStory(ctx context.Context, sessionID uuid.UUID, answer string) (*models.Session, string, error) {
	args := m.Called(ctx, sessionID, answer)
	sess, _ := args.Get(0).(*models.Session)
	return sess, args.String(1), args.Error(2)
}

func (m *StoryService) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	args := m.Called(ctx, sessionID)
	sess, _ := args.Get(0).(*models.Session)
	return sess, args.Error(1)
}

func (m *StoryService) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

var _ service.StoryService = (*StoryService)(nil)
