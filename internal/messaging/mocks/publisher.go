package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/messaging"
)

// SessionEventPublisher is a mock type for the SessionEventPublisher type
type SessionEventPublisher struct {
	mock.Mock
}

func (m *SessionEventPublisher) PublishSessionFinished(ctx context.Context, event messaging.SessionFinishedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var _ messaging.SessionEventPublisher = (*SessionEventPublisher)(nil)
