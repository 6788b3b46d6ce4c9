package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/generator"
	generatorMocks "github.com/giacomomaggiore/gdc-blackswan-edutech/internal/generator/mocks"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/messaging"
	messagingMocks "github.com/giacomomaggiore/gdc-blackswan-edutech/internal/messaging/mocks"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/repository"
	repositoryMocks "github.com/giacomomaggiore/gdc-blackswan-edutech/internal/repository/mocks"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/service"
)

func sceneWithQuestion(text, prompt, correct string) *models.Scene {
	return &models.Scene{
		Text: text,
		Question: &models.Question{
			Prompt:        prompt,
			Choices:       []string{correct, "wrong one", "another wrong one"},
			CorrectChoice: correct,
			Feedback:      map[string]string{correct: "Well done!"},
		},
	}
}

func TestStartStory(t *testing.T) {
	ctx := context.Background()
	params := models.StoryParams{Character: "Luna", Setting: "a misty forest", Topic: "addition", AgeGroup: "8-12"}

	t.Run("persists session with opening scene", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository()
		mockGen := new(generatorMocks.MockSceneGenerator)
		mockGen.On("GenerateScene", ctx, mock.MatchedBy(func(sctx generator.SceneContext) bool {
			return sctx.Step == 1 && len(sctx.History) == 0 && sctx.LastAnswer == nil
		})).Return(sceneWithQuestion("Luna sets off.", "What is 2 + 2?", "4"), nil).Once()

		svc := service.NewStoryService(repo, mockGen, nil, 3, zap.NewNop())
		session, err := svc.StartStory(ctx, params)
		assert.NoError(t, err)
		assert.Equal(t, 1, session.Step)
		assert.Equal(t, 0, session.Score)
		assert.Equal(t, 3, session.MaxSteps)
		assert.False(t, session.Finished())
		assert.Equal(t, []string{"Luna sets off."}, session.History)

		stored, err := repo.GetByID(ctx, session.ID)
		assert.NoError(t, err)
		assert.Equal(t, session.ID, stored.ID)
		mockGen.AssertExpectations(t)
	})

	t.Run("applies parameter defaults", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository()
		mockGen := new(generatorMocks.MockSceneGenerator)
		mockGen.On("GenerateScene", ctx, mock.MatchedBy(func(sctx generator.SceneContext) bool {
			return sctx.Params.Character == "a young explorer" && sctx.Params.Topic == "numbers"
		})).Return(sceneWithQuestion("An explorer sets off.", "q", "a"), nil).Once()

		svc := service.NewStoryService(repo, mockGen, nil, 3, zap.NewNop())
		session, err := svc.StartStory(ctx, models.StoryParams{})
		assert.NoError(t, err)
		assert.Equal(t, "a young explorer", session.Params.Character)
		mockGen.AssertExpectations(t)
	})

	t.Run("nothing persisted on generation failure", func(t *testing.T) {
		mockRepo := new(repositoryMocks.SessionRepository)
		mockGen := new(generatorMocks.MockSceneGenerator)
		mockGen.On("GenerateScene", ctx, mock.Anything).
			Return(nil, models.ErrGenerationFailed).Once()

		svc := service.NewStoryService(mockRepo, mockGen, nil, 3, zap.NewNop())
		_, err := svc.StartStory(ctx, params)
		assert.True(t, errors.Is(err, models.ErrGenerationFailed))
		mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

// TestProgressStory_FullSession walks a session through all steps.
func TestProgressStory_FullSession(t *testing.T) {
	ctx := context.Background()
	params := models.StoryParams{Character: "Luna", Setting: "a misty forest", Topic: "addition", AgeGroup: "8-12"}

	repo := repository.NewMemorySessionRepository()
	mockGen := new(generatorMocks.MockSceneGenerator)
	mockPublisher := new(messagingMocks.SessionEventPublisher)

	mockGen.On("GenerateScene", ctx, mock.MatchedBy(func(sctx generator.SceneContext) bool {
		return sctx.Step == 1
	})).Return(sceneWithQuestion("Scene one.", "What is 2 + 2?", "4"), nil).Once()
	mockGen.On("GenerateScene", ctx, mock.MatchedBy(func(sctx generator.SceneContext) bool {
		return sctx.Step == 2 && sctx.LastAnswer != nil && sctx.LastAnswer.Correct
	})).Return(sceneWithQuestion("Scene two.", "What is 3 + 3?", "6"), nil).Once()
	mockGen.On("GenerateScene", ctx, mock.MatchedBy(func(sctx generator.SceneContext) bool {
		return sctx.Step == 3 && sctx.LastAnswer != nil && !sctx.LastAnswer.Correct
	})).Return(sceneWithQuestion("Scene three.", "What is 5 + 5?", "10"), nil).Once()
	mockGen.On("GenerateSummary", ctx, mock.MatchedBy(func(sctx generator.SummaryContext) bool {
		return sctx.Score == 2 && len(sctx.Answers) == 3
	})).Return("The end. You got 2 out of 3.", nil).Once()
	mockPublisher.On("PublishSessionFinished", ctx, mock.MatchedBy(func(event messaging.SessionFinishedEvent) bool {
		return event.Score == 2 && event.MaxSteps == 3
	})).Return(nil).Once()

	svc := service.NewStoryService(repo, mockGen, mockPublisher, 3, zap.NewNop())

	session, err := svc.StartStory(ctx, params)
	assert.NoError(t, err)

	// Step 1 -> 2: correct answer, case and whitespace insensitive.
	session, feedback, err := svc.ProgressStory(ctx, session.ID, "  4 ")
	assert.NoError(t, err)
	assert.Equal(t, 2, session.Step)
	assert.Equal(t, 1, session.Score)
	assert.Equal(t, "Well done!", feedback)
	assert.Equal(t, []string{"Scene one.", "Scene two."}, session.History)

	// Step 2 -> 3: wrong answer, story continues.
	session, feedback, err = svc.ProgressStory(ctx, session.ID, "7")
	assert.NoError(t, err)
	assert.Equal(t, 3, session.Step)
	assert.Equal(t, 1, session.Score)
	assert.Contains(t, feedback, `"6"`)
	assert.False(t, session.Finished())

	// The record keeps only model-authored feedback: the first answer had a
	// feedback entry, the second got a rendered fallback that is not stored.
	assert.Equal(t, "Well done!", session.Answers[0].Feedback)
	assert.Empty(t, session.Answers[1].Feedback)

	// Step 3 -> 4: past the last step, summary replaces the scene.
	session, _, err = svc.ProgressStory(ctx, session.ID, "10")
	assert.NoError(t, err)
	assert.Equal(t, 4, session.Step)
	assert.Equal(t, 2, session.Score)
	assert.True(t, session.Finished())
	assert.Nil(t, session.CurrentScene)
	assert.Equal(t, "The end. You got 2 out of 3.", session.Summary)
	assert.Len(t, session.Answers, 3)

	// Finished sessions reject further progress.
	_, _, err = svc.ProgressStory(ctx, session.ID, "anything")
	assert.True(t, errors.Is(err, models.ErrSessionFinished))

	mockGen.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestProgressStory(t *testing.T) {
	ctx := context.Background()
	params := models.StoryParams{Topic: "addition"}

	startSession := func(t *testing.T, mockGen *generatorMocks.MockSceneGenerator, repo repository.SessionRepository, maxSteps int) *models.Session {
		t.Helper()
		mockGen.On("GenerateScene", ctx, mock.MatchedBy(func(sctx generator.SceneContext) bool {
			return sctx.Step == 1
		})).Return(sceneWithQuestion("Scene one.", "What is 2 + 2?", "4"), nil).Once()
		svc := service.NewStoryService(repo, mockGen, nil, maxSteps, zap.NewNop())
		session, err := svc.StartStory(ctx, params)
		assert.NoError(t, err)
		return session
	}

	t.Run("unknown session", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository()
		svc := service.NewStoryService(repo, new(generatorMocks.MockSceneGenerator), nil, 3, zap.NewNop())
		_, _, err := svc.ProgressStory(ctx, uuid.New(), "4")
		assert.True(t, errors.Is(err, models.ErrSessionNotFound))
	})

	t.Run("empty answer advances without scoring", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository()
		mockGen := new(generatorMocks.MockSceneGenerator)
		session := startSession(t, mockGen, repo, 3)

		mockGen.On("GenerateScene", ctx, mock.MatchedBy(func(sctx generator.SceneContext) bool {
			return sctx.Step == 2 && sctx.LastAnswer == nil
		})).Return(sceneWithQuestion("Scene two.", "q2", "a"), nil).Once()

		svc := service.NewStoryService(repo, mockGen, nil, 3, zap.NewNop())
		session, feedback, err := svc.ProgressStory(ctx, session.ID, "   ")
		assert.NoError(t, err)
		assert.Equal(t, 2, session.Step)
		assert.Equal(t, 0, session.Score)
		assert.Empty(t, feedback)
		assert.Empty(t, session.Answers)
		mockGen.AssertExpectations(t)
	})

	t.Run("generation failure leaves the session untouched", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository()
		mockGen := new(generatorMocks.MockSceneGenerator)
		session := startSession(t, mockGen, repo, 3)

		mockGen.On("GenerateScene", ctx, mock.MatchedBy(func(sctx generator.SceneContext) bool {
			return sctx.Step == 2
		})).Return(nil, models.ErrGenerationFailed).Once()

		svc := service.NewStoryService(repo, mockGen, nil, 3, zap.NewNop())
		_, _, err := svc.ProgressStory(ctx, session.ID, "4")
		assert.True(t, errors.Is(err, models.ErrGenerationFailed))

		stored, err := repo.GetByID(ctx, session.ID)
		assert.NoError(t, err)
		assert.Equal(t, 1, stored.Step)
		assert.Equal(t, 0, stored.Score)
		assert.Empty(t, stored.Answers)
	})

	t.Run("invalid scene content leaves the session untouched", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository()
		mockGen := new(generatorMocks.MockSceneGenerator)
		session := startSession(t, mockGen, repo, 3)

		mockGen.On("GenerateScene", ctx, mock.Anything).
			Return(nil, models.ErrInvalidSceneContent).Once()

		svc := service.NewStoryService(repo, mockGen, nil, 3, zap.NewNop())
		_, _, err := svc.ProgressStory(ctx, session.ID, "4")
		assert.True(t, errors.Is(err, models.ErrInvalidSceneContent))

		stored, _ := repo.GetByID(ctx, session.ID)
		assert.Equal(t, 1, stored.Step)
	})

	t.Run("version conflict surfaces as concurrent modification", func(t *testing.T) {
		mockRepo := new(repositoryMocks.SessionRepository)
		mockGen := new(generatorMocks.MockSceneGenerator)

		session := &models.Session{
			ID:           uuid.New(),
			Params:       params,
			Step:         1,
			MaxSteps:     3,
			CurrentScene: sceneWithQuestion("Scene one.", "q", "4"),
			History:      []string{"Scene one."},
			Version:      1,
		}
		mockRepo.On("GetByID", ctx, session.ID).Return(session, nil).Once()
		mockGen.On("GenerateScene", ctx, mock.Anything).
			Return(sceneWithQuestion("Scene two.", "q2", "a"), nil).Once()
		mockRepo.On("Update", ctx, mock.Anything).
			Return(models.ErrConcurrentModification).Once()

		svc := service.NewStoryService(mockRepo, mockGen, nil, 3, zap.NewNop())
		_, _, err := svc.ProgressStory(ctx, session.ID, "4")
		assert.True(t, errors.Is(err, models.ErrConcurrentModification))
		mockRepo.AssertExpectations(t)
	})

	t.Run("publish failure does not fail the request", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository()
		mockGen := new(generatorMocks.MockSceneGenerator)
		mockPublisher := new(messagingMocks.SessionEventPublisher)
		session := startSession(t, mockGen, repo, 1)

		mockGen.On("GenerateSummary", ctx, mock.Anything).Return("The end.", nil).Once()
		mockPublisher.On("PublishSessionFinished", ctx, mock.Anything).
			Return(errors.New("broker down")).Once()

		svc := service.NewStoryService(repo, mockGen, mockPublisher, 1, zap.NewNop())
		finished, _, err := svc.ProgressStory(ctx, session.ID, "4")
		assert.NoError(t, err)
		assert.True(t, finished.Finished())
		mockPublisher.AssertExpectations(t)
	})
}

func TestGetAndDeleteSession(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySessionRepository()
	mockGen := new(generatorMocks.MockSceneGenerator)
	mockGen.On("GenerateScene", ctx, mock.Anything).
		Return(sceneWithQuestion("Scene one.", "q", "a"), nil).Once()

	svc := service.NewStoryService(repo, mockGen, nil, 3, zap.NewNop())
	session, err := svc.StartStory(ctx, models.StoryParams{})
	assert.NoError(t, err)

	got, err := svc.GetSession(ctx, session.ID)
	assert.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	assert.NoError(t, svc.DeleteSession(ctx, session.ID))
	_, err = svc.GetSession(ctx, session.ID)
	assert.True(t, errors.Is(err, models.ErrSessionNotFound))

	// Deleting an unknown session is not an error.
	assert.NoError(t, svc.DeleteSession(ctx, uuid.New()))
}
