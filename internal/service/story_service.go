package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/generator"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/messaging"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/repository"
)

// StoryService drives educational story sessions: it starts them, advances
// them one step per submitted answer, and closes them with a summary.
type StoryService interface {
	StartStory(ctx context.Context, params models.StoryParams) (*models.Session, error)
	ProgressStory(ctx context.Context, sessionID uuid.UUID, answer string) (*models.Session, string, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
}

type storyService struct {
	repo      repository.SessionRepository
	generator generator.SceneGenerator
	publisher messaging.SessionEventPublisher // optional, may be nil
	maxSteps  int
	logger    *zap.Logger
}

var _ StoryService = (*storyService)(nil)

// NewStoryService creates a StoryService. publisher may be nil, in which
// case no session events are emitted.
func NewStoryService(
	repo repository.SessionRepository,
	gen generator.SceneGenerator,
	publisher messaging.SessionEventPublisher,
	maxSteps int,
	logger *zap.Logger,
) StoryService {
	if maxSteps < 1 {
		maxSteps = 1
	}
	return &storyService{
		repo:      repo,
		generator: gen,
		publisher: publisher,
		maxSteps:  maxSteps,
		logger:    logger,
	}
}

// StartStory generates the opening scene and persists a fresh session.
// Nothing is persisted when generation fails.
func (s *storyService) StartStory(ctx context.Context, params models.StoryParams) (*models.Session, error) {
	params = params.Normalize()

	session := &models.Session{
		ID:       uuid.New(),
		Params:   params,
		Step:     1,
		Score:    0,
		MaxSteps: s.maxSteps,
	}

	scene, err := s.generator.GenerateScene(ctx, generator.SceneContext{
		SessionID: session.ID.String(),
		Params:    params,
		Step:      session.Step,
	})
	if err != nil {
		s.logger.Error("Failed to generate opening scene", zap.Error(err))
		return nil, fmt.Errorf("start story: %w", err)
	}
	session.CurrentScene = scene
	session.History = append(session.History, scene.Text)

	if err := s.repo.Create(ctx, session); err != nil {
		s.logger.Error("Failed to persist new session", zap.String("session_id", session.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("start story: %w", err)
	}

	s.logger.Info("Story session started",
		zap.String("session_id", session.ID.String()),
		zap.String("topic", params.Topic),
		zap.Int("max_steps", session.MaxSteps))
	return session, nil
}

// ProgressStory scores the submitted answer against the current scene's
// question, advances the session one step, and generates either the next
// scene or, past the last step, the closing summary. The returned string is
// the feedback for the submitted answer, empty when no answer was scored.
//
// All mutations happen on a clone; the stored session is replaced only
// after both generation and the optimistic-locked update succeed.
func (s *storyService) ProgressStory(ctx context.Context, sessionID uuid.UUID, answer string) (*models.Session, string, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if session.Finished() {
		return nil, "", models.ErrSessionFinished
	}

	next := session.Clone()

	feedback := ""
	var lastAnswer *models.AnswerRecord
	if next.CurrentScene != nil && next.CurrentScene.Question != nil && strings.TrimSpace(answer) != "" {
		q := next.CurrentScene.Question
		record := models.AnswerRecord{
			Question:        q.Prompt,
			SubmittedAnswer: strings.TrimSpace(answer),
			CorrectAnswer:   q.CorrectChoice,
			Correct:         models.AnswersEqual(answer, q.CorrectChoice),
		}
		if record.Correct {
			next.Score++
		}
		// Only model-authored feedback is recorded; the fallback below is
		// presentation text for this response, not session state.
		record.Feedback = q.FeedbackFor(answer)
		feedback = record.Feedback
		if feedback == "" {
			if record.Correct {
				feedback = "Correct!"
			} else {
				feedback = fmt.Sprintf("Not quite. The correct answer was %q.", q.CorrectChoice)
			}
		}
		next.Answers = append(next.Answers, record)
		lastAnswer = &record
	}

	next.Step++

	if next.Finished() {
		summary, err := s.generator.GenerateSummary(ctx, generator.SummaryContext{
			SessionID: next.ID.String(),
			Params:    next.Params,
			History:   next.History,
			Answers:   next.Answers,
			Score:     next.Score,
			MaxSteps:  next.MaxSteps,
		})
		if err != nil {
			s.logger.Error("Failed to generate closing summary",
				zap.String("session_id", next.ID.String()), zap.Error(err))
			return nil, "", fmt.Errorf("progress story: %w", err)
		}
		next.Summary = summary
		next.CurrentScene = nil
	} else {
		scene, err := s.generator.GenerateScene(ctx, generator.SceneContext{
			SessionID:  next.ID.String(),
			Params:     next.Params,
			History:    next.History,
			LastAnswer: lastAnswer,
			Step:       next.Step,
		})
		if err != nil {
			s.logger.Error("Failed to generate next scene",
				zap.String("session_id", next.ID.String()),
				zap.Int("step", next.Step),
				zap.Error(err))
			return nil, "", fmt.Errorf("progress story: %w", err)
		}
		next.CurrentScene = scene
		next.History = append(next.History, scene.Text)
	}

	if err := s.repo.Update(ctx, next); err != nil {
		s.logger.Warn("Failed to update session",
			zap.String("session_id", next.ID.String()), zap.Error(err))
		return nil, "", err
	}

	if next.Finished() {
		s.publishFinished(ctx, next)
	}

	s.logger.Info("Story session advanced",
		zap.String("session_id", next.ID.String()),
		zap.Int("step", next.Step),
		zap.Int("score", next.Score),
		zap.Bool("finished", next.Finished()))
	return next, feedback, nil
}

func (s *storyService) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	return s.repo.GetByID(ctx, sessionID)
}

func (s *storyService) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		s.logger.Error("Failed to delete session", zap.String("session_id", sessionID.String()), zap.Error(err))
		return err
	}
	s.logger.Info("Story session deleted", zap.String("session_id", sessionID.String()))
	return nil
}

// publishFinished emits a session.finished event. Failures are logged and
// swallowed: eventing never blocks the player-facing flow.
func (s *storyService) publishFinished(ctx context.Context, session *models.Session) {
	if s.publisher == nil {
		return
	}
	event := messaging.SessionFinishedEvent{
		SessionID:  session.ID.String(),
		Topic:      session.Params.Topic,
		Score:      session.Score,
		MaxSteps:   session.MaxSteps,
		FinishedAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishSessionFinished(ctx, event); err != nil {
		s.logger.Warn("Failed to publish session.finished event",
			zap.String("session_id", session.ID.String()), zap.Error(err))
	}
}
