package generator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
)

// SceneContext carries everything needed to generate the next story scene.
type SceneContext struct {
	SessionID  string
	Params     models.StoryParams
	History    []string
	LastAnswer *models.AnswerRecord
	Step       int
}

// SummaryContext carries everything needed to generate the closing summary.
type SummaryContext struct {
	SessionID string
	Params    models.StoryParams
	History   []string
	Answers   []models.AnswerRecord
	Score     int
	MaxSteps  int
}

// SceneGenerator produces validated story content from an AI backend.
type SceneGenerator interface {
	GenerateScene(ctx context.Context, sctx SceneContext) (*models.Scene, error)
	GenerateSummary(ctx context.Context, sctx SummaryContext) (string, error)
}

type aiSceneGenerator struct {
	client  AIClient
	prompts *promptBuilder
	params  GenerationParams
	logger  *zap.Logger
}

var _ SceneGenerator = (*aiSceneGenerator)(nil)

// NewSceneGenerator builds a SceneGenerator on top of an AIClient.
func NewSceneGenerator(client AIClient, historyTokenBudget int, params GenerationParams, logger *zap.Logger) SceneGenerator {
	return &aiSceneGenerator{
		client:  client,
		prompts: newPromptBuilder(historyTokenBudget),
		params:  params,
		logger:  logger,
	}
}

func (g *aiSceneGenerator) GenerateScene(ctx context.Context, sctx SceneContext) (*models.Scene, error) {
	var system, user string
	if sctx.Step <= 1 && len(sctx.History) == 0 {
		system = g.prompts.buildFirstScenePrompt(sctx.Params)
	} else {
		system, user = g.prompts.buildNextScenePrompt(sctx)
	}

	raw, usage, err := g.client.GenerateText(ctx, sctx.SessionID, system, user, g.params)
	if err != nil {
		return nil, fmt.Errorf("generate scene: %w", err)
	}

	scene, err := ParseScene(raw)
	if err != nil {
		g.logger.Warn("Model returned invalid scene content",
			zap.String("session_id", sctx.SessionID),
			zap.Int("step", sctx.Step),
			zap.Int("total_tokens", usage.TotalTokens),
			zap.Error(err))
		return nil, err
	}
	if scene.Question == nil {
		g.logger.Warn("Model returned a scene without a question",
			zap.String("session_id", sctx.SessionID),
			zap.Int("step", sctx.Step))
		return nil, fmt.Errorf("%w: scene has no question", models.ErrInvalidSceneContent)
	}

	g.logger.Debug("Scene generated",
		zap.String("session_id", sctx.SessionID),
		zap.Int("step", sctx.Step),
		zap.Int("choices", len(scene.Question.Choices)),
		zap.Int("total_tokens", usage.TotalTokens))
	return scene, nil
}

func (g *aiSceneGenerator) GenerateSummary(ctx context.Context, sctx SummaryContext) (string, error) {
	system, user := g.prompts.buildSummaryPrompt(sctx)

	raw, usage, err := g.client.GenerateText(ctx, sctx.SessionID, system, user, g.params)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	summary, err := ParseSummary(raw)
	if err != nil {
		g.logger.Warn("Model returned invalid summary",
			zap.String("session_id", sctx.SessionID),
			zap.Error(err))
		return "", err
	}

	g.logger.Debug("Summary generated",
		zap.String("session_id", sctx.SessionID),
		zap.Int("score", sctx.Score),
		zap.Int("total_tokens", usage.TotalTokens))
	return summary, nil
}
