package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/service"
)

// StoryHandler exposes the story engine over HTTP.
type StoryHandler struct {
	service service.StoryService
	logger  *zap.Logger
}

func NewStoryHandler(s service.StoryService, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		service: s,
		logger:  logger.Named("StoryHandler"),
	}
}

// RegisterRoutes registers the story endpoints.
func (h *StoryHandler) RegisterRoutes(e *echo.Echo) {
	storyGroup := e.Group("/api/story")
	{
		storyGroup.POST("/start", h.startStory)
		storyGroup.POST("/progress", h.progressStory)
		storyGroup.GET("/:id", h.getSession)
		storyGroup.DELETE("/:id", h.deleteSession)
	}
}

func (h *StoryHandler) startStory(c echo.Context) error {
	var req StartStoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	session, err := h.service.StartStory(c.Request().Context(), models.StoryParams{
		Character: req.Character,
		Setting:   req.Setting,
		Topic:     req.Topic,
		Interests: req.Interests,
		AgeGroup:  req.AgeGroup,
	})
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toStoryStateResponse(session, ""))
}

func (h *StoryHandler) progressStory(c echo.Context) error {
	var req ProgressStoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid session id"})
	}

	session, feedback, err := h.service.ProgressStory(c.Request().Context(), sessionID, req.Answer)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toStoryStateResponse(session, feedback))
}

func (h *StoryHandler) getSession(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid session id"})
	}

	session, err := h.service.GetSession(c.Request().Context(), sessionID)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toStoryStateResponse(session, ""))
}

func (h *StoryHandler) deleteSession(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid session id"})
	}

	if err := h.service.DeleteSession(c.Request().Context(), sessionID); err != nil {
		return h.handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleServiceError maps domain errors to HTTP status codes.
func (h *StoryHandler) handleServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, APIError{Message: "Session not found"})
	case errors.Is(err, models.ErrSessionFinished):
		return c.JSON(http.StatusConflict, APIError{Message: "Session is already finished"})
	case errors.Is(err, models.ErrConcurrentModification):
		return c.JSON(http.StatusConflict, APIError{Message: "Session was modified concurrently, retry the request"})
	case errors.Is(err, models.ErrGenerationFailed), errors.Is(err, models.ErrInvalidSceneContent):
		return c.JSON(http.StatusBadGateway, APIError{Message: "Story generation failed, try again"})
	default:
		h.logger.Error("Unhandled service error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, APIError{Message: "Internal server error"})
	}
}
