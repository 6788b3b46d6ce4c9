package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/handler"
	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
	serviceMocks "github.com/giacomomaggiore/gdc-blackswan-edutech/internal/service/mocks"
)

func newTestServer(svc *serviceMocks.StoryService) *echo.Echo {
	e := echo.New()
	e.Validator = handler.NewValidator()
	handler.NewStoryHandler(svc, zap.NewNop()).RegisterRoutes(e)
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func testSession(step, score, maxSteps int) *models.Session {
	return &models.Session{
		ID:       uuid.New(),
		Step:     step,
		Score:    score,
		MaxSteps: maxSteps,
		CurrentScene: &models.Scene{
			Text: "Luna sets off.",
			Question: &models.Question{
				Prompt:        "What is 2 + 2?",
				Choices:       []string{"3", "4", "5"},
				CorrectChoice: "4",
			},
		},
	}
}

func TestStartStoryEndpoint(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(serviceMocks.StoryService)
		svc.On("StartStory", mock.Anything, models.StoryParams{Character: "Luna", Topic: "addition"}).
			Return(testSession(1, 0, 3), nil).Once()

		rec := doJSON(newTestServer(svc), http.MethodPost, "/api/story/start",
			`{"character": "Luna", "topic": "addition"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp handler.StoryStateResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Luna sets off.", resp.SceneText)
		assert.Equal(t, "What is 2 + 2?", resp.Question)
		assert.Len(t, resp.Choices, 3)
		assert.InDelta(t, 1.0/3.0, resp.Progress, 1e-9)
		assert.False(t, resp.Finished)
		svc.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := new(serviceMocks.StoryService)
		rec := doJSON(newTestServer(svc), http.MethodPost, "/api/story/start", `{"character": 5}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("generation failure maps to 502", func(t *testing.T) {
		svc := new(serviceMocks.StoryService)
		svc.On("StartStory", mock.Anything, mock.Anything).
			Return(nil, models.ErrGenerationFailed).Once()

		rec := doJSON(newTestServer(svc), http.MethodPost, "/api/story/start", `{}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestProgressStoryEndpoint(t *testing.T) {
	sessionID := uuid.New()

	t.Run("ok with feedback", func(t *testing.T) {
		svc := new(serviceMocks.StoryService)
		session := testSession(2, 1, 3)
		svc.On("ProgressStory", mock.Anything, sessionID, "4").
			Return(session, "Well done!", nil).Once()

		rec := doJSON(newTestServer(svc), http.MethodPost, "/api/story/progress",
			`{"sessionId": "`+sessionID.String()+`", "answer": "4"}`)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp handler.StoryStateResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Well done!", resp.Feedback)
		assert.Equal(t, 2, resp.Step)
		assert.Equal(t, 1, resp.Score)
		svc.AssertExpectations(t)
	})

	t.Run("finished session returns summary", func(t *testing.T) {
		svc := new(serviceMocks.StoryService)
		session := &models.Session{ID: sessionID, Step: 4, Score: 2, MaxSteps: 3, Summary: "The end."}
		svc.On("ProgressStory", mock.Anything, sessionID, "10").
			Return(session, "Correct!", nil).Once()

		rec := doJSON(newTestServer(svc), http.MethodPost, "/api/story/progress",
			`{"sessionId": "`+sessionID.String()+`", "answer": "10"}`)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp handler.StoryStateResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Finished)
		assert.Equal(t, "The end.", resp.Summary)
		assert.Empty(t, resp.SceneText)
		assert.InDelta(t, 1.0, resp.Progress, 1e-9)
	})

	t.Run("missing session id fails validation", func(t *testing.T) {
		svc := new(serviceMocks.StoryService)
		rec := doJSON(newTestServer(svc), http.MethodPost, "/api/story/progress", `{"answer": "4"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "ProgressStory", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown session maps to 404", func(t *testing.T) {
		svc := new(serviceMocks.StoryService)
		svc.On("ProgressStory", mock.Anything, sessionID, "4").
			Return(nil, "", models.ErrSessionNotFound).Once()

		rec := doJSON(newTestServer(svc), http.MethodPost, "/api/story/progress",
			`{"sessionId": "`+sessionID.String()+`", "answer": "4"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("finished session maps to 409", func(t *testing.T) {
		svc := new(serviceMocks.StoryService)
		svc.On("ProgressStory", mock.Anything, sessionID, "4").
			Return(nil, "", models.ErrSessionFinished).Once()

		rec := doJSON(newTestServer(svc), http.MethodPost, "/api/story/progress",
			`{"sessionId": "`+sessionID.String()+`", "answer": "4"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("concurrent modification maps to 409", func(t *testing.T) {
		svc := new(serviceMocks.StoryService)
		svc.On("ProgressStory", mock.Anything, sessionID, "4").
			Return(nil, "", models.ErrConcurrentModification).Once()

		rec := doJSON(newTestServer(svc), http.MethodPost, "/api/story/progress",
			`{"sessionId": "`+sessionID.String()+`", "answer": "4"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestGetSessionEndpoint(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc := new(serviceMocks.StoryService)
		session := testSession(2, 1, 3)
		svc.On("GetSession", mock.Anything, session.ID).Return(session, nil).Once()

		rec := doJSON(newTestServer(svc), http.MethodGet, "/api/story/"+session.ID.String(), "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := new(serviceMocks.StoryService)
		rec := doJSON(newTestServer(svc), http.MethodGet, "/api/story/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(serviceMocks.StoryService)
		id := uuid.New()
		svc.On("GetSession", mock.Anything, id).Return(nil, models.ErrSessionNotFound).Once()

		rec := doJSON(newTestServer(svc), http.MethodGet, "/api/story/"+id.String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeleteSessionEndpoint(t *testing.T) {
	svc := new(serviceMocks.StoryService)
	id := uuid.New()
	svc.On("DeleteSession", mock.Anything, id).Return(nil).Once()

	rec := doJSON(newTestServer(svc), http.MethodDelete, "/api/story/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}
