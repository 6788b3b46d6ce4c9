package handler

import "github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"

// StartStoryRequest configures a new story session. All fields are optional;
// blanks fall back to defaults.
type StartStoryRequest struct {
	Character string `json:"character" validate:"max=200"`
	Setting   string `json:"setting" validate:"max=200"`
	Topic     string `json:"topic" validate:"max=200"`
	Interests string `json:"interests" validate:"max=500"`
	AgeGroup  string `json:"ageGroup" validate:"max=50"`
}

// ProgressStoryRequest advances an existing session. Answer may be empty, in
// which case the story moves on without scoring.
type ProgressStoryRequest struct {
	SessionID string `json:"sessionId" validate:"required,uuid"`
	Answer    string `json:"answer" validate:"max=500"`
}

// StoryStateResponse is the session view returned by every story endpoint.
type StoryStateResponse struct {
	SessionID string   `json:"sessionId"`
	SceneText string   `json:"sceneText,omitempty"`
	ImageRef  string   `json:"imageRef,omitempty"`
	Question  string   `json:"question,omitempty"`
	Choices   []string `json:"choices,omitempty"`
	Step      int      `json:"step"`
	MaxSteps  int      `json:"maxSteps"`
	Progress  float64  `json:"progress"`
	Score     int      `json:"score"`
	Finished  bool     `json:"finished"`
	Feedback  string   `json:"feedback,omitempty"`
	Summary   string   `json:"summary,omitempty"`
}

// APIError is the standardized error response body.
type APIError struct {
	Message string `json:"message"`
}

func toStoryStateResponse(session *models.Session, feedback string) StoryStateResponse {
	resp := StoryStateResponse{
		SessionID: session.ID.String(),
		Step:      session.Step,
		MaxSteps:  session.MaxSteps,
		Progress:  session.Progress(),
		Score:     session.Score,
		Finished:  session.Finished(),
		Feedback:  feedback,
		Summary:   session.Summary,
	}
	if session.CurrentScene != nil {
		resp.SceneText = session.CurrentScene.Text
		resp.ImageRef = session.CurrentScene.ImageRef
		if q := session.CurrentScene.Question; q != nil {
			resp.Question = q.Prompt
			resp.Choices = q.Choices
		}
	}
	return resp
}
