package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
)

// sceneResponse is the JSON contract the model is instructed to follow.
type sceneResponse struct {
	SceneText     string            `json:"scene_text"`
	ImageRef      string            `json:"image_ref"`
	Question      string            `json:"question"`
	Choices       []string          `json:"choices"`
	CorrectChoice string            `json:"correct_choice"`
	Feedback      map[string]string `json:"feedback"`
}

// decodeStrict decodes JSON data into out, rejecting unknown fields.
func decodeStrict(data []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// stripCodeFences removes a surrounding markdown code fence, which models
// tend to add even when told not to.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// ParseScene validates raw model output and converts it into a Scene.
// Any violation of the contract is wrapped in ErrInvalidSceneContent.
func ParseScene(raw string) (*models.Scene, error) {
	cleaned := stripCodeFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", models.ErrInvalidSceneContent)
	}

	var resp sceneResponse
	if err := decodeStrict([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidSceneContent, err)
	}

	if strings.TrimSpace(resp.SceneText) == "" {
		return nil, fmt.Errorf("%w: scene_text is empty", models.ErrInvalidSceneContent)
	}

	scene := &models.Scene{
		Text:     strings.TrimSpace(resp.SceneText),
		ImageRef: strings.TrimSpace(resp.ImageRef),
	}

	hasQuestion := strings.TrimSpace(resp.Question) != "" || len(resp.Choices) > 0 || strings.TrimSpace(resp.CorrectChoice) != ""
	if !hasQuestion {
		return scene, nil
	}

	if strings.TrimSpace(resp.Question) == "" {
		return nil, fmt.Errorf("%w: question is empty", models.ErrInvalidSceneContent)
	}
	choices := make([]string, 0, len(resp.Choices))
	for i, choice := range resp.Choices {
		choice = strings.TrimSpace(choice)
		if choice == "" {
			return nil, fmt.Errorf("%w: choice %d is empty", models.ErrInvalidSceneContent, i+1)
		}
		choices = append(choices, choice)
	}
	if len(choices) < 2 {
		return nil, fmt.Errorf("%w: got %d choices, need at least 2", models.ErrInvalidSceneContent, len(choices))
	}

	correct := strings.TrimSpace(resp.CorrectChoice)
	if correct == "" {
		return nil, fmt.Errorf("%w: correct_choice is empty", models.ErrInvalidSceneContent)
	}
	found := false
	for _, choice := range choices {
		if models.AnswersEqual(choice, correct) {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: correct_choice %q is not among the choices", models.ErrInvalidSceneContent, correct)
	}

	scene.Question = &models.Question{
		Prompt:        strings.TrimSpace(resp.Question),
		Choices:       choices,
		CorrectChoice: correct,
		Feedback:      resp.Feedback,
	}
	return scene, nil
}

// ParseSummary validates raw model output for the closing summary.
func ParseSummary(raw string) (string, error) {
	summary := stripCodeFences(raw)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", models.ErrInvalidSceneContent)
	}
	return summary, nil
}
