package models

import "strings"

// Question is a single multiple-choice question embedded in a scene.
// CorrectChoice must always be one of Choices; the generator parser enforces
// this before a Question ever reaches a session.
type Question struct {
	Prompt        string            `json:"prompt"`
	Choices       []string          `json:"choices"`
	CorrectChoice string            `json:"correct_choice"`
	Feedback      map[string]string `json:"feedback,omitempty"` // per-choice feedback text, optional
}

// FeedbackFor returns the feedback text recorded for the given choice, if any.
// Lookup is case-insensitive, matching the scoring rule.
func (q *Question) FeedbackFor(choice string) string {
	for k, v := range q.Feedback {
		if AnswersEqual(k, choice) {
			return v
		}
	}
	return ""
}

// Scene is one unit of generated narrative plus at most one question.
type Scene struct {
	Text     string    `json:"text"`
	ImageRef string    `json:"image_ref,omitempty"` // scene illustration hint, not rendered here
	Question *Question `json:"question,omitempty"`
}

// Clone returns a deep copy of the scene.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Question != nil {
		q := *s.Question
		q.Choices = append([]string(nil), s.Question.Choices...)
		if s.Question.Feedback != nil {
			q.Feedback = make(map[string]string, len(s.Question.Feedback))
			for k, v := range s.Question.Feedback {
				q.Feedback[k] = v
			}
		}
		cp.Question = &q
	}
	return &cp
}

// AnswersEqual reports whether two answers match under the scoring rule:
// exact comparison after trimming whitespace and case folding. No substring
// heuristics and no partial credit.
func AnswersEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
