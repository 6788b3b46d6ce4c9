package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// StoryParams are the free-form narrative parameters supplied at session
// start. They are opaque strings; Normalize substitutes defaults for empty
// values instead of rejecting them.
type StoryParams struct {
	Character string `json:"character"`
	Setting   string `json:"setting"`
	Topic     string `json:"topic"`
	Interests string `json:"interests,omitempty"`
	AgeGroup  string `json:"age_group,omitempty"`
}

const (
	defaultCharacter = "a young explorer"
	defaultSetting   = "a faraway land"
	defaultTopic     = "numbers"
	defaultAgeGroup  = "8-12"
)

// Normalize fills empty parameters with defaults.
func (p StoryParams) Normalize() StoryParams {
	if strings.TrimSpace(p.Character) == "" {
		p.Character = defaultCharacter
	}
	if strings.TrimSpace(p.Setting) == "" {
		p.Setting = defaultSetting
	}
	if strings.TrimSpace(p.Topic) == "" {
		p.Topic = defaultTopic
	}
	if strings.TrimSpace(p.AgeGroup) == "" {
		p.AgeGroup = defaultAgeGroup
	}
	return p
}

// AnswerRecord is one scored answer, appended per completed step.
type AnswerRecord struct {
	Question        string `json:"question"`
	SubmittedAnswer string `json:"submitted_answer"`
	CorrectAnswer   string `json:"correct_answer"`
	Correct         bool   `json:"correct"`
	Feedback        string `json:"feedback,omitempty"`
}

// Session is the durable state of one play-through. Step starts at 1 and is
// incremented once per progression; the session is finished once Step exceeds
// MaxSteps. Version backs the optimistic locking of the stores.
type Session struct {
	ID           uuid.UUID      `json:"id"`
	Params       StoryParams    `json:"params"`
	Step         int            `json:"step"`
	Score        int            `json:"score"`
	MaxSteps     int            `json:"max_steps"`
	CurrentScene *Scene         `json:"current_scene,omitempty"`
	Answers      []AnswerRecord `json:"answers"`
	History      []string       `json:"history"`
	Summary      string         `json:"summary,omitempty"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Finished reports whether the session has consumed all its steps.
func (s *Session) Finished() bool {
	return s.Step > s.MaxSteps
}

// Progress returns step/maxSteps clamped to [0, 1].
func (s *Session) Progress() float64 {
	if s.MaxSteps <= 0 {
		return 1
	}
	p := float64(s.Step) / float64(s.MaxSteps)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// Clone returns a deep copy. The service mutates a clone and persists it only
// after generation succeeds, so a failed progression leaves the stored state
// untouched.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.CurrentScene = s.CurrentScene.Clone()
	cp.Answers = append([]AnswerRecord(nil), s.Answers...)
	cp.History = append([]string(nil), s.History...)
	return &cp
}
