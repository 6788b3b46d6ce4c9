package generator

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
)

const sceneJSONContract = `Return the result as JSON with this exact structure:
{
    "scene_text": "the story text for this segment (2-4 sentences)",
    "image_ref": "a short description of what the scene should look like",
    "question": "a multiple-choice question for the reader",
    "choices": ["choice 1", "choice 2", "choice 3"],
    "correct_choice": "the exact text of the correct choice",
    "feedback": {"choice 1": "short feedback shown when this choice is picked"}
}
The correct_choice value MUST be copied verbatim from the choices list.
Do not include any explanation or text outside the JSON.`

const firstScenePromptTemplate = `You are a creative storyteller and educator. Write an engaging, age-appropriate story segment for readers aged %s in which the protagonist is %s and the setting is %s.
The story must be written in a lively narrative style, as if told by an expert narrator.

Weave the reader's interests into the narrative where natural: %s.

End the segment with a multiple-choice question about %s, tied to an obstacle or problem that appeared in the segment. The question must have three possible answers and exactly one of them must be correct.

%s`

const nextScenePromptTemplate = `You are a creative storyteller and educator continuing an interactive story for readers aged %s. The protagonist is %s, the setting is %s.

- If the reader's previous answer was correct, the protagonist overcomes an obstacle or advances successfully.
- If it was wrong, the protagonist meets a difficulty or detour, but the story continues in a constructive, motivating tone. Never end the story early because of a wrong answer.

Write the next segment (2-4 sentences), keeping the narrative style and setting consistent with the story so far. End the segment with a new multiple-choice question about %s (three choices, exactly one correct) that helps the protagonist overcome an obstacle or make progress.

%s`

const summaryPromptTemplate = `You are a supportive tutor. The interactive story about %s is over. Write a short closing summary for a reader aged %s that:
1. Celebrates the adventure of %s in %s.
2. States the final result: %d correct answers out of %d questions.
3. Reviews the questions the reader got wrong, explaining the underlying concept in simple terms.
4. Encourages further learning.
Write plain text only, no JSON and no markdown.`

// promptBuilder renders generation prompts and keeps the accumulated story
// history within a token budget.
type promptBuilder struct {
	budget   int
	encoding *tiktoken.Tiktoken
}

func newPromptBuilder(budget int) *promptBuilder {
	if budget <= 0 {
		budget = 2000
	}
	// cl100k_base is close enough for budgeting regardless of provider.
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &promptBuilder{budget: budget, encoding: enc}
}

func (b *promptBuilder) countTokens(text string) int {
	if b.encoding == nil {
		// Rough fallback estimate when the tokenizer data is unavailable.
		return len(text)/4 + 1
	}
	return len(b.encoding.Encode(text, nil, nil))
}

// historyWindow returns the newest suffix of history that fits the token
// budget, preserving chronological order.
func (b *promptBuilder) historyWindow(history []string) []string {
	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		total += b.countTokens(history[i])
		if total > b.budget {
			break
		}
		start = i
	}
	return history[start:]
}

// buildFirstScenePrompt renders the system prompt for the opening scene.
func (b *promptBuilder) buildFirstScenePrompt(params models.StoryParams) string {
	interests := params.Interests
	if strings.TrimSpace(interests) == "" {
		interests = "adventure"
	}
	return fmt.Sprintf(firstScenePromptTemplate,
		params.AgeGroup, params.Character, params.Setting, interests, params.Topic, sceneJSONContract)
}

// buildNextScenePrompt renders the system prompt and the user input carrying
// the story so far and the reader's last answer.
func (b *promptBuilder) buildNextScenePrompt(sctx SceneContext) (string, string) {
	system := fmt.Sprintf(nextScenePromptTemplate,
		sctx.Params.AgeGroup, sctx.Params.Character, sctx.Params.Setting, sctx.Params.Topic, sceneJSONContract)

	var sb strings.Builder
	window := b.historyWindow(sctx.History)
	if len(window) > 0 {
		sb.WriteString("The story so far:\n")
		for _, chapter := range window {
			sb.WriteString(chapter)
			sb.WriteString("\n\n")
		}
	}
	if sctx.LastAnswer != nil {
		fmt.Fprintf(&sb, "The previous question was: %q\n", sctx.LastAnswer.Question)
		fmt.Fprintf(&sb, "The reader answered: %q\n", sctx.LastAnswer.SubmittedAnswer)
		if sctx.LastAnswer.Correct {
			sb.WriteString("That answer was correct.\n")
		} else {
			fmt.Fprintf(&sb, "That answer was wrong; the correct answer was %q.\n", sctx.LastAnswer.CorrectAnswer)
		}
	}
	return system, sb.String()
}

// buildSummaryPrompt renders the system prompt and the user input with the
// full answer record for the final summary.
func (b *promptBuilder) buildSummaryPrompt(sctx SummaryContext) (string, string) {
	system := fmt.Sprintf(summaryPromptTemplate,
		sctx.Params.Topic, sctx.Params.AgeGroup, sctx.Params.Character, sctx.Params.Setting,
		sctx.Score, len(sctx.Answers))

	var sb strings.Builder
	window := b.historyWindow(sctx.History)
	if len(window) > 0 {
		sb.WriteString("The story so far:\n")
		for _, chapter := range window {
			sb.WriteString(chapter)
			sb.WriteString("\n\n")
		}
	}
	if len(sctx.Answers) > 0 {
		sb.WriteString("The reader's answers:\n")
		for i, a := range sctx.Answers {
			verdict := "correct"
			if !a.Correct {
				verdict = fmt.Sprintf("wrong, the correct answer was %q", a.CorrectAnswer)
			}
			fmt.Fprintf(&sb, "%d. %s — answered %q (%s)\n", i+1, a.Question, a.SubmittedAnswer, verdict)
		}
	}
	return system, sb.String()
}
