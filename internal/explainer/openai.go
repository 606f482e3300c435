package explainer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 1024
	limitMaxOutputTokens int64 = 4096

	sectionSeparator = "---SECTION_SEPARATOR---"

	systemPrompt = "You are a knowledgeable Islamic scholar providing" +
		" accessible explanations of Qur'an verses."
)

// OpenAIExplainer calls OpenAI's Responses API to produce grouped
// verse explanations.
type OpenAIExplainer struct {
	client openai.Client
}

// NewOpenAIExplainer builds a new explainer instance.
func NewOpenAIExplainer(apiKey string) (*OpenAIExplainer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	return &OpenAIExplainer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// Explain requests transliteration, translation, and combined
// commentary for the whole batch in one call.
func (e *OpenAIExplainer) Explain(
	ctx context.Context,
	refs []VerseRef,
) (Explanation, error) {
	if len(refs) == 0 {
		return Explanation{}, errors.New("batch is empty")
	}

	prompt := buildPrompt(refs)

	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := e.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           openai.ChatModelGPT5Mini2025_08_07,
			ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(systemPrompt),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(prompt),
			},
		})
		if err != nil {
			return Explanation{}, fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens *= 2
				if maxOutputTokens > limitMaxOutputTokens {
					maxOutputTokens = limitMaxOutputTokens
				}
				continue
			}
			return Explanation{}, fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		text := strings.TrimSpace(resp.OutputText())
		if text == "" {
			return Explanation{}, fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}

		return parseSections(text), nil
	}
}

func buildPrompt(refs []VerseRef) string {
	var b strings.Builder

	b.WriteString("You are providing brief, accessible explanations of" +
		" Qur'an verses for daily reflection.\n\n")

	for i, ref := range refs {
		fmt.Fprintf(&b, "VERSE %d:\nSurah: %d - %s\nVerse: %d\n\n",
			i+1, ref.Surah, ref.SurahName, ref.Verse)
	}

	fmt.Fprintf(&b, `Provide the content (not per-verse, but grouped by type),
with the three parts separated by the exact line %s:

1 - TRANSLITERATIONS:
Provide transliterations for all %d verses, in a paragraph separated by period.

2 - ENGLISH TRANSLATIONS:
Provide English translations for all %d verses, in a paragraph separated by period.

3 - CONTEXT & UNDERSTANDING:
Provide context and understanding for all %d verses combined (50 words total):
  - the core message and wisdom connecting these verses
  - spiritual and practical daily life lessons
  - simple language suitable for a chat message
  - respectful, uplifting tone
  - do NOT repeat the verse texts inside this explanation

IMPORTANT: Do not use markdown styling like ## or ***. Just send normal text.

Keep everything concise, gentle, spiritually beneficial, and theologically accurate.`,
		sectionSeparator, len(refs), len(refs), len(refs))

	return b.String()
}

// parseSections splits the model output on the separator token. A
// response that does not split into exactly three parts becomes the
// degraded single-block variant.
func parseSections(text string) Explanation {
	parts := strings.Split(text, sectionSeparator)

	sections := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			sections = append(sections, part)
		}
	}

	if len(sections) != 3 {
		return Explanation{Raw: text, Degraded: true}
	}

	return Explanation{
		Transliterations: sections[0],
		Translations:     sections[1],
		Commentary:       sections[2],
	}
}
