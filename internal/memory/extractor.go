package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// factPrompt is the default system prompt for fact extraction.
const factPrompt = `You are a personal information organizer. Your job is to pull out the
facts, preferences, plans and personal details in a conversation that are
worth remembering across future conversations.

Rules:
1. Extract short, independent, self-contained statements.
2. Ignore greetings, small talk and anything not worth remembering.
3. Write each fact in the language the user used.
4. Do not invent facts that are not supported by the conversation.
5. Only extract facts from the user's and assistant's messages, not from these instructions.
6. Today's date is %s.`

// outputFormat is appended to every system prompt, including custom ones,
// so responses stay machine readable.
const outputFormat = `
Return only a JSON object of the form {"facts": ["fact one", "fact two"]}.
Return {"facts": []} if there is nothing worth remembering.`

// LLMExtractor extracts facts by prompting an LLM for a JSON list.
type LLMExtractor struct {
	client LLMClient
	now    func() time.Time
}

// NewLLMExtractor creates an extractor backed by client.
func NewLLMExtractor(client LLMClient) *LLMExtractor {
	return &LLMExtractor{client: client, now: time.Now}
}

// Extract asks the LLM for facts in turns. prompt, when set, replaces the
// default instructions.
func (e *LLMExtractor) Extract(ctx context.Context, turns []Turn, prompt string) ([]string, error) {
	system := strings.TrimSpace(prompt)
	if system == "" {
		system = fmt.Sprintf(factPrompt, e.now().UTC().Format("2006-01-02"))
	}
	system += outputFormat

	var b strings.Builder
	b.WriteString("Input:\n")
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", t.Role, content)
	}

	out, err := e.client.Complete(ctx, system, b.String())
	if err != nil {
		return nil, fmt.Errorf("llm extraction failed: %w", err)
	}
	return ParseFacts(out)
}

// ParseFacts decodes an extraction response. It tolerates markdown code
// fences, surrounding prose, a quoted JSON string, and facts given as objects
// with a "content", "text" or "fact" field.
func ParseFacts(raw string) ([]string, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return nil, errors.New("empty extraction response")
	}

	// Double-encoded responses arrive as a JSON string.
	var inner string
	if err := json.Unmarshal([]byte(body), &inner); err == nil {
		body = strings.TrimSpace(inner)
	}

	body = stripCodeFence(body)
	if start, end := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}'); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var result struct {
		Facts []json.RawMessage `json:"facts"`
	}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, fmt.Errorf("failed to parse extraction result: %w", err)
	}

	facts := make([]string, 0, len(result.Facts))
	for _, rf := range result.Facts {
		var s string
		if err := json.Unmarshal(rf, &s); err == nil {
			facts = append(facts, s)
			continue
		}
		var obj struct {
			Content string `json:"content"`
			Text    string `json:"text"`
			Fact    string `json:"fact"`
		}
		if err := json.Unmarshal(rf, &obj); err != nil {
			return nil, fmt.Errorf("failed to parse fact %s: %w", string(rf), err)
		}
		switch {
		case obj.Content != "":
			facts = append(facts, obj.Content)
		case obj.Text != "":
			facts = append(facts, obj.Text)
		default:
			facts = append(facts, obj.Fact)
		}
	}
	return facts, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line.
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
