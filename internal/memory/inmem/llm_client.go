package inmem

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
)

// RuleLLM simulates an extraction LLM for offline use and tests.
// Instead of calling a model it applies a deterministic rule: every sentence
// of every "user:" line in the prompt becomes one fact, and greetings are
// dropped. Its output uses the same JSON shape a real model is asked for.
type RuleLLM struct{}

// NewRuleLLM creates a RuleLLM.
func NewRuleLLM() *RuleLLM {
	return &RuleLLM{}
}

var smallTalk = map[string]bool{
	"hi": true, "hello": true, "hey": true, "thanks": true, "thank you": true,
	"ok": true, "okay": true, "bye": true, "how are you": true,
}

// Complete implements memory.LLMClient.
func (c *RuleLLM) Complete(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	facts := make([]string, 0)
	for _, line := range strings.Split(user, "\n") {
		content, ok := strings.CutPrefix(strings.TrimSpace(line), "user:")
		if !ok {
			continue
		}
		for _, sentence := range splitSentences(content) {
			key := strings.ToLower(strings.Trim(sentence, " !?.,"))
			if key == "" || smallTalk[key] {
				continue
			}
			facts = append(facts, sentence)
		}
	}

	out, err := json.Marshal(map[string][]string{"facts": facts})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func splitSentences(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == ';'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
