package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	reply  string
	err    error
	system string
	user   string
}

func (s *scriptedLLM) Complete(ctx context.Context, system, user string) (string, error) {
	s.system, s.user = system, user
	return s.reply, s.err
}

func TestParseFacts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain object", `{"facts": ["Likes tea", "Lives in Hue"]}`, []string{"Likes tea", "Lives in Hue"}},
		{"code fence", "```json\n{\"facts\": [\"Likes tea\"]}\n```", []string{"Likes tea"}},
		{"surrounding prose", "Here you go: {\"facts\": [\"Likes tea\"]} hope that helps", []string{"Likes tea"}},
		{"quoted json", `"{\"facts\": [\"Likes tea\"]}"`, []string{"Likes tea"}},
		{"object facts", `{"facts": [{"content": "Likes tea", "category": "preference"}, {"text": "Owns a dog"}]}`, []string{"Likes tea", "Owns a dog"}},
		{"empty list", `{"facts": []}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFacts(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFacts_RejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not json at all", `{"facts": [1, 2]}`} {
		_, err := ParseFacts(raw)
		assert.Error(t, err, "input %q", raw)
	}
}

func TestLLMExtractor_BuildsPromptFromTurns(t *testing.T) {
	llm := &scriptedLLM{reply: `{"facts": ["Likes tea"]}`}
	e := NewLLMExtractor(llm)
	e.now = func() time.Time { return time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC) }

	facts, err := e.Extract(context.Background(), []Turn{
		{Role: "user", Content: "I like tea"},
		{Role: "assistant", Content: "  "},
		{Role: "assistant", Content: "Great choice"},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Likes tea"}, facts)

	assert.Contains(t, llm.system, "2024-05-06")
	assert.Contains(t, llm.system, `{"facts"`)
	assert.Equal(t, "Input:\nuser: I like tea\nassistant: Great choice\n", llm.user)
}

func TestLLMExtractor_CustomPromptReplacesDefault(t *testing.T) {
	llm := &scriptedLLM{reply: `{"facts": []}`}
	e := NewLLMExtractor(llm)

	_, err := e.Extract(context.Background(), []Turn{{Role: "user", Content: "x"}}, "Only extract food preferences.")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(llm.system, "Only extract food preferences."))
	assert.NotContains(t, llm.system, "personal information organizer")
}

func TestLLMExtractor_PropagatesClientError(t *testing.T) {
	e := NewLLMExtractor(&scriptedLLM{err: errors.New("quota exceeded")})

	_, err := e.Extract(context.Background(), []Turn{{Role: "user", Content: "x"}}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
