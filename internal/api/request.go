package api //nolint:revive // package name is intentional

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/thotran113254/mem0-rest/internal/memory"
)

// turns accepts either a list of {role, content} objects or a bare string,
// which is treated as a single user message.
type turns []memory.Turn

func (t *turns) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = turns{{Role: "user", Content: s}}
		return nil
	}
	var list []memory.Turn
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("messages must be a string or a list of {role, content}: %w", err)
	}
	*t = list
	return nil
}

type addRequest struct {
	Messages turns          `json:"messages"`
	UserID   string         `json:"user_id"`
	AgentID  string         `json:"agent_id"`
	RunID    string         `json:"run_id"`
	Metadata map[string]any `json:"metadata"`
	Filters  map[string]any `json:"filters"`
	Prompt   string         `json:"prompt"`
	Infer    *bool          `json:"infer"`
}

func (b addRequest) toDomain() memory.AddRequest {
	return memory.AddRequest{
		Messages: b.Messages,
		Scope:    memory.Scope{UserID: b.UserID, AgentID: b.AgentID, RunID: b.RunID},
		Metadata: b.Metadata,
		Filters:  b.Filters,
		Prompt:   b.Prompt,
		Infer:    b.Infer,
	}
}

type updateRequest struct {
	Data     string         `json:"data"`
	Metadata map[string]any `json:"metadata"`
}

type searchRequest struct {
	Query   string         `json:"query"`
	UserID  string         `json:"user_id"`
	AgentID string         `json:"agent_id"`
	RunID   string         `json:"run_id"`
	Limit   int            `json:"limit"`
	Filters map[string]any `json:"filters"`
}

func (b searchRequest) scope() memory.Scope {
	return memory.Scope{UserID: b.UserID, AgentID: b.AgentID, RunID: b.RunID}
}
