package llm

import "github.com/hubenschmidt/go-orchestra/core"

type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

type CompletionKind string

const (
	KindText      CompletionKind = "text"
	KindToolCalls CompletionKind = "tool_calls"
)

type CompletionRequest struct {
	System     string
	Messages   []core.Message
	Tools      []core.ToolSchema
	ToolChoice ToolChoice
}

// Completion is either text (Kind == KindText) or a set of tool calls to
// resolve before asking again.
type Completion struct {
	Kind         CompletionKind  `json:"kind"`
	Content      string          `json:"content"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	Model        string          `json:"model"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Usage        Usage           `json:"usage,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (c *Completion) HasToolCalls() bool {
	return c.Kind == KindToolCalls && len(c.ToolCalls) > 0
}
