package domain

// Role tags a conversation message.
type Role string

const (
	// RoleSystem is the fixed instruction seeded once per thread.
	RoleSystem Role = "system"
	// RoleHuman is a user turn.
	RoleHuman Role = "human"
	// RoleAI is an assistant turn (content, tool call, or both).
	RoleAI Role = "ai"
	// RoleTool is a retrieval result fed back to the assistant.
	RoleTool Role = "tool"
)

// ToolCall is a structured request from the chat model to run a named tool.
type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Query string `json:"query"`
	K     int    `json:"k"`
}

// Message is one entry in a thread's append-only history.
type Message struct {
	Role     Role      `json:"role"`
	Content  string    `json:"content"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
	// ToolCallID links a tool message back to the AI message that requested it.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Decision is the chat model's verdict for one DECIDE step: either final
// content (ToolCall nil) or a single tool invocation to execute first.
type Decision struct {
	Content  string
	ToolCall *ToolCall
}

// Answer is what a completed turn returns to the caller.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
