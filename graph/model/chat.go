// Package model defines the LLM provider collaborator interface consumed by
// the graph engine's node execution kernel, plus a mock implementation for
// tests. Concrete vendor adapters (anthropic/, openai/, google/) live in
// subpackages and are never imported by the graph core.
package model

import "context"

// ChatModel abstracts the differences between LLM providers (OpenAI,
// Anthropic, Google, local models) behind one call shape.
// Implementations should:
// - Convert Request into the provider's wire format.
// - Parse the provider response back into ChatOut, including token counts
// and stop reason when the provider exposes them.
// - Respect context cancellation and timeouts.
// Example:
//	out, err := m.Chat(ctx, model.Request{
//	 System: "You are a helpful assistant.",
//	 Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
//	})
type ChatModel interface {
	// Chat sends a request to the LLM and returns its response. tools, when
	// non-empty, enables the provider's native tool-calling; the LLM may
	// answer with text, tool calls, or both.
	Chat(ctx context.Context, req Request) (ChatOut, error)
}

// Streamer is implemented by ChatModels that can emit incremental chunks
// instead of (or before) a full Chat response. Node kinds with
// streaming_enabled use this when the configured model supports it; the
// executor aggregates chunks into the same ChatOut contract.
type Streamer interface {
	StreamChat(ctx context.Context, req Request) (<-chan StreamChunk, error)
}

// StreamChunk is one increment of a streamed completion.
type StreamChunk struct {
	Content    string
	TokensIn   int
	TokensOut  int
	IsComplete bool
	StopReason string
	Err        error
}

// Request carries everything a node needs to ask an LLM for a completion:
// the conversation, the system prompt, and the per-call generation
// parameters resolved from NodeSpec/GraphSpec defaults.
type Request struct {
	Messages    []Message
	Tools       []ToolSpec
	System      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Message represents a single turn in an LLM conversation.
type Message struct {
	// Role identifies the message sender; use the Role* constants.
	Role string
	// Content contains the message text. May be empty for tool-result turns.
	Content string
	// ToolCallID, when set, ties a tool-result message back to the ToolCall
	// that produced it (provider-specific conventions may ignore it).
	ToolCallID string
}

// Standard role constants for LLM conversations.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolSpec describes a tool an LLM may call. Schema follows JSON Schema and
// is optional for tools with no parameters.
type ToolSpec struct {
	Name        string
	Description string
	Schema map[string]interface{}
}

// ChatOut is an LLM's response to a Request.
type ChatOut struct {
	// Text is the generated response. May be empty when ToolCalls is set.
	Text string
	// ToolCalls are tools the LLM wants invoked. Empty for a final answer.
	ToolCalls []ToolCall
	// TokensIn/TokensOut are the provider's reported usage for this call,
	// when available; zero otherwise.
	TokensIn  int
	TokensOut int
	// StopReason is the provider's terminal-condition label (e.g.
	// "end_turn", "max_tokens", "tool_use").
	StopReason string
}

// ToolCall is a single tool invocation requested by the LLM.
type ToolCall struct {
	ID   string
	Name string
	Input map[string]interface{}
}
