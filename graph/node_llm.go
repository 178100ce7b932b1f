package graph

import (
	"context"
	"fmt"

	"github.com/agentflow/core/graph/model"
)

// resolveGenerationParams applies the node > graph-default precedence for
// model, max_tokens, and temperature shared by both LLM node kinds.
func resolveGenerationParams(node *NodeSpec, g *GraphSpec) (modelName string, maxTokens int, temperature float64) {
	modelName = node.Model
	if modelName == "" {
		modelName = g.DefaultModel
	}
	maxTokens = g.MaxTokens
	if node.MaxTokens != nil {
		maxTokens = *node.MaxTokens
	}
	if node.Temperature != nil {
		temperature = *node.Temperature
	}
	return modelName, maxTokens, temperature
}

// parseAndValidateStructuredOutput implements the shared tail of both LLM
// node kinds: lenient JSON extraction, declared-output-key presence check,
// and the full-string hallucination guard.
func parseAndValidateStructuredOutput(node *NodeSpec, raw string) (map[string]any, *EngineError) {
	if tok, hit := scanForbiddenTokens(raw, node.ForbiddenTokens); hit {
		return nil, NewEngineError(ErrKindLLMHallucinationDetected, node.ID,
			fmt.Sprintf("output contains forbidden token %q", tok), nil)
	}

	parsed, err := extractStructuredOutput(raw)
	if err != nil {
		return nil, NewEngineError(ErrKindLLMInvalidJSON, node.ID, err.Error(), err)
	}

	for _, k := range node.OutputKeys {
		if _, ok := parsed[k]; !ok {
			return nil, NewEngineError(ErrKindLLMMissingOutput, node.ID,
				fmt.Sprintf("LLM output missing declared key %q", k), nil)
		}
	}
	return parsed, nil
}

// executeLLMGenerate runs a single-shot structured-output LLM call with no
// tool use: one request, one parsed response.
func executeLLMGenerate(ctx context.Context, node *NodeSpec, g *GraphSpec, input map[string]any, deps NodeDeps) nodeOutcome {
	if deps.LLM == nil {
		return nodeOutcome{evidence: EvidenceUnknown,
			err: NewEngineError(ErrKindLLMProviderError, node.ID, "no LLM provider configured", nil)}
	}

	modelName, maxTokens, temperature := resolveGenerationParams(node, g)
	prompt := CanonicalPrompt(node.SystemPrompt, input)

	req := model.Request{
		Messages:    []model.Message{{Role: model.RoleUser, Content: prompt}},
		System:      node.SystemPrompt,
		Model:       modelName,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	out, err := deps.LLM.Chat(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nodeOutcome{evidence: EvidenceUnknown,
				err: NewEngineError(ErrKindLLMTimeout, node.ID, "LLM call timed out", err)}
		}
		return nodeOutcome{evidence: EvidenceUnknown,
			err: NewEngineError(ErrKindLLMProviderError, node.ID, err.Error(), err)}
	}

	parsed, verr := parseAndValidateStructuredOutput(node, out.Text)
	if verr != nil {
		return nodeOutcome{evidence: EvidenceObserved, tokensIn: out.TokensIn, tokensOut: out.TokensOut, err: verr}
	}

	return nodeOutcome{output: parsed, evidence: EvidenceObserved, tokensIn: out.TokensIn, tokensOut: out.TokensOut}
}

// executeLLMToolUse drives the tool-calling loop for an llm_tool_use node:
// the LLM may emit a sequence of tool calls before its final structured
// response. Each call is checked
// against the node's allow-list and invoked through the ToolExecutor under
// the resolved per-tool timeout; the result is fed back into the
// conversation for the next turn.
func executeLLMToolUse(ctx context.Context, node *NodeSpec, g *GraphSpec, input map[string]any, deps NodeDeps) nodeOutcome {
	if deps.LLM == nil {
		return nodeOutcome{evidence: EvidenceUnknown,
			err: NewEngineError(ErrKindLLMProviderError, node.ID, "no LLM provider configured", nil)}
	}

	modelName, maxTokens, temperature := resolveGenerationParams(node, g)
	prompt := CanonicalPrompt(node.SystemPrompt, input)

	tools := make([]model.ToolSpec, 0, len(node.Tools))
	for _, id := range node.Tools {
		tools = append(tools, model.ToolSpec{Name: id})
	}

	messages := []model.Message{{Role: model.RoleUser, Content: prompt}}
	totalToolCalls := 0
	var totalTokensIn, totalTokensOut int

	timeout := effectiveToolTimeout(node.ToolTimeout, deps.DefaultToolTimeout)

	const maxToolTurns = 25 // hard ceiling against a non-terminating tool-call loop
	for turn := 0; turn < maxToolTurns; turn++ {
		out, err := deps.LLM.Chat(ctx, model.Request{
			Messages:    messages,
			Tools:       tools,
			System:      node.SystemPrompt,
			Model:       modelName,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nodeOutcome{evidence: EvidenceUnknown, tokensIn: totalTokensIn, tokensOut: totalTokensOut,
					err: NewEngineError(ErrKindLLMTimeout, node.ID, "LLM call timed out", err)}
			}
			return nodeOutcome{evidence: EvidenceUnknown, tokensIn: totalTokensIn, tokensOut: totalTokensOut,
				err: NewEngineError(ErrKindLLMProviderError, node.ID, err.Error(), err)}
		}
		totalTokensIn += out.TokensIn
		totalTokensOut += out.TokensOut

		if len(out.ToolCalls) == 0 {
			parsed, verr := parseAndValidateStructuredOutput(node, out.Text)
			if verr != nil {
				return nodeOutcome{evidence: EvidenceObserved, tokensIn: totalTokensIn, tokensOut: totalTokensOut,
					toolCalls: totalToolCalls, err: verr}
			}
			return nodeOutcome{output: parsed, evidence: EvidenceObserved, tokensIn: totalTokensIn,
				tokensOut: totalTokensOut, toolCalls: totalToolCalls}
		}

		messages = append(messages, model.Message{Role: model.RoleAssistant, Content: out.Text})

		for _, call := range out.ToolCalls {
			if !allowedTool(node.Tools, call.Name) {
				return nodeOutcome{evidence: EvidenceObserved, tokensIn: totalTokensIn, tokensOut: totalTokensOut,
					toolCalls: totalToolCalls,
					err:       NewEngineError(ErrKindToolNotPermitted, node.ID, "tool not permitted: "+call.Name, nil)}
			}
			if deps.Tools == nil {
				return nodeOutcome{evidence: EvidenceUnknown, tokensIn: totalTokensIn, tokensOut: totalTokensOut,
					toolCalls: totalToolCalls,
					err:       NewEngineError(ErrKindToolError, node.ID, "no tool executor configured", nil)}
			}

			timedOut, toolErr := func() (bool, error) {
				var callErr error
				to, err := withTimeout(ctx, timeout, func(tctx context.Context) error {
					result, err := deps.Tools.Execute(tctx, call.Name, call.Input, int(timeout.Seconds()))
					if err != nil {
						callErr = err
						return err
					}
					resultText := CanonicalPrompt("", result)
					messages = append(messages, model.Message{
						Role: model.RoleTool, Content: resultText, ToolCallID: call.ID,
					})
					return nil
				})
				if callErr != nil {
					return to, callErr
				}
				return to, err
			}()
			totalToolCalls++

			if toolErr != nil {
				if timedOut {
					return nodeOutcome{evidence: EvidenceUnknown, tokensIn: totalTokensIn, tokensOut: totalTokensOut,
						toolCalls: totalToolCalls,
						err:       NewEngineError(ErrKindToolTimeout, node.ID, "tool call timed out: "+call.Name, toolErr)}
				}
				return nodeOutcome{evidence: EvidenceObserved, tokensIn: totalTokensIn, tokensOut: totalTokensOut,
					toolCalls: totalToolCalls,
					err:       NewEngineError(ErrKindToolError, node.ID, toolErr.Error(), toolErr)}
			}
		}
	}

	return nodeOutcome{evidence: EvidenceUnknown, tokensIn: totalTokensIn, tokensOut: totalTokensOut,
		toolCalls: totalToolCalls,
		err:       NewEngineError(ErrKindToolError, node.ID, "tool-use node exceeded maximum tool-call turns", nil)}
}

func allowedTool(allowed []string, name string) bool {
	for _, a := range allowed {
		if a == name {
			return true
		}
	}
	return false
}
