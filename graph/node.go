package graph

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentflow/core/graph/model"
	"github.com/agentflow/core/graph/registry"
	"github.com/agentflow/core/graph/tool"
)

// NodeDeps bundles the external collaborators the node kernel needs. A zero
// value is valid for router nodes, which never reach a collaborator.
type NodeDeps struct {
	LLM       model.ChatModel
	Tools     tool.Executor
	Functions registry.FunctionRegistry

	// DefaultToolTimeout is the engine-level fallback used when a node
	// declares no ToolTimeout.
	DefaultToolTimeout time.Duration
}

// nodeOutcome is the kind-specific result a dispatch function hands back to
// executeNodeAttempt for contract validation and Attempt assembly.
type nodeOutcome struct {
	output    map[string]any
	evidence  EvidenceType
	tokensIn  int
	tokensOut int
	toolCalls int
	err       *EngineError
}

// executeNodeAttempt runs exactly one attempt of a node: read declared
// inputs, dispatch on kind, validate declared outputs, and return the
// finished Attempt. Retries across attempts are the
// executor's main loop's responsibility, not this function's.
func executeNodeAttempt(ctx context.Context, node *NodeSpec, g *GraphSpec, mem *Memory, runID, retryOf string, deps NodeDeps) Attempt {
	started := time.Now().UTC()
	attempt := Attempt{
		AttemptID: uuid.NewString(),
		NodeID:    node.ID,
		RunID:     runID,
		RetryOf:   retryOf,
	}

	input, err := mem.Read(node.InputKeys)
	if err != nil {
		return finishAttempt(attempt, started, input, nil, StatusFailed, EvidenceObserved,
			NewEngineError(ErrKindContractMissingInput, node.ID, err.Error(), err), 0, 0, 0)
	}
	attempt.InputSnapshot = input

	var outcome nodeOutcome
	switch node.Kind {
	case KindLLMGenerate:
		outcome = executeLLMGenerate(ctx, node, g, input, deps)
	case KindLLMToolUse:
		outcome = executeLLMToolUse(ctx, node, g, input, deps)
	case KindRouter:
		outcome = executeRouter(node, input)
	case KindFunction:
		outcome = executeFunction(node, input, deps)
	default:
		outcome = nodeOutcome{
			evidence: EvidenceUnknown,
			err:      NewEngineError(ErrKindGraphInvalid, node.ID, "unknown node kind: "+string(node.Kind), nil),
		}
	}

	if outcome.err != nil {
		return finishAttempt(attempt, started, input, outcome.output, StatusFailed, outcome.evidence,
			outcome.err, outcome.tokensIn, outcome.tokensOut, outcome.toolCalls)
	}

	cleaned, undeclared := validateOutputKeys(outcome.output, node.OutputKeys)
	if len(undeclared) > 0 {
		ee := NewEngineError(ErrKindContractUndeclaredOutput, node.ID,
			"node produced undeclared output keys: "+joinStrings(undeclared), nil)
		return finishAttempt(attempt, started, input, cleaned, StatusFailed, EvidenceObserved,
			ee, outcome.tokensIn, outcome.tokensOut, outcome.toolCalls)
	}

	mem.Write(cleaned)
	return finishAttempt(attempt, started, input, cleaned, StatusSuccess, outcome.evidence,
		nil, outcome.tokensIn, outcome.tokensOut, outcome.toolCalls)
}

func finishAttempt(a Attempt, started time.Time, input, output map[string]any, status AttemptStatus, evidence EvidenceType, ee *EngineError, tokensIn, tokensOut, toolCalls int) Attempt {
	a.StartedAt = started
	a.FinishedAt = time.Now().UTC()
	a.InputSnapshot = input
	a.Output = output
	a.Status = status
	a.Evidence = evidence
	a.TokensIn = tokensIn
	a.TokensOut = tokensOut
	a.ToolCalls = toolCalls
	if ee != nil {
		a.Error = &AttemptError{Kind: ee.Kind, Message: ee.Message}
	}
	return a
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
