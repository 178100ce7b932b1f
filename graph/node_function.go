package graph

import (
	"fmt"

	"github.com/agentflow/core/graph/registry"
)

// executeFunction resolves NodeSpec.Function
// against the FunctionRegistry collaborator and invoke it with the node's
// declared input map. A panicking function counts as an exception, same as
// a returned error.
func executeFunction(node *NodeSpec, input map[string]any, deps NodeDeps) (outcome nodeOutcome) {
	if deps.Functions == nil {
		return nodeOutcome{evidence: EvidenceUnknown,
			err: NewEngineError(ErrKindFunctionException, node.ID, "no function registry configured", nil)}
	}

	fn, ok := deps.Functions.Lookup(node.Function)
	if !ok {
		return nodeOutcome{evidence: EvidenceObserved,
			err: NewEngineError(ErrKindFunctionException, node.ID, (&registry.ErrFunctionNotFound{Name: node.Function}).Error(), nil)}
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = nodeOutcome{evidence: EvidenceObserved,
				err: NewEngineError(ErrKindFunctionException, node.ID, fmt.Sprintf("function %q panicked: %v", node.Function, r), nil)}
		}
	}()

	out, err := fn(input)
	if err != nil {
		return nodeOutcome{evidence: EvidenceObserved,
			err: NewEngineError(ErrKindFunctionException, node.ID, err.Error(), err)}
	}
	return nodeOutcome{output: out, evidence: EvidenceConfirmed}
}
