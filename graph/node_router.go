package graph

// executeRouter runs a router node: a router performs no external
// call. It exists purely to compute which branch the graph should take
// next; the result is whatever the node's declared output_keys capture
// from its input (e.g. a `route` key copied or derived from upstream
// memory) and is read back by the edge evaluator's conditional guards.
// The core has no opinion on how a route is decided — that logic lives in
// the graph author's choice of input_keys/output_keys and guard
// expressions — so this dispatch simply forwards the node's declared
// inputs through as its declared outputs, letting the common output-key
// validation in executeNodeAttempt enforce the contract.
func executeRouter(node *NodeSpec, input map[string]any) nodeOutcome {
	out := make(map[string]any, len(node.OutputKeys))
	for _, k := range node.OutputKeys {
		if v, ok := input[k]; ok {
			out[k] = v
		}
	}
	return nodeOutcome{output: out, evidence: EvidenceConfirmed}
}
