// Package graph provides the core graph execution engine for the agent runtime.
// The engine walks a declarative GraphSpec: a directed graph of typed
// NodeSpecs connected by EdgeSpecs, evaluated against a Goal. Unlike a
// generic state-machine library, node state here is a flat
// map[string]any (see Memory) so that graphs can be authored as data
// (loaded from YAML, a database, or generated by an evolution agent)
// rather than compiled as Go code.
package graph

import (
	"fmt"
	"sort"
)

// NodeKind tags the four node kinds the engine knows how to dispatch.
type NodeKind string

const (
	// KindLLMGenerate produces a structured JSON object from an LLM completion.
	KindLLMGenerate NodeKind = "llm_generate"

	// KindLLMToolUse lets the LLM call tools from the node's allowed set before
	// producing a final structured response.
	KindLLMToolUse NodeKind = "llm_tool_use"

	// KindRouter performs no external call; it only writes a routing decision
	// to shared memory for the edge evaluator to consume.
	KindRouter NodeKind = "router"

	// KindFunction invokes a callable resolved from the FunctionRegistry.
	KindFunction NodeKind = "function"
)

// SuccessCriterion is one weighted, measurable condition a Goal is judged
// against. Scoring criteria into a pass/fail or weighted verdict is left to
// an external evaluator; the core only carries the declaration.
type SuccessCriterion struct {
	ID          string  `yaml:"id" json:"id"`
	Description string  `yaml:"description" json:"description"`
	Metric      string  `yaml:"metric" json:"metric"`
	Target      string  `yaml:"target" json:"target"`
	Weight      float64 `yaml:"weight" json:"weight"` // not required to sum to 1 across criteria
}

// ConstraintKind distinguishes constraints whose violation fails a run from
// those that are merely advisory.
type ConstraintKind string

const (
	ConstraintHard ConstraintKind = "hard"
	ConstraintSoft ConstraintKind = "soft"
)

// Constraint is a named rule a run must (hard) or should (soft) respect.
type Constraint struct {
	ID          string         `yaml:"id" json:"id"`
	Description string         `yaml:"description" json:"description"`
	Kind        ConstraintKind `yaml:"kind" json:"kind"`
	Category    string         `yaml:"category" json:"category"`
}

// Goal is the immutable specification of what a run must achieve. Goals are
// built once and referenced by value for the lifetime of a run; the engine
// never mutates one.
type Goal struct {
	ID              string             `yaml:"id" json:"id"`
	Name            string             `yaml:"name" json:"name"`
	Description     string             `yaml:"description" json:"description"`
	SuccessCriteria []SuccessCriterion `yaml:"success_criteria" json:"success_criteria"`
	Constraints     []Constraint       `yaml:"constraints" json:"constraints"`
	Context         map[string]any     `yaml:"context" json:"context"`
}

// NodeSpec is the declarative description of one step in a graph.
type NodeSpec struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Kind        NodeKind `yaml:"kind" json:"kind"`

	InputKeys  []string `yaml:"input_keys" json:"input_keys"`
	OutputKeys []string `yaml:"output_keys" json:"output_keys"`

	// SystemPrompt is verbatim text passed to the LLM for LLM-kind nodes.
	SystemPrompt string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`

	// Tools is the set of tool identifiers this node may invoke. Only
	// meaningful for KindLLMToolUse.
	Tools []string `yaml:"tools,omitempty" json:"tools,omitempty"`

	// Function is resolved via the FunctionRegistry. Only meaningful for
	// KindFunction.
	Function string `yaml:"function,omitempty" json:"function,omitempty"`

	// InputSchema/OutputSchema optionally constrain a function node's input
	// and output maps to a JSON Schema (graph/registry.CompileSchema). Nil
	// means no validation beyond the input_keys/output_keys contract.
	InputSchema  map[string]any `yaml:"input_schema,omitempty" json:"input_schema,omitempty"`
	OutputSchema map[string]any `yaml:"output_schema,omitempty" json:"output_schema,omitempty"`

	// MaxRetries overrides GraphSpec.MaxRetriesPerNode when non-nil. This
	// inheritance is load-bearing: a node that wants "retry exactly once"
	// sets MaxRetries to a pointer to 0, which is distinct from leaving it
	// nil (inherit the graph default).
	MaxRetries *int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	StreamingEnabled bool `yaml:"streaming_enabled,omitempty" json:"streaming_enabled,omitempty"`

	MaxTokens   *int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	Model       string   `yaml:"model,omitempty" json:"model,omitempty"`

	// ForbiddenTokens configures the hallucination guard: strings that must
	// never appear anywhere in an LLM-kind node's raw output.
	ForbiddenTokens []string `yaml:"forbidden_tokens,omitempty" json:"forbidden_tokens,omitempty"`

	// ToolTimeout overrides the graph/engine default per-tool-call timeout.
	ToolTimeout *int `yaml:"tool_timeout,omitempty" json:"tool_timeout,omitempty"` // seconds

	IsEntry    bool `yaml:"is_entry,omitempty" json:"is_entry,omitempty"`
	IsTerminal bool `yaml:"is_terminal,omitempty" json:"is_terminal,omitempty"`
	IsPause    bool `yaml:"is_pause,omitempty" json:"is_pause,omitempty"`
}

// EffectiveMaxRetries resolves the node/graph retry-count inheritance:
// node override, else graph default, else 3.
func (n *NodeSpec) EffectiveMaxRetries(g *GraphSpec) int {
	if n.MaxRetries != nil {
		return *n.MaxRetries
	}
	if g != nil && g.MaxRetriesPerNode > 0 {
		return g.MaxRetriesPerNode
	}
	return DefaultMaxRetriesPerNode
}

// EdgeCondition gates when an edge is eligible for traversal.
type EdgeCondition string

const (
	EdgeOnSuccess   EdgeCondition = "on_success"
	EdgeOnFailure   EdgeCondition = "on_failure"
	EdgeAlways      EdgeCondition = "always"
	EdgeConditional EdgeCondition = "conditional"
)

// EdgeSpec is a directed, guarded connection between two nodes.
type EdgeSpec struct {
	ID        string        `yaml:"id" json:"id"`
	Source    string        `yaml:"source" json:"source"`
	Target    string        `yaml:"target" json:"target"`
	Condition EdgeCondition `yaml:"condition" json:"condition"`
	Priority  int           `yaml:"priority,omitempty" json:"priority,omitempty"`

	// Guard is only evaluated when Condition == EdgeConditional. It is
	// parsed once (see graph/expr.go) and cached on first use.
	Guard string `yaml:"guard,omitempty" json:"guard,omitempty"`

	compiledGuard *guardExpr `yaml:"-" json:"-"`
}

// GraphSpec is the full declarative agent graph.
type GraphSpec struct {
	ID      string `yaml:"id" json:"id"`
	GoalID  string `yaml:"goal_id" json:"goal_id"`
	Version string `yaml:"version" json:"version"`

	EntryNode     string              `yaml:"entry_node" json:"entry_node"`
	EntryPoints   map[string]string   `yaml:"entry_points,omitempty" json:"entry_points,omitempty"` // entry-point alias -> node id
	TerminalNodes map[string]struct{} `yaml:"-" json:"-"`
	PauseNodes    map[string]struct{} `yaml:"-" json:"-"`

	// TerminalNodeIDs/PauseNodeIDs are the YAML/JSON-serializable form of
	// TerminalNodes/PauseNodes (a set has no natural YAML shape), folded
	// into the map form by LoadGraphSpec.
	TerminalNodeIDs []string `yaml:"terminal_nodes,omitempty" json:"terminal_nodes,omitempty"`
	PauseNodeIDs    []string `yaml:"pause_nodes,omitempty" json:"pause_nodes,omitempty"`

	Nodes []NodeSpec `yaml:"nodes" json:"nodes"`
	Edges []EdgeSpec `yaml:"edges" json:"edges"`

	DefaultModel      string `yaml:"default_model,omitempty" json:"default_model,omitempty"`
	MaxTokens         int    `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	MaxRetriesPerNode int    `yaml:"max_retries_per_node,omitempty" json:"max_retries_per_node,omitempty"`
}

// DefaultMaxRetriesPerNode is used when neither the node nor the graph
// specify a retry budget.
const DefaultMaxRetriesPerNode = 3

// nodeByID and edgesFrom are built lazily by Validate and cached on the
// GraphSpec for O(1) executor lookups.
type compiledGraph struct {
	nodeByID map[string]*NodeSpec
	fromNode map[string][]*EdgeSpec // source node id -> outbound edges
}

// Compile validates graph invariants and returns indices the
// executor uses for O(1) node/edge lookup. Unreachable nodes are reported
// as warnings, not errors, matching intentional leniency.
func (g *GraphSpec) Compile() (*compiledGraph, []string, error) {
	nodeByID := make(map[string]*NodeSpec, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID == "" {
			return nil, nil, fmt.Errorf("graph.invalid: node at index %d has empty id", i)
		}
		if _, dup := nodeByID[n.ID]; dup {
			return nil, nil, fmt.Errorf("graph.invalid: duplicate node id %q", n.ID)
		}
		nodeByID[n.ID] = n
	}

	if g.EntryNode == "" {
		return nil, nil, fmt.Errorf("graph.invalid: entry_node is required")
	}
	if _, ok := nodeByID[g.EntryNode]; !ok {
		return nil, nil, fmt.Errorf("graph.invalid: entry_node %q not found among nodes", g.EntryNode)
	}
	for alias, id := range g.EntryPoints {
		if _, ok := nodeByID[id]; !ok {
			return nil, nil, fmt.Errorf("graph.invalid: entry point %q targets unknown node %q", alias, id)
		}
	}
	for id := range g.TerminalNodes {
		if _, ok := nodeByID[id]; !ok {
			return nil, nil, fmt.Errorf("graph.invalid: terminal node %q not found", id)
		}
		if _, isPause := g.PauseNodes[id]; isPause {
			return nil, nil, fmt.Errorf("graph.invalid: node %q is both terminal and pause", id)
		}
	}
	for id := range g.PauseNodes {
		if _, ok := nodeByID[id]; !ok {
			return nil, nil, fmt.Errorf("graph.invalid: pause node %q not found", id)
		}
	}

	fromNode := make(map[string][]*EdgeSpec, len(g.Nodes))
	for i := range g.Edges {
		e := &g.Edges[i]
		if _, ok := nodeByID[e.Source]; !ok {
			return nil, nil, fmt.Errorf("graph.invalid: edge %q source %q not found", e.ID, e.Source)
		}
		if _, ok := nodeByID[e.Target]; !ok {
			return nil, nil, fmt.Errorf("graph.invalid: edge %q target %q not found", e.ID, e.Target)
		}
		if e.Condition == EdgeConditional {
			compiled, err := parseGuard(e.Guard)
			if err != nil {
				return nil, nil, fmt.Errorf("graph.invalid: edge %q guard: %w", e.ID, err)
			}
			e.compiledGuard = compiled
		}
		fromNode[e.Source] = append(fromNode[e.Source], e)
	}

	warnings := unreachableWarnings(g.EntryNode, nodeByID, fromNode)

	return &compiledGraph{nodeByID: nodeByID, fromNode: fromNode}, warnings, nil
}

// unreachableWarnings performs a breadth-first traversal from entry and
// reports node ids never visited. This is advisory only.
func unreachableWarnings(entry string, nodeByID map[string]*NodeSpec, fromNode map[string][]*EdgeSpec) []string {
	visited := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range fromNode[cur] {
			if !visited[e.Target] {
				visited[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}
	var warnings []string
	for id := range nodeByID {
		if !visited[id] {
			warnings = append(warnings, fmt.Sprintf("node %q is unreachable from entry_node", id))
		}
	}
	sort.Strings(warnings)
	return warnings
}
