package graph

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadGraphSpec reads a declarative graph from a YAML file. Nodes and edges
// are authored as data rather than Go code, so a graph can be produced by a
// human, a database export, or an evolution agent without a recompile.
//
// TerminalNodeIDs and PauseNodeIDs are folded into the GraphSpec.TerminalNodes
// and PauseNodes sets after decoding, since a set has no natural YAML shape.
func LoadGraphSpec(path string) (*GraphSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graph: read graph spec %s: %w", path, err)
	}
	var g GraphSpec
	if err := yaml.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("graph: parse graph spec %s: %w", path, err)
	}
	foldNodeSets(&g)
	return &g, nil
}

// LoadGoal reads a Goal declaration from a YAML file.
func LoadGoal(path string) (*Goal, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graph: read goal %s: %w", path, err)
	}
	var goal Goal
	if err := yaml.Unmarshal(b, &goal); err != nil {
		return nil, fmt.Errorf("graph: parse goal %s: %w", path, err)
	}
	return &goal, nil
}

// SaveGraphSpec writes g back to path as YAML, unfolding TerminalNodes and
// PauseNodes into their serializable ID-slice form first. The original g is
// left untouched.
func SaveGraphSpec(path string, g *GraphSpec) error {
	out := *g
	out.TerminalNodeIDs = setKeys(g.TerminalNodes)
	out.PauseNodeIDs = setKeys(g.PauseNodes)
	b, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("graph: marshal graph spec: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("graph: write graph spec %s: %w", path, err)
	}
	return nil
}

func foldNodeSets(g *GraphSpec) {
	if len(g.TerminalNodeIDs) > 0 {
		g.TerminalNodes = make(map[string]struct{}, len(g.TerminalNodeIDs))
		for _, id := range g.TerminalNodeIDs {
			g.TerminalNodes[id] = struct{}{}
		}
	}
	if len(g.PauseNodeIDs) > 0 {
		g.PauseNodes = make(map[string]struct{}, len(g.PauseNodeIDs))
		for _, id := range g.PauseNodeIDs {
			g.PauseNodes[id] = struct{}{}
		}
	}
}

func setKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
