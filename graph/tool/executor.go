package tool

import (
	"context"
	"fmt"
	"time"
)

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// Executor is the ToolExecutor collaborator consumed by the node execution
// kernel: invoke a tool by id under a deadline.
type Executor interface {
	// Execute runs the named tool with arguments, bounded by timeout (<=0
	// means no bound). It never returns a Go error for a tool-side failure;
	// a tool's own error is wrapped in the returned error so the caller can
	// classify it into an Attempt's error kind.
	Execute(ctx context.Context, toolID string, arguments map[string]interface{}, timeout int) (map[string]interface{}, error)

	// Allowed reports whether toolID is registered, used by the kernel to
	// enforce a node's declared tool allow-list before invocation.
	Allowed(toolID string) bool
}

// Registry is the default Executor: an in-memory map of named Tools. Nodes
// restrict which subset of the registry they may call via NodeSpec.Tools;
// the registry itself imposes no restriction.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a Registry from a set of tools, indexed by Tool.Name().
// Later tools with a duplicate name replace earlier ones.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Allowed implements Executor.
func (r *Registry) Allowed(toolID string) bool {
	_, ok := r.tools[toolID]
	return ok
}

// Execute implements Executor. The timeout is applied here rather than left
// to the caller so every tool invocation — regardless of whether the
// underlying Tool respects context deadlines — observes the same bound.
func (r *Registry) Execute(ctx context.Context, toolID string, arguments map[string]interface{}, timeoutSeconds int) (map[string]interface{}, error) {
	t, ok := r.tools[toolID]
	if !ok {
		return nil, fmt.Errorf("tool %q is not registered", toolID)
	}

	if timeoutSeconds <= 0 {
		return t.Call(ctx, arguments)
	}

	type result struct {
		out map[string]interface{}
		err error
	}
	tctx, cancel := context.WithTimeout(ctx, secondsToDuration(timeoutSeconds))
	defer cancel()

	done := make(chan result, 1)
	go func() {
		out, err := t.Call(tctx, arguments)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-tctx.Done():
		return nil, tctx.Err()
	}
}
