package tools

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/hubenschmidt/go-orchestra/core"
)

// ExecuteAll runs every call concurrently, bounded by the registry's
// parallelism, and waits for all of them. Results are returned in the order of
// calls; each carries the ToolCallID of the call it answers.
func (r *Registry) ExecuteAll(ctx context.Context, calls []core.ToolCall) []core.ToolResult {
	if len(calls) == 0 {
		return nil
	}

	type indexed struct {
		pos int
		res core.ToolResult
	}

	p := pool.NewWithResults[indexed]().WithMaxGoroutines(r.maxParallel)
	for i, call := range calls {
		p.Go(func() indexed {
			return indexed{pos: i, res: r.Execute(ctx, call)}
		})
	}

	// Completion order is arbitrary; slot each result back by position.
	results := make([]core.ToolResult, len(calls))
	filled := make([]bool, len(calls))
	for _, out := range p.Wait() {
		results[out.pos] = out.res
		filled[out.pos] = true
	}
	for i, call := range calls {
		if !filled[i] {
			results[i] = core.NewToolError(call, "tool produced no result")
		}
	}
	return results
}
