package agent

import "context"

// Executor is the engine's only touchpoint with actual model or tool
// execution. Implementations must block until the invocation is fully
// resolved: the returned string is a final output, never a handle to an
// unresolved computation. Failures are reported as *InvocationError.
//
// Implementations must honor ctx cancellation and deadlines; every call is a
// potential suspension point.
type Executor interface {
	Invoke(ctx context.Context, a Agent, prompt string) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, a Agent, prompt string) (string, error)

func (f ExecutorFunc) Invoke(ctx context.Context, a Agent, prompt string) (string, error) {
	return f(ctx, a, prompt)
}
