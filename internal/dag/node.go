package dag

import (
	"context"
	"sync"
	"sync/atomic"
)

// State tracks a node through its lifecycle.
type State int32

const (
	// Pending means the node is waiting for its dependencies.
	Pending State = iota
	// Running means a worker has picked the node up.
	Running
	// Done means the node's task completed successfully.
	Done
	// Failed means the task returned an error, or an upstream dependency
	// failed and the node was skipped.
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Node is a single task in the graph: a stable identifier plus the closure
// that performs the work. All cross-task data flows through files named at
// graph-construction time, so Run takes no inputs beyond the context.
type Node struct {
	// ID is the deterministic task name, derived from acquisition
	// entities by the graph builder.
	ID string
	// Run performs the task. It must be safe to call from any worker
	// goroutine; the executor guarantees it runs at most once.
	Run func(ctx context.Context) error

	// Error records the failure cause when the node ends up Failed.
	Error error

	state    atomic.Int32
	depCount atomic.Int32
	skipOnce sync.Once

	deps       map[string]*Node
	dependents map[string]*Node
}

// State returns the node's current lifecycle state.
func (n *Node) State() State {
	return State(n.state.Load())
}

func (n *Node) setState(s State) {
	n.state.Store(int32(s))
}

// setInitialCounters primes the dependency counter used by the executor to
// decide readiness.
func (n *Node) setInitialCounters() {
	n.depCount.Store(int32(len(n.deps)))
}
