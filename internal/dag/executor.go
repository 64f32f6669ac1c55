package dag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openneuropet/petdeface/internal/ctxlog"
)

// Executor runs a graph with bounded parallelism. A node becomes ready when
// all of its dependencies have completed; ready nodes are dispatched to a
// fixed pool of workers.
type Executor struct {
	graph      *Graph
	numWorkers int
	wg         sync.WaitGroup
}

// NewExecutor creates an executor for the given graph. numWorkers is the
// operator-supplied parallelism bound and must be at least 1.
func NewExecutor(graph *Graph, numWorkers int) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Executor{graph: graph, numWorkers: numWorkers}
}

// Run executes the entire graph concurrently and returns an error if any
// node fails. It respects the cancellation signal from the provided context.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	if err := e.graph.DetectCycles(); err != nil {
		return err
	}

	readyChan := make(chan *Node, e.graph.Len())

	logger.Debug("Initializing executor, finding root nodes.")
	rootCount := 0
	for _, id := range e.graph.NodeIDs() {
		node := e.graph.Node(id)
		node.setInitialCounters()
		if node.depCount.Load() == 0 {
			readyChan <- node
			rootCount++
		}
	}
	logger.Debug("Found all root nodes.", "count", rootCount)

	e.wg.Add(e.graph.Len())

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(ctx, readyChan, i)
	}

	logger.Info("Waiting for all tasks to complete...")
	e.wg.Wait()
	logger.Info("All tasks completed.")
	close(readyChan)

	var failedNodes []string
	var rootCauseError error
	for _, id := range e.graph.NodeIDs() {
		node := e.graph.Node(id)
		if node.State() != Failed {
			continue
		}
		logger.Error("Task failed.", "nodeID", node.ID, "error", node.Error)
		// A "skipped" error is a symptom, not a cause.
		if node.Error != nil && !strings.HasPrefix(node.Error.Error(), "skipped") && !errors.Is(node.Error, context.Canceled) {
			failedNodes = append(failedNodes, node.ID)
			if rootCauseError == nil {
				rootCauseError = node.Error
			}
		}
	}

	if rootCauseError != nil {
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failedNodes, ", "), rootCauseError)
	}
	return nil
}

// skipDependents recursively marks all downstream nodes as failed and
// settles their WaitGroup slots.
func (e *Executor) skipDependents(ctx context.Context, node *Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.dependents {
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping task due to upstream failure.", "nodeID", dependent.ID, "dependency", node.ID)
			dependent.setState(Failed)
			dependent.Error = fmt.Errorf("skipped due to upstream failure of '%s'", node.ID)
			e.wg.Done()
			e.skipDependents(ctx, dependent)
		})
	}
}

// worker is the core processing loop for a single concurrent worker. A node
// failure only settles that node's downstream; independent branches keep
// executing so every subject runs to completion before the aggregate error
// is reported.
func (e *Executor) worker(ctx context.Context, readyChan chan *Node, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for node := range readyChan {
		workerLogger := logger.With("workerID", workerID, "nodeID", node.ID)

		if ctx.Err() != nil {
			node.skipOnce.Do(func() {
				workerLogger.Warn("Context canceled, skipping task.")
				node.setState(Failed)
				node.Error = ctx.Err()
				e.wg.Done()
			})
			e.skipDependents(ctx, node)
			continue
		}

		workerLogger.Debug("Worker picked up task.")
		node.setState(Running)

		var err error
		if node.Run != nil {
			err = node.Run(ctx)
		}

		if err != nil {
			workerLogger.Error("Task failed.", "error", err)
			node.setState(Failed)
			node.Error = err
			e.skipDependents(ctx, node)
			e.wg.Done()
			continue
		}

		workerLogger.Debug("Task succeeded.")
		node.setState(Done)

		for _, dependent := range node.dependents {
			if dependent.depCount.Add(-1) == 0 {
				workerLogger.Debug("Unlocking dependent task.", "dependentID", dependent.ID)
				readyChan <- dependent
			}
		}

		e.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}
