// pkg/dag/executor.go
package dag

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Status is the terminal state of a node after a run
type Status int

const (
	// StatusPending means the node never reached the executor (unused in results)
	StatusPending Status = iota
	// StatusSucceeded means the node body returned nil, possibly after retries
	StatusSucceeded
	// StatusFailed means the node exhausted its attempts with an error
	StatusFailed
	// StatusSkipped means an upstream dependency failed before the node started
	StatusSkipped
)

// String returns a string representation of the status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Result records the outcome of one node in a run
type Result struct {
	NodeID   string
	Status   Status
	Err      error
	Attempts int
	Duration time.Duration
}

// Executor walks a validated Graph in dependency order, running independent
// nodes concurrently on a small worker pool.
type Executor struct {
	graph      *Graph
	logger     *zap.Logger
	numWorkers int

	mu      sync.Mutex
	results map[string]*Result
}

// NewExecutor creates an executor for the graph. workers values below 1
// default to the number of graph nodes.
func NewExecutor(graph *Graph, logger *zap.Logger, workers int) *Executor {
	if workers < 1 {
		workers = len(graph.nodes)
	}
	if workers < 1 {
		workers = 1
	}
	return &Executor{
		graph:      graph,
		logger:     logger,
		numWorkers: workers,
		results:    make(map[string]*Result),
	}
}

// runState tracks one node's progress during a run. claimed guards the
// transition to a terminal state: a node with several parents can be both
// skipped (one parent failed) and enqueued (another parent succeeded), and
// only the first transition may win.
type runState struct {
	remaining atomic.Int32
	claimed   atomic.Bool
}

// Run executes the graph and returns per-node results plus the first
// root-cause error, if any node failed. Nodes whose dependencies failed are
// reported as skipped and never started; nodes already running when a failure
// occurs finish on their own.
func (e *Executor) Run(ctx context.Context) (map[string]Result, error) {
	e.mu.Lock()
	e.results = make(map[string]*Result, len(e.graph.nodes))
	e.mu.Unlock()

	states := make(map[string]*runState, len(e.graph.nodes))
	for id, n := range e.graph.nodes {
		st := &runState{}
		st.remaining.Store(int32(len(n.deps)))
		states[id] = st
	}

	readyChan := make(chan *node, len(e.graph.nodes))
	var wg sync.WaitGroup
	wg.Add(len(e.graph.nodes))

	// Seed the queue with root nodes, in insertion order for determinism
	rootCount := 0
	for _, id := range e.graph.order {
		n := e.graph.nodes[id]
		if len(n.deps) == 0 {
			readyChan <- n
			rootCount++
		}
	}
	e.logger.Debug("Starting graph execution",
		zap.Int("nodes", len(e.graph.nodes)),
		zap.Int("roots", rootCount),
		zap.Int("workers", e.numWorkers))

	for i := 0; i < e.numWorkers; i++ {
		go e.worker(ctx, readyChan, states, &wg)
	}

	wg.Wait()
	close(readyChan)

	results := make(map[string]Result, len(e.graph.nodes))
	var firstErr error
	e.mu.Lock()
	for _, id := range e.graph.order {
		r := e.results[id]
		if r == nil {
			// Node never reached a terminal state; should not happen
			r = &Result{NodeID: id, Status: StatusPending}
		}
		results[id] = *r
		if r.Status == StatusFailed && firstErr == nil {
			firstErr = fmt.Errorf("node %s failed: %w", id, r.Err)
		}
	}
	e.mu.Unlock()

	return results, firstErr
}

// worker is the processing loop for a single concurrent worker
func (e *Executor) worker(ctx context.Context, readyChan chan *node, states map[string]*runState, wg *sync.WaitGroup) {
	for n := range readyChan {
		logger := e.logger.With(zap.String("node", n.id))

		if !states[n.id].claimed.CompareAndSwap(false, true) {
			// Already skipped by a failed sibling branch
			continue
		}

		if ctx.Err() != nil {
			logger.Warn("Context canceled, skipping node")
			e.record(&Result{NodeID: n.id, Status: StatusSkipped, Err: ctx.Err()})
			e.skipDependents(n, states, wg)
			wg.Done()
			continue
		}

		logger.Debug("Node started")
		result := e.runWithRetry(ctx, n, logger)
		e.record(result)

		if result.Status == StatusFailed {
			logger.Error("Node failed",
				zap.Error(result.Err),
				zap.Int("attempts", result.Attempts))
			e.skipDependents(n, states, wg)
			wg.Done()
			continue
		}

		logger.Debug("Node succeeded", zap.Duration("duration", result.Duration))
		for _, id := range e.graph.order {
			dependent, ok := n.dependents[id]
			if !ok {
				continue
			}
			if states[dependent.id].remaining.Add(-1) == 0 {
				readyChan <- dependent
			}
		}
		wg.Done()
	}
}

// runWithRetry executes a node body under its retry policy
func (e *Executor) runWithRetry(ctx context.Context, n *node, logger *zap.Logger) *Result {
	result := &Result{NodeID: n.id}
	start := time.Now()
	maxAttempts := n.policy.attempts()

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt
		err = n.run(ctx)
		if err == nil {
			result.Status = StatusSucceeded
			result.Duration = time.Since(start)
			return result
		}

		if attempt == maxAttempts {
			break
		}
		if n.policy.Retryable != nil && !n.policy.Retryable(err) {
			logger.Debug("Error is not retryable, giving up", zap.Error(err))
			break
		}

		logger.Warn("Node attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", n.policy.Backoff),
			zap.Error(err))

		select {
		case <-time.After(n.policy.Backoff):
		case <-ctx.Done():
			result.Status = StatusFailed
			result.Err = ctx.Err()
			result.Duration = time.Since(start)
			return result
		}
	}

	result.Status = StatusFailed
	result.Err = err
	result.Duration = time.Since(start)
	return result
}

// skipDependents recursively marks all downstream nodes as skipped
func (e *Executor) skipDependents(n *node, states map[string]*runState, wg *sync.WaitGroup) {
	for _, dependent := range n.dependents {
		if !states[dependent.id].claimed.CompareAndSwap(false, true) {
			continue
		}
		e.logger.Warn("Skipping node due to upstream failure",
			zap.String("node", dependent.id),
			zap.String("failed_dependency", n.id))
		e.record(&Result{
			NodeID: dependent.id,
			Status: StatusSkipped,
			Err:    fmt.Errorf("skipped due to upstream failure of '%s'", n.id),
		})
		wg.Done()
		e.skipDependents(dependent, states, wg)
	}
}

func (e *Executor) record(r *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.results[r.NodeID]; !ok {
		e.results[r.NodeID] = r
	}
}
