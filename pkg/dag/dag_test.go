// pkg/dag/dag_test.go
package dag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// recorder tracks node completion order under concurrency
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) done(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, id)
}

func (r *recorder) indexOf(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.order {
		if v == id {
			return i
		}
	}
	return -1
}

func noop(ctx context.Context) error { return nil }

func record(r *recorder, id string) NodeFunc {
	return func(ctx context.Context) error {
		r.done(id)
		return nil
	}
}

func mustAddNode(t *testing.T, g *Graph, id string, run NodeFunc, policy RetryPolicy) {
	t.Helper()
	if err := g.AddNode(id, run, policy); err != nil {
		t.Fatalf("AddNode(%s): %v", id, err)
	}
}

func mustAddEdge(t *testing.T, g *Graph, from, to string) {
	t.Helper()
	if err := g.AddEdge(from, to); err != nil {
		t.Fatalf("AddEdge(%s, %s): %v", from, to, err)
	}
}

func TestGraph_AddEdgeValidation(t *testing.T) {
	g := New()
	mustAddNode(t, g, "a", noop, RetryPolicy{})

	if err := g.AddEdge("a", "a"); err == nil {
		t.Error("AddEdge: expected error for self-referential edge")
	}
	if err := g.AddEdge("a", "missing"); err == nil {
		t.Error("AddEdge: expected error for unknown destination")
	}
	if err := g.AddEdge("missing", "a"); err == nil {
		t.Error("AddEdge: expected error for unknown source")
	}
	if err := g.AddNode("a", noop, RetryPolicy{}); err == nil {
		t.Error("AddNode: expected error for duplicate id")
	}
}

func TestGraph_ValidateDetectsCycle(t *testing.T) {
	g := New()
	mustAddNode(t, g, "a", noop, RetryPolicy{})
	mustAddNode(t, g, "b", noop, RetryPolicy{})
	mustAddNode(t, g, "c", noop, RetryPolicy{})
	mustAddEdge(t, g, "a", "b")
	mustAddEdge(t, g, "b", "c")
	mustAddEdge(t, g, "c", "a")

	if err := g.Validate(); err == nil {
		t.Error("Validate: expected cycle error")
	}
}

func TestGraph_ValidateAcceptsDiamond(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c", "d"} {
		mustAddNode(t, g, id, noop, RetryPolicy{})
	}
	mustAddEdge(t, g, "a", "b")
	mustAddEdge(t, g, "a", "c")
	mustAddEdge(t, g, "b", "d")
	mustAddEdge(t, g, "c", "d")

	if err := g.Validate(); err != nil {
		t.Errorf("Validate: unexpected error: %v", err)
	}
}

func TestExecutor_RespectsDependencyOrder(t *testing.T) {
	rec := &recorder{}
	g := New()
	mustAddNode(t, g, "extract", record(rec, "extract"), RetryPolicy{})
	mustAddNode(t, g, "transform", record(rec, "transform"), RetryPolicy{})
	mustAddNode(t, g, "load", record(rec, "load"), RetryPolicy{})
	mustAddEdge(t, g, "extract", "transform")
	mustAddEdge(t, g, "transform", "load")

	results, err := NewExecutor(g, zap.NewNop(), 3).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}

	for id, r := range results {
		if r.Status != StatusSucceeded {
			t.Errorf("%s: got %s, want succeeded", id, r.Status)
		}
	}
	if !(rec.indexOf("extract") < rec.indexOf("transform") && rec.indexOf("transform") < rec.indexOf("load")) {
		t.Errorf("completion order violated dependencies: %v", rec.order)
	}
}

func TestExecutor_FanInWaitsForAllParents(t *testing.T) {
	rec := &recorder{}
	g := New()
	mustAddNode(t, g, "schema", record(rec, "schema"), RetryPolicy{})
	mustAddNode(t, g, "transform", record(rec, "transform"), RetryPolicy{})
	mustAddNode(t, g, "load", record(rec, "load"), RetryPolicy{})
	mustAddEdge(t, g, "schema", "load")
	mustAddEdge(t, g, "transform", "load")

	if _, err := NewExecutor(g, zap.NewNop(), 3).Run(context.Background()); err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}

	loadIdx := rec.indexOf("load")
	if loadIdx < rec.indexOf("schema") || loadIdx < rec.indexOf("transform") {
		t.Errorf("fan-in node ran before a parent completed: %v", rec.order)
	}
}

func TestExecutor_FailureSkipsTransitiveDependents(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")

	g := New()
	mustAddNode(t, g, "extract", func(ctx context.Context) error { return boom }, RetryPolicy{})
	mustAddNode(t, g, "transform", record(rec, "transform"), RetryPolicy{})
	mustAddNode(t, g, "load", record(rec, "load"), RetryPolicy{})
	mustAddNode(t, g, "independent", record(rec, "independent"), RetryPolicy{})
	mustAddEdge(t, g, "extract", "transform")
	mustAddEdge(t, g, "transform", "load")

	results, err := NewExecutor(g, zap.NewNop(), 2).Run(context.Background())
	if err == nil {
		t.Fatal("Run: expected error")
	}
	if !errors.Is(err, boom) {
		t.Errorf("root cause: got %v, want boom", err)
	}

	if results["extract"].Status != StatusFailed {
		t.Errorf("extract: got %s, want failed", results["extract"].Status)
	}
	if results["transform"].Status != StatusSkipped {
		t.Errorf("transform: got %s, want skipped", results["transform"].Status)
	}
	if results["load"].Status != StatusSkipped {
		t.Errorf("load: got %s, want skipped", results["load"].Status)
	}

	// A node with no path from the failure still runs
	if results["independent"].Status != StatusSucceeded {
		t.Errorf("independent: got %s, want succeeded", results["independent"].Status)
	}
	if rec.indexOf("transform") != -1 || rec.indexOf("load") != -1 {
		t.Error("skipped nodes must never start")
	}
}

func TestExecutor_RetryPolicy(t *testing.T) {
	attempts := 0
	flaky := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}

	g := New()
	mustAddNode(t, g, "flaky", flaky, RetryPolicy{MaxAttempts: 3})

	results, err := NewExecutor(g, zap.NewNop(), 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}
	if results["flaky"].Attempts != 3 {
		t.Errorf("attempts: got %d, want 3", results["flaky"].Attempts)
	}
	if results["flaky"].Status != StatusSucceeded {
		t.Errorf("status: got %s, want succeeded", results["flaky"].Status)
	}
}

func TestExecutor_RetryPredicateStopsNonRetryable(t *testing.T) {
	permanent := errors.New("malformed")
	attempts := 0

	g := New()
	mustAddNode(t, g, "decode", func(ctx context.Context) error {
		attempts++
		return permanent
	}, RetryPolicy{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	})

	results, err := NewExecutor(g, zap.NewNop(), 1).Run(context.Background())
	if err == nil {
		t.Fatal("Run: expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts: got %d, want 1 (non-retryable error must not retry)", attempts)
	}
	if results["decode"].Status != StatusFailed {
		t.Errorf("status: got %s, want failed", results["decode"].Status)
	}
}

func TestExecutor_ExhaustedRetriesFail(t *testing.T) {
	g := New()
	mustAddNode(t, g, "always-broken", func(ctx context.Context) error {
		return errors.New("still broken")
	}, RetryPolicy{MaxAttempts: 2})

	results, err := NewExecutor(g, zap.NewNop(), 1).Run(context.Background())
	if err == nil {
		t.Fatal("Run: expected error")
	}
	if results["always-broken"].Attempts != 2 {
		t.Errorf("attempts: got %d, want 2", results["always-broken"].Attempts)
	}
}
