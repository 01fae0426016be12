package replaycore

import (
	"errors"
	"testing"

	"github.com/forgecast/forgecast/internal/pathtrie"
)

// TestSchedulerDetectsCycle covers spec.md §8's S3 boundary behavior: two
// tasks whose outputs are each other's inputs can never become ready, and
// the scheduler must report a cycle rather than hang or silently succeed.
func TestSchedulerDetectsCycle(t *testing.T) {
	ctx := newTestContext(Options{})
	a := ctx.Trie.Insert("/a")
	b := ctx.Trie.Insert("/b")

	t1 := NewTask(ctx.NextActionIndex(), "t1", noopRun, []*pathtrie.Node{a}, nil, []*pathtrie.Node{b})
	t2 := NewTask(ctx.NextActionIndex(), "t2", noopRun, []*pathtrie.Node{b}, nil, []*pathtrie.Node{a})

	g, err := BuildGraph(ctx, []*Task{t1, t2})
	if err != nil {
		t.Fatalf("unexpected error building cyclic graph: %v", err)
	}
	if len(g.Roots) != 0 {
		t.Fatalf("got %d roots, want 0 (both tasks depend on each other)", len(g.Roots))
	}

	sched := NewScheduler(0)
	err = sched.Run(ctx, g)
	if err == nil {
		t.Fatalf("expected a cycle error")
	}
	if !errors.Is(err, ErrGraph) {
		t.Fatalf("got %v, want ErrGraph", err)
	}
}

func TestSchedulerRunsIndependentRootsConcurrently(t *testing.T) {
	ctx := newTestContext(Options{})
	a := ctx.Trie.Insert("/a")
	b := ctx.Trie.Insert("/b")

	t1 := NewTask(ctx.NextActionIndex(), "t1", noopRun, nil, nil, []*pathtrie.Node{a})
	t2 := NewTask(ctx.NextActionIndex(), "t2", noopRun, nil, nil, []*pathtrie.Node{b})

	g, err := BuildGraph(ctx, []*Task{t1, t2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(g.Roots))
	}

	sched := NewScheduler(0)
	if err := sched.Run(ctx, g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !t1.Executed() || !t2.Executed() {
		t.Fatalf("expected both tasks to have executed")
	}
}
