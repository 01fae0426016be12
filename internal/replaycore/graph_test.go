package replaycore

import (
	"errors"
	"testing"

	"github.com/forgecast/forgecast/internal/pathtrie"
)

func noopRun(ctx *Context) error { return nil }

func TestBuildGraphDuplicateProducerErrorsWithoutForce(t *testing.T) {
	ctx := newTestContext(Options{})
	a := ctx.Trie.Insert("/a")

	t1 := NewTask(ctx.NextActionIndex(), "t1", noopRun, nil, nil, []*pathtrie.Node{a})
	t2 := NewTask(ctx.NextActionIndex(), "t2", noopRun, nil, nil, []*pathtrie.Node{a})

	_, err := BuildGraph(ctx, []*Task{t1, t2})
	if err == nil {
		t.Fatalf("expected a duplicate producer error")
	}
	if !errors.Is(err, ErrGraph) {
		t.Fatalf("got %v, want ErrGraph", err)
	}
}

func TestBuildGraphDuplicateProducerSecondWinsWithForce(t *testing.T) {
	ctx := newTestContext(Options{Force: true})
	a := ctx.Trie.Insert("/a")

	t1 := NewTask(ctx.NextActionIndex(), "t1", noopRun, nil, nil, []*pathtrie.Node{a})
	t2 := NewTask(ctx.NextActionIndex(), "t2", noopRun, nil, nil, []*pathtrie.Node{a})

	g, err := BuildGraph(ctx, []*Task{t1, t2})
	if err != nil {
		t.Fatalf("unexpected error with --force: %v", err)
	}
	if a.Producer != Producer(t2) {
		t.Fatalf("expected second producer to win, got %v", a.Producer)
	}
	if len(g.Tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(g.Tasks))
	}
}

// TestBuildGraphExclusiveInputConflictsWithPlainConsumer covers the
// clone-then-move scenario from review: a plain reader of a path and an
// exclusive (move/delete) claim on the same path must never both link into
// the graph without an edge between them, regardless of which task is
// materialized first.
func TestBuildGraphExclusiveInputConflictsWithPlainConsumer(t *testing.T) {
	t.Run("plain input materialized first", func(t *testing.T) {
		ctx := newTestContext(Options{})
		x := ctx.Trie.Insert("/x")
		w := ctx.Trie.Insert("/w")
		y := ctx.Trie.Insert("/y")

		clone := NewTask(ctx.NextActionIndex(), "clone", noopRun, []*pathtrie.Node{x}, nil, []*pathtrie.Node{w})
		move := NewTask(ctx.NextActionIndex(), "move", noopRun, nil, []*pathtrie.Node{x}, []*pathtrie.Node{y})

		_, err := BuildGraph(ctx, []*Task{clone, move})
		if err == nil {
			t.Fatalf("expected an exclusive-input violation error")
		}
		if !errors.Is(err, ErrGraph) {
			t.Fatalf("got %v, want ErrGraph", err)
		}
	})

	t.Run("exclusive input materialized first", func(t *testing.T) {
		ctx := newTestContext(Options{})
		x := ctx.Trie.Insert("/x")
		w := ctx.Trie.Insert("/w")
		y := ctx.Trie.Insert("/y")

		move := NewTask(ctx.NextActionIndex(), "move", noopRun, nil, []*pathtrie.Node{x}, []*pathtrie.Node{y})
		clone := NewTask(ctx.NextActionIndex(), "clone", noopRun, []*pathtrie.Node{x}, nil, []*pathtrie.Node{w})

		_, err := BuildGraph(ctx, []*Task{move, clone})
		if err == nil {
			t.Fatalf("expected an exclusive-input violation error")
		}
		if !errors.Is(err, ErrGraph) {
			t.Fatalf("got %v, want ErrGraph", err)
		}
	})
}

func TestBuildGraphExclusiveInputsDoNotConflictWithOwnProducer(t *testing.T) {
	// clone produces /mid and is read by nothing else; move exclusively
	// consumes /mid. This is an ordinary producer/consumer edge, not a
	// conflict, and must keep working after the exclusive-input fix.
	ctx := newTestContext(Options{})
	mid := ctx.Trie.Insert("/mid")
	dst := ctx.Trie.Insert("/dst")
	src := ctx.Trie.Insert("/src")

	clone := NewTask(ctx.NextActionIndex(), "clone", noopRun, []*pathtrie.Node{src}, nil, []*pathtrie.Node{mid})
	move := NewTask(ctx.NextActionIndex(), "move", noopRun, nil, []*pathtrie.Node{mid}, []*pathtrie.Node{dst})

	g, err := BuildGraph(ctx, []*Task{clone, move})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Roots) != 1 {
		t.Fatalf("got %d roots, want 1 (move should depend on clone)", len(g.Roots))
	}
}
