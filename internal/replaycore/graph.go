package replaycore

import (
	"fmt"

	"github.com/forgecast/forgecast/internal/logger"
	"github.com/forgecast/forgecast/internal/pathtrie"
)

// Graph is the DAG of tasks derived from a playlist's declared inputs and
// outputs, per spec.md §4.3.
type Graph struct {
	Tasks []*Task
	// Roots are the tasks whose pending-input counter is zero once pass 2
	// completes — the virtual root task's next-tasks list, per spec.md
	// §4.3.
	Roots []*Task
}

// BuildGraph runs the two-pass algorithm from spec.md §4.3 over tasks
// (already materialized by the action parser, in playlist order), linking
// each through ctx.Trie. Tasks must not have been linked into any other
// graph.
func BuildGraph(ctx *Context, tasks []*Task) (*Graph, error) {
	if err := registerOutputs(ctx, tasks); err != nil {
		return nil, err
	}
	if err := linkInputs(ctx, tasks); err != nil {
		return nil, err
	}

	g := &Graph{Tasks: tasks}
	for _, t := range tasks {
		if t.Ready() {
			g.Roots = append(g.Roots, t)
		}
	}
	return g, nil
}

// registerOutputs is pass 1: insert every output into the trie and attach
// its producing task. A second claim on the same output is a
// "duplicate producer" failure unless Force is set, in which case the
// second producer wins and a warning is logged (spec.md §4.3, §8 boundary
// behavior).
func registerOutputs(ctx *Context, tasks []*Task) error {
	for _, t := range tasks {
		for _, node := range t.Outputs {
			if node.Producer != nil {
				if !ctx.Options.Force {
					return fmt.Errorf("%w: duplicate producer for %s (tasks %s and %s)",
						ErrGraph, node.FullPath(), node.Producer.ID(), t.ID())
				}
				logger.Warn("duplicate producer, second wins because --force is set",
					"path", node.FullPath(), "previous", node.Producer.ID(), "new", t.ID())
			}
			node.SetProducer(t)
		}
	}
	return nil
}

// linkInputs is pass 2: for each task's inputs, wire a producer→consumer
// edge (direct producer, or the nearest ancestor producer for paths that
// live under a produced directory), and enforce the exclusive-input rule.
func linkInputs(ctx *Context, tasks []*Task) error {
	for _, t := range tasks {
		seen := make(map[*pathtrie.Node]bool)
		for _, node := range t.Inputs {
			if owner := node.ExclusiveOwner(); owner != nil && owner != Producer(t) {
				return fmt.Errorf("%w: %s is already claimed exclusively by %s", ErrGraph, node.FullPath(), owner.ID())
			}
			node.AddConsumer(t)
			if err := linkOneInput(t, node, seen); err != nil {
				return err
			}
		}
		for _, node := range t.ExclusiveInputs {
			if owner := node.ExclusiveOwner(); owner != nil && owner != Producer(t) {
				return fmt.Errorf("%w: %s is already claimed exclusively by %s", ErrGraph, node.FullPath(), owner.ID())
			}
			if node.HasOtherConsumer(t) {
				return fmt.Errorf("%w: %s cannot be claimed exclusively by %s, already consumed by another task", ErrGraph, node.FullPath(), t.ID())
			}
			node.SetExclusiveOwner(t)
			node.AddConsumer(t)
			if err := linkOneInput(t, node, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// Producer re-exports pathtrie.Producer for readability within this
// package; Task already satisfies it via ID().
type Producer = pathtrie.Producer

func linkOneInput(t *Task, node *pathtrie.Node, seen map[*pathtrie.Node]bool) error {
	if producerNode, ok := directOrAncestorProducer(node); ok {
		if producerNode == nil {
			return nil
		}
		if seen[producerNode] {
			return nil
		}
		seen[producerNode] = true
		producer, _ := producerNode.Producer.(*Task)
		if producer == t {
			return nil
		}
		t.addDependency(producer)
	}
	return nil
}

// directOrAncestorProducer returns the trie node carrying the relevant
// producer for node: node itself if it has a direct producer, otherwise
// its nearest ancestor with a producer (spec.md §4.1 "implicit
// dependency" / §4.3 pass 2). The second return is false only when
// neither node nor any ancestor has a producer.
func directOrAncestorProducer(node *pathtrie.Node) (*pathtrie.Node, bool) {
	if node.Producer != nil {
		return node, true
	}
	if anc := node.NearestProducerAncestor(); anc != nil {
		return anc, true
	}
	return nil, false
}
