package replaycore

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/forgecast/forgecast/internal/pathtrie"
)

// RunFunc is a Task's erased action body, realizing spec.md §9's "callable
// trait with one method run(&Context) -> Result" as a plain Go closure:
// the scheduler neither knows nor cares which concrete action produced it.
type RunFunc func(ctx *Context) error

// Task is the scheduler's in-memory unit: one action plus its dependency
// edges, per spec.md §3.
type Task struct {
	Index  int64
	Label  string
	Run    RunFunc
	Inputs []*pathtrie.Node
	// ExclusiveInputs are move/delete targets: no other task may also
	// consume them (spec.md §3 "Exclusive input").
	ExclusiveInputs []*pathtrie.Node
	Outputs         []*pathtrie.Node

	// pending is the number of unsatisfied producer-linked inputs. A task
	// becomes ready when this reaches zero; it is modified only via
	// atomic decrement-and-test by the scheduler (spec.md §4.4).
	pending atomic.Int64

	// next is the list of tasks to notify on completion. Built
	// single-threaded during graph construction (pass 2) and read-only
	// thereafter (spec.md §5).
	next []*Task

	executed atomic.Bool
	once     sync.Once
}

// ID satisfies pathtrie.Producer.
func (t *Task) ID() string { return t.Label }

// NewTask constructs a Task with the given run closure and dependency
// edges. The pending-input counter starts at zero; BuildGraph raises it to
// the number of producer-linked inputs during graph construction.
func NewTask(index int64, label string, run RunFunc, inputs, exclusiveInputs, outputs []*pathtrie.Node) *Task {
	return &Task{
		Index:           index,
		Label:           label,
		Run:             run,
		Inputs:          inputs,
		ExclusiveInputs: exclusiveInputs,
		Outputs:         outputs,
	}
}

// addDependency records that this task must wait for producer to finish,
// incrementing the pending counter and registering this task on
// producer's next-tasks list. Called only during single-threaded graph
// construction (pass 2), never concurrently.
func (t *Task) addDependency(producer *Task) {
	t.pending.Add(1)
	producer.next = append(producer.next, t)
}

// Ready reports whether every producer-linked input has completed.
func (t *Task) Ready() bool { return t.pending.Load() == 0 }

// Pending returns the current pending-input count (for diagnostics / cycle
// reporting).
func (t *Task) Pending() int64 { return t.pending.Load() }

// Next returns the tasks waiting on this one. Safe to read once graph
// construction has finished.
func (t *Task) Next() []*Task { return t.next }

// Executed reports whether this task has already run.
func (t *Task) Executed() bool { return t.executed.Load() }

// execute runs the task's body exactly once, recording any error into
// ctx's atomic error slot (spec.md §4.5: "handlers never throw across the
// scheduler boundary").
func (t *Task) execute(ctx *Context) error {
	var runErr error
	t.once.Do(func() {
		t.executed.Store(true)
		// Every task, with or without output, advances the ordered-output cursor.
		defer func() { _ = ctx.Serializer.MarkDone(os.Stdout, t.Index) }()
		if ctx.Options.DryRun {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("%w: task %s panicked: %v", ErrIO, t.Label, r)
			}
		}()
		runErr = t.Run(ctx)
	})
	if runErr != nil {
		ctx.RecordError(runErr)
	}
	return runErr
}

// decrementAndCheckReady atomically decrements the pending counter and
// reports whether it just reached zero. Used by the scheduler's
// completion transition (spec.md §4.4).
func (t *Task) decrementAndCheckReady() bool {
	return t.pending.Add(-1) == 0
}
