package replaycore

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/forgecast/forgecast/internal/logger"
)

// Scheduler executes a Graph's tasks under spec.md §4.4: ready tasks run
// on a worker pool; completing a task decrements pending-input counters on
// its children and launches those that reach zero.
type Scheduler struct {
	limit int // 0 = unbounded, per spec.md §9's AsyncDispatch.h resolution
}

// NewScheduler builds a concurrent scheduler bounded to limit simultaneous
// tasks (0 = unbounded).
func NewScheduler(limit int) *Scheduler {
	return &Scheduler{limit: limit}
}

// Run drives g to completion against ctx. It returns the first recorded
// task error (if StopOnError is set, further submissions are suppressed
// once an error is seen) or a cycle error if tasks remain unexecuted once
// every in-flight task has finished.
func (s *Scheduler) Run(ctx *Context, g *Graph) error {
	if len(g.Tasks) == 0 {
		return nil
	}

	var sem chan struct{}
	if s.limit > 0 {
		sem = make(chan struct{}, s.limit)
	}

	var (
		wg        sync.WaitGroup
		executed  atomic.Int64
		cancelled atomic.Bool
		warnOnce  sync.Once
	)

	var launch func(t *Task)
	launch = func(t *Task) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			_ = t.execute(ctx)
			executed.Add(1)

			for _, child := range t.Next() {
				if !child.decrementAndCheckReady() {
					continue
				}
				if ctx.Options.StopOnError && ctx.HasError() {
					warnOnce.Do(func() {
						logger.Warn("stop-on-error set; suppressing further submissions", "error", ctx.LastError())
					})
					cancelled.Store(true)
					continue
				}
				launch(child)
			}
		}()
	}

	for _, root := range g.Roots {
		if ctx.Options.StopOnError && ctx.HasError() {
			cancelled.Store(true)
			continue
		}
		launch(root)
	}

	wg.Wait()

	if cancelled.Load() {
		if err := ctx.LastError(); err != nil {
			return fmt.Errorf("%w: %v", ErrCancellation, err)
		}
		return ErrCancellation
	}

	if int(executed.Load()) != len(g.Tasks) {
		var stalled []string
		for _, t := range g.Tasks {
			if !t.Executed() {
				stalled = append(stalled, fmt.Sprintf("%s(pending=%d)", t.Label, t.Pending()))
			}
		}
		return fmt.Errorf("%w: cycle detected, stalled tasks: %v", ErrGraph, stalled)
	}

	return ctx.LastError()
}
