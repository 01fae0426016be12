package replaycore

// RunSerial executes tasks in strict playlist order on a single worker,
// per spec.md §4.4 "Serial mode": dependency inference is skipped
// entirely, so tasks is simply the materialized order, not a Graph.
//
// This mirrors original_source's recursive single-threaded executor
// (RecursiveMedusa.h / MedusaTaskProxy.h), which walks tasks via direct
// calls rather than a work queue; SPEC_FULL.md keeps that split instead of
// special-casing serial mode inside the concurrent Scheduler.
func RunSerial(ctx *Context, tasks []*Task) error {
	for _, t := range tasks {
		if err := t.execute(ctx); err != nil {
			if ctx.Options.StopOnError {
				return err
			}
		}
	}
	return ctx.LastError()
}
