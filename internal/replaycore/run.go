package replaycore

import (
	"fmt"
	"os"
)

// Run executes playlist end to end: materialize tasks, build the
// dependency graph (unless analysis is disabled), and dispatch to the
// concurrent scheduler or the serial runner per spec.md §4.4's mode
// selection.
func Run(playlist *Playlist) error {
	env := make(map[string]string, len(playlist.Environment)+len(os.Environ()))
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	for k, v := range playlist.Environment {
		env[k] = v
	}

	ctx := NewContext(env, playlist.ToOptions())
	defer ctx.Serializer.Flush(os.Stdout)

	tasks, err := ParseSteps(ctx, playlist.Playlist)
	if err != nil {
		return err
	}

	if !ctx.Options.Concurrent {
		return RunSerial(ctx, tasks)
	}

	if ctx.Options.AnalyzeDependencies {
		g, err := BuildGraph(ctx, tasks)
		if err != nil {
			return err
		}
		sched := NewScheduler(ctx.Options.ConcurrencyLimit)
		return sched.Run(ctx, g)
	}

	return RunSerial(ctx, tasks)
}

// RunTasks is the lower-level entry point used by streaming/server mode,
// where the caller has already accumulated a batch of materialized tasks
// (e.g. from successive NDJSON lines) and wants them dispatched under an
// existing Context.
func RunTasks(ctx *Context, tasks []*Task) error {
	if !ctx.Options.Concurrent {
		return RunSerial(ctx, tasks)
	}
	if ctx.Options.AnalyzeDependencies {
		g, err := BuildGraph(ctx, tasks)
		if err != nil {
			return err
		}
		sched := NewScheduler(ctx.Options.ConcurrencyLimit)
		return sched.Run(ctx, g)
	}
	return RunSerial(ctx, tasks)
}

// DecodePlaylist is a thin wrapper kept here (rather than in action.go) so
// callers needing only decoding, not execution, have a single obvious
// entry point. It surfaces JSON errors as ErrMalformedInput.
func DecodePlaylist(decode func(v interface{}) error) (*Playlist, error) {
	var p Playlist
	if err := decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return &p, nil
}
