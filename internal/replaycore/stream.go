package replaycore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/forgecast/forgecast/internal/logger"
)

// RunStream implements spec.md §4.2/§6 streaming ingress: each line of r
// is one JSON-encoded Step (not a full Playlist), materialized as it
// arrives. Without Concurrent, each line's tasks run as soon as the line
// is parsed; with Concurrent, tasks are collected until r is exhausted and
// then scheduled as one batch, so no task starts before the stream ends.
// opts and env are fixed for the life of the stream, mirroring
// original_source's ActionStream.h, which opens one long-lived dispatch
// context per connection rather than per action.
func RunStream(r io.Reader, env map[string]string, opts Options) error {
	ctx := NewContext(env, opts)
	defer ctx.Serializer.Flush(os.Stdout)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var pending []*Task
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var step Step
		if err := json.Unmarshal(line, &step); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrMalformedInput, lineNo, err)
		}
		if err := step.validate(); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		made, err := parseStep(ctx, &step)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		pending = append(pending, made...)

		if !opts.Concurrent {
			if err := RunSerial(ctx, made); err != nil && opts.StopOnError {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	if opts.Concurrent {
		return RunTasks(ctx, pending)
	}
	logger.Debug("stream closed", "lines", lineNo, "tasks", len(pending))
	return ctx.LastError()
}
