package replaycore

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// OutputSerializer implements spec.md §4.6: when OrderedOutput is set,
// per-task output is buffered by task index and flushed in playlist order
// once every lower index has completed; otherwise output is flushed as
// produced but writes to the same stream are serialized so concurrent
// tasks never interleave a line.
type OutputSerializer struct {
	ordered bool

	mu        sync.Mutex
	buffered  map[int64][]string
	nextFlush int64
}

// NewOutputSerializer constructs a serializer. Pass ordered=true to buffer
// per playlist index (spec.md's "ordered-output=true").
func NewOutputSerializer(ordered bool) *OutputSerializer {
	return &OutputSerializer{
		ordered:  ordered,
		buffered: make(map[int64][]string),
	}
}

// Emit writes lines attributed to actionIndex to w. Under ordered output,
// lines are held until every earlier index has flushed; otherwise they are
// written immediately under the serializer's mutex.
func (s *OutputSerializer) Emit(w io.Writer, actionIndex int64, lines ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ordered {
		for _, l := range lines {
			if _, err := fmt.Fprintln(w, l); err != nil {
				return err
			}
		}
		return nil
	}

	s.buffered[actionIndex] = append(s.buffered[actionIndex], lines...)
	return s.flushReadyLocked(w)
}

// MarkDone signals that actionIndex's task has finished producing output
// (it may have produced none) so the flush cursor can advance past it.
func (s *OutputSerializer) MarkDone(w io.Writer, actionIndex int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ordered {
		return nil
	}
	if _, ok := s.buffered[actionIndex]; !ok {
		s.buffered[actionIndex] = nil
	}
	return s.flushReadyLocked(w)
}

func (s *OutputSerializer) flushReadyLocked(w io.Writer) error {
	for {
		lines, ok := s.buffered[s.nextFlush]
		if !ok {
			return nil
		}
		for _, l := range lines {
			if _, err := fmt.Fprintln(w, l); err != nil {
				return err
			}
		}
		delete(s.buffered, s.nextFlush)
		s.nextFlush++
	}
}

// Flush force-writes any buffered output in index order, used at the end
// of a run in case some indices were never marked done (e.g. a task that
// never ran due to a cycle).
func (s *OutputSerializer) Flush(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buffered) == 0 {
		return nil
	}
	indexes := make([]int64, 0, len(s.buffered))
	for idx := range s.buffered {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	for _, idx := range indexes {
		for _, l := range s.buffered[idx] {
			if _, err := fmt.Fprintln(w, l); err != nil {
				return err
			}
		}
		delete(s.buffered, idx)
	}
	return nil
}
