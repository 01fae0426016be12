package replaycore

import (
	"sync"
	"sync/atomic"

	"github.com/forgecast/forgecast/internal/pathtrie"
)

// Options mirrors spec.md §3's "Replay context" flag set plus the
// worker-pool size, which the scheduler needs but the original context
// struct left to the caller of TaskScheduler's initializer.
type Options struct {
	Concurrent          bool
	AnalyzeDependencies bool
	Verbose             bool
	DryRun              bool
	StopOnError         bool
	Force               bool
	OrderedOutput       bool

	// ConcurrencyLimit bounds the worker pool. 0 means unbounded, per
	// spec.md §9's resolution of the AsyncDispatch.h open question.
	ConcurrencyLimit int
}

// Context is the process-wide state shared by every task in a run:
// environment variables, the atomic last-error slot used for
// stop-on-error, the path-trie root, and the execution flags from
// spec.md §3.
type Context struct {
	Environment map[string]string
	Trie        *pathtrie.Trie
	Options     Options
	Serializer  *OutputSerializer

	mu        sync.Mutex
	lastError error

	// actionCounter mirrors spec.md's NSInteger actionCounter: an
	// index incremented for every action materialized from the
	// playlist, used to label tasks and order buffered output.
	actionCounter atomic.Int64
}

// NewContext builds a fresh Context for one run. Each invocation gets a
// brand-new trie and counter, per spec.md's "no persistent scheduler
// state" non-goal.
func NewContext(env map[string]string, opts Options) *Context {
	c := &Context{
		Environment: env,
		Trie:        pathtrie.New(),
		Options:     opts,
	}
	c.Serializer = NewOutputSerializer(opts.OrderedOutput)
	return c
}

// NextActionIndex returns a fresh, monotonically increasing index for a
// newly materialized action.
func (c *Context) NextActionIndex() int64 {
	return c.actionCounter.Add(1) - 1
}

// RecordError stores err in the atomic error slot if none has been
// recorded yet. It returns true if this call recorded the first error.
func (c *Context) RecordError(err error) bool {
	if err == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastError != nil {
		return false
	}
	c.lastError = err
	return true
}

// LastError returns the first error recorded by any task, or nil.
func (c *Context) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// HasError reports whether any task has recorded an error yet. The
// scheduler consults this between task launches when StopOnError is set.
func (c *Context) HasError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError != nil
}
