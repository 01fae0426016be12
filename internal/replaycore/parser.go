package replaycore

import (
	"fmt"
	"os"

	"github.com/forgecast/forgecast/internal/pathtrie"
)

// ParseSteps materializes a playlist's steps into Tasks, per spec.md §4.2:
// each step expands its from/to (and any nested paths) through
// ExpandVariables against ctx.Environment, then pairs sources to
// destinations according to the action's cardinality rule before handing
// resolved inputs/exclusive-inputs/outputs to the kind's handler. Steps
// materialize into tasks in playlist order; BuildGraph infers the
// dependency edges afterward from the inputs/outputs recorded here.
func ParseSteps(ctx *Context, steps []Step) ([]*Task, error) {
	var tasks []*Task
	for i, step := range steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		made, err := parseStep(ctx, &step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		tasks = append(tasks, made...)
	}
	return tasks, nil
}

func parseStep(ctx *Context, step *Step) ([]*Task, error) {
	switch parseKind(step.Action) {
	case KindClone, KindMove, KindHardlink, KindSymlink:
		return parsePairedStep(ctx, step)
	case KindCreate:
		return parseCreateStep(ctx, step)
	case KindDelete:
		return parseDeleteStep(ctx, step)
	case KindExecute:
		return parseExecuteStep(ctx, step)
	case KindEcho:
		return parseEchoStep(ctx, step)
	default:
		return nil, fmt.Errorf("%w: unhandled action %q", ErrMalformedInput, step.Action)
	}
}

// pairSources implements spec.md §4.2's cardinality rule: when there is a
// single destination and it names a directory (see isDirIntent), every
// source is materialized as its own task placed inside that directory;
// otherwise sources and destinations must pair up 1:1, and any other
// mismatch is a resolution error.
func pairSources(from, to []string) ([][2]string, error) {
	if len(to) == 1 && isDirIntent(to[0]) {
		dir := to[0]
		pairs := make([][2]string, len(from))
		for i, src := range from {
			pairs[i] = [2]string{src, joinDestPath(dir, src)}
		}
		return pairs, nil
	}
	if len(from) != len(to) {
		return nil, fmt.Errorf("%w: %d sources but %d destinations", ErrResolution, len(from), len(to))
	}
	pairs := make([][2]string, len(from))
	for i := range from {
		pairs[i] = [2]string{from[i], to[i]}
	}
	return pairs, nil
}

// isDirIntent reports whether path is conventionally a directory
// destination: it already exists as a directory, or it is spelled with a
// trailing separator.
func isDirIntent(path string) bool {
	if len(path) > 0 && path[len(path)-1] == '/' {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func joinDestPath(dir, src string) string {
	base := src
	for i := len(src) - 1; i >= 0; i-- {
		if src[i] == '/' {
			base = src[i+1:]
			break
		}
	}
	if len(dir) > 0 && dir[len(dir)-1] == '/' {
		return dir + base
	}
	return dir + "/" + base
}

func parsePairedStep(ctx *Context, step *Step) ([]*Task, error) {
	kind := parseKind(step.Action)
	from, err := ExpandAll(step.From, ctx.Environment, false)
	if err != nil {
		return nil, err
	}
	to, err := ExpandAll(step.To, ctx.Environment, false)
	if err != nil {
		return nil, err
	}
	pairs, err := pairSources(from, to)
	if err != nil {
		return nil, err
	}

	settings := HandlerSettings{Force: step.Force, Permissions: os.FileMode(step.Permissions)}
	tasks := make([]*Task, 0, len(pairs))
	for _, pair := range pairs {
		src, dst := pair[0], pair[1]
		inputNode := ctx.Trie.Insert(src)
		outputNode := ctx.Trie.Insert(dst)

		idx := ctx.NextActionIndex()
		label := fmt.Sprintf("%s[%d] %s -> %s", step.Action, idx, src, dst)

		var exclusiveInputs []*pathtrie.Node
		var run RunFunc
		switch kind {
		case KindClone:
			run = func(ctx *Context) error { return cloneItem(src, dst, settings) }
		case KindMove:
			exclusiveInputs = []*pathtrie.Node{inputNode}
			run = func(ctx *Context) error { return moveItem(src, dst, settings) }
		case KindHardlink:
			run = func(ctx *Context) error { return hardlinkItem(src, dst, settings) }
		case KindSymlink:
			run = func(ctx *Context) error { return symlinkItem(src, dst, settings) }
		}

		inputs := []*pathtrie.Node{}
		if kind != KindMove {
			inputs = append(inputs, inputNode)
		}
		tasks = append(tasks, NewTask(idx, label, run, inputs, exclusiveInputs, []*pathtrie.Node{outputNode}))
	}
	return tasks, nil
}

func parseCreateStep(ctx *Context, step *Step) ([]*Task, error) {
	to, err := ExpandAll(step.To, ctx.Environment, false)
	if err != nil {
		return nil, err
	}
	content, err := ExpandVariables(step.Content, ctx.Environment, false)
	if err != nil {
		return nil, err
	}
	settings := HandlerSettings{Force: step.Force, Permissions: os.FileMode(step.Permissions)}

	tasks := make([]*Task, 0, len(to))
	for _, dst := range to {
		outputNode := ctx.Trie.Insert(dst)
		idx := ctx.NextActionIndex()
		label := fmt.Sprintf("create[%d] %s", idx, dst)
		run := func(ctx *Context) error { return createFile(dst, content, settings) }
		tasks = append(tasks, NewTask(idx, label, run, nil, nil, []*pathtrie.Node{outputNode}))
	}
	return tasks, nil
}

func parseDeleteStep(ctx *Context, step *Step) ([]*Task, error) {
	items, err := ExpandAll(step.Items, ctx.Environment, false)
	if err != nil {
		return nil, err
	}
	settings := HandlerSettings{Force: true, Recursive: step.Recursive}

	tasks := make([]*Task, 0, len(items))
	for _, item := range items {
		node := ctx.Trie.Insert(item)
		idx := ctx.NextActionIndex()
		label := fmt.Sprintf("delete[%d] %s", idx, item)
		run := func(ctx *Context) error { return deleteItem(item, settings) }
		// delete consumes its target exclusively: no other task may also
		// consume it (spec.md §3); a task producing it gets an ordinary
		// producer edge instead.
		tasks = append(tasks, NewTask(idx, label, run, nil, []*pathtrie.Node{node}, nil))
	}
	return tasks, nil
}

func parseExecuteStep(ctx *Context, step *Step) ([]*Task, error) {
	idx := ctx.NextActionIndex()
	tool, err := ExpandVariables(step.Tool, ctx.Environment, false)
	if err != nil {
		return nil, err
	}
	args, err := ExpandAll(step.Arguments, ctx.Environment, false)
	if err != nil {
		return nil, err
	}
	stdin, err := ExpandVariables(step.Stdin, ctx.Environment, false)
	if err != nil {
		return nil, err
	}
	stdout, err := ExpandVariables(step.Stdout, ctx.Environment, false)
	if err != nil {
		return nil, err
	}

	var inputs, outputs []*pathtrie.Node
	if stdin != "" {
		inputs = append(inputs, ctx.Trie.Insert(stdin))
	}
	if stdout != "" {
		outputs = append(outputs, ctx.Trie.Insert(stdout))
	}

	settings := HandlerSettings{
		Tool: tool, Arguments: args, Stdin: stdin, Stdout: stdout,
		Env: step.Env, ActionIndex: idx,
	}
	label := fmt.Sprintf("execute[%d] %s", idx, tool)
	run := func(ctx *Context) error { return executeTool(ctx, settings) }
	return []*Task{NewTask(idx, label, run, inputs, nil, outputs)}, nil
}

func parseEchoStep(ctx *Context, step *Step) ([]*Task, error) {
	content, err := ExpandVariables(step.Content, ctx.Environment, false)
	if err != nil {
		return nil, err
	}
	idx := ctx.NextActionIndex()
	label := fmt.Sprintf("echo[%d]", idx)
	run := func(ctx *Context) error { return echo(ctx, content, idx) }
	return []*Task{NewTask(idx, label, run, nil, nil, nil)}, nil
}
