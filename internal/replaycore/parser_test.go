package replaycore

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestContext(opts Options) *Context {
	return NewContext(map[string]string{}, opts)
}

func TestPairSourcesOneToOneIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	pairs, err := pairSources([]string{"a.txt", "b.txt"}, []string{dir + "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	if pairs[0][1] != dir+"/a.txt" || pairs[1][1] != dir+"/b.txt" {
		t.Fatalf("unexpected pairs: %v", pairs)
	}
}

func TestPairSourcesOneToOneMatched(t *testing.T) {
	pairs, err := pairSources([]string{"a.txt", "b.txt"}, []string{"x.txt", "y.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pairs[0] != [2]string{"a.txt", "x.txt"} || pairs[1] != [2]string{"b.txt", "y.txt"} {
		t.Fatalf("unexpected pairs: %v", pairs)
	}
}

func TestPairSourcesMismatchedCardinalityErrors(t *testing.T) {
	_, err := pairSources([]string{"a.txt", "b.txt"}, []string{"x.txt"})
	if err == nil {
		t.Fatalf("expected a resolution error for mismatched cardinality")
	}
}

func TestParseStepsCloneMaterializesOneTaskPerSource(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	for _, name := range []string{"one.txt", "two.txt"} {
		if err := os.WriteFile(filepath.Join(srcDir, name), []byte("hi"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ctx := newTestContext(Options{})
	steps := []Step{{
		Action: "clone",
		From:   StringOrList{filepath.Join(srcDir, "one.txt"), filepath.Join(srcDir, "two.txt")},
		To:     StringOrList{dstDir + "/"},
	}}

	tasks, err := ParseSteps(ctx, steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if err := RunSerial(ctx, tasks); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, name := range []string{"one.txt", "two.txt"} {
		if _, err := os.Stat(filepath.Join(dstDir, name)); err != nil {
			t.Fatalf("expected %s to be cloned: %v", name, err)
		}
	}
}

func TestParseStepsCreateWritesContent(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	ctx := newTestContext(Options{})
	steps := []Step{{Action: "create", To: StringOrList{dest}, Content: "hello ${WHO}"}}
	ctx.Environment["WHO"] = "world"

	tasks, err := ParseSteps(ctx, steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RunSerial(ctx, tasks); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestParseStepsDeleteRequiresRecursiveForDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := newTestContext(Options{})
	steps := []Step{{Action: "delete", Items: []string{sub}}}
	tasks, err := ParseSteps(ctx, steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RunSerial(ctx, tasks); err == nil {
		t.Fatalf("expected error deleting a directory without recursive")
	}
}

func TestParseStepsInvalidActionIsMalformed(t *testing.T) {
	ctx := newTestContext(Options{})
	_, err := ParseSteps(ctx, []Step{{Action: "teleport"}})
	if err == nil {
		t.Fatalf("expected malformed input error")
	}
}

func TestParseStepsCloneThenMoveBuildsGraphEdge(t *testing.T) {
	srcDir := t.TempDir()
	midDir := t.TempDir()
	dstDir := t.TempDir()
	src := filepath.Join(srcDir, "f.txt")
	if err := os.WriteFile(src, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	mid := filepath.Join(midDir, "f.txt")
	dst := filepath.Join(dstDir, "f.txt")

	ctx := newTestContext(Options{Concurrent: true, AnalyzeDependencies: true})
	steps := []Step{
		{Action: "clone", From: StringOrList{src}, To: StringOrList{mid}},
		{Action: "move", From: StringOrList{mid}, To: StringOrList{dst}},
	}
	tasks, err := ParseSteps(ctx, steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g, err := BuildGraph(ctx, tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Roots) != 1 {
		t.Fatalf("got %d roots, want 1 (move should depend on clone)", len(g.Roots))
	}
	sched := NewScheduler(0)
	if err := sched.Run(ctx, g); err != nil {
		t.Fatalf("scheduler run failed: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected final file to exist: %v", err)
	}
}
