package replay

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forgecast/forgecast/cmd"
	"github.com/forgecast/forgecast/internal/logger"
)

func init() {
	logger.Init("error", "text", io.Discard)
}

func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf, errBuf bytes.Buffer
	rootCmd := cmd.GetRootCmd()
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	out := buf.String()
	if errBuf.Len() > 0 {
		out += errBuf.String()
	}
	return out, err
}

func writePlaylist(t *testing.T, dir string, doc string) string {
	t.Helper()
	path := filepath.Join(dir, "playlist.json")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCmd_CreateAndClone(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	doc := `{
		"playlist": [
			{"action": "create", "to": "` + jsonEscape(src) + `", "content": "hello"},
			{"action": "clone", "from": "` + jsonEscape(src) + `", "to": "` + jsonEscape(dst) + `"}
		]
	}`
	playlist := writePlaylist(t, dir, doc)

	if _, err := execRoot(t, "replay", "run", playlist); err != nil {
		t.Fatalf("rootCmd.Execute() error = %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("clone destination not created: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestRunCmd_ConcurrentOverride(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")

	doc := `{
		"playlist": [
			{"action": "create", "to": "` + jsonEscape(a) + `", "content": "1"},
			{"action": "create", "to": "` + jsonEscape(b) + `", "content": "2"}
		]
	}`
	playlist := writePlaylist(t, dir, doc)

	if _, err := execRoot(t, "replay", "run", playlist, "--concurrent", "--analyze-dependencies"); err != nil {
		t.Fatalf("rootCmd.Execute() error = %v", err)
	}
	if _, err := os.Stat(a); err != nil {
		t.Errorf("expected %s to exist: %v", a, err)
	}
	if _, err := os.Stat(b); err != nil {
		t.Errorf("expected %s to exist: %v", b, err)
	}
}

func TestRunCmd_MalformedPlaylistErrors(t *testing.T) {
	dir := t.TempDir()
	playlist := writePlaylist(t, dir, `{not valid json`)

	out, err := execRoot(t, "replay", "run", playlist)
	if err == nil {
		t.Fatalf("expected an error for malformed playlist, output: %q", out)
	}
}

func TestStreamCmd_EmptyStdinSucceeds(t *testing.T) {
	// stream reads stdin, which os/exec-style tests can't easily redirect
	// through cobra's in-process Execute(); this test only exercises the
	// flag plumbing, confirming stream is registered and runnable with an
	// immediately-closed stdin (zero lines).
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	w.Close()

	oldStdin := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = oldStdin }()

	if _, err := execRoot(t, "replay", "stream"); err != nil {
		t.Fatalf("rootCmd.Execute() error = %v", err)
	}
}

func jsonEscape(s string) string {
	return strings.ReplaceAll(s, `\`, `\\`)
}
