package replaycore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunStreamSerialProcessesEachLine(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.txt")

	lines := `{"action":"create","to":"` + jsonEscape(dst) + `","content":"hi"}` + "\n"
	err := RunStream(strings.NewReader(lines), map[string]string{}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hi" {
		t.Fatalf("got %q", got)
	}
}

func TestRunStreamMalformedLineIsMalformedInput(t *testing.T) {
	err := RunStream(strings.NewReader("not json\n"), map[string]string{}, Options{})
	if err == nil {
		t.Fatalf("expected malformed input error")
	}
}

func jsonEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\\' || r == '"' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
