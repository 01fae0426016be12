package fingerprintcore

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/forgecast/forgecast/internal/replaycore"
)

// ReadInputsFile implements the `--inputs FILE` supplement from
// SPEC_FULL.md §6 SUPPLEMENT, ported from original_source's
// env_var_expand.cpp read_input_file_list: newline-delimited paths, blank
// lines and lines starting with `#` skipped, each remaining line expanded
// against env via the same ${VAR}/$(VAR) syntax Core A uses, and lines
// that expand to empty dropped.
func ReadInputsFile(path string, env map[string]string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open inputs file %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		expanded, err := replaycore.ExpandVariables(line, env, false)
		if err != nil {
			return nil, err
		}
		if expanded == "" {
			continue
		}
		out = append(out, expanded)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read inputs file %s: %w", path, err)
	}
	return out, nil
}
