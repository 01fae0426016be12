package fingerprintcore

import (
	"fmt"
	"io"
)

// ListMatchedPaths implements the `--list` supplement from SPEC_FULL.md §6
// SUPPLEMENT (ported from original_source's fingerprint.h
// list_matched_files): prints every discovered path, one per line, in the
// same reverse-path order used for the fold, and skips hashing entirely —
// the caller should run the traversal tier only, not the full pipeline.
func ListMatchedPaths(w io.Writer, records []Record) error {
	sorted := SortAndDedup(records)
	for _, r := range sorted {
		if _, err := fmt.Fprintln(w, r.Path); err != nil {
			return err
		}
	}
	return nil
}
