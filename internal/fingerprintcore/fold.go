package fingerprintcore

import (
	"encoding/binary"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// reverseLess implements the reverse-lexicographic comparator from
// spec.md §4.7 "Fingerprint fold": paths diverge more near their tails,
// so comparing from the last byte toward the first is used instead of the
// natural left-to-right order.
func reverseLess(a, b string) bool {
	for i, j := len(a)-1, len(b)-1; i >= 0 && j >= 0; i, j = i-1, j-1 {
		if a[i] != b[j] {
			return a[i] < b[j]
		}
	}
	return len(a) < len(b)
}

// SortAndDedup sorts records under the reverse-path comparator and
// removes duplicate paths, keeping the first occurrence, per spec.md §4.7
// and the §8 invariant "any permutation of search roots yielding the same
// set of files" produces an identical fold.
func SortAndDedup(records []Record) []Record {
	sorted := append([]Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return reverseLess(sorted[i].Path, sorted[j].Path) })

	out := sorted[:0]
	seen := make(map[string]bool, len(sorted))
	for _, r := range sorted {
		if seen[r.Path] {
			continue
		}
		seen[r.Path] = true
		out = append(out, r)
	}
	return out
}

// Fold computes the 64-bit fingerprint over records, per spec.md §4.7
// "Fingerprint fold": feeds, per surviving entry in reverse-path order,
// the path (NUL-terminated) when mode is absolute/relative, then the
// entry's hash bytes, then finalizes to 8 bytes interpreted as a uint64.
// Entries with a sentinel hash are excluded when mode is "default"
// (spec.md §8 "Broken symlink... excluded under default").
func Fold(records []Record, mode FingerprintMode, roots []string, algo Algorithm) uint64 {
	sorted := SortAndDedup(records)

	h := blake3.New()
	hashLen := 8
	if algo == AlgorithmCRC32C {
		hashLen = 4
	}
	for _, r := range sorted {
		if mode == ModeDefault && r.FileInfoCore.Hash == sentinelHash {
			continue
		}
		switch mode {
		case ModeAbsolute:
			h.Write([]byte(r.Path))
			h.Write([]byte{0})
		case ModeRelative:
			h.Write([]byte(stripLongestRoot(r.Path, roots)))
			h.Write([]byte{0})
		}
		h.Write(r.FileInfoCore.Hash[:hashLen])
	}

	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// stripLongestRoot removes the longest matching search root prefix from
// path, per spec.md §4.7 "relative mode = longest matching search root
// stripped".
func stripLongestRoot(path string, roots []string) string {
	best := ""
	for _, root := range roots {
		clean := filepath.Clean(root)
		if strings.HasPrefix(path, clean) && len(clean) > len(best) {
			best = clean
		}
	}
	if best == "" {
		return path
	}
	rest := strings.TrimPrefix(path, best)
	return strings.TrimPrefix(rest, string(filepath.Separator))
}
