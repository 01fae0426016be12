package fingerprintcore

import "testing"

func TestFoldIsStableAcrossPermutations(t *testing.T) {
	a := []Record{
		{Path: "/x/foo", FileInfo: FileInfo{FileInfoCore: FileInfoCore{Hash: [8]byte{1}}}},
		{Path: "/x/bar", FileInfo: FileInfo{FileInfoCore: FileInfoCore{Hash: [8]byte{2}}}},
		{Path: "/x/baz", FileInfo: FileInfo{FileInfoCore: FileInfoCore{Hash: [8]byte{3}}}},
	}
	b := []Record{a[2], a[0], a[1]}

	fa := Fold(a, ModeDefault, nil, AlgorithmCRC32C)
	fb := Fold(b, ModeDefault, nil, AlgorithmCRC32C)
	if fa != fb {
		t.Fatalf("fold differs under permutation: %x vs %x", fa, fb)
	}
}

func TestFoldDefaultModeExcludesSentinel(t *testing.T) {
	withBroken := []Record{
		{Path: "/x/foo", FileInfo: FileInfo{FileInfoCore: FileInfoCore{Hash: [8]byte{1}}}},
		{Path: "/x/broken", FileInfo: FileInfo{FileInfoCore: SentinelFileInfoCore()}},
	}
	withoutBroken := []Record{withBroken[0]}

	fa := Fold(withBroken, ModeDefault, nil, AlgorithmBLAKE3)
	fb := Fold(withoutBroken, ModeDefault, nil, AlgorithmBLAKE3)
	if fa != fb {
		t.Fatalf("expected sentinel entries to be excluded under default mode")
	}
}

func TestFoldRelativeModeDiffersFromDefault(t *testing.T) {
	records := []Record{
		{Path: "/root/foo", FileInfo: FileInfo{FileInfoCore: FileInfoCore{Hash: [8]byte{1}}}},
	}
	def := Fold(records, ModeDefault, nil, AlgorithmBLAKE3)
	rel := Fold(records, ModeRelative, []string{"/root"}, AlgorithmBLAKE3)
	if def == rel {
		t.Fatalf("expected relative mode to change the fold")
	}
}

func TestSortAndDedupRemovesDuplicatePaths(t *testing.T) {
	records := []Record{
		{Path: "/a/b"},
		{Path: "/a/b"},
		{Path: "/a/c"},
	}
	out := SortAndDedup(records)
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
}

func TestStripLongestRootPicksLongestMatch(t *testing.T) {
	got := stripLongestRoot("/a/b/c/file.txt", []string{"/a", "/a/b/c"})
	if got != "file.txt" {
		t.Fatalf("got %q", got)
	}
}
