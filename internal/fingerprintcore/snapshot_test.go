package fingerprintcore

import (
	"path/filepath"
	"testing"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		Params: Params{Roots: []string{"/data"}, Hash: AlgorithmBLAKE3, FingerprintMode: ModeDefault, Fingerprint: "deadbeefdeadbeef"},
		Files: []SnapshotFile{
			{Path: "/data/a.txt", Hash: "aabbccdd", Size: 3, Inode: 42, MtimeNS: 100, Mode: 0o644},
			{Path: "/data/b.txt", Hash: "11223344", Size: 4, Inode: 43, MtimeNS: 200, Mode: 0o644},
		},
	}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	snap := sampleSnapshot()
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got.Files) != 2 || got.Params.Fingerprint != snap.Params.Fingerprint {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSnapshotTSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.tsv")
	snap := sampleSnapshot()
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(got.Files))
	}
	if got.Files[0].Path != "/data/a.txt" || got.Files[0].Size != 3 {
		t.Fatalf("unexpected row: %+v", got.Files[0])
	}
	if got.Params.Hash != AlgorithmBLAKE3 {
		t.Fatalf("got hash algo %q", got.Params.Hash)
	}
}

func TestSnapshotPlistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.plist")
	snap := sampleSnapshot()
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(got.Files))
	}
}

func TestCompareDetectsAddedAndModified(t *testing.T) {
	before := Snapshot{Files: []SnapshotFile{
		{Path: "/a", Hash: "1", Size: 1, MtimeNS: 1},
		{Path: "/b", Hash: "2", Size: 2, MtimeNS: 2},
	}}
	after := Snapshot{Files: []SnapshotFile{
		{Path: "/a", Hash: "1", Size: 1, MtimeNS: 1},
		{Path: "/b", Hash: "22", Size: 2, MtimeNS: 3},
		{Path: "/c", Hash: "3", Size: 3, MtimeNS: 3},
	}}
	result := Compare(before, after)
	if !result.HasDiff() {
		t.Fatalf("expected a diff")
	}
	var kinds []DiffKind
	for _, e := range result.Entries {
		kinds = append(kinds, e.Kind)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("got %d entries, want 2 (modified /b, added /c): %v", len(result.Entries), kinds)
	}
}

func TestCompareNoDiffWhenIdentical(t *testing.T) {
	snap := sampleSnapshot()
	result := Compare(snap, snap)
	if result.HasDiff() {
		t.Fatalf("expected no diff comparing a snapshot to itself")
	}
}
