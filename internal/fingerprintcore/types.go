// Package fingerprintcore implements Core B: a concurrent content-addressed
// directory hasher that walks one or more roots, filters by glob/regex,
// hashes file contents with CRC32C or BLAKE3, caches per-file results in an
// extended attribute, and folds the set into a single 64-bit fingerprint.
package fingerprintcore

import "os"

// Algorithm names the hash function used to fingerprint file contents.
type Algorithm string

const (
	AlgorithmCRC32C Algorithm = "crc32c"
	AlgorithmBLAKE3 Algorithm = "blake3"
)

// FingerprintMode controls what, if anything, a file's path contributes to
// the final fold (spec.md §4.7 "Fingerprint fold").
type FingerprintMode string

const (
	// ModeDefault folds only hash bytes; broken symlinks are excluded.
	ModeDefault FingerprintMode = "default"
	// ModeAbsolute folds the absolute path (NUL-terminated) plus hash bytes.
	ModeAbsolute FingerprintMode = "absolute"
	// ModeRelative folds the path with its longest matching search root
	// stripped (NUL-terminated) plus hash bytes.
	ModeRelative FingerprintMode = "relative"
)

// XattrMode controls how the per-file extended-attribute cache is consulted
// and maintained (spec.md §4.7 tier 3).
type XattrMode string

const (
	XattrOn      XattrMode = "on"
	XattrOff     XattrMode = "off"
	XattrRefresh XattrMode = "refresh"
	XattrClear   XattrMode = "clear"
)

// coreRecordSize is the fixed on-disk/on-xattr size of FileInfoCore in
// bytes, per spec.md §3.
const coreRecordSize = 32

// sentinelHash marks a FileInfoCore with no computable hash (e.g. a broken
// symlink target, or "no cached entry"): all-ones across the hash union.
var sentinelHash = [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// FileInfoCore is the fixed 32-byte record persisted verbatim into a file's
// extended attribute, per spec.md §3: inode(8) + size(8) + mtime-ns(8) +
// a hash union(8) that holds either crc32c(4)+reserved(4) or blake3-low64(8).
type FileInfoCore struct {
	Inode uint64
	Size  uint64
	// MtimeNS is the file's modification time in nanoseconds since the
	// Unix epoch.
	MtimeNS int64
	// Hash holds the algorithm-specific digest bytes: for CRC32C, the
	// 4-byte checksum followed by 4 reserved zero bytes; for BLAKE3, the
	// low 8 bytes of the full digest.
	Hash [8]byte
}

// IsSentinel reports whether c represents "no entry" (a fresh record with
// no computed hash).
func (c FileInfoCore) IsSentinel() bool {
	return c.Inode == 0 && c.Size == 0 && c.MtimeNS == 0 && c.Hash == sentinelHash
}

// SentinelFileInfoCore returns the not-yet-computed sentinel record,
// per spec.md §3 "Non-existent sentinel".
func SentinelFileInfoCore() FileInfoCore {
	return FileInfoCore{Hash: sentinelHash}
}

// Matches reports whether c's identity triple matches a freshly-stat'd
// file, i.e. whether a cached hash can be trusted without rereading the
// file (spec.md §4.7 tier 3, §8 "xattr cache hit" invariant).
func (c FileInfoCore) Matches(inode uint64, size int64, mtimeNS int64) bool {
	return c.Inode == inode && c.Size == uint64(size) && c.MtimeNS == mtimeNS
}

// FileInfo is FileInfoCore plus runtime-only mode bits, per spec.md §3.
type FileInfo struct {
	FileInfoCore
	Mode os.FileMode
}

// Record is one entry in the aggregation vector and in a Snapshot's files
// array: a resolved path plus the FileInfo computed (or cached) for it.
type Record struct {
	Path string
	FileInfo
}

// Params captures the parameters of one fingerprint run, persisted as a
// snapshot document's fingerprint_params (spec.md §3).
type Params struct {
	Roots           []string        `json:"roots"`
	Globs           []string        `json:"globs,omitempty"`
	Regexes         []string        `json:"regexes,omitempty"`
	Hash            Algorithm       `json:"hash"`
	FingerprintMode FingerprintMode `json:"fingerprint_mode"`
	Fingerprint     string          `json:"fingerprint"`
	Timestamp       string          `json:"timestamp"`
}

// Snapshot is the top-level document written and read by snapshot I/O,
// per spec.md §3 and §4.8: two top-level keys, fingerprint_params and
// files.
type Snapshot struct {
	Params Params         `json:"fingerprint_params"`
	Files  []SnapshotFile `json:"files"`
}

// SnapshotFile is one per-file record in a Snapshot's files array.
type SnapshotFile struct {
	Path     string `json:"path"`
	Hash     string `json:"hash"`
	Size     uint64 `json:"size"`
	Inode    uint64 `json:"inode"`
	MtimeNS  int64  `json:"mtime_ns"`
	Mode     uint32 `json:"mode"`
}
