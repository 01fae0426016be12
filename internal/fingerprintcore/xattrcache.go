package fingerprintcore

import (
	"encoding/binary"
	"os"

	"github.com/pkg/xattr"
)

// xattrName returns the extended-attribute name the cache reads/writes
// for the given algorithm, per spec.md §6 "Xattr layout".
func xattrName(algo Algorithm) string {
	if algo == AlgorithmBLAKE3 {
		return "public.fingerprint.blake3"
	}
	return "public.fingerprint.crc32c"
}

// readXattrCache attempts to read and decode a FileInfoCore from path's
// extended attribute for algo. Any read error, or a value whose length is
// not exactly 32 bytes, is treated as a cache miss (spec.md §6).
func readXattrCache(path string, algo Algorithm) (FileInfoCore, bool) {
	raw, err := xattr.Get(path, xattrName(algo))
	if err != nil || len(raw) != coreRecordSize {
		return FileInfoCore{}, false
	}
	return decodeCoreRecord(raw), true
}

// writeXattrCache marshals core to exactly 32 bytes and writes it to
// path's extended attribute for algo. If the file is not user-writable,
// it temporarily grants user-write, writes, and restores the original
// mode afterward (spec.md §4.7 tier 3).
func writeXattrCache(path string, algo Algorithm, core FileInfoCore) error {
	info, statErr := os.Lstat(path)
	var restoreMode os.FileMode
	needsRestore := false
	if statErr == nil && info.Mode()&0o200 == 0 {
		if err := os.Chmod(path, info.Mode()|0o200); err == nil {
			restoreMode = info.Mode()
			needsRestore = true
		}
	}

	writeErr := xattr.Set(path, xattrName(algo), encodeCoreRecord(core))

	if needsRestore {
		_ = os.Chmod(path, restoreMode)
	}
	return writeErr
}

// clearXattrCache removes any existing cache entry for algo on path. A
// missing attribute is not an error (spec.md §4.7 "xattr mode = clear").
func clearXattrCache(path string, algo Algorithm) error {
	err := xattr.Remove(path, xattrName(algo))
	if err != nil && xattr.IsNotExist(err) {
		return nil
	}
	return err
}

// encodeCoreRecord marshals core to its fixed 32-byte little-endian
// layout: inode, size, mtime_ns, hash[8].
func encodeCoreRecord(core FileInfoCore) []byte {
	buf := make([]byte, coreRecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], core.Inode)
	binary.LittleEndian.PutUint64(buf[8:16], core.Size)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(core.MtimeNS))
	copy(buf[24:32], core.Hash[:])
	return buf
}

// decodeCoreRecord is the inverse of encodeCoreRecord. raw must be exactly
// 32 bytes; callers are expected to have checked this already.
func decodeCoreRecord(raw []byte) FileInfoCore {
	var core FileInfoCore
	core.Inode = binary.LittleEndian.Uint64(raw[0:8])
	core.Size = binary.LittleEndian.Uint64(raw[8:16])
	core.MtimeNS = int64(binary.LittleEndian.Uint64(raw[16:24]))
	copy(core.Hash[:], raw[24:32])
	return core
}
