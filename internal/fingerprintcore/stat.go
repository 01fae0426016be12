package fingerprintcore

import (
	"os"
	"syscall"
)

// deviceOf returns path's underlying device ID and whether it could be
// determined, used to enforce the "physical-device boundary respected"
// rule during traversal (spec.md §4.7 tier 1).
func deviceOf(path string) (uint64, bool) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(stat.Dev), true
}

// inodeAndTimes extracts the {inode, size, mtime_ns} identity triple used
// by the xattr cache and FileInfoCore, per spec.md §3/§4.7.
func inodeAndTimes(info os.FileInfo) (inode uint64, size int64, mtimeNS int64) {
	size = info.Size()
	mtimeNS = info.ModTime().UnixNano()
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		inode = uint64(stat.Ino)
	}
	return
}
