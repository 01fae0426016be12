package fingerprintcore

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/crc32"
	"github.com/zeebo/blake3"

	"github.com/forgecast/forgecast/internal/logger"
)

// mmapThreshold is the file size, in bytes, at and above which hashing
// reads the file via a memory mapping instead of a pooled buffer
// (spec.md §4.7 tier 3, §8 "File size exactly 16 MiB").
const mmapThreshold = 16 << 20

// readBufferSize is the pooled-buffer size used for files below
// mmapThreshold, matching the teacher's merkle buffer size.
const readBufferSize = 256 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, readBufferSize)
		return &buf
	},
}

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// hasher abstracts over CRC32C (klauspost/crc32's Castagnoli table, which
// selects the SSE4.2/ARM64 hardware path when available)
// and BLAKE3, so hashFileContents can be algorithm-agnostic.
type hasher interface {
	io.Writer
	sum8() [8]byte
}

type crc32cHasher struct{ h uint32 }

func (c *crc32cHasher) Write(p []byte) (int, error) {
	c.h = crc32.Update(c.h, crc32cTable, p)
	return len(p), nil
}

func (c *crc32cHasher) sum8() [8]byte {
	var out [8]byte
	out[0] = byte(c.h)
	out[1] = byte(c.h >> 8)
	out[2] = byte(c.h >> 16)
	out[3] = byte(c.h >> 24)
	return out
}

type blake3Hasher struct{ h *blake3.Hasher }

func (b *blake3Hasher) Write(p []byte) (int, error) { return b.h.Write(p) }

func (b *blake3Hasher) sum8() [8]byte {
	full := b.h.Sum(nil)
	var out [8]byte
	copy(out[:], full[:8])
	return out
}

func newHasher(algo Algorithm) hasher {
	if algo == AlgorithmBLAKE3 {
		return &blake3Hasher{h: blake3.New()}
	}
	return &crc32cHasher{}
}

// hashSymlink hashes a symlink's target path string, per spec.md §4.7
// tier 3: "Symlinks: hash the link target string as read by readlink, not
// the file the symlink points to."
func hashSymlink(path string, algo Algorithm) ([8]byte, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return sentinelHash, fmt.Errorf("readlink %s: %w", path, err)
	}
	h := newHasher(algo)
	if _, err := h.Write([]byte(target)); err != nil {
		return sentinelHash, err
	}
	return h.sum8(), nil
}

// hashFileContents hashes a regular file's contents, choosing mmap or a
// pooled buffer by size (spec.md §4.7 tier 3). Empty files hash to the
// zero value of the algorithm's 8-byte slot, per spec.md §4.7 "Empty
// files: hash remains zero."
func hashFileContents(path string, size int64, algo Algorithm) ([8]byte, error) {
	if size == 0 {
		return [8]byte{}, nil
	}
	if size >= mmapThreshold {
		return hashViaMmap(path, algo)
	}
	return hashViaBuffer(path, algo)
}

func hashViaBuffer(path string, algo Algorithm) ([8]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return sentinelHash, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)
	buf := *bufPtr

	h := newHasher(algo)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return sentinelHash, werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return sentinelHash, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return h.sum8(), nil
}

// hashViaMmap maps the whole file read-only and feeds it to the hasher in
// one call, avoiding the read syscall loop for large files (spec.md §4.7
// tier 3). No access-pattern advice (madvise) is given for the mapping.
func hashViaMmap(path string, algo Algorithm) ([8]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return sentinelHash, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	mapping, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		logger.Warn("mmap failed, falling back to buffered read", "path", path, "error", err)
		return hashViaBuffer(path, algo)
	}
	defer mapping.Unmap()

	h := newHasher(algo)
	if _, err := h.Write(mapping); err != nil {
		return sentinelHash, err
	}
	return h.sum8(), nil
}
