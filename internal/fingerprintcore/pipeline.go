package fingerprintcore

import (
	"context"
	"os"
	"sync"

	"github.com/tklauser/numcpus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/forgecast/forgecast/internal/logger"
)

// Options configures one fingerprint run, collecting the CLI-level
// parameters spec.md §6 names for Core B.
type Options struct {
	Roots           []string
	Filter          *Filter
	Hash            Algorithm
	FingerprintMode FingerprintMode
	Xattr           XattrMode
}

// Pipeline runs the four dispatch tiers of spec.md §4.7 over Options.Roots
// and returns the discovered files unsorted and not deduplicated (Fold and
// ListMatchedPaths sort and deduplicate). It mirrors original_source's
// dispatch_queues_helper: a concurrent traversal tier, a CPU-gated hashing
// tier, a concurrent file-processing tier, and a mutex-guarded aggregation
// append.
type Pipeline struct {
	opts Options

	aggMu   sync.Mutex
	records []Record
}

// NewPipeline constructs a Pipeline for opts.
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// traverse drives tier 1 (traversal) alone, sending every discovered leaf
// to discoveredCh and closing it once every root (including any
// redispatched via a symlink) has drained.
func (p *Pipeline) traverse(ctx context.Context, discoveredCh chan<- discovered) error {
	w := newWalker(p.opts.Filter, p.opts.Roots)

	redispatchCh := make(chan string, 64)

	traversal, tctx := errgroup.WithContext(ctx)
	var pending sync.WaitGroup

	var dispatchRoot func(root string)
	dispatchRoot = func(root string) {
		pending.Add(1)
		traversal.Go(func() error {
			defer pending.Done()
			if tctx.Err() != nil {
				return nil
			}
			w.walkRoot(root, discoveredCh, redispatchCh)
			return nil
		})
	}
	for _, root := range p.opts.Roots {
		dispatchRoot(root)
	}

	// The redispatch pump turns symlink-discovered external directories
	// into new traversal tasks, matching spec.md §4.7 tier 1's
	// "dispatches a new traversal task" behavior.
	redispatchDone := make(chan struct{})
	go func() {
		defer close(redispatchDone)
		for root := range redispatchCh {
			dispatchRoot(root)
		}
	}()

	pending.Wait()
	close(redispatchCh)
	<-redispatchDone
	close(discoveredCh)

	return traversal.Wait()
}

// ListPaths implements the `--list` supplement (SPEC_FULL.md §6
// SUPPLEMENT): runs traversal and filtering only, skipping the hash and
// fold stages entirely, and returns the matched paths in the same
// reverse-path order the fold would use.
func (p *Pipeline) ListPaths(ctx context.Context) ([]string, error) {
	discoveredCh := make(chan discovered, 256)
	var mu sync.Mutex
	var paths []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range discoveredCh {
			mu.Lock()
			paths = append(paths, d.path)
			mu.Unlock()
		}
	}()

	if err := p.traverse(ctx, discoveredCh); err != nil {
		logger.Warn("traversal tier reported an error", "error", err)
	}
	<-done

	records := make([]Record, len(paths))
	for i, path := range paths {
		records[i] = Record{Path: path}
	}
	sorted := SortAndDedup(records)
	out := make([]string, len(sorted))
	for i, r := range sorted {
		out[i] = r.Path
	}
	return out, nil
}

// Run drains every root, returning the accumulated (not yet sorted)
// records. Traversal and file-processing errors are logged and do not
// abort the run — spec.md §7 "hash-pipeline errors... non-fatal".
func (p *Pipeline) Run(ctx context.Context) ([]Record, error) {
	cpuLimit := physicalCoreCount()
	gate := semaphore.NewWeighted(int64(cpuLimit))

	discoveredCh := make(chan discovered, 256)

	var traversalErr error
	traversalDone := make(chan struct{})
	go func() {
		defer close(traversalDone)
		traversalErr = p.traverse(ctx, discoveredCh)
	}()

	processing, pctx := errgroup.WithContext(ctx)
	for d := range discoveredCh {
		d := d
		if pctx.Err() != nil {
			continue
		}
		processing.Go(func() error {
			if err := gate.Acquire(pctx, 1); err != nil {
				return nil
			}
			defer gate.Release(1)
			p.processOne(d)
			return nil
		})
	}

	<-traversalDone
	if traversalErr != nil {
		logger.Warn("traversal tier reported an error", "error", traversalErr)
	}
	if err := processing.Wait(); err != nil {
		logger.Warn("file-processing tier reported an error", "error", err)
	}

	p.aggMu.Lock()
	defer p.aggMu.Unlock()
	return append([]Record(nil), p.records...), nil
}

// processOne is tier 3: consult the xattr cache, otherwise compute the
// hash, then append to the shared aggregation vector under the
// aggregation lock (tier 4, modeled as a mutex-guarded append per
// spec.md §9 "Single-shared-mutable containers").
func (p *Pipeline) processOne(d discovered) {
	info, err := os.Lstat(d.path)
	if err != nil {
		logger.Warn("stat failed before hashing", "path", d.path, "error", err)
		p.append(Record{Path: d.path, FileInfo: FileInfo{FileInfoCore: SentinelFileInfoCore()}})
		return
	}

	if d.brokenLink {
		p.append(Record{Path: d.path, FileInfo: FileInfo{FileInfoCore: SentinelFileInfoCore(), Mode: info.Mode()}})
		return
	}

	inode, size, mtimeNS := inodeAndTimes(info)

	if p.opts.Xattr == XattrClear {
		if err := clearXattrCache(d.path, p.opts.Hash); err != nil {
			logger.Warn("failed to clear xattr cache", "path", d.path, "error", err)
		}
	}

	if p.opts.Xattr == XattrOn {
		if cached, ok := readXattrCache(d.path, p.opts.Hash); ok && cached.Matches(inode, size, mtimeNS) {
			p.append(Record{Path: d.path, FileInfo: FileInfo{FileInfoCore: cached, Mode: info.Mode()}})
			return
		}
	}

	var hashBytes [8]byte
	if info.Mode()&os.ModeSymlink != 0 {
		hashBytes, err = hashSymlink(d.path, p.opts.Hash)
	} else {
		hashBytes, err = hashFileContents(d.path, size, p.opts.Hash)
	}
	if err != nil {
		logger.Warn("hashing failed", "path", d.path, "error", err)
		hashBytes = sentinelHash
	}

	core := FileInfoCore{Inode: inode, Size: uint64(size), MtimeNS: mtimeNS, Hash: hashBytes}

	if p.opts.Xattr == XattrOn || p.opts.Xattr == XattrRefresh {
		if err := writeXattrCache(d.path, p.opts.Hash, core); err != nil {
			logger.Warn("failed to write xattr cache", "path", d.path, "error", err)
		}
	}

	p.append(Record{Path: d.path, FileInfo: FileInfo{FileInfoCore: core, Mode: info.Mode()}})
}

func (p *Pipeline) append(r Record) {
	p.aggMu.Lock()
	p.records = append(p.records, r)
	p.aggMu.Unlock()
}

// physicalCoreCount resolves the CPU gate's semaphore weight, mirroring
// original_source's get_physical_core_count fallback chain
// (sysconf(_SC_NPROCESSORS_ONLN) -> sysctlbyname("hw.physicalcpu") ->
// sysctlbyname("hw.logicalcpu") -> default 8). numcpus.GetOnline reports
// the kernel's online-CPU count, the closest portable analogue available
// in the pack to the original's first fallback tier; a fixed default of 8
// covers the case where even that read fails (spec.md §4.7 tier 2, §5).
func physicalCoreCount() int {
	if n, err := numcpus.GetOnline(); err == nil && n > 0 {
		return n
	}
	return 8
}
