package fingerprintcore

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/forgecast/forgecast/internal/logger"
)

// Filter selects which discovered paths are processed, per spec.md §4.7
// tier 1 "filters by glob/regex". A path passes if it matches every glob
// (doublestar semantics, matched against the path relative to its search
// root) and every regex (matched against the absolute path); an empty
// filter set passes everything.
type Filter struct {
	Globs   []string
	Regexes []*regexp.Regexp
}

// NewFilter compiles globs and regex patterns into a Filter. Glob syntax
// errors surface immediately (doublestar.Match validates patterns lazily,
// so they are checked once here against a throwaway candidate).
func NewFilter(globs, regexPatterns []string) (*Filter, error) {
	f := &Filter{Globs: globs}
	for _, pat := range globs {
		if _, err := doublestar.Match(pat, "probe"); err != nil {
			return nil, err
		}
	}
	for _, pat := range regexPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, err
		}
		f.Regexes = append(f.Regexes, re)
	}
	return f, nil
}

func (f *Filter) matches(relPath, absPath string) bool {
	if f == nil {
		return true
	}
	for _, pat := range f.Globs {
		ok, err := doublestar.Match(pat, relPath)
		if err != nil || !ok {
			return false
		}
	}
	for _, re := range f.Regexes {
		if !re.MatchString(absPath) {
			return false
		}
	}
	return true
}

// discovered is one leaf the traversal tier hands to the file-processing
// tier: a concrete path plus the search root it was found under (used for
// relative fingerprint mode and glob matching).
type discovered struct {
	path       string
	searchRoot string
	brokenLink bool
}

// walker drives the traversal tier of spec.md §4.7: a post-order file
// walk per root, symlink-chain resolution with cycle detection, and
// re-dispatch of directories reached through a symlink that point outside
// every known search root.
type walker struct {
	filter *Filter

	mu          chan struct{} // 1-buffered mutex guarding searchRoots
	searchRoots []string
}

func newWalker(filter *Filter, roots []string) *walker {
	w := &walker{filter: filter, mu: make(chan struct{}, 1), searchRoots: append([]string(nil), roots...)}
	w.mu <- struct{}{}
	return w
}

// addSearchRoot records root in the shared search-root set if not already
// present, returning true if it was newly added (meaning a new traversal
// task should be dispatched for it).
func (w *walker) addSearchRoot(root string) bool {
	<-w.mu
	defer func() { w.mu <- struct{}{} }()
	for _, r := range w.searchRoots {
		if r == root {
			return false
		}
	}
	w.searchRoots = append(w.searchRoots, root)
	return true
}

func (w *walker) roots() []string {
	<-w.mu
	defer func() { w.mu <- struct{}{} }()
	return append([]string(nil), w.searchRoots...)
}

// walkRoot performs a post-order walk of root, sending every file/symlink
// leaf that passes the filter to out. It never chdirs and does not cross
// onto a different physical device (spec.md §4.7 tier 1 "physical-device
// boundary respected"). Directories reached by resolving a symlink chain
// that point outside every known search root are submitted back to
// dispatch via out's redispatch channel.
func (w *walker) walkRoot(root string, out chan<- discovered, redispatch chan<- string) {
	rootDev, hasDev := deviceOf(root)
	var walk func(path string)
	walk = func(path string) {
		info, err := os.Lstat(path)
		if err != nil {
			logger.Warn("stat failed during traversal", "path", path, "error", err)
			return
		}

		if info.IsDir() {
			if hasDev {
				if dev, ok := deviceOf(path); ok && dev != rootDev {
					return
				}
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				logger.Warn("readdir failed during traversal", "path", path, "error", err)
				return
			}
			for _, entry := range entries {
				walk(filepath.Join(path, entry.Name()))
			}
			return
		}

		w.resolveAndEmit(path, root, info, out, redispatch)
	}
	walk(root)
}

// resolveAndEmit follows a symlink chain (if path is a symlink) with
// cycle detection, dispatching any external directory link encountered
// back into traversal and emitting the final file/symlink/missing target
// as a discovered leaf (spec.md §4.7 tier 1).
func (w *walker) resolveAndEmit(path, root string, info os.FileInfo, out chan<- discovered, redispatch chan<- string) {
	if info.Mode()&os.ModeSymlink == 0 {
		if !w.filter.matches(relOrSelf(root, path), path) {
			return
		}
		out <- discovered{path: path, searchRoot: root}
		return
	}

	visited := map[string]bool{path: true}
	cur := path
	for {
		target, err := os.Readlink(cur)
		if err != nil {
			out <- discovered{path: path, searchRoot: root, brokenLink: true}
			return
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(cur), target)
		}
		target = filepath.Clean(target)

		if visited[target] {
			logger.Warn("symlink cycle detected", "path", path, "at", target)
			out <- discovered{path: path, searchRoot: root, brokenLink: true}
			return
		}
		visited[target] = true

		targetInfo, err := os.Lstat(target)
		if err != nil {
			out <- discovered{path: path, searchRoot: root, brokenLink: true}
			return
		}

		if targetInfo.Mode()&os.ModeSymlink != 0 {
			cur = target
			continue
		}

		if targetInfo.IsDir() {
			if !w.underAnyRoot(target) {
				if w.addSearchRoot(target) {
					redispatch <- target
				}
				return
			}
			return
		}

		if !w.filter.matches(relOrSelf(root, path), path) {
			return
		}
		out <- discovered{path: path, searchRoot: root}
		return
	}
}

func (w *walker) underAnyRoot(path string) bool {
	for _, r := range w.roots() {
		if rel, err := filepath.Rel(r, path); err == nil && rel != ".." && !hasParentPrefix(rel) {
			return true
		}
	}
	return false
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}

func relOrSelf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
