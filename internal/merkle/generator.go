package merkle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/krishraghuram/dmerk/internal/ignore"
	"github.com/krishraghuram/dmerk/internal/logger"
)

const (
	// DefaultBufferSize is the buffer size used when streaming a file's
	// contents through the digest primitive.
	DefaultBufferSize = 256 * 1024 // 256KB

	// DefaultMaxWorkers bounds concurrent file hashing to avoid IO
	// thrashing; the per-file hashing step is embarrassingly parallel
	// and I/O bound, so fanning it out to a small worker pool is a
	// pure internal optimization with no effect on the resulting tree.
	DefaultMaxWorkers = 8
)

// Generator walks a filesystem subtree and constructs a Merkle node
// for the root, recursively. Its external contract is synchronous:
// any parallelism in its file-hashing fan-out is an internal
// optimization invisible to callers (see spec §5).
type Generator struct {
	maxWorkers      int
	bufferPool      *sync.Pool
	sem             chan struct{}
	matcher         ignore.Matcher
	rootPath        string
	continueOnError bool
}

// NewGenerator creates a Generator with default settings: no
// exclusions, ContinueOnError disabled, DefaultMaxWorkers workers.
func NewGenerator() *Generator {
	return NewGeneratorWithWorkers(DefaultMaxWorkers)
}

// NewGeneratorWithWorkers creates a Generator with a custom worker
// count. A non-positive count falls back to DefaultMaxWorkers.
func NewGeneratorWithWorkers(maxWorkers int) *Generator {
	if maxWorkers < 1 {
		maxWorkers = DefaultMaxWorkers
	}
	return &Generator{
		maxWorkers: maxWorkers,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, DefaultBufferSize)
				return &buf
			},
		},
		sem: make(chan struct{}, maxWorkers),
	}
}

// NewGeneratorWithOptions creates a Generator with exclusion patterns
// and ContinueOnError behavior. patterns are exclusion patterns
// (e.g. "node_modules", ".git"); rootPath is used to resolve relative
// exclusion matching; if loadIgnoreFile is true, .dmerkignore/.gitignore
// files are found from the current working directory upwards, not from
// rootPath; customIgnoreFile, if non-empty, is loaded with the highest
// priority.
func NewGeneratorWithOptions(maxWorkers int, continueOnError bool, patterns []string, rootPath string, loadIgnoreFile bool, customIgnoreFile string) (*Generator, error) {
	matcher, err := ignore.NewMatcher(patterns, rootPath, loadIgnoreFile, customIgnoreFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create exclusion matcher: %w", err)
	}

	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	if maxWorkers < 1 {
		maxWorkers = DefaultMaxWorkers
	}

	return &Generator{
		maxWorkers: maxWorkers,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, DefaultBufferSize)
				return &buf
			},
		},
		sem:             make(chan struct{}, maxWorkers),
		matcher:         matcher,
		rootPath:        absRoot,
		continueOnError: continueOnError,
	}, nil
}

// NewEngineWithExclusions is a teacher-compatible alias that leaves
// ContinueOnError disabled.
func NewEngineWithExclusions(maxWorkers int, patterns []string, rootPath string, loadIgnoreFile bool, customIgnoreFile string) (*Generator, error) {
	return NewGeneratorWithOptions(maxWorkers, false, patterns, rootPath, loadIgnoreFile, customIgnoreFile)
}

// Generate computes the Merkle tree rooted at path using default
// settings. For more control over exclusions, concurrency, or
// continue-on-error behavior, construct a Generator directly.
func Generate(path string) (*Node, error) {
	return NewGenerator().Generate(path)
}

// Generate computes the Merkle tree rooted at path using this
// Generator's configuration. It fails with ErrNotADirectory if path
// does not exist or is not a directory.
func (g *Generator) Generate(path string) (*Node, error) {
	if g.rootPath == "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		g.rootPath = absPath
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrNotADirectory, path)
	}

	visited := &sync.Map{}
	return g.walk(path, visited)
}

// HashPath is a teacher-compatible alias for Generate.
func (g *Generator) HashPath(path string) (*Node, error) { return g.Generate(path) }

// excluded reports whether absPath (a directory entry under the
// generator's root) should be skipped per the configured matcher.
func (g *Generator) excluded(absPath string, isDir bool) bool {
	if g.matcher == nil {
		return false
	}
	relPath, err := filepath.Rel(g.rootPath, absPath)
	if err != nil {
		relPath = filepath.Base(absPath)
	}
	return g.matcher.Match(relPath, isDir) ||
		g.matcher.Match(absPath, isDir) ||
		g.matcher.Match(filepath.Base(absPath), isDir)
}

// walk classifies and hashes a single filesystem entry. Symlinks are
// tested before directories or files, since a symlink can resolve as
// either.
func (g *Generator) walk(path string, visited *sync.Map) (*Node, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for %q: %w", path, err)
	}

	if _, exists := visited.Load(absPath); exists {
		return nil, fmt.Errorf("%w: circular symlink at %q", ErrIoError, absPath)
	}
	visited.Store(absPath, true)
	defer visited.Delete(absPath)

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat %q: %v", ErrIoError, absPath, err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return g.buildSymlink(absPath)
	}
	if info.IsDir() {
		return g.hashDir(absPath, visited)
	}
	return g.buildFile(absPath, uint64(info.Size()))
}

func (g *Generator) buildSymlink(path string) (*Node, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read symlink %q: %v", ErrIoError, path, err)
	}
	lstat, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat symlink %q: %v", ErrIoError, path, err)
	}
	digest := HashString(target)
	return NewSymlink(path, uint64(lstat.Size()), digest), nil
}

func (g *Generator) buildFile(path string, size uint64) (*Node, error) {
	logger.Debug("hashing file", "path", path, "size", size)

	f, err := os.Open(path) //nolint:gosec // path originates from a directory walk rooted by the caller
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %q: %v", ErrIoError, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("failed to close file", "path", path, "error", cerr)
		}
	}()

	bufPtr, ok := g.bufferPool.Get().(*[]byte)
	if !ok {
		return nil, fmt.Errorf("%w: failed to get a hashing buffer for %q", ErrIoError, path)
	}
	defer g.bufferPool.Put(bufPtr)

	digest, err := HashBytesBuffered(f, *bufPtr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to hash %q: %v", ErrIoError, path, err)
	}
	return NewFile(path, size, digest), nil
}

type dirEntry struct {
	entry os.DirEntry
	path  string
}

// hashDir enumerates a directory's immediate entries, hashes each
// (fanning out file hashing across a bounded worker pool), and folds
// the sorted child digests into the directory's own digest per the
// location-independent algorithm in spec §4.3.
func (g *Generator) hashDir(path string, visited *sync.Map) (*Node, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read directory %q: %v", ErrIoError, path, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var work []dirEntry
	for _, entry := range entries {
		childPath := filepath.Join(path, entry.Name())
		entryType := entry.Type()

		if entryType&(os.ModeNamedPipe|os.ModeSocket|os.ModeDevice|os.ModeCharDevice) != 0 {
			if g.continueOnError {
				logger.Warn("skipping unclassifiable entry", "path", childPath)
				continue
			}
			return nil, fmt.Errorf("%w: %q", ErrInvalidEntry, childPath)
		}

		isSymlink := entryType&os.ModeSymlink != 0
		if g.excluded(childPath, entry.IsDir() && !isSymlink) {
			logger.Debug("excluding entry", "path", childPath)
			continue
		}
		work = append(work, dirEntry{entry: entry, path: childPath})
	}

	children := make(map[string]*Node, len(work))
	if len(work) > 0 {
		nodes := make([]*Node, len(work))
		errs := make([]error, len(work))
		var wg sync.WaitGroup

		for i, item := range work {
			entryType := item.entry.Type()
			switch {
			case entryType&os.ModeSymlink != 0:
				nodes[i], errs[i] = g.buildSymlink(item.path)
			case item.entry.IsDir():
				nodes[i], errs[i] = g.hashDir(item.path, visited)
			default:
				info, infoErr := item.entry.Info()
				if infoErr != nil {
					errs[i] = fmt.Errorf("%w: failed to stat %q: %v", ErrIoError, item.path, infoErr)
					continue
				}
				wg.Add(1)
				go func(idx int, p string, size int64) {
					defer wg.Done()
					g.sem <- struct{}{}
					defer func() { <-g.sem }()
					nodes[idx], errs[idx] = g.buildFile(p, uint64(size))
				}(i, item.path, info.Size())
			}
		}
		wg.Wait()

		for i, err := range errs {
			if err == nil {
				children[nodes[i].Path] = nodes[i]
				continue
			}
			if g.continueOnError {
				logger.Warn("skipping entry after error", "path", work[i].path, "error", err)
				continue
			}
			return nil, err
		}
	}

	digest, size := foldDirectory(children, path)
	return NewDirectory(path, size, digest, children), nil
}

// foldDirectory computes the directory digest and size described in
// spec §4.3 step 3–4: the digest is the hash of the child digests
// sorted lexically and joined with a literal comma, and the size is
// the directory inode's own size plus the sum of its children's
// sizes.
func foldDirectory(children map[string]*Node, path string) (digest string, size uint64) {
	digests := make([]string, 0, len(children))
	for _, c := range children {
		digests = append(digests, c.Digest)
		size += c.Size
	}
	sort.Strings(digests)
	digest = HashString(strings.Join(digests, ","))

	if info, err := os.Lstat(path); err == nil {
		size += uint64(info.Size())
	}
	return digest, size
}
