// Package ignore provides pattern matching functionality for excluding files and directories
// from hash computation. It supports .gitignore-style patterns including glob patterns,
// directory-only matches, and negation patterns. The package can load patterns from
// .dmerkignore, .gitignore, and custom ignore files.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/krishraghuram/dmerk/internal/logger"
)

// Matcher determines if a path should be excluded from hashing.
// Implementations of this interface provide pattern matching functionality
// to filter files and directories during hash computation.
type Matcher interface {
	// Match returns true if the path should be excluded from hashing.
	// The path can be relative to the root being hashed or absolute.
	//
	// Parameters:
	//   - path: The path to check (relative or absolute)
	//   - isDir: Whether the path represents a directory
	//
	// Returns true if the path matches an exclusion pattern and should be excluded.
	Match(path string, isDir bool) bool
}

// PatternMatcher matches paths against exclusion patterns.
// Supports patterns similar to .gitignore:
// - Exact matches: "node_modules"
// - Directory matches: "node_modules/" (matches directories only)
// - Glob patterns: "*.log", "**/build"
type PatternMatcher struct {
	patterns []pattern
}

type pattern struct {
	// raw is the original pattern string
	raw string
	// isDirOnly is true if pattern ends with /
	isDirOnly bool
	// isNegation is true if pattern starts with !
	isNegation bool
	// anchored is true if the pattern contains a path separator, meaning
	// it must match starting from the root rather than at any depth
	anchored bool
	// glob is the doublestar-compatible pattern used for matching
	glob string
}

// NewPatternMatcher creates a new pattern matcher from a list of patterns.
// Patterns support .gitignore-style syntax including:
//   - Exact matches: "node_modules"
//   - Directory-only: "node_modules/" (matches directories only)
//   - Glob patterns: "*.log", "**/build"
//   - Negation: "!important.log" (un-excludes previously excluded paths)
//
// Empty lines and lines starting with "#" are treated as comments and ignored.
//
// Parameters:
//   - patterns: A slice of pattern strings to compile
//
// Returns a new PatternMatcher instance ready to use.
func NewPatternMatcher(patterns []string) *PatternMatcher {
	pm := &PatternMatcher{
		patterns: make([]pattern, 0, len(patterns)),
	}

	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue // Skip empty lines and comments
		}

		pat := pattern{raw: p}

		if strings.HasPrefix(p, "!") {
			pat.isNegation = true
			p = strings.TrimPrefix(p, "!")
		}

		if strings.HasSuffix(p, "/") {
			pat.isDirOnly = true
			p = strings.TrimSuffix(p, "/")
		}

		p = filepath.ToSlash(p)
		pat.anchored = strings.Contains(p, "/")
		pat.glob = p

		pm.patterns = append(pm.patterns, pat)
	}

	return pm
}

// Match returns true if the path should be excluded.
func (pm *PatternMatcher) Match(path string, isDir bool) bool {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "/")

	matched := false
	matchedNegation := false

	for _, pat := range pm.patterns {
		if pat.match(path, isDir) {
			if pat.isNegation {
				matchedNegation = true
			} else {
				matched = true
			}
		}
	}

	if matchedNegation {
		return false
	}
	return matched
}

// match reports whether the pattern matches path, using doublestar's
// gitignore-compatible glob syntax. Unanchored patterns (no "/" in the
// original text) may match at any depth, mirroring .gitignore
// semantics; anchored patterns must match from the root.
func (p *pattern) match(path string, isDir bool) bool {
	if p.isDirOnly && !isDir {
		return false
	}

	if ok, _ := doublestar.Match(p.glob, path); ok {
		return true
	}
	if p.anchored {
		return false
	}

	if ok, _ := doublestar.Match("**/"+p.glob, path); ok {
		return true
	}
	base := filepath.Base(path)
	ok, _ := doublestar.Match(p.glob, base)
	return ok
}

// LoadIgnoreFile loads patterns from an ignore file (.dmerkignore or .gitignore).
// The function validates the filename to prevent directory traversal attacks
// and ensures the file is within the root directory. If the file doesn't exist,
// it returns nil without an error (treating it as no patterns).
//
// Parameters:
//   - rootPath: The root directory path where the ignore file should be located
//   - filename: The name of the ignore file (e.g., ".dmerkignore", ".gitignore")
//
// Returns a slice of pattern strings and any error encountered.
// Returns nil, nil if the file doesn't exist (not an error condition).
func LoadIgnoreFile(rootPath string, filename string) ([]string, error) {
	// Clean and validate paths to prevent directory traversal
	cleanRoot := filepath.Clean(rootPath)
	cleanFilename := filepath.Clean(filename)

	// Ensure filename doesn't contain path separators or directory traversal (only allow simple filenames)
	if strings.Contains(filename, "..") || strings.Contains(filename, string(filepath.Separator)) || cleanFilename != filename {
		return nil, fmt.Errorf("invalid filename: %s", filename)
	}

	ignorePath := filepath.Join(cleanRoot, cleanFilename)

	// Resolve to absolute path and validate it's within rootPath
	absIgnorePath, err := filepath.Abs(ignorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absRoot, err := filepath.Abs(cleanRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	// Normalize paths by cleaning them to ensure consistent comparison
	absIgnorePath = filepath.Clean(absIgnorePath)
	absRoot = filepath.Clean(absRoot)

	// Ensure the ignore file path is within the root directory
	var rootWithSep string
	if absRoot == string(filepath.Separator) || absRoot == "/" {
		rootWithSep = string(filepath.Separator)
	} else {
		rootWithSep = absRoot + string(filepath.Separator)
	}

	if absIgnorePath != absRoot && !strings.HasPrefix(absIgnorePath, rootWithSep) {
		return nil, fmt.Errorf("ignore file path outside root directory: %s", filename)
	}

	// absIgnorePath is validated to be within absRoot, safe to open
	//nolint:gosec // Path is validated to be within root directory above
	file, err := os.Open(absIgnorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // File doesn't exist, no patterns
		}
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Warn("Failed to close ignore file", "error", err)
		}
	}()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}

	logger.Info("Loaded ignore file", "file", ignorePath, "patterns", len(patterns), "filename", filename)

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}

	return patterns, nil
}

// FindIgnoreFiles searches for .dmerkignore and .gitignore files from the working directory up to the root.
// It walks up the directory tree starting from the current working directory
// (where the command is executed), not from the path being hashed.
//
// Returns patterns from all found ignore files. Patterns from directories closer
// to the root take precedence. .dmerkignore patterns take precedence over .gitignore patterns.
//
// Returns a slice of all collected patterns and any error encountered during the search.
func FindIgnoreFiles() ([]string, error) {
	var allPatterns []string

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	absPath, err := filepath.Abs(wd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	current := absPath
	visited := make(map[string]bool)

	for {
		if visited[current] {
			break
		}
		visited[current] = true

		dmerkPatterns, err := LoadIgnoreFile(current, ".dmerkignore")
		if err != nil {
			return nil, err
		}
		if dmerkPatterns != nil {
			allPatterns = append(dmerkPatterns, allPatterns...)
		}

		gitPatterns, err := LoadIgnoreFile(current, ".gitignore")
		if err != nil {
			return nil, err
		}
		if gitPatterns != nil {
			allPatterns = append(allPatterns, gitPatterns...)
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return allPatterns, nil
}

// LoadCustomIgnoreFile loads patterns from a custom ignore file specified by the user.
// The file path is validated and normalized to prevent directory traversal attacks.
// Unlike LoadIgnoreFile, this function returns an error if the file doesn't exist,
// as the user explicitly specified the file path.
//
// Parameters:
//   - filePath: The absolute or relative path to the custom ignore file
//
// Returns a slice of pattern strings and any error encountered.
// Returns an error if the file doesn't exist or cannot be read.
func LoadCustomIgnoreFile(filePath string) ([]string, error) {
	cleanPath := filepath.Clean(filePath)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if absPath != filepath.Clean(absPath) {
		return nil, fmt.Errorf("invalid file path: %s", filePath)
	}

	if strings.Contains(absPath, "..") {
		return nil, fmt.Errorf("invalid file path: %s", filePath)
	}

	// absPath is validated and normalized, safe to open
	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("ignore file does not exist: %s", filePath)
		}
		return nil, fmt.Errorf("failed to open ignore file %s: %w", filePath, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Warn("Failed to close ignore file", "error", err)
		}
	}()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ignore file %s: %w", filePath, err)
	}

	return patterns, nil
}

// NewMatcher creates a matcher from patterns and optionally loads .dmerkignore and .gitignore files.
// It combines patterns from multiple sources in the following priority order (highest to lowest):
//  1. Custom ignore file (if provided)
//  2. Command-line exclusion patterns
//  3. .dmerkignore and .gitignore files (if loadIgnoreFile is true)
//
// Ignore files are loaded from the current working directory (where the command is executed),
// not from the rootPath being hashed. This allows ignore files to be placed in the project root
// regardless of which directory is being hashed.
//
// Parameters:
//   - patterns: Command-line exclusion patterns to include
//   - rootPath: The root path being hashed (used for context, not for loading ignore files)
//   - loadIgnoreFile: If true, automatically loads .dmerkignore and .gitignore files
//   - customIgnoreFile: Optional path to a custom ignore file (always loaded if provided)
//
// Returns a Matcher instance ready to use, or an error if pattern compilation fails.
func NewMatcher(patterns []string, rootPath string, loadIgnoreFile bool, customIgnoreFile string) (Matcher, error) {
	allPatterns := make([]string, len(patterns))
	copy(allPatterns, patterns)

	if customIgnoreFile != "" {
		customPatterns, err := LoadCustomIgnoreFile(customIgnoreFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load custom ignore file: %w", err)
		}
		allPatterns = append(allPatterns, customPatterns...)
		logger.Info("Loaded custom ignore file", "file", customIgnoreFile, "patterns", len(customPatterns))
	}

	if loadIgnoreFile {
		ignorePatterns, err := FindIgnoreFiles()
		if err != nil {
			return nil, fmt.Errorf("failed to load ignore files: %w", err)
		}
		allPatterns = append(allPatterns, ignorePatterns...)
		if len(ignorePatterns) > 0 {
			logger.Info("Loaded automatic ignore files", "patterns", len(ignorePatterns))
		}
	}

	if len(allPatterns) == 0 {
		return &noOpMatcher{}, nil
	}

	return NewPatternMatcher(allPatterns), nil
}

// noOpMatcher is a Matcher implementation that never matches anything.
// It is used when no exclusion patterns are provided, allowing all paths
// to be included in hash computation.
type noOpMatcher struct{}

// Match always returns false, indicating no paths should be excluded.
func (n *noOpMatcher) Match(path string, isDir bool) bool {
	return false
}
