package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderc/pkg/encoding"
)

// DefaultMaxIncludeDepth bounds include nesting.
const DefaultMaxIncludeDepth = 32

var includePattern = regexp.MustCompile(`#include\s+"([^"]+)"`)

// FileReader loads shader source text.
type FileReader interface {
	ReadSource(path string) (string, error)
}

// FileReaderFunc adapts a function to FileReader.
type FileReaderFunc func(path string) (string, error)

// ReadSource calls f(path).
func (f FileReaderFunc) ReadSource(path string) (string, error) {
	return f(path)
}

// OSReader reads files from disk and decodes them to UTF-8.
var OSReader FileReader = FileReaderFunc(func(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text, err := encoding.DecodeSource(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return text, nil
})

// Location is a position in an original source file.
type Location struct {
	File string
	Line int
}

// SourceMap maps lines of merged text back to the files they came from.
type SourceMap struct {
	lines []Location
}

// Lookup returns the origin of a 1-based merged line.
func (m *SourceMap) Lookup(line int) (Location, bool) {
	if m == nil || line < 1 || line > len(m.lines) {
		return Location{}, false
	}
	return m.lines[line-1], true
}

// Len returns the number of merged lines.
func (m *SourceMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.lines)
}

// Files returns every file that contributed to the merged text, in first-use order.
func (m *SourceMap) Files() []string {
	if m == nil {
		return nil
	}
	var files []string
	seen := make(map[string]struct{})
	for _, loc := range m.lines {
		if _, ok := seen[loc.File]; ok {
			continue
		}
		seen[loc.File] = struct{}{}
		files = append(files, loc.File)
	}
	return files
}

type mergedLine struct {
	text string
	loc  Location
}

// IncludeResolver inlines #include "path" directives.
// Paths are resolved against the root shader's directory, then each
// configured include directory in order.
type IncludeResolver struct {
	IncludeDirs []string
	MaxDepth    int
	Reader      FileReader
	Logger      *zap.Logger
}

// Resolve reads path and returns the fully merged text and its source map.
func (r *IncludeResolver) Resolve(path string) (string, *SourceMap, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, &ParseError{File: path, Err: err}
	}
	text, err := r.reader().ReadSource(abs)
	if err != nil {
		return "", nil, &ParseError{File: path, Err: err}
	}
	return r.ResolveText(abs, text)
}

// ResolveText merges already loaded text whose origin is path.
func (r *IncludeResolver) ResolveText(path, text string) (string, *SourceMap, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	root := filepath.Dir(path)
	lines, err := r.expand(root, path, text, []string{path})
	if err != nil {
		return "", nil, err
	}

	texts := make([]string, len(lines))
	locs := make([]Location, len(lines))
	for i, l := range lines {
		texts[i] = l.text
		locs[i] = l.loc
	}
	return strings.Join(texts, "\n"), &SourceMap{lines: locs}, nil
}

func (r *IncludeResolver) expand(root, path, text string, chain []string) ([]mergedLine, error) {
	src := strings.Split(text, "\n")
	out := make([]mergedLine, 0, len(src))

	for i, line := range src {
		cur := mergedLine{loc: Location{File: path, Line: i + 1}}
		rest := line
		for {
			m := includePattern.FindStringSubmatchIndex(rest)
			if m == nil {
				cur.text += rest
				break
			}
			prefix := cur.text + rest[:m[0]]
			target := rest[m[2]:m[3]]
			rest = rest[m[1]:]

			included, err := r.include(root, target, chain, Location{File: path, Line: i + 1})
			if err != nil {
				return nil, err
			}
			// Text before the directive joins the first included line,
			// text after it joins the last.
			included[0].text = prefix + included[0].text
			out = append(out, included[:len(included)-1]...)
			cur = included[len(included)-1]
		}
		out = append(out, cur)
	}
	return out, nil
}

func (r *IncludeResolver) include(root, target string, chain []string, at Location) ([]mergedLine, error) {
	if len(chain) > r.maxDepth() {
		return nil, &ParseError{File: at.File, Line: at.Line,
			Err: fmt.Errorf("%w: %q nested deeper than %d", ErrIncludeDepth, target, r.maxDepth())}
	}

	resolved, err := r.locate(root, target)
	if err != nil {
		return nil, &ParseError{File: at.File, Line: at.Line, Err: err}
	}
	if slices.Contains(chain, resolved) {
		cycle := append(slices.Clone(chain), resolved)
		return nil, &ParseError{File: at.File, Line: at.Line,
			Err: fmt.Errorf("%w: %s", ErrIncludeCycle, strings.Join(cycle, " -> "))}
	}

	text, err := r.reader().ReadSource(resolved)
	if err != nil {
		return nil, &ParseError{File: at.File, Line: at.Line,
			Err: fmt.Errorf("%w: %s: %w", ErrIncludeNotFound, target, err)}
	}

	r.logger().Debug("include resolved",
		zap.String("target", target),
		zap.String("path", resolved),
		zap.Int("depth", len(chain)))

	return r.expand(root, resolved, text, append(slices.Clone(chain), resolved))
}

// locate returns the first existing candidate for target.
func (r *IncludeResolver) locate(root, target string) (string, error) {
	if filepath.IsAbs(target) {
		return filepath.Clean(target), nil
	}

	dirs := append([]string{root}, r.IncludeDirs...)
	for _, dir := range dirs {
		candidate, err := filepath.Abs(filepath.Join(dir, target))
		if err != nil {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	// Fall back to the root-relative path so readers that are not backed by
	// the filesystem still see a deterministic name.
	return filepath.Clean(filepath.Join(root, target)), nil
}

func (r *IncludeResolver) reader() FileReader {
	if r.Reader != nil {
		return r.Reader
	}
	return OSReader
}

func (r *IncludeResolver) maxDepth() int {
	if r.MaxDepth > 0 {
		return r.MaxDepth
	}
	return DefaultMaxIncludeDepth
}

func (r *IncludeResolver) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}
