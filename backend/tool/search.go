package tool

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/spf13/afero"
)

const (
	globResultCap = 50
	grepResultCap = 30
)

// Search walks the project tree for the glob and grep tools. Result lists
// are capped so a broad pattern cannot blow up the conversation context.
type Search struct {
	fs   afero.Fs
	root string
}

func NewSearch(fs afero.Fs, root string) *Search {
	return &Search{fs: fs, root: root}
}

// base resolves the optional search directory under the project root.
func (s *Search) base(path string) string {
	if path == "" {
		return s.root
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.root, path)
}

type GlobInput struct {
	Pattern string `json:"pattern" jsonschema:"required" jsonschema_description:"Glob pattern, e.g. **/*.go"`
	Path    string `json:"path,omitempty" jsonschema_description:"Directory to search under, defaults to the project root"`
}

func (s *Search) GlobTool() Tool {
	return NewTool("glob_search", "Find files whose path matches a glob pattern", s.glob, WithReadonly(true))
}

func (s *Search) glob(ctx context.Context, input GlobInput) string {
	matches, err := s.walk(ctx, s.base(input.Path), func(rel string) (bool, error) {
		return doublestar.Match(input.Pattern, rel)
	})
	if err != nil {
		return fmt.Sprintf("Error in glob search: %v", err)
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No files found matching pattern: %s", input.Pattern)
	}

	sort.Strings(matches)
	total := len(matches)
	if len(matches) > globResultCap {
		matches = matches[:globResultCap]
	}
	return fmt.Sprintf("Found %d files:\n%s", total, strings.Join(matches, "\n"))
}

type GrepInput struct {
	Pattern     string `json:"pattern" jsonschema:"required" jsonschema_description:"Regular expression to search for"`
	Path        string `json:"path,omitempty" jsonschema_description:"Directory to search under, defaults to the project root"`
	FilePattern string `json:"file_pattern,omitempty" jsonschema_description:"Optional glob restricting which files are searched"`
}

func (s *Search) GrepTool() Tool {
	return NewTool("grep_search", "Search file contents for a regular expression", s.grep, WithReadonly(true))
}

func (s *Search) grep(ctx context.Context, input GrepInput) string {
	re, err := regexp.Compile(input.Pattern)
	if err != nil {
		return fmt.Sprintf("Error in grep search: %v", err)
	}

	files, err := s.walk(ctx, s.base(input.Path), func(rel string) (bool, error) {
		if input.FilePattern == "" {
			return true, nil
		}
		// The file filter applies to base names, like grep --include.
		return doublestar.Match(input.FilePattern, filepath.Base(rel))
	})
	if err != nil {
		return fmt.Sprintf("Error in grep search: %v", err)
	}

	sort.Strings(files)
	var matches []string
	total := 0
	for _, rel := range files {
		lines, err := s.scanFile(rel, re)
		if err != nil {
			continue
		}
		total += len(lines)
		matches = append(matches, lines...)
	}
	if total == 0 {
		return fmt.Sprintf("No matches found for pattern: %s", input.Pattern)
	}
	if len(matches) > grepResultCap {
		matches = matches[:grepResultCap]
	}
	return fmt.Sprintf("Found %d matches:\n%s", total, strings.Join(matches, "\n"))
}

func (s *Search) scanFile(rel string, re *regexp.Regexp) ([]string, error) {
	file, err := s.fs.Open(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if re.MatchString(text) {
			out = append(out, fmt.Sprintf("%s:%d:%s", rel, line, text))
		}
	}
	return out, scanner.Err()
}

// walk collects root-relative slash-separated file paths under base.
// keep sees paths relative to base, so a non-recursive pattern matches
// only direct children of the search directory regardless of where it
// sits under the root. Hidden directories like .git are skipped.
func (s *Search) walk(ctx context.Context, base string, keep func(rel string) (bool, error)) ([]string, error) {
	var out []string
	err := afero.Walk(s.fs, base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := info.Name()
		if info.IsDir() {
			if path != base && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		ok, err := keep(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		if ok {
			rootRel, err := filepath.Rel(s.root, path)
			if err != nil {
				return err
			}
			out = append(out, filepath.ToSlash(rootRel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
