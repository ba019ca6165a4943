package tool

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func setupSearch(t *testing.T, seed map[string]string) *Search {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range seed {
		if err := afero.WriteFile(fs, "/project/"+path, []byte(content), 0o644); err != nil {
			t.Fatalf("seed %s: %v", path, err)
		}
	}
	return NewSearch(fs, "/project")
}

func TestGlobSearch(t *testing.T) {
	t.Parallel()

	search := setupSearch(t, map[string]string{
		"main.go":             "package main\n",
		"pkg/server.go":       "package pkg\n",
		"pkg/server_test.go":  "package pkg\n",
		"docs/readme.md":      "# readme\n",
		".git/objects/aa/bbb": "binary\n",
	})

	tests := []struct {
		name         string
		pattern      string
		wantHeader   string
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:         "recursive go files",
			pattern:      "**/*.go",
			wantHeader:   "Found 3 files:",
			wantContains: []string{"main.go", "pkg/server.go", "pkg/server_test.go"},
			wantAbsent:   []string{"docs/readme.md", ".git"},
		},
		{
			name:         "non-recursive pattern stays in top level",
			pattern:      "*.go",
			wantHeader:   "Found 1 files:",
			wantContains: []string{"main.go"},
			wantAbsent:   []string{"pkg/server.go"},
		},
		{
			name:       "no matches",
			pattern:    "**/*.py",
			wantHeader: "No files found matching pattern: **/*.py",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := search.glob(context.Background(), GlobInput{Pattern: tt.pattern})
			if tt.wantHeader != "" && !strings.HasPrefix(got, tt.wantHeader) {
				t.Errorf("glob() = %q, want prefix %q", got, tt.wantHeader)
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("glob() missing %q in:\n%s", want, got)
				}
			}
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("glob() should not contain %q in:\n%s", absent, got)
				}
			}
		})
	}
}

func TestGlobSearchSubdirectory(t *testing.T) {
	t.Parallel()

	search := setupSearch(t, map[string]string{
		"main.go":             "package main\n",
		"docs/readme.md":      "# readme\n",
		"docs/guide.md":       "# guide\n",
		"docs/archive/old.md": "# old\n",
	})

	got := search.glob(context.Background(), GlobInput{Pattern: "*.md", Path: "docs"})

	if !strings.HasPrefix(got, "Found 2 files:") {
		t.Errorf("glob() = %q, want the 2 direct children of docs", got)
	}
	// Patterns are matched relative to the search directory, results are
	// reported relative to the project root.
	if !strings.Contains(got, "docs/readme.md") {
		t.Errorf("glob() results not root-relative:\n%s", got)
	}
	if strings.Contains(got, "main.go") {
		t.Errorf("glob() searched outside the requested directory:\n%s", got)
	}
	if strings.Contains(got, "archive/old.md") {
		t.Errorf("glob() matched a nested file with a non-recursive pattern:\n%s", got)
	}
}

func TestGlobSearchCapsResults(t *testing.T) {
	t.Parallel()

	seed := make(map[string]string, 60)
	for i := 0; i < 60; i++ {
		seed[fmt.Sprintf("src/file%02d.go", i)] = "package src\n"
	}
	search := setupSearch(t, seed)

	got := search.glob(context.Background(), GlobInput{Pattern: "**/*.go"})

	if !strings.HasPrefix(got, "Found 60 files:") {
		t.Errorf("glob() header = %q, want total count 60", strings.SplitN(got, "\n", 2)[0])
	}
	lines := strings.Split(got, "\n")
	if listed := len(lines) - 1; listed != globResultCap {
		t.Errorf("glob() listed %d paths, want %d", listed, globResultCap)
	}
}

func TestGrepSearch(t *testing.T) {
	t.Parallel()

	search := setupSearch(t, map[string]string{
		"main.go":       "package main\n\nfunc main() {}\n",
		"pkg/server.go": "package pkg\n\nfunc Serve() error { return nil }\n",
		"docs/notes.md": "func is a keyword\n",
	})

	tests := []struct {
		name         string
		input        GrepInput
		wantHeader   string
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:         "matches across files with positions",
			input:        GrepInput{Pattern: `func \w+\(`},
			wantHeader:   "Found 2 matches:",
			wantContains: []string{"main.go:3:func main() {}", "pkg/server.go:3:func Serve() error { return nil }"},
		},
		{
			name:         "file pattern filters by base name at any depth",
			input:        GrepInput{Pattern: "func", FilePattern: "*.md"},
			wantContains: []string{"docs/notes.md:1:func is a keyword"},
			wantAbsent:   []string{"main.go"},
		},
		{
			name:       "no matches",
			input:      GrepInput{Pattern: "nonexistent_symbol"},
			wantHeader: "No matches found for pattern: nonexistent_symbol",
		},
		{
			name:       "invalid regex",
			input:      GrepInput{Pattern: "["},
			wantHeader: "Error in grep search:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := search.grep(context.Background(), tt.input)
			if tt.wantHeader != "" && !strings.HasPrefix(got, tt.wantHeader) {
				t.Errorf("grep() = %q, want prefix %q", got, tt.wantHeader)
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("grep() missing %q in:\n%s", want, got)
				}
			}
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("grep() should not contain %q in:\n%s", absent, got)
				}
			}
		})
	}
}

func TestGrepSearchCapsResults(t *testing.T) {
	t.Parallel()

	var lines strings.Builder
	for i := 0; i < 40; i++ {
		lines.WriteString("match here\n")
	}
	search := setupSearch(t, map[string]string{"big.txt": lines.String()})

	got := search.grep(context.Background(), GrepInput{Pattern: "match"})

	if !strings.HasPrefix(got, "Found 40 matches:") {
		t.Errorf("grep() header = %q, want total count 40", strings.SplitN(got, "\n", 2)[0])
	}
	if listed := len(strings.Split(got, "\n")) - 1; listed != grepResultCap {
		t.Errorf("grep() listed %d matches, want %d", listed, grepResultCap)
	}
}
