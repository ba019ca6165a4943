package agent

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/emberhq/ember/shared"
)

// Templates loads reusable prompt templates from a commands directory.
// A template named "review" lives at <dir>/review.md and may reference
// $ARGUMENTS (all arguments, space joined) and $1..$n (positional).
type Templates struct {
	fs  afero.Fs
	dir string
}

func NewTemplates(fs afero.Fs, dir string) *Templates {
	return &Templates{fs: fs, dir: dir}
}

var positionalRegex = regexp.MustCompile(`\$(\d+)`)

// Expand renders the named template with the given arguments. Positional
// references past the end of args expand to empty strings.
func (t *Templates) Expand(name string, args []string) (string, error) {
	path := filepath.Join(t.dir, name+".md")
	content, err := afero.ReadFile(t.fs, path)
	if err != nil {
		return "", shared.Wrap(shared.ErrorSourceConfig, fmt.Sprintf("loading command template %q", name), err)
	}

	return ExpandTemplate(string(content), args), nil
}

// ExpandTemplate substitutes $ARGUMENTS and positional $n references.
func ExpandTemplate(template string, args []string) string {
	expanded := strings.ReplaceAll(template, "$ARGUMENTS", strings.Join(args, " "))
	return positionalRegex.ReplaceAllStringFunc(expanded, func(ref string) string {
		n, err := strconv.Atoi(ref[1:])
		if err != nil || n < 1 || n > len(args) {
			return ""
		}
		return args[n-1]
	})
}

// List returns the names of the available templates.
func (t *Templates) List() ([]string, error) {
	entries, err := afero.ReadDir(t.fs, t.dir)
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceConfig, "listing command templates", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".md"))
	}
	return names, nil
}
