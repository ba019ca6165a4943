package tool

import (
	"fmt"
	"strings"
)

// Catalog renders the registry as the numbered tool list shown to the
// model. The textual format here and the extraction conventions in the
// agent package are two halves of the same protocol.
func Catalog(registry *Registry) string {
	var b strings.Builder
	for i, t := range registry.All() {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. **%s** - %s\n", i+1, t.Name, t.Description)
		fmt.Fprintf(&b, "   Arguments: %s\n", exampleArguments(t))
	}
	return b.String()
}

// exampleArguments renders a one-line JSON shape for a tool's input, in
// declared parameter order.
func exampleArguments(t Tool) string {
	var b strings.Builder
	b.WriteString("{")
	for i, p := range t.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: %q", p.Name, placeholder(p))
	}
	b.WriteString("}")
	return b.String()
}

func placeholder(p Param) string {
	if p.Required {
		return "..."
	}
	return "optional"
}
