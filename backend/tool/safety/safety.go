// Package safety vets shell commands against a deny-list of obviously
// destructive patterns. It is a best-effort guard, not a sandbox: the check
// runs against the literal command string before any shell interpretation,
// so variable expansion and globbing are invisible to it by construction.
package safety

import "regexp"

// Decision is the outcome of a safety check. A struct rather than a bool so
// a stronger sandboxing collaborator can slot in without changing callers.
type Decision struct {
	Allow  bool
	Reason string
}

var allow = Decision{Allow: true}

type rule struct {
	pattern *regexp.Regexp
	reason  string
}

type Validator struct {
	rules []rule
}

func NewValidator() *Validator {
	return &Validator{
		rules: []rule{
			{regexp.MustCompile(`rm\s+-rf\s+/`), "recursive force delete of root path"},
			{regexp.MustCompile(`rm\s+-rf\s+\*`), "recursive force delete with wildcard"},
			{regexp.MustCompile(`>\s*/dev/sd`), "raw write to block device"},
			{regexp.MustCompile(`mkfs\.`), "filesystem creation"},
			{regexp.MustCompile(`dd\s+if=`), "direct disk imaging"},
		},
	}
}

// Check matches command against the deny-list. The command must be the
// exact string that would be passed to the shell.
func (v *Validator) Check(command string) Decision {
	for _, r := range v.rules {
		if r.pattern.MatchString(command) {
			return Decision{Allow: false, Reason: r.reason}
		}
	}
	return allow
}
