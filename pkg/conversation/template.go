package conversation

import (
	"regexp"
	"strings"
)

// NoneProvided is substituted for placeholders whose slot was never collected.
const NoneProvided = "None provided"

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// placeholders returns the slot names referenced by a template, in order of
// first appearance.
func placeholders(tmpl string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Render substitutes every {slot} token in tmpl with its value from lookup.
// Tokens lookup does not know are replaced with missing; an empty missing
// leaves them untouched.
func Render(tmpl string, lookup func(name string) (string, bool), missing string) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(tok string) string {
		name := tok[1 : len(tok)-1]
		if v, ok := lookup(name); ok {
			return v
		}
		if missing == "" {
			return tok
		}
		return missing
	})
}
