package codecheck

import (
	"regexp"
	"strings"
)

var (
	rustBlockPattern    = regexp.MustCompile("(?s)```rust[ \t]*\r?\n(.*?)```")
	genericBlockPattern = regexp.MustCompile("(?s)```[ \t]*\r?\n(.*?)```")
)

// ExtractCode returns the first rust code block of a markdown answer, else the
// first untagged block, else the whole answer.
func ExtractCode(answer string) string {
	if m := rustBlockPattern.FindStringSubmatch(answer); m != nil {
		return m[1]
	}
	if strings.Contains(answer, "```") {
		if m := genericBlockPattern.FindStringSubmatch(answer); m != nil {
			return m[1]
		}
	}
	return answer
}

var validationTriggers = []string{
	"token", "contract", "generar", "crear", "implementar",
	"generate", "create", "implement", "write", "code",
}

// ShouldValidate reports whether a query asks for code worth validating
func ShouldValidate(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range validationTriggers {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
