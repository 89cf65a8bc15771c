package codecheck

import (
	"regexp"
	"strings"
)

// Block is a brace-delimited region of source.
type Block struct {
	// Start is the offset of the opening brace
	Start int
	// End is the offset just past the closing brace, or len(text) when unclosed
	End  int
	Body string
	// Closed is false when the source ended before the block did
	Closed bool
}

// Function is a Rust fn item found in the source.
type Function struct {
	Name   string
	Params string
	Offset int
	Body   Block
}

// HasBody reports whether the item has a body (trait declarations do not)
func (f Function) HasBody() bool {
	return f.Body.Start >= 0
}

var fnHeaderPattern = regexp.MustCompile(`\bfn\s+(\w+)\s*`)

// scanBlock returns the block opened by the brace at open. Braces inside line
// comments, block comments, string and char literals are ignored. Unbalanced
// input yields an unclosed block running to the end of text.
func scanBlock(text string, open int) Block {
	if open < 0 || open >= len(text) || text[open] != '{' {
		return Block{Start: -1, End: -1}
	}

	depth := 0
	i := open
	for i < len(text) {
		c := text[i]
		switch {
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			nl := strings.IndexByte(text[i:], '\n')
			if nl < 0 {
				i = len(text)
				continue
			}
			i += nl
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				i = len(text)
				continue
			}
			i += end + 3
		case c == '"':
			i = skipString(text, i)
			continue
		case c == '\'' && isCharLiteral(text, i):
			i = skipCharLiteral(text, i)
			continue
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return Block{Start: open, End: i + 1, Body: text[open+1 : i], Closed: true}
			}
		}
		i++
	}
	return Block{Start: open, End: len(text), Body: text[open+1:], Closed: false}
}

// skipString returns the offset just past the string literal starting at i.
func skipString(text string, i int) int {
	j := i + 1
	for j < len(text) {
		switch text[j] {
		case '\\':
			j += 2
			continue
		case '"':
			return j + 1
		}
		j++
	}
	return len(text)
}

// isCharLiteral tells a char literal ('a', '\n', '{') apart from a lifetime ('a).
func isCharLiteral(text string, i int) bool {
	if i+2 < len(text) && text[i+1] == '\\' {
		return true
	}
	return i+2 < len(text) && text[i+2] == '\''
}

func skipCharLiteral(text string, i int) int {
	end := strings.IndexByte(text[i+1:], '\'')
	if end < 0 {
		return len(text)
	}
	if text[i+1] == '\\' && end == 1 {
		// '\'' style escape
		next := strings.IndexByte(text[i+3:], '\'')
		if next < 0 {
			return len(text)
		}
		return i + 3 + next + 1
	}
	return i + 1 + end + 1
}

// skipParens returns the parameter text of the group opened at open and the
// offset just past it. Unbalanced groups run to the end of text.
func skipParens(text string, open int) (string, int) {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return text[open+1 : i], i + 1
			}
		}
	}
	return text[open+1:], len(text)
}

// skipGenerics returns the offset just past the generic parameter list opened at open.
func skipGenerics(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '<':
			depth++
		case '>':
			if i > 0 && text[i-1] == '-' {
				continue
			}
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(text)
}

// scanFunctions finds every fn item in text with its parameter list and body.
func scanFunctions(text string) []Function {
	var fns []Function
	for _, loc := range fnHeaderPattern.FindAllStringSubmatchIndex(text, -1) {
		fn := Function{
			Name:   text[loc[2]:loc[3]],
			Offset: loc[0],
			Body:   Block{Start: -1, End: -1},
		}

		pos := loc[1]
		// Generic parameters: fn name<T: Trait>(...)
		if pos < len(text) && text[pos] == '<' {
			pos = skipGenerics(text, pos)
		}
		if pos >= len(text) || text[pos] != '(' {
			fns = append(fns, fn)
			continue
		}
		fn.Params, pos = skipParens(text, pos)

		// The body starts at the first brace unless a semicolon ends the declaration.
		rest := text[pos:]
		brace := strings.IndexByte(rest, '{')
		semi := strings.IndexByte(rest, ';')
		if brace >= 0 && (semi < 0 || brace < semi) {
			fn.Body = scanBlock(text, pos+brace)
		}
		fns = append(fns, fn)
	}
	return fns
}

// statementLines returns the non-blank lines of a body that are not line comments.
func statementLines(body string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
