package codecheck

import (
	"regexp"
	"strings"
)

// Strategy is how generated token code is built.
type Strategy string

const (
	// StrategyStandardInterface implements TokenInterface directly (Case A)
	StrategyStandardInterface Strategy = "standard_interface"
	// StrategyCustom defines its own structure without the interface (Case B)
	StrategyCustom Strategy = "custom"
)

var (
	implTokenInterfacePattern = regexp.MustCompile(`impl\s+TokenInterface\b`)
	implTokenInterfaceFor     = regexp.MustCompile(`impl\s+TokenInterface\s+for\s+(\w+)`)
)

// Source is generated code prepared for the detectors: scanned once, read many times.
type Source struct {
	Text      string
	Lower     string
	Strategy  Strategy
	Functions []Function

	// TokenImpl is the body of `impl TokenInterface for X`, when present
	TokenImpl *Block
	// ImplFunctions are the functions defined inside TokenImpl
	ImplFunctions []Function
}

// NewSource scans code into a Source. It never fails.
func NewSource(code string) *Source {
	src := &Source{
		Text:      code,
		Lower:     strings.ToLower(code),
		Strategy:  DetectStrategy(code),
		Functions: scanFunctions(code),
	}

	if loc := implTokenInterfaceFor.FindStringIndex(code); loc != nil {
		if brace := strings.IndexByte(code[loc[1]:], '{'); brace >= 0 {
			block := scanBlock(code, loc[1]+brace)
			src.TokenImpl = &block
			for _, fn := range src.Functions {
				if fn.Offset > block.Start && fn.Offset < block.End {
					src.ImplFunctions = append(src.ImplFunctions, fn)
				}
			}
		}
	}
	return src
}

// DetectStrategy returns Case A when the standard token interface is implemented.
func DetectStrategy(code string) Strategy {
	if implTokenInterfacePattern.MatchString(code) {
		return StrategyStandardInterface
	}
	return StrategyCustom
}

// FunctionsNamed returns the functions with a body and the given name
func (s *Source) FunctionsNamed(names ...string) []Function {
	var out []Function
	for _, fn := range s.Functions {
		if !fn.HasBody() {
			continue
		}
		for _, n := range names {
			if fn.Name == n {
				out = append(out, fn)
				break
			}
		}
	}
	return out
}

// Contains reports whether the raw code contains s
func (s *Source) Contains(sub string) bool {
	return strings.Contains(s.Text, sub)
}

// IsTokenCode decides whether the token rule set applies. An explicit hint wins.
func IsTokenCode(code, hint string) bool {
	if hint != "" {
		return strings.EqualFold(hint, "token")
	}
	return strings.Contains(code, "TokenInterface") || strings.Contains(strings.ToLower(code), "token")
}
