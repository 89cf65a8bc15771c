package prompt

import (
	"fmt"
	"regexp"
	"sort"
)

// InjectionType represents a family of prompt injection attempts
type InjectionType string

const (
	InjectionTypeSystemPromptLeak    InjectionType = "system_prompt_leak"
	InjectionTypeRoleManipulation    InjectionType = "role_manipulation"
	InjectionTypeInstructionOverride InjectionType = "instruction_override"
	InjectionTypeJailbreak           InjectionType = "jailbreak"
	InjectionTypeDelimiterAttack     InjectionType = "delimiter_attack"
)

// RejectConfidence is the confidence at which a query is refused.
const RejectConfidence = 0.9

// InjectionDetection represents a detected injection attempt
type InjectionDetection struct {
	Type       InjectionType
	Confidence float64
	StartPos   int
	EndPos     int
}

type injectionRule struct {
	typ        InjectionType
	confidence float64
	patterns   []*regexp.Regexp
}

// Queries are about Rust contracts, so code-looking text (exec(, system(,
// hex literals) is expected and not treated as an attack.
var injectionRules = []injectionRule{
	{
		typ:        InjectionTypeSystemPromptLeak,
		confidence: 0.9,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?)`),
			regexp.MustCompile(`(?i)(show|reveal|print|repeat)\s+(me\s+)?(your|the)\s+(system|original|hidden)\s+(prompt|instructions?)`),
			regexp.MustCompile(`(?i)ignora\s+(todas\s+)?(las\s+)?instrucciones\s+(anteriores|previas)`),
			regexp.MustCompile(`(?i)(muestra|revela|repite)(me)?\s+(tu|el)\s+(prompt|mensaje)\s+(de\s+)?sistema`),
		},
	},
	{
		typ:        InjectionTypeRoleManipulation,
		confidence: 0.85,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)from\s+now\s+on,?\s+you\s+(are|will)`),
			regexp.MustCompile(`(?i)pretend\s+(to\s+)?be\s+(a|an)\b`),
			regexp.MustCompile(`(?i)a\s+partir\s+de\s+ahora\s+eres`),
		},
	},
	{
		typ:        InjectionTypeInstructionOverride,
		confidence: 0.9,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|above|prior|any)?\s*(instructions?|rules)`),
			regexp.MustCompile(`(?i)override\s+(all\s+)?(previous|above|prior|system)?\s*(instructions?|rules)`),
			regexp.MustCompile(`(?i)forget\s+(everything|all\s+previous)`),
			regexp.MustCompile(`(?i)olvida\s+(todo|todas\s+las\s+instrucciones)`),
		},
	},
	{
		typ:        InjectionTypeJailbreak,
		confidence: 0.95,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bDAN\s+mode\b`),
			regexp.MustCompile(`(?i)\bjailbreak`),
			regexp.MustCompile(`(?i)without\s+(any|ethical|moral)\s+(restrictions?|limitations?)`),
		},
	},
	{
		typ:        InjectionTypeDelimiterAttack,
		confidence: 0.8,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\[/?(SYSTEM|USER|ASSISTANT)\]`),
			regexp.MustCompile(`<\|(system|user|assistant|end)\|>`),
		},
	},
}

// DetectInjections returns every injection pattern found in the text, ordered by position
func DetectInjections(text string) []InjectionDetection {
	var detections []InjectionDetection
	for _, rule := range injectionRules {
		for _, pattern := range rule.patterns {
			for _, m := range pattern.FindAllStringIndex(text, -1) {
				detections = append(detections, InjectionDetection{
					Type:       rule.typ,
					Confidence: rule.confidence,
					StartPos:   m[0],
					EndPos:     m[1],
				})
			}
		}
	}
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].StartPos < detections[j].StartPos
	})
	return detections
}

// GuardQuery returns an error when the query carries a high-confidence injection attempt.
// Lower-confidence matches are let through.
func GuardQuery(query string) error {
	for _, d := range DetectInjections(query) {
		if d.Confidence >= RejectConfidence {
			return fmt.Errorf("potential prompt injection detected: %s (confidence: %.2f)", d.Type, d.Confidence)
		}
	}
	return nil
}
