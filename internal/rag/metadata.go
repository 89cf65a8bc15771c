package rag

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/upb/sorobai/backend/models"
)

// fileRule tags documents whose file name starts with prefix.
// Order matters: the first matching prefix wins.
type fileRule struct {
	prefix   string
	section  string
	topic    string
	level    string
	codeType string
	docType  models.DocType
}

var fileRules = []fileRule{
	{prefix: "overview", section: "overview", topic: "intro", level: "beginner"},
	{prefix: "sdk_env", section: "sdk", topic: "environment", level: "basic"},
	{prefix: "sdk_storage", section: "sdk", topic: "storage", level: "intermediate"},
	{prefix: "sdk_auth", section: "sdk", topic: "auth", level: "intermediate"},
	{prefix: "sdk_types", section: "sdk", topic: "types", level: "basic"},
	{prefix: "sdk_errors", section: "sdk", topic: "errors", level: "intermediate"},
	{prefix: "examples_token_contract", section: "examples", topic: "token", level: "advanced", codeType: "full_implementation", docType: models.DocTypeCompleteContract},
	{prefix: "examples_token_antipattern", section: "examples", topic: "token", level: "advanced", codeType: "antipatterns", docType: models.DocTypeSecurityGuide},
	{prefix: "examples_token", section: "examples", topic: "token", level: "intermediate", codeType: "conceptual", docType: models.DocTypePatternsGuide},
	{prefix: "examples_counter", section: "examples", topic: "counter", level: "beginner", codeType: "full_example"},
	{prefix: "cli", section: "cli", topic: "commands", level: "basic"},
}

var (
	mentionedFunctionPattern = regexp.MustCompile("`([a-z_]+)\\(`")
	antipatternTitlePattern  = regexp.MustCompile(`(?m)##\s+\d+\.\s+(?:El Antipatrón|The)\s+"([^"]+)"`)
)

const maxFunctions = 10

// ClassifyFragment derives the metadata for one chunk of a documentation file
func ClassifyFragment(fileName, content string, lang models.Language) models.FragmentMetadata {
	base := filepath.Base(fileName)
	meta := models.FragmentMetadata{
		Section:     "general",
		Topic:       "unknown",
		Level:       "basic",
		DocType:     models.DocTypeOther,
		File:        base,
		Source:      "official_docs",
		LanguageDoc: lang,
	}

	for _, rule := range fileRules {
		if strings.HasPrefix(base, rule.prefix) {
			meta.Section = rule.section
			meta.Topic = rule.topic
			meta.Level = rule.level
			meta.CodeType = rule.codeType
			if rule.docType != "" {
				meta.DocType = rule.docType
			}
			break
		}
	}

	lower := strings.ToLower(content)
	fences := strings.Count(content, "```")
	meta.HasCode = fences > 0
	meta.CodeBlocks = fences / 2

	switch {
	case meta.HasCode && meta.CodeBlocks >= 2:
		meta.ContentType = models.ContentTypeCodeHeavy
	case meta.HasCode:
		meta.ContentType = models.ContentTypeMixed
	default:
		meta.ContentType = models.ContentTypeDocumentation
	}

	meta.Functions = mentionedFunctions(content)
	meta.Language = "general"
	if strings.Contains(lower, "rust") {
		meta.Language = "rust"
	}

	switch meta.DocType {
	case models.DocTypeCompleteContract:
		tagCanonicalContract(&meta, content, lower)
	case models.DocTypeSecurityGuide:
		tagSecurityGuide(&meta, content, lower)
	}

	return meta
}

func tagCanonicalContract(meta *models.FragmentMetadata, content, lower string) {
	meta.ContractType = "token"
	if strings.Contains(content, "Instance Storage") || strings.Contains(content, "instance()") {
		meta.StorageTypes = append(meta.StorageTypes, "instance")
	}
	if strings.Contains(content, "Temporary Storage") || strings.Contains(content, "temporary()") {
		meta.StorageTypes = append(meta.StorageTypes, "temporary")
	}
	if strings.Contains(content, "Persistent Storage") || strings.Contains(content, "persistent()") {
		meta.StorageTypes = append(meta.StorageTypes, "persistent")
	}
	if strings.Contains(content, "TokenInterface") {
		meta.Implements = append(meta.Implements, "TokenInterface")
	}
	if strings.Contains(content, "SEP-41") {
		meta.Implements = append(meta.Implements, "SEP-41")
	}
	meta.HasConstructor = strings.Contains(content, "__constructor")
	meta.HasAdmin = strings.Contains(lower, "administrator")
	meta.HasAllowances = strings.Contains(lower, "allowance")
}

func tagSecurityGuide(meta *models.FragmentMetadata, content, lower string) {
	meta.ContractType = "token"
	for _, m := range antipatternTitlePattern.FindAllStringSubmatch(content, -1) {
		meta.Antipatterns = append(meta.Antipatterns, m[1])
	}

	topics := []struct {
		name string
		when bool
	}{
		{"ttl", strings.Contains(lower, "ttl")},
		{"auth", strings.Contains(lower, "require_auth")},
		{"error_handling", strings.Contains(lower, "panic")},
		{"recursion", strings.Contains(lower, "client") && strings.Contains(lower, "recursive")},
		{"initialization", strings.Contains(lower, "initialize") && strings.Contains(lower, "front-running")},
		{"gas_optimization", strings.Contains(lower, "gas")},
	}
	for _, t := range topics {
		if t.when {
			meta.SecurityTopics = append(meta.SecurityTopics, t.name)
		}
	}
}

func mentionedFunctions(content string) []string {
	seen := make(map[string]struct{})
	for _, m := range mentionedFunctionPattern.FindAllStringSubmatch(content, -1) {
		seen[m[1]] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	if len(out) > maxFunctions {
		out = out[:maxFunctions]
	}
	return out
}
