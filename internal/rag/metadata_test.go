package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/upb/sorobai/backend/models"
)

func TestClassifyFragment_FilePrefixes(t *testing.T) {
	tests := []struct {
		file    string
		section string
		topic   string
		docType models.DocType
	}{
		{"overview.md", "overview", "intro", models.DocTypeOther},
		{"sdk_storage.md", "sdk", "storage", models.DocTypeOther},
		{"sdk_auth.md", "sdk", "auth", models.DocTypeOther},
		{"docs/en/examples_token_contract.md", "examples", "token", models.DocTypeCompleteContract},
		{"examples_token_antipatterns.md", "examples", "token", models.DocTypeSecurityGuide},
		{"examples_token.md", "examples", "token", models.DocTypePatternsGuide},
		{"examples_counter.md", "examples", "counter", models.DocTypeOther},
		{"cli.md", "cli", "commands", models.DocTypeOther},
		{"random.md", "general", "unknown", models.DocTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			meta := ClassifyFragment(tt.file, "text", models.LanguageEnglish)
			assert.Equal(t, tt.section, meta.Section)
			assert.Equal(t, tt.topic, meta.Topic)
			assert.Equal(t, tt.docType, meta.DocType)
			assert.Equal(t, models.LanguageEnglish, meta.LanguageDoc)
		})
	}
}

func TestClassifyFragment_ContentType(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    models.ContentType
		blocks  int
	}{
		{"no code", "plain prose", models.ContentTypeDocumentation, 0},
		{"one block", "text\n```rust\nfn a() {}\n```", models.ContentTypeMixed, 1},
		{"two blocks", "```rust\na\n```\n```rust\nb\n```", models.ContentTypeCodeHeavy, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := ClassifyFragment("sdk_types.md", tt.content, models.LanguageSpanish)
			assert.Equal(t, tt.want, meta.ContentType)
			assert.Equal(t, tt.blocks, meta.CodeBlocks)
			assert.Equal(t, tt.blocks > 0, meta.HasCode)
		})
	}
}

func TestClassifyFragment_CanonicalContract(t *testing.T) {
	content := "## 1. Instance Storage\n`transfer(` `mint(` impl TokenInterface for Token, SEP-41, fn __constructor, Administrator, allowance, persistent() in Rust"
	meta := ClassifyFragment("examples_token_contract.md", content, models.LanguageEnglish)

	assert.Equal(t, "token", meta.ContractType)
	assert.Equal(t, []string{"instance", "persistent"}, meta.StorageTypes)
	assert.Equal(t, []string{"TokenInterface", "SEP-41"}, meta.Implements)
	assert.True(t, meta.HasConstructor)
	assert.True(t, meta.HasAdmin)
	assert.True(t, meta.HasAllowances)
	assert.Equal(t, []string{"mint", "transfer"}, meta.Functions)
	assert.Equal(t, "rust", meta.Language)
}

func TestClassifyFragment_SecurityGuide(t *testing.T) {
	content := `## 1. El Antipatrón "Cliente Recursivo"
Using a client that is recursive, missing extend_ttl, require_auth, panic!, gas costs,
and an initialize that allows front-running.`
	meta := ClassifyFragment("examples_token_antipatterns.md", content, models.LanguageSpanish)

	assert.Equal(t, []string{"Cliente Recursivo"}, meta.Antipatterns)
	assert.Equal(t,
		[]string{"ttl", "auth", "error_handling", "recursion", "initialization", "gas_optimization"},
		meta.SecurityTopics)
}

func TestClassifyFragment_FunctionsCapped(t *testing.T) {
	content := ""
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		content += "`" + name + "(` "
	}
	meta := ClassifyFragment("overview.md", content, models.LanguageEnglish)
	assert.Len(t, meta.Functions, 10)
}
