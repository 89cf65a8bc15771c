package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/upb/sorobai/backend/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Prompt is a system/user message pair.
type Prompt struct {
	System string
	User   string
}

// Builder renders the embedded templates.
type Builder struct {
	tmpl          *template.Template
	canonicalFile string
}

// NewBuilder parses the embedded templates. canonicalFile is named in the
// code-generation rules as the reference contract.
func NewBuilder(canonicalFile string) (*Builder, error) {
	tmpl, err := template.New("prompts").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates: %w", err)
	}
	return &Builder{tmpl: tmpl, canonicalFile: canonicalFile}, nil
}

type templateData struct {
	Query         string
	Context       string
	CanonicalFile string
	Validation    string
	ConceptA      string
	ConceptB      string
	Error         string
	Code          string
}

func lang(l models.Language) string {
	if l == models.LanguageEnglish {
		return string(models.LanguageEnglish)
	}
	return string(models.LanguageSpanish)
}

func (b *Builder) render(name string, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := b.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

func (b *Builder) pair(l models.Language, kind string, data templateData) (Prompt, error) {
	prefix := lang(l) + "/" + kind
	system, err := b.render(prefix+"/system", data)
	if err != nil {
		return Prompt{}, err
	}
	user, err := b.render(prefix+"/user", data)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: system, User: user}, nil
}

// Code builds the code-generation prompt. codeOnly asks for a bare code block.
func (b *Builder) Code(l models.Language, query, context string, codeOnly bool) (Prompt, error) {
	kind := "code_full"
	if codeOnly {
		kind = "code_only"
	}
	return b.pair(l, kind, templateData{Query: query, Context: context, CanonicalFile: b.canonicalFile})
}

// Explain builds the concept-explanation prompt.
func (b *Builder) Explain(l models.Language, query, context string) (Prompt, error) {
	return b.pair(l, "explain", templateData{Query: query, Context: context})
}

// Correction builds the follow-up user message asking the model to fix the
// findings of a failed validation.
func (b *Builder) Correction(l models.Language, validation, query, context string) (string, error) {
	return b.render(lang(l)+"/correction", templateData{Validation: validation, Query: query, Context: context})
}

func (b *Builder) Comparison(l models.Language, conceptA, conceptB, context string) (Prompt, error) {
	return b.pair(l, "comparison", templateData{ConceptA: conceptA, ConceptB: conceptB, Context: context})
}

func (b *Builder) Debugging(l models.Language, errorMessage, code, context string) (Prompt, error) {
	return b.pair(l, "debugging", templateData{Error: errorMessage, Code: code, Context: context})
}

func (b *Builder) Optimization(l models.Language, code, context string) (Prompt, error) {
	return b.pair(l, "optimization", templateData{Code: code, Context: context})
}

// ChatSystem builds the system message of an interactive conversation.
func (b *Builder) ChatSystem(l models.Language, context string) (string, error) {
	return b.render(lang(l)+"/chat/system", templateData{Context: context})
}
