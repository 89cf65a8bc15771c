package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/sorobai/backend/models"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name  string
		query string
		want  QueryIntent
	}{
		{
			name:  "concept question about storage",
			query: "explain the difference between two storage tiers",
			want: QueryIntent{
				Language:      models.LanguageEnglish,
				WantsConcepts: true,
			},
		},
		{
			name:  "full token contract in english",
			query: "Create a full token contract with allowances",
			want: QueryIntent{
				Language:               models.LanguageEnglish,
				WantsCode:              true,
				WantsFullTokenContract: true,
				MentionsEntity:         true,
			},
		},
		{
			name:  "full token contract in spanish",
			query: "¿Cómo puedo crear un contrato de token completo?",
			want: QueryIntent{
				Language:               models.LanguageSpanish,
				WantsCode:              true,
				WantsFullTokenContract: true,
				MentionsEntity:         true,
			},
		},
		{
			name:  "concept phrase blocks full token contract",
			query: "What is a token contract and why would I build one?",
			want: QueryIntent{
				Language:       models.LanguageEnglish,
				WantsCode:      true,
				WantsConcepts:  true,
				MentionsEntity: true,
			},
		},
		{
			name:  "error help",
			query: "my transfer function fails with a panic",
			want: QueryIntent{
				Language:       models.LanguageEnglish,
				WantsCode:      true,
				WantsErrorHelp: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.query))
		})
	}
}

func TestClassifier_ClassifyIsIdempotent(t *testing.T) {
	c := NewClassifier(nil)
	queries := []string{
		"",
		"Create a full token contract",
		"¿Qué es el almacenamiento temporal?",
		"!!! ??? 123",
	}
	for _, q := range queries {
		assert.Equal(t, c.Classify(q), c.Classify(q), q)
	}
}

func TestClassifier_DetectLanguage(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name  string
		query string
		want  models.Language
	}{
		{"diacritics win over english keywords", "How do I write the función for this contract with the SDK?", models.LanguageSpanish},
		{"inverted question mark", "¿token?", models.LanguageSpanish},
		{"uppercase accented letter", "EXPLICACIÓN", models.LanguageSpanish},
		{"english tally wins", "how should I write this contract", models.LanguageEnglish},
		{"spanish tally wins", "quiero crear un contrato para mi token", models.LanguageSpanish},
		{"tie defaults to spanish", "hello world", models.LanguageSpanish},
		{"empty defaults to spanish", "", models.LanguageSpanish},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.DetectLanguage(tt.query))
		})
	}
}

func TestClassifier_ClassifyWithLanguage(t *testing.T) {
	c := NewClassifier(nil)

	intent := c.ClassifyWithLanguage("how should I write this contract", models.LanguageSpanish)
	assert.Equal(t, models.LanguageSpanish, intent.Language)

	intent = c.ClassifyWithLanguage("how should I write this contract", models.Language("fr"))
	assert.Equal(t, models.LanguageEnglish, intent.Language)
}

func TestParseVocabulary(t *testing.T) {
	t.Run("custom vocabulary", func(t *testing.T) {
		v, err := ParseVocabulary([]byte(`
language:
  spanish_chars: ["ñ"]
  english:
    words: [hello]
intent:
  creation:
    roots: [mint]
entity:
  name: nft
  words: [nft]
`))
		require.NoError(t, err)

		c := NewClassifier(v)
		assert.Equal(t, "nft", c.Entity())

		intent := c.Classify("hello, mint an nft")
		assert.True(t, intent.WantsFullTokenContract)
		assert.True(t, intent.WantsCode)
		assert.Equal(t, models.LanguageEnglish, intent.Language)
	})

	t.Run("missing entity", func(t *testing.T) {
		_, err := ParseVocabulary([]byte("language: {}"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParseVocabulary([]byte("language: ["))
		assert.Error(t, err)
	})
}
