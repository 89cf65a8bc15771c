package rag

import (
	"strings"

	"github.com/upb/sorobai/backend/models"
)

// Classifier derives a QueryIntent from a raw query using a fixed vocabulary.
type Classifier struct {
	vocab *Vocabulary
}

// NewClassifier creates a classifier; a nil vocabulary uses the embedded one
func NewClassifier(vocab *Vocabulary) *Classifier {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Classifier{vocab: vocab}
}

// Entity returns the domain entity name the vocabulary is built around
func (c *Classifier) Entity() string {
	return c.vocab.Entity.Name
}

// DetectLanguage returns the query language. Characters exclusive to Spanish
// decide immediately; otherwise English must win the keyword tally outright.
func (c *Classifier) DetectLanguage(query string) models.Language {
	q := newQueryText(query)
	for _, ch := range c.vocab.Language.SpanishChars {
		if strings.Contains(q.lower, ch) {
			return models.LanguageSpanish
		}
	}

	english := q.tally(c.vocab.Language.English)
	spanish := q.tally(c.vocab.Language.Spanish)
	if english > spanish {
		return models.LanguageEnglish
	}
	return models.LanguageSpanish
}

// Classify derives the intent of a query. It is pure and idempotent.
func (c *Classifier) Classify(query string) QueryIntent {
	q := newQueryText(query)

	intent := QueryIntent{
		Language:       c.DetectLanguage(query),
		WantsCode:      q.matches(c.vocab.Intent.Code),
		WantsConcepts:  q.matches(c.vocab.Intent.Concepts),
		WantsErrorHelp: q.matches(c.vocab.Intent.ErrorHelp),
		MentionsEntity: c.mentionsEntity(q),
	}

	creating := q.matches(c.vocab.Intent.Creation)
	if intent.MentionsEntity && creating && !intent.WantsConcepts {
		intent.WantsFullTokenContract = true
		intent.WantsCode = true
	}

	return intent
}

// ClassifyWithLanguage classifies the query but forces the language when the hint is valid
func (c *Classifier) ClassifyWithLanguage(query string, hint models.Language) QueryIntent {
	intent := c.Classify(query)
	if hint.Valid() {
		intent.Language = hint
	}
	return intent
}

func (c *Classifier) mentionsEntity(q queryText) bool {
	for _, w := range c.vocab.Entity.Words {
		if q.hasWord(w) {
			return true
		}
	}
	return strings.Contains(q.lower, c.vocab.Entity.Name)
}
