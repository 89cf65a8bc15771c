package rag

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// KeywordSet groups the three ways a keyword can match a query.
type KeywordSet struct {
	Words   []string `yaml:"words"`
	Phrases []string `yaml:"phrases"`
	Roots   []string `yaml:"roots"`
}

// Vocabulary is the process-wide keyword configuration for query classification.
// It is loaded once and never mutated.
type Vocabulary struct {
	Language struct {
		SpanishChars []string   `yaml:"spanish_chars"`
		English      KeywordSet `yaml:"english"`
		Spanish      KeywordSet `yaml:"spanish"`
	} `yaml:"language"`
	Intent struct {
		Code      KeywordSet `yaml:"code"`
		Concepts  KeywordSet `yaml:"concepts"`
		ErrorHelp KeywordSet `yaml:"error_help"`
		Creation  KeywordSet `yaml:"creation"`
	} `yaml:"intent"`
	Entity struct {
		Name  string   `yaml:"name"`
		Words []string `yaml:"words"`
	} `yaml:"entity"`
}

// ParseVocabulary decodes a YAML vocabulary document
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	if v.Entity.Name == "" {
		return nil, fmt.Errorf("vocabulary is missing entity.name")
	}
	return &v, nil
}

// DefaultVocabulary returns the embedded vocabulary
func DefaultVocabulary() *Vocabulary {
	return defaultVocabulary
}

var defaultVocabulary = mustParseVocabulary(defaultVocabularyYAML)

func mustParseVocabulary(data []byte) *Vocabulary {
	v, err := ParseVocabulary(data)
	if err != nil {
		panic(err)
	}
	return v
}

// queryText is a query normalized for keyword matching.
type queryText struct {
	lower string
	words []string
}

func newQueryText(query string) queryText {
	lower := strings.ToLower(query)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '\''
	})
	return queryText{lower: lower, words: words}
}

func (q queryText) hasWord(word string) bool {
	for _, w := range q.words {
		if w == word {
			return true
		}
	}
	return false
}

func (q queryText) hasRoot(root string) bool {
	for _, w := range q.words {
		if strings.HasPrefix(w, root) {
			return true
		}
	}
	return false
}

// matches reports whether any keyword of the set occurs in the query
func (q queryText) matches(set KeywordSet) bool {
	for _, p := range set.Phrases {
		if strings.Contains(q.lower, p) {
			return true
		}
	}
	for _, w := range set.Words {
		if q.hasWord(w) {
			return true
		}
	}
	for _, r := range set.Roots {
		if q.hasRoot(r) {
			return true
		}
	}
	return false
}

// tally counts how many distinct keywords of the set occur in the query
func (q queryText) tally(set KeywordSet) int {
	n := 0
	for _, p := range set.Phrases {
		if strings.Contains(q.lower, p) {
			n++
		}
	}
	for _, w := range set.Words {
		if q.hasWord(w) {
			n++
		}
	}
	for _, r := range set.Roots {
		if q.hasRoot(r) {
			n++
		}
	}
	return n
}
