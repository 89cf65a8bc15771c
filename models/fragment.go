package models

import (
	"time"

	"github.com/google/uuid"
)

// Language is a documentation or query language
type Language string

const (
	LanguageSpanish Language = "es"
	LanguageEnglish Language = "en"
)

// Valid reports whether the language is one the corpus is indexed in
func (l Language) Valid() bool {
	return l == LanguageSpanish || l == LanguageEnglish
}

// DocType is the role a fragment's source document plays in the corpus
type DocType string

const (
	DocTypeCompleteContract DocType = "complete_contract"
	DocTypePatternsGuide    DocType = "patterns_guide"
	DocTypeSecurityGuide    DocType = "security_guide"
	DocTypeOther            DocType = "other"
)

// ContentType describes how code-dense a fragment is
type ContentType string

const (
	ContentTypeCodeHeavy     ContentType = "code_heavy"
	ContentTypeMixed         ContentType = "mixed"
	ContentTypeDocumentation ContentType = "documentation"
)

// FragmentMetadata holds the tags derived for a fragment at ingest time
type FragmentMetadata struct {
	Section        string      `json:"section"`
	Topic          string      `json:"topic"`
	Level          string      `json:"level,omitempty"`
	CodeType       string      `json:"code_type,omitempty"`
	File           string      `json:"file"`
	Source         string      `json:"source,omitempty"`
	DocType        DocType     `json:"doc_type"`
	HasCode        bool        `json:"has_code"`
	CodeBlocks     int         `json:"code_blocks"`
	ContentType    ContentType `json:"content_type"`
	Language       string      `json:"language"` // rust or general
	LanguageDoc    Language    `json:"language_doc"`
	SecurityTopics []string    `json:"security_topics,omitempty"`
	Functions      []string    `json:"functions,omitempty"`
	ChunkIndex     int         `json:"chunk_index"`

	// Only set for the canonical contract example
	ContractType   string   `json:"contract_type,omitempty"`
	StorageTypes   []string `json:"storage_types,omitempty"`
	Implements     []string `json:"implements,omitempty"`
	HasConstructor bool     `json:"has_constructor,omitempty"`
	HasAdmin       bool     `json:"has_admin,omitempty"`
	HasAllowances  bool     `json:"has_allowances,omitempty"`

	// Only set for the antipattern guide
	Antipatterns []string `json:"antipatterns,omitempty"`
}

// HasSecurityTopic reports whether the fragment is tagged with the topic
func (m FragmentMetadata) HasSecurityTopic(topic string) bool {
	for _, t := range m.SecurityTopics {
		if t == topic {
			return true
		}
	}
	return false
}

// Fragment is a retrievable unit of documentation text
type Fragment struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	Content       string           `json:"content" db:"content"`
	Metadata      FragmentMetadata `json:"metadata" db:"metadata"`
	Similarity    float64          `json:"similarity"`
	AdjustedScore float64          `json:"adjusted_score"`
	Embedding     []float32        `json:"-" db:"embedding"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Fragment model
func (Fragment) TableName() string {
	return "soroban_chunks"
}

// NewFragment creates a new fragment ready to be stored
func NewFragment(content string, metadata FragmentMetadata, embedding []float32) *Fragment {
	return &Fragment{
		ID:        uuid.New(),
		Content:   content,
		Metadata:  metadata,
		Embedding: embedding,
		CreatedAt: time.Now(),
	}
}

// Key identifies a fragment for de-duplication
func (f *Fragment) Key() string {
	if f.ID != uuid.Nil {
		return f.ID.String()
	}
	return f.Metadata.File + "\x00" + f.Content
}

// Clone returns a shallow copy so callers can rescore without touching the original
func (f *Fragment) Clone() *Fragment {
	c := *f
	return &c
}
