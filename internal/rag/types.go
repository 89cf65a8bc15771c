package rag

import (
	"strings"

	"github.com/upb/sorobai/backend/models"
)

// QueryIntent is what a query is asking for. It is derived per request and never persisted.
type QueryIntent struct {
	Language               models.Language `json:"language"`
	WantsCode              bool            `json:"wants_code"`
	WantsConcepts          bool            `json:"wants_concepts"`
	WantsErrorHelp         bool            `json:"wants_error_help"`
	WantsFullTokenContract bool            `json:"wants_full_token_contract"`

	// MentionsEntity is true when the query names the domain entity ("token")
	MentionsEntity bool `json:"mentions_entity"`
}

// Signals is the read-only input every scoring rule sees.
type Signals struct {
	Intent     QueryIntent
	QueryLower string
	Entity     string
}

// MentionsEntity reports whether the query names the domain entity
func (s Signals) MentionsEntity() bool {
	return s.Entity != "" && strings.Contains(s.QueryLower, s.Entity)
}

// TopicIsEntity reports whether the fragment's topic is the domain entity
func (s Signals) TopicIsEntity(f *models.Fragment) bool {
	return s.Entity != "" && strings.EqualFold(f.Metadata.Topic, s.Entity)
}

// SelectInput is everything the selector needs for one request.
type SelectInput struct {
	Query      string
	Intent     QueryIntent
	Candidates []*models.Fragment
	// Canonical holds the direct lookup of the canonical file, in document order.
	// Only consulted when the override triggers.
	Canonical []*models.Fragment
	K         int
	// Language excludes fragments indexed in another language when set
	Language models.Language
}
