package rag

import (
	"math"
	"strings"

	"github.com/upb/sorobai/backend/models"
)

// SelectorConfig tunes the re-ranker's special cases
type SelectorConfig struct {
	Entity         string  // domain entity named in queries, e.g. "token"
	CanonicalFile  string  // the one complete worked example for the entity
	CanonicalScore float64 // fixed score given to canonical fragments
	CanonicalShare float64 // share of slots canonical fragments may take
	DominanceShare float64 // share of slots reserved for the top file
	DominanceMin   int     // minimum slots reserved for the top file
}

// DefaultSelectorConfig returns the default configuration
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		Entity:         "token",
		CanonicalFile:  "examples_token_contract.md",
		CanonicalScore: 2.0,
		CanonicalShare: 0.9,
		DominanceShare: 0.7,
		DominanceMin:   3,
	}
}

// Selector re-ranks vector search candidates into the final context set.
type Selector struct {
	cfg   SelectorConfig
	rules []ScoringRule
}

// NewSelector creates a selector with the default scoring rules
func NewSelector(cfg SelectorConfig) *Selector {
	return &Selector{cfg: cfg, rules: DefaultRules}
}

// Config returns the selector configuration
func (s *Selector) Config() SelectorConfig {
	return s.cfg
}

// NeedsCanonical reports whether the canonical-example override applies to
// the query, so the caller knows to run the direct file lookup first.
func (s *Selector) NeedsCanonical(query string, intent QueryIntent) bool {
	return intent.WantsFullTokenContract && strings.Contains(strings.ToLower(query), s.cfg.Entity)
}

// Select produces at most in.K fragments, without duplicates, in priority order.
// An empty candidate set yields an empty result.
func (s *Selector) Select(in SelectInput) []*models.Fragment {
	if in.K < 1 {
		return nil
	}

	candidates := filterLanguage(in.Candidates, in.Language)
	signals := Signals{
		Intent:     in.Intent,
		QueryLower: strings.ToLower(in.Query),
		Entity:     s.cfg.Entity,
	}
	ranked := Rank(candidates, signals, s.rules)

	if s.NeedsCanonical(in.Query, in.Intent) {
		canonical := filterLanguage(in.Canonical, in.Language)
		if len(canonical) > 0 {
			return s.withCanonical(canonical, ranked, in.K)
		}
	}

	if len(ranked) > 0 && ranked[0].Metadata.DocType == models.DocTypeCompleteContract {
		return s.withDominantFile(ranked, in.K)
	}

	return takeDistinct(newPicker(in.K), ranked).result()
}

// CanonicalSlots is how many slots the canonical file may fill for k.
func (s *Selector) CanonicalSlots(k int) int {
	slots := int(math.Floor(s.cfg.CanonicalShare*float64(k) + 1e-9))
	if k-1 > slots {
		slots = k - 1
	}
	if slots < 1 {
		slots = 1
	}
	if slots > k {
		slots = k
	}
	return slots
}

// DominanceSlots is how many slots go to the top-ranked file for k.
func (s *Selector) DominanceSlots(k int) int {
	slots := int(math.Ceil(s.cfg.DominanceShare*float64(k) - 1e-9))
	if slots < s.cfg.DominanceMin {
		slots = s.cfg.DominanceMin
	}
	if slots > k {
		slots = k
	}
	return slots
}

func (s *Selector) withCanonical(canonical, ranked []*models.Fragment, k int) []*models.Fragment {
	pinned := make([]*models.Fragment, 0, len(canonical))
	for _, f := range canonical {
		c := f.Clone()
		c.AdjustedScore = s.cfg.CanonicalScore
		pinned = append(pinned, c)
	}

	var others []*models.Fragment
	for _, f := range ranked {
		if f.Metadata.File != s.cfg.CanonicalFile {
			others = append(others, f)
		}
	}

	slots := s.CanonicalSlots(k)
	p := newPicker(k)
	for _, f := range pinned {
		if p.count() >= slots {
			break
		}
		p.add(f)
	}
	takeDistinct(p, others)
	// Not enough other material: let the rest of the canonical file in.
	takeDistinct(p, pinned)
	return p.result()
}

func (s *Selector) withDominantFile(ranked []*models.Fragment, k int) []*models.Fragment {
	file := ranked[0].Metadata.File
	var same, others []*models.Fragment
	for _, f := range ranked {
		if f.Metadata.File == file {
			same = append(same, f)
		} else {
			others = append(others, f)
		}
	}

	slots := s.DominanceSlots(k)
	p := newPicker(k)
	for _, f := range same {
		if p.count() >= slots {
			break
		}
		p.add(f)
	}
	takeDistinct(p, others)
	takeDistinct(p, same)
	return p.result()
}

func filterLanguage(fragments []*models.Fragment, lang models.Language) []*models.Fragment {
	if lang == "" {
		return fragments
	}
	out := make([]*models.Fragment, 0, len(fragments))
	for _, f := range fragments {
		if f.Metadata.LanguageDoc == lang {
			out = append(out, f)
		}
	}
	return out
}

// picker accumulates a capped, duplicate-free selection.
type picker struct {
	limit int
	seen  map[string]struct{}
	out   []*models.Fragment
}

func newPicker(limit int) *picker {
	return &picker{limit: limit, seen: make(map[string]struct{})}
}

func (p *picker) add(f *models.Fragment) bool {
	if len(p.out) >= p.limit {
		return false
	}
	key := f.Key()
	if _, dup := p.seen[key]; dup {
		return false
	}
	p.seen[key] = struct{}{}
	p.out = append(p.out, f)
	return true
}

func (p *picker) count() int { return len(p.out) }

func (p *picker) full() bool { return len(p.out) >= p.limit }

func (p *picker) result() []*models.Fragment { return p.out }

func takeDistinct(p *picker, fragments []*models.Fragment) *picker {
	for _, f := range fragments {
		if p.full() {
			break
		}
		p.add(f)
	}
	return p
}
