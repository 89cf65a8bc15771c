package rag

import (
	"sort"
	"strings"

	"github.com/upb/sorobai/backend/models"
)

// ScoringRule returns the score delta one rule contributes for a fragment.
// Rules are pure; the re-ranker sums them on top of the raw similarity.
type ScoringRule func(f *models.Fragment, s Signals) float64

// DefaultRules is the ordered rule set used by the re-ranker
var DefaultRules = []ScoringRule{
	completeContractRule,
	patternsGuideRule,
	securityGuideRule,
	codeDensityRule,
}

func completeContractRule(f *models.Fragment, s Signals) float64 {
	if f.Metadata.DocType != models.DocTypeCompleteContract {
		return 0
	}
	in := s.Intent
	if in.WantsFullTokenContract || (s.MentionsEntity() && in.WantsCode) {
		return 0.7
	}
	if in.WantsCode && s.TopicIsEntity(f) {
		return 0.4
	}
	return 0
}

func patternsGuideRule(f *models.Fragment, s Signals) float64 {
	if f.Metadata.DocType != models.DocTypePatternsGuide {
		return 0
	}
	in := s.Intent
	delta := 0.0
	if in.WantsConcepts {
		delta += 0.3
	}
	if s.MentionsEntity() && !in.WantsFullTokenContract {
		delta += 0.05
	}
	if in.WantsFullTokenContract {
		delta -= 0.5
	}
	return delta
}

// securityTopicTerms lists what a query may say to touch a tagged security topic
var securityTopicTerms = map[string][]string{
	"ttl":              {"ttl", "extend_ttl"},
	"auth":             {"auth", "require_auth"},
	"error_handling":   {"error handling", "error_handling"},
	"recursion":        {"recursion", "recursive", "recursiv"},
	"initialization":   {"initialization", "initialize", "inicializ"},
	"gas_optimization": {"gas"},
}

func securityGuideRule(f *models.Fragment, s Signals) float64 {
	if f.Metadata.DocType != models.DocTypeSecurityGuide {
		return 0
	}
	in := s.Intent
	delta := 0.0
	if in.WantsErrorHelp {
		delta += 0.6
	}
	if in.WantsFullTokenContract {
		delta += 0.3
	}
	for _, topic := range f.Metadata.SecurityTopics {
		if queryTouchesTopic(s.QueryLower, topic) {
			delta += 0.2
		}
	}
	return delta
}

func queryTouchesTopic(queryLower, topic string) bool {
	if strings.Contains(queryLower, topic) {
		return true
	}
	for _, term := range securityTopicTerms[topic] {
		if strings.Contains(queryLower, term) {
			return true
		}
	}
	return false
}

func codeDensityRule(f *models.Fragment, s Signals) float64 {
	in := s.Intent
	delta := 0.0
	if f.Metadata.HasCode && in.WantsCode {
		delta += 0.1
	}
	if f.Metadata.ContentType == models.ContentTypeCodeHeavy && in.WantsCode {
		delta += 0.15
	}
	if f.Metadata.ContentType == models.ContentTypeDocumentation && in.WantsConcepts {
		delta += 0.1
	}
	return delta
}

// Score returns a fragment's similarity plus every rule's delta
func Score(f *models.Fragment, s Signals, rules []ScoringRule) float64 {
	score := f.Similarity
	for _, rule := range rules {
		score += rule(f, s)
	}
	return score
}

// Rank scores copies of the fragments and returns them sorted by adjusted score.
// Ties keep the input (similarity) order.
func Rank(fragments []*models.Fragment, s Signals, rules []ScoringRule) []*models.Fragment {
	ranked := make([]*models.Fragment, 0, len(fragments))
	for _, f := range fragments {
		c := f.Clone()
		c.AdjustedScore = Score(c, s, rules)
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AdjustedScore > ranked[j].AdjustedScore
	})
	return ranked
}
