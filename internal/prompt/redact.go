package prompt

import (
	"regexp"
	"sort"
)

// SecretType is a kind of sensitive value scrubbed from logged queries
type SecretType string

const (
	SecretTypeEmail         SecretType = "email"
	SecretTypeStellarSecret SecretType = "stellar_secret"
	SecretTypeAPIKey        SecretType = "api_key"
	SecretTypeJWT           SecretType = "jwt"
)

var secretPatterns = []struct {
	typ     SecretType
	pattern *regexp.Regexp
}{
	{SecretTypeStellarSecret, regexp.MustCompile(`\bS[A-Z2-7]{55}\b`)},
	{SecretTypeJWT, regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)},
	{SecretTypeAPIKey, regexp.MustCompile(`\b(sk|sk-or-v1|AIza)[-_][A-Za-z0-9_-]{20,}`)},
	{SecretTypeEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
}

type span struct {
	typ        SecretType
	start, end int
}

// Redact replaces secret keys, API keys, tokens and e-mail addresses with a
// typed placeholder. Queries are logged after redaction.
func Redact(text string) string {
	var spans []span
	for _, sp := range secretPatterns {
		for _, m := range sp.pattern.FindAllStringIndex(text, -1) {
			if !overlaps(spans, m[0], m[1]) {
				spans = append(spans, span{typ: sp.typ, start: m[0], end: m[1]})
			}
		}
	}
	if len(spans) == 0 {
		return text
	}

	// Replace right to left so earlier offsets stay valid.
	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })
	out := text
	for _, s := range spans {
		out = out[:s.start] + "[" + string(s.typ) + "_redacted]" + out[s.end:]
	}
	return out
}

func overlaps(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && s.start < end {
			return true
		}
	}
	return false
}
