package prompt

import (
	"fmt"
	"strings"

	"github.com/upb/sorobai/backend/models"
)

const sourceSeparator = "\n---\n\n"

// FormatContext renders the selected fragments as numbered sources for the model.
func FormatContext(fragments []*models.Fragment, l models.Language) string {
	label, code := "Fuente", "Código"
	if l == models.LanguageEnglish {
		label, code = "Source", "Code"
	}

	parts := make([]string, 0, len(fragments))
	for i, f := range fragments {
		mark := "✗"
		if f.Metadata.HasCode {
			mark = "✓"
		}
		parts = append(parts, fmt.Sprintf("### %s %d [%s/%s] [%s: %s]\n%s\n",
			label, i+1, orUnknown(f.Metadata.Section), orUnknown(f.Metadata.Topic), code, mark, f.Content))
	}
	return strings.Join(parts, sourceSeparator)
}

// JoinContents concatenates fragment bodies without headers, as chat context.
func JoinContents(fragments []*models.Fragment) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, f.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
