package prompt

import "github.com/upb/sorobai/backend/models"

// NoContextAnswer is returned when retrieval finds nothing to ground an answer on.
func NoContextAnswer(l models.Language) string {
	if l == models.LanguageEnglish {
		return "Sorry, I could not find relevant information to answer your question."
	}
	return "Lo siento, no encontré información relevante para responder tu pregunta."
}

// Annotate appends the validation message to an answer. Failing code gets a
// security warning; passing code with warnings gets a recommendations note.
func Annotate(answer string, l models.Language, validation string, valid bool) string {
	var header string
	switch {
	case !valid && l == models.LanguageEnglish:
		header = "⚠️ **SECURITY WARNING**"
	case !valid:
		header = "⚠️ **ADVERTENCIA DE SEGURIDAD**"
	case l == models.LanguageEnglish:
		header = "💡 **RECOMMENDATIONS**"
	default:
		header = "💡 **ADVERTENCIAS Y RECOMENDACIONES**"
	}
	return answer + "\n\n---\n\n" + header + "\n\n" + validation
}
