// Package i18n holds the user-facing presentation strings in the two
// supported languages. These are purely presentational: the progress lines
// returned with a non-streaming answer are a fixed sequence, not a trace of
// internal steps.
package i18n

// Languages supported by the service.
const (
	LangSpanish = "es"
	LangEnglish = "en"
)

// Normalize maps any unknown language tag to Spanish, the service default.
func Normalize(lang string) string {
	if lang == LangEnglish {
		return LangEnglish
	}
	return LangSpanish
}

var progressLogs = map[string][]string{
	LangSpanish: {
		"Consultando tu gemelo digital...",
		"Preparando el contexto de la pregunta...",
		"Generando la respuesta...",
		"Respuesta lista.",
	},
	LangEnglish: {
		"Consulting your digital twin...",
		"Preparing the question context...",
		"Generating the answer...",
		"Answer ready.",
	},
}

var generationFailed = map[string]string{
	LangSpanish: "No se pudo generar la respuesta. Inténtalo de nuevo más tarde.",
	LangEnglish: "The answer could not be generated. Please try again later.",
}

// ProgressLogs returns the localized progress lines included with a
// successful non-streaming response.
func ProgressLogs(lang string) []string {
	logs := progressLogs[Normalize(lang)]
	out := make([]string, len(logs))
	copy(out, logs)
	return out
}

// GenerationFailed returns the localized user-visible failure message.
func GenerationFailed(lang string) string {
	return generationFailed[Normalize(lang)]
}
