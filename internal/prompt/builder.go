// Package prompt composes the system prompt that grounds every generation
// call in the user's digital-twin profile.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"twin_gateway/internal/i18n"
	"twin_gateway/internal/models"
)

type template struct {
	header       string
	demographics string
	preferences  string
	interests    string
	tone         string
	footer       string
}

var templates = map[string]template{
	i18n.LangSpanish: {
		header: "Eres el gemelo digital de un participante de encuestas. " +
			"Responde a la pregunta como lo haría esta persona, en primera persona y en español.",
		demographics: "Datos demográficos:",
		preferences:  "Preferencias:",
		interests:    "Intereses: %s.",
		tone:         "Tono de la respuesta: %s.",
		footer:       "Responde de forma coherente con el perfil anterior.",
	},
	i18n.LangEnglish: {
		header: "You are the digital twin of a survey participant. " +
			"Answer the question the way this person would, in first person and in English.",
		demographics: "Demographics:",
		preferences:  "Preferences:",
		interests:    "Interests: %s.",
		tone:         "Answer tone: %s.",
		footer:       "Keep the answer consistent with the profile above.",
	},
}

// Build renders the system prompt for a profile and language. Absent or
// empty profile sections are omitted entirely; Build never fails.
func Build(profile *models.UserProfile, lang string) string {
	tmpl := templates[i18n.Normalize(lang)]

	var b strings.Builder
	b.WriteString(tmpl.header)

	if profile != nil {
		if block := renderMapping(profile.Demographics); block != "" {
			b.WriteString("\n\n")
			b.WriteString(tmpl.demographics)
			b.WriteString("\n")
			b.WriteString(block)
		}
		// Interests get their own line below, not a preferences bullet.
		if block := renderMapping(profile.Preferences, "interests"); block != "" {
			b.WriteString("\n\n")
			b.WriteString(tmpl.preferences)
			b.WriteString("\n")
			b.WriteString(block)
		}
	}

	if interests := profile.Interests(); len(interests) > 0 {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, tmpl.interests, strings.Join(interests, ", "))
	}

	b.WriteString("\n\n")
	fmt.Fprintf(&b, tmpl.tone, profile.Tone())
	b.WriteString("\n")
	b.WriteString(tmpl.footer)

	return b.String()
}

// renderMapping serializes an open mapping as "- key: value" lines in key
// order. Nil values and empty strings are skipped so a mapping of blanks
// renders as an absent section. Keys named in skip are left out, for
// fields rendered elsewhere in the prompt.
func renderMapping(m models.JSONB, skip ...string) string {
	if len(m) == 0 {
		return ""
	}

	skipped := make(map[string]bool, len(skip))
	for _, k := range skip {
		skipped[k] = true
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		if !skipped[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		v := m[k]
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", k, formatValue(v)))
	}
	return strings.Join(lines, "\n")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, formatValue(e))
		}
		return strings.Join(parts, ", ")
	case float64:
		// JSON numbers decode as float64; render integers without a fraction.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
