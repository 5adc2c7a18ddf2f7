// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

// defaultLanguage is used whenever a session or principal has no
// preferred-language set.
const defaultLanguage = "pt"

var summaryPrompts = map[string]string{
	"pt": "Resuma o conteudo da sessao abaixo em portugues, em markdown, exatamente com as secoes " +
		"\"## 📌 Resumo\", \"## 🔑 Pontos-chave\", \"## ✅ Acoes\" e \"## ℹ️ Detalhes importantes\", nesta ordem. Seja objetivo.\n\n%s",
	"en": "Summarize the session content below in English, in markdown, using exactly the sections " +
		"\"## 📌 Summary\", \"## 🔑 Key Points\", \"## ✅ Actions\" and \"## ℹ️ Important Details\", in that order. Be concise.\n\n%s",
	"es": "Resume el contenido de la sesion a continuacion en espanol, en markdown, usando exactamente las secciones " +
		"\"## 📌 Resumen\", \"## 🔑 Puntos clave\", \"## ✅ Acciones\" y \"## ℹ️ Detalles importantes\", en ese orden. Se conciso.\n\n%s",
}

var titlePrompts = map[string]string{
	"pt": "Gere um titulo curto (ate 60 caracteres) para a sessao a seguir, sem aspas:\n\n%s",
	"en": "Generate a short title (at most 60 characters) for the session below, no quotes:\n\n%s",
	"es": "Genera un titulo corto (hasta 60 caracteres) para la sesion a continuacion, sin comillas:\n\n%s",
}

var imageDescriptionPrompts = map[string]string{
	"pt": "Descreva esta imagem em uma ou duas frases, em portugues.",
	"en": "Describe this image in one or two sentences, in English.",
	"es": "Describe esta imagen en una o dos frases, en espanol.",
}

func promptFor(table map[string]string, language string) string {
	if p, ok := table[language]; ok {
		return p
	}
	return table[defaultLanguage]
}

const maxTitleLength = 60

// truncateTitle enforces the 60-char title cap: inputs longer than that are
// cut to 57 runes plus an ellipsis.
func truncateTitle(s string) string {
	r := []rune(s)
	if len(r) <= maxTitleLength {
		return s
	}
	return string(r[:57]) + "…"
}
