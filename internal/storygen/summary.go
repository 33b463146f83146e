package storygen

import (
	"strings"
)

// FallbackSummary returns the first maxSentences sentences of text. Used when
// the model returns plain prose instead of structured output, so downstream
// chapters still get usable context.
func FallbackSummary(text string, maxSentences int) string {
	if maxSentences <= 0 {
		return ""
	}

	text = strings.TrimSpace(text)
	var b strings.Builder
	count := 0

	for i, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			// End of sentence only when followed by space or end of text.
			if i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
				count++
				if count >= maxSentences {
					break
				}
			}
		}
	}

	return strings.TrimSpace(b.String())
}
