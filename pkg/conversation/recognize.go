package conversation

import "strings"

// Recognize maps a message to an intent name. Matching is case-insensitive
// on the trimmed message, in this order: canonical quick-reply labels,
// fallback keywords, training phrases in catalog order, then the fallback
// intent. A miss is never an error.
func (c *Catalog) Recognize(message string) string {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return c.FallbackIntent
	}

	for _, kw := range c.Labels {
		if strings.Contains(msg, strings.ToLower(kw.Phrase)) {
			return kw.Intent
		}
	}
	for _, kw := range c.Keywords {
		if strings.Contains(msg, strings.ToLower(kw.Phrase)) {
			return kw.Intent
		}
	}
	for _, in := range c.Intents {
		for _, phrase := range in.TrainingPhrases {
			if phrase != "" && strings.Contains(msg, strings.ToLower(phrase)) {
				return in.Name
			}
		}
	}
	return c.FallbackIntent
}
