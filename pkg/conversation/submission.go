package conversation

import (
	"strings"
	"time"
)

// SubmitterName is the display name attached to every chatbot submission.
const SubmitterName = "Chatbot User"

// Submission is the envelope handed to the submission sink once the user
// confirms. It is built once and not retained by the engine.
type Submission struct {
	Type      string      `json:"type"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Message   string      `json:"message"`
	Intent    string      `json:"intent"`
	Slots     []SlotValue `json:"slots"`
	Timestamp time.Time   `json:"timestamp"`
}

// FormatSubmission shapes the collected slot values of an intent into a
// Submission. Uncollected or blank slots render as NoneProvided.
func FormatSubmission(c *Catalog, in *Intent, values []SlotValue, now time.Time) Submission {
	lookup := func(name string) (string, bool) {
		for _, v := range values {
			if v.Name == name && strings.TrimSpace(v.Value) != "" {
				return v.Value, true
			}
		}
		return "", false
	}

	sub := Submission{
		Type:      in.Name,
		Name:      SubmitterName,
		Intent:    in.Name,
		Slots:     append([]SlotValue{}, values...),
		Timestamp: now,
	}

	emailSlot := ""
	for _, s := range in.Slots {
		if s.Type == SlotEmail {
			emailSlot = s.Name
			break
		}
	}
	if v, ok := lookup(emailSlot); ok {
		sub.Email = v
	}

	spec := in.Submission
	if spec == nil {
		spec = &SubmissionSpec{}
	}
	if spec.Type != "" {
		sub.Type = spec.Type
	}
	if sub.Email == "" {
		sub.Email = spec.Email
	}
	if sub.Email == "" {
		sub.Email = c.DefaultEmail
	}

	if spec.Body != "" {
		sub.Message = Render(spec.Body, lookup, NoneProvided)
		return sub
	}

	lines := make([]string, 0, len(in.Slots))
	for _, s := range in.Slots {
		if s.Name == emailSlot {
			continue
		}
		v, ok := lookup(s.Name)
		if !ok {
			v = NoneProvided
		}
		lines = append(lines, s.Prompt+" "+v)
	}
	sub.Message = strings.Join(lines, "\n")
	return sub
}
