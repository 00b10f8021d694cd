package conversation

import (
	"regexp"
	"strings"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/urlvalidation"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateSlotInput reports whether input is acceptable for the slot type.
func ValidateSlotInput(t SlotType, input string) bool {
	switch t {
	case SlotString:
		return strings.TrimSpace(input) != ""
	case SlotEmail:
		return emailRe.MatchString(input)
	case SlotURL:
		return urlvalidation.ValidateAbsolute(input) == nil
	default:
		// Attachments are optional; an empty reference is recorded as
		// "None provided" when the submission is formatted.
		return true
	}
}
