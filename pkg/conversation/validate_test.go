package conversation

import "testing"

func TestValidateSlotInput(t *testing.T) {
	tests := []struct {
		typ   SlotType
		input string
		want  bool
	}{
		{SlotString, "hello", true},
		{SlotString, "  x ", true},
		{SlotString, "", false},
		{SlotString, "   ", false},
		{SlotEmail, "a@b.co", true},
		{SlotEmail, "first.last@sub.example.org", true},
		{SlotEmail, "a@b", false},
		{SlotEmail, "a b@c.d", false},
		{SlotEmail, "@b.co", false},
		{SlotEmail, "", false},
		{SlotURL, "https://example.com", true},
		{SlotURL, "http://localhost:8080/x?y=1", true},
		{SlotURL, "mailto:me@x.io", true},
		{SlotURL, "example.com", false},
		{SlotURL, "not a link", false},
		{SlotURL, "", false},
		{SlotFile, "", true},
		{SlotFile, "anything", true},
	}
	for _, tt := range tests {
		if got := ValidateSlotInput(tt.typ, tt.input); got != tt.want {
			t.Errorf("ValidateSlotInput(%s, %q) = %v, want %v", tt.typ, tt.input, got, tt.want)
		}
	}
}
