package conversation

import (
	"strings"
	"testing"
)

const minimalCatalog = `
name: mini
menu: ["Ask"]
labels:
  - { phrase: "ask", intent: ask }
intents:
  - name: ask
    responses: ["Go ahead."]
    slots:
      - { name: q, prompt: "Your question?", type: string, required: true }
    confirmation: "Send {q}?"
    final_response: "Sent."
  - name: fallback
    responses: ["Pardon?"]
`

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	want := []string{"greeting", "project_inquiry", "hiring_inquiry", "support_inquiry", "general_question", "resume_submission", "fallback"}
	got := c.IntentNames()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("IntentNames = %v, want %v", got, want)
	}
	if c.Fallback() == nil || c.Fallback().Name != "fallback" {
		t.Errorf("Fallback = %+v", c.Fallback())
	}
	if len(c.Menu) != 5 {
		t.Errorf("menu = %v", c.Menu)
	}
	in, ok := c.Intent("support_inquiry")
	if !ok {
		t.Fatal("support_inquiry missing")
	}
	s, ok := in.Slot("screenshot")
	if !ok || s.Required || s.Type != SlotFile {
		t.Errorf("screenshot slot = %+v", s)
	}
	if _, ok := c.Intent("nope"); ok {
		t.Error("unknown intent found")
	}
}

func TestParseCatalogDefaults(t *testing.T) {
	c, err := ParseCatalog([]byte(minimalCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if c.FallbackIntent != "fallback" {
		t.Errorf("FallbackIntent = %q", c.FallbackIntent)
	}
	if len(c.ConfirmReplies) != 2 {
		t.Errorf("ConfirmReplies = %v", c.ConfirmReplies)
	}
}

func TestParseCatalogErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "unknown placeholder",
			mutate:  func(s string) string { return strings.Replace(s, "Send {q}?", "Send {x}?", 1) },
			wantErr: "placeholder {x}",
		},
		{
			name:    "missing confirmation",
			mutate:  func(s string) string { return strings.Replace(s, `confirmation: "Send {q}?"`, "", 1) },
			wantErr: "confirmation is required",
		},
		{
			name:    "bad slot type",
			mutate:  func(s string) string { return strings.Replace(s, "type: string", "type: phone", 1) },
			wantErr: `unknown type "phone"`,
		},
		{
			name:    "keyword to unknown intent",
			mutate:  func(s string) string { return strings.Replace(s, "intent: ask }", "intent: tell }", 1) },
			wantErr: `intent "tell" not found`,
		},
		{
			name:    "missing fallback",
			mutate:  func(s string) string { return strings.Replace(s, "name: fallback", "name: other", 1) },
			wantErr: `fallback intent "fallback" not found`,
		},
		{
			name:    "no menu",
			mutate:  func(s string) string { return strings.Replace(s, `menu: ["Ask"]`, "", 1) },
			wantErr: "menu is required",
		},
		{
			name:    "duplicate intent",
			mutate:  func(s string) string { return strings.Replace(s, "name: fallback", "name: ask", 1) },
			wantErr: "duplicate name",
		},
		{
			name:    "invalid yaml",
			mutate:  func(string) string { return "intents: [" },
			wantErr: "parse YAML",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.mutate(minimalCatalog)))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestRender(t *testing.T) {
	lookup := func(name string) (string, bool) {
		if name == "a" {
			return "1", true
		}
		return "", false
	}
	if got := Render("x={a} y={b}", lookup, ""); got != "x=1 y={b}" {
		t.Errorf("Render keep = %q", got)
	}
	if got := Render("x={a} y={b}", lookup, NoneProvided); got != "x=1 y=None provided" {
		t.Errorf("Render missing = %q", got)
	}
	if got := Render("plain", lookup, ""); got != "plain" {
		t.Errorf("Render plain = %q", got)
	}
}
