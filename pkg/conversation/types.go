package conversation

// SlotType governs how a slot value is validated.
type SlotType string

const (
	SlotString SlotType = "string"
	SlotEmail  SlotType = "email"
	SlotURL    SlotType = "url"
	SlotFile   SlotType = "file"
)

// Catalog is a YAML-mappable set of intents plus the recognition tables
// that sit in front of them.
type Catalog struct {
	Name           string    `yaml:"name"            json:"name"`
	Version        string    `yaml:"version"         json:"version"`
	FallbackIntent string    `yaml:"fallback_intent" json:"fallback_intent"`
	DefaultEmail   string    `yaml:"default_email"   json:"default_email,omitempty"`
	Menu           []string  `yaml:"menu"            json:"menu"`
	ConfirmReplies []string  `yaml:"confirm_replies" json:"confirm_replies"`
	Labels         []Keyword `yaml:"labels"          json:"labels,omitempty"`
	Keywords       []Keyword `yaml:"keywords"        json:"keywords,omitempty"`
	Intents        []Intent  `yaml:"intents"         json:"intents"`

	byName map[string]int
}

// Keyword maps a lowercase phrase to the intent it selects.
type Keyword struct {
	Phrase string `yaml:"phrase" json:"phrase"`
	Intent string `yaml:"intent" json:"intent"`
}

// Intent is a named conversational topic.
type Intent struct {
	Name            string          `yaml:"name"             json:"name"`
	TrainingPhrases []string        `yaml:"training_phrases" json:"training_phrases,omitempty"`
	Responses       []string        `yaml:"responses"        json:"responses"`
	QuickReplies    []string        `yaml:"quick_replies"    json:"quick_replies,omitempty"`
	Slots           []Slot          `yaml:"slots"            json:"slots,omitempty"`
	Confirmation    string          `yaml:"confirmation"     json:"confirmation,omitempty"`
	FinalResponse   string          `yaml:"final_response"   json:"final_response,omitempty"`
	Submission      *SubmissionSpec `yaml:"submission"       json:"submission,omitempty"`
}

// Slot is one piece of data elicited from the user.
type Slot struct {
	Name     string   `yaml:"name"     json:"name"`
	Prompt   string   `yaml:"prompt"   json:"prompt"`
	Type     SlotType `yaml:"type"     json:"type"`
	Options  []string `yaml:"options"  json:"options,omitempty"`
	Required bool     `yaml:"required" json:"required"`
}

// SubmissionSpec shapes the collected slots of an intent into a Submission.
type SubmissionSpec struct {
	Type  string `yaml:"type"  json:"type"`
	Body  string `yaml:"body"  json:"body,omitempty"`
	Email string `yaml:"email" json:"email,omitempty"`
}

// HasSlots reports whether the intent has a data-collection phase.
func (in *Intent) HasSlots() bool {
	return len(in.Slots) > 0
}

// Slot returns the slot definition with the given name.
func (in *Intent) Slot(name string) (Slot, bool) {
	for _, s := range in.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}
