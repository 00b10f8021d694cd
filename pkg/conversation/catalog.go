package conversation

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_intents.yaml
var defaultCatalogYAML []byte

// DefaultCatalog returns the built-in portfolio assistant catalog.
// It panics if the embedded definition is invalid.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("default intent catalog: %v", err))
	}
	return c
}

// ParseCatalog decodes and validates a YAML catalog definition.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the catalog for consistency and builds the name index.
// A catalog that fails validation must not be served.
func (c *Catalog) Validate() error {
	if len(c.Intents) == 0 {
		return fmt.Errorf("catalog %q: no intents defined", c.Name)
	}
	if c.FallbackIntent == "" {
		c.FallbackIntent = "fallback"
	}
	if len(c.Menu) == 0 {
		return fmt.Errorf("catalog %q: menu is required", c.Name)
	}
	if len(c.ConfirmReplies) == 0 {
		c.ConfirmReplies = []string{"Yes, send it", "No, let me change something"}
	}

	index := make(map[string]int, len(c.Intents))
	var errs []error
	for i := range c.Intents {
		in := &c.Intents[i]
		if in.Name == "" {
			errs = append(errs, fmt.Errorf("intent %d: name is required", i))
			continue
		}
		if _, dup := index[in.Name]; dup {
			errs = append(errs, fmt.Errorf("intent %q: duplicate name", in.Name))
			continue
		}
		index[in.Name] = i
		if err := validateIntent(in); err != nil {
			errs = append(errs, err)
		}
	}

	fb, ok := index[c.FallbackIntent]
	if !ok {
		errs = append(errs, fmt.Errorf("fallback intent %q not found", c.FallbackIntent))
	} else {
		in := c.Intents[fb]
		if len(in.TrainingPhrases) > 0 || in.HasSlots() {
			errs = append(errs, fmt.Errorf("fallback intent %q must have no training phrases or slots", in.Name))
		}
	}

	for _, kw := range append(append([]Keyword(nil), c.Labels...), c.Keywords...) {
		if strings.TrimSpace(kw.Phrase) == "" {
			errs = append(errs, fmt.Errorf("keyword for intent %q: phrase is required", kw.Intent))
		}
		if _, ok := index[kw.Intent]; !ok {
			errs = append(errs, fmt.Errorf("keyword %q: intent %q not found", kw.Phrase, kw.Intent))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("catalog %q: %w", c.Name, err)
	}
	c.byName = index
	return nil
}

func validateIntent(in *Intent) error {
	if len(in.Responses) == 0 {
		return fmt.Errorf("intent %q: at least one response is required", in.Name)
	}
	if !in.HasSlots() {
		if in.Confirmation != "" || in.FinalResponse != "" || in.Submission != nil {
			return fmt.Errorf("intent %q: confirmation, final_response and submission require slots", in.Name)
		}
		return nil
	}
	if in.Confirmation == "" {
		return fmt.Errorf("intent %q: confirmation is required when slots are defined", in.Name)
	}
	if in.FinalResponse == "" {
		return fmt.Errorf("intent %q: final_response is required when slots are defined", in.Name)
	}

	seen := make(map[string]bool, len(in.Slots))
	for i, s := range in.Slots {
		if s.Name == "" {
			return fmt.Errorf("intent %q slot %d: name is required", in.Name, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("intent %q slot %q: duplicate name", in.Name, s.Name)
		}
		seen[s.Name] = true
		if s.Prompt == "" {
			return fmt.Errorf("intent %q slot %q: prompt is required", in.Name, s.Name)
		}
		switch s.Type {
		case SlotString, SlotEmail, SlotURL, SlotFile:
		default:
			return fmt.Errorf("intent %q slot %q: unknown type %q", in.Name, s.Name, s.Type)
		}
	}

	templates := []string{in.Confirmation}
	if in.Submission != nil {
		templates = append(templates, in.Submission.Body)
	}
	for _, tmpl := range templates {
		for _, name := range placeholders(tmpl) {
			if !seen[name] {
				return fmt.Errorf("intent %q: placeholder {%s} names no slot", in.Name, name)
			}
		}
	}
	return nil
}

// Intent returns the intent with the given name.
func (c *Catalog) Intent(name string) (*Intent, bool) {
	i, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return &c.Intents[i], true
}

// Fallback returns the catch-all intent.
func (c *Catalog) Fallback() *Intent {
	in, _ := c.Intent(c.FallbackIntent)
	return in
}

// IntentNames lists intent names in catalog order.
func (c *Catalog) IntentNames() []string {
	names := make([]string, 0, len(c.Intents))
	for _, in := range c.Intents {
		names = append(names, in.Name)
	}
	return names
}
