package conversation

import "time"

// DefaultMaxHistory is the maximum number of transition records kept per
// conversation before eviction.
const DefaultMaxHistory = 200

// Phase is the coarse position of a conversation in the flow.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCollecting Phase = "collecting"
	PhaseConfirming Phase = "confirming"
)

// Transition records a phase change for introspection.
type Transition struct {
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Trigger   string    `json:"trigger"`
	Timestamp time.Time `json:"timestamp"`
}

// SlotValue is one collected slot value.
type SlotValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// State is a read-only snapshot of a conversation.
type State struct {
	CurrentIntent    string            `json:"current_intent,omitempty"`
	CollectedSlots   map[string]string `json:"collected_slots"`
	CollectionOrder  []string          `json:"collection_order"`
	IsWaitingForSlot bool              `json:"is_waiting_for_slot"`
	CurrentSlot      string            `json:"current_slot,omitempty"`
	IsConfirming     bool              `json:"is_confirming"`
	SlotRetries      int               `json:"slot_retries"`
}

// Phase derives the flow phase from the state flags.
func (s State) Phase() Phase {
	switch {
	case s.IsConfirming:
		return PhaseConfirming
	case s.IsWaitingForSlot:
		return PhaseCollecting
	default:
		return PhaseIdle
	}
}

// conversationState is the engine's single mutable session record.
type conversationState struct {
	currentIntent    string
	collected        map[string]string
	order            []string
	isWaitingForSlot bool
	currentSlot      string
	isConfirming     bool
	slotRetries      int
}

func newConversationState() conversationState {
	return conversationState{collected: make(map[string]string)}
}

func (s *conversationState) phase() Phase {
	return State{IsWaitingForSlot: s.isWaitingForSlot, IsConfirming: s.isConfirming}.Phase()
}

func (s *conversationState) setSlot(name, value string) {
	if _, ok := s.collected[name]; !ok {
		s.order = append(s.order, name)
	}
	s.collected[name] = value
}

func (s *conversationState) slotValue(name string) (string, bool) {
	v, ok := s.collected[name]
	return v, ok
}

// slotValues returns the collected values in collection order.
func (s *conversationState) slotValues() []SlotValue {
	out := make([]SlotValue, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, SlotValue{Name: name, Value: s.collected[name]})
	}
	return out
}

func (s *conversationState) snapshot() State {
	cp := make(map[string]string, len(s.collected))
	for k, v := range s.collected {
		cp[k] = v
	}
	return State{
		CurrentIntent:    s.currentIntent,
		CollectedSlots:   cp,
		CollectionOrder:  append([]string{}, s.order...),
		IsWaitingForSlot: s.isWaitingForSlot,
		CurrentSlot:      s.currentSlot,
		IsConfirming:     s.isConfirming,
		SlotRetries:      s.slotRetries,
	}
}

// history is a bounded transition log. The oldest 10% of entries are
// evicted once the cap is reached.
type history struct {
	max     int
	records []Transition
}

func (h *history) record(from, to Phase, trigger string, at time.Time) {
	if from == to {
		return
	}
	if h.max > 0 && len(h.records) >= h.max {
		evict := h.max / 10
		if evict < 1 {
			evict = 1
		}
		h.records = h.records[evict:]
	}
	h.records = append(h.records, Transition{From: from, To: to, Trigger: trigger, Timestamp: at})
}

func (h *history) copy() []Transition {
	cp := make([]Transition, len(h.records))
	copy(cp, h.records)
	return cp
}
