package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/events"
)

const (
	declineResponse    = "No problem! What would you like to do instead?"
	sendFailedResponse = "Sorry, I couldn't send that just now. Shall I try again?"
	startOverResponse  = "Something went wrong. Let me start over."
	retryLimitResponse = "Let's start over. What would you like to do?"
)

// SubmitFunc delivers a confirmed submission to the outside world. A non-nil
// error keeps the conversation in the confirming phase so the user can retry.
type SubmitFunc func(ctx context.Context, sub Submission) error

// Reply is the engine's answer to one user turn.
type Reply struct {
	Response     string   `json:"response"`
	QuickReplies []string `json:"quick_replies,omitempty"`
	IsComplete   bool     `json:"is_complete,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used to pick canned responses.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithMaxSlotRetries abandons the conversation after n consecutive invalid
// answers to the same slot. Zero means unlimited.
func WithMaxSlotRetries(n int) Option {
	return func(e *Engine) { e.maxRetries = n }
}

// WithClock overrides the time source used for submission timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPublisher emits conversation lifecycle events for sessionID.
func WithPublisher(pub *events.Publisher, sessionID string) Option {
	return func(e *Engine) {
		e.publisher = pub
		e.sessionID = sessionID
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine runs one scripted conversation. It is not safe for concurrent use:
// each chat session owns its own Engine.
type Engine struct {
	catalog    *Catalog
	submit     SubmitFunc
	rng        *rand.Rand
	now        func() time.Time
	maxRetries int
	publisher  *events.Publisher
	sessionID  string
	logger     *slog.Logger

	state   conversationState
	history history
}

// NewEngine creates an engine over a validated catalog. submit may be nil,
// in which case confirmed submissions are dropped.
func NewEngine(catalog *Catalog, submit SubmitFunc, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		submit:  submit,
		now:     time.Now,
		state:   newConversationState(),
		history: history{max: DefaultMaxHistory},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// ProcessUserInput advances the conversation by one user turn. Every input,
// including empty text, is answered; unrecognised or invalid input
// produces a re-prompt rather than an error.
func (e *Engine) ProcessUserInput(ctx context.Context, message string) Reply {
	from := e.state.phase()

	var reply Reply
	switch {
	case e.state.isConfirming:
		reply = e.handleConfirmation(ctx, message)
	case e.state.isWaitingForSlot && e.state.currentSlot != "":
		reply = e.collectSlot(ctx, message)
	default:
		reply = e.handleIdle(ctx, message)
	}

	e.history.record(from, e.state.phase(), message, e.now())
	return reply
}

// Reset clears the conversation to its initial empty state.
func (e *Engine) Reset() {
	from := e.state.phase()
	e.reset()
	e.history.record(from, PhaseIdle, "reset", e.now())
	e.emit(context.Background(), events.ConversationReset, &events.SessionData{Reason: "reset"})
}

// State returns a snapshot of the conversation state.
func (e *Engine) State() State {
	return e.state.snapshot()
}

// History returns the recorded phase transitions, oldest first.
func (e *Engine) History() []Transition {
	return e.history.copy()
}

// Catalog returns the catalog the engine was built with.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

func (e *Engine) reset() {
	e.state = newConversationState()
}

func (e *Engine) handleIdle(ctx context.Context, message string) Reply {
	name := e.catalog.Recognize(message)
	in, ok := e.catalog.Intent(name)
	if !ok || name == e.catalog.FallbackIntent {
		return e.fallbackReply()
	}

	e.emit(ctx, events.IntentRecognized, &events.IntentRecognizedData{Intent: in.Name, Message: message})
	reply := Reply{
		Response:     e.pickResponse(in),
		QuickReplies: cloneStrings(in.QuickReplies),
	}
	if !in.HasSlots() {
		return reply
	}

	e.state = newConversationState()
	e.state.currentIntent = in.Name
	e.state.currentSlot = in.Slots[0].Name
	e.state.isWaitingForSlot = true
	return reply
}

func (e *Engine) collectSlot(ctx context.Context, message string) Reply {
	in, ok := e.catalog.Intent(e.state.currentIntent)
	if !ok {
		return e.startOver(ctx, startOverResponse)
	}
	slot, ok := in.Slot(e.state.currentSlot)
	if !ok {
		return e.startOver(ctx, startOverResponse)
	}

	if !ValidateSlotInput(slot.Type, message) {
		e.state.slotRetries++
		e.emit(ctx, events.SlotRejected, &events.SlotData{
			Intent:   in.Name,
			Slot:     slot.Name,
			SlotType: string(slot.Type),
			Attempt:  e.state.slotRetries,
		})
		if e.maxRetries > 0 && e.state.slotRetries >= e.maxRetries {
			return e.startOver(ctx, retryLimitResponse)
		}
		return Reply{Response: fmt.Sprintf("Please provide a valid %s. %s", slot.Type, slot.Prompt)}
	}

	e.state.setSlot(slot.Name, message)
	e.state.slotRetries = 0
	e.emit(ctx, events.SlotCollected, &events.SlotData{
		Intent:   in.Name,
		Slot:     slot.Name,
		SlotType: string(slot.Type),
	})

	if next, ok := e.nextRequiredSlot(in); ok {
		e.state.currentSlot = next.Name
		return Reply{Response: next.Prompt, QuickReplies: cloneStrings(next.Options)}
	}
	return e.confirm(in)
}

// nextRequiredSlot finds the first required slot, in declaration order,
// that has not been collected yet. Optional slots never block confirmation.
func (e *Engine) nextRequiredSlot(in *Intent) (Slot, bool) {
	for _, s := range in.Slots {
		if !s.Required {
			continue
		}
		if _, done := e.state.slotValue(s.Name); !done {
			return s, true
		}
	}
	return Slot{}, false
}

func (e *Engine) confirm(in *Intent) Reply {
	e.state.isConfirming = true
	e.state.isWaitingForSlot = false
	e.state.currentSlot = ""

	return Reply{
		Response:     Render(in.Confirmation, e.state.slotValue, ""),
		QuickReplies: cloneStrings(e.catalog.ConfirmReplies),
	}
}

func (e *Engine) handleConfirmation(ctx context.Context, message string) Reply {
	lower := strings.ToLower(message)
	if !strings.Contains(lower, "yes") && !strings.Contains(lower, "send") {
		e.emit(ctx, events.SubmissionDeclined, &events.SubmissionData{
			Intent:    e.state.currentIntent,
			Timestamp: e.now(),
		})
		e.reset()
		return Reply{Response: declineResponse}
	}

	in, ok := e.catalog.Intent(e.state.currentIntent)
	if !ok {
		return e.startOver(ctx, startOverResponse)
	}

	sub := FormatSubmission(e.catalog, in, e.state.slotValues(), e.now())
	if err := e.deliver(ctx, sub); err != nil {
		e.logger.WarnContext(ctx, "submission delivery failed",
			slog.String("session_id", e.sessionID),
			slog.String("intent", in.Name),
			slog.String("error", err.Error()))
		return Reply{
			Response:     sendFailedResponse,
			QuickReplies: cloneStrings(e.catalog.ConfirmReplies),
		}
	}

	e.emit(ctx, events.SubmissionConfirmed, submissionData(sub))
	e.reset()
	return Reply{Response: in.FinalResponse, IsComplete: true}
}

func (e *Engine) deliver(ctx context.Context, sub Submission) (err error) {
	if e.submit == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("submission sink panicked: %v", r)
		}
	}()
	return e.submit(ctx, sub)
}

func (e *Engine) startOver(ctx context.Context, response string) Reply {
	e.reset()
	e.emit(ctx, events.ConversationReset, &events.SessionData{Reason: response})
	return Reply{Response: response, QuickReplies: cloneStrings(e.catalog.Menu)}
}

func (e *Engine) fallbackReply() Reply {
	resp := "I'm not sure how to help with that. Please try one of the options above."
	if fb := e.catalog.Fallback(); fb != nil {
		resp = e.pickResponse(fb)
	}
	return Reply{Response: resp, QuickReplies: cloneStrings(e.catalog.Menu)}
}

func (e *Engine) pickResponse(in *Intent) string {
	if len(in.Responses) == 1 {
		return in.Responses[0]
	}
	return in.Responses[e.rng.IntN(len(in.Responses))]
}

func (e *Engine) emit(ctx context.Context, et events.EventType, data any) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Emit(ctx, et, e.sessionID, data); err != nil {
		e.logger.DebugContext(ctx, "emit event failed",
			slog.String("event_type", string(et)),
			slog.String("error", err.Error()))
	}
}

func submissionData(sub Submission) *events.SubmissionData {
	slots := make(map[string]string, len(sub.Slots))
	for _, v := range sub.Slots {
		slots[v.Name] = v.Value
	}
	return &events.SubmissionData{
		Intent:    sub.Intent,
		Type:      sub.Type,
		Name:      sub.Name,
		Email:     sub.Email,
		Message:   sub.Message,
		Slots:     slots,
		Timestamp: sub.Timestamp,
	}
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}
