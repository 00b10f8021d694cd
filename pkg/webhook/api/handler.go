package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/events"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/urlvalidation"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/webhook"
)

const maxRequestBodySize = 1 << 20 // 1 MiB

// Store is the persistence the admin API needs. *webhook.Repository satisfies it.
type Store interface {
	CreateEndpoint(ctx context.Context, wh *webhook.Endpoint) error
	GetByID(ctx context.Context, id string) (*webhook.Endpoint, error)
	ListAll(ctx context.Context) ([]webhook.Endpoint, error)
	Delete(ctx context.Context, id string) error
	ListDeliveries(ctx context.Context, webhookID string, limit, offset int) ([]webhook.DeliveryAttempt, error)
	ListDeadLetters(ctx context.Context, webhookID string) ([]webhook.DeadLetter, error)
	MarkDeadLetterReplayed(ctx context.Context, id string) error
}

// Deliverer sends one envelope to one endpoint. *webhook.Deliverer satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, wh webhook.Endpoint, env events.Envelope)
	CircuitState(webhookID string) string
}

// Handler provides REST endpoints for webhook management.
type Handler struct {
	store        Store
	deliverer    Deliverer
	source       string
	validateOpts []urlvalidation.Option
}

// NewHandler creates a new webhook API handler. source is stamped on test
// envelopes.
func NewHandler(store Store, deliverer Deliverer, source string, validateOpts ...urlvalidation.Option) *Handler {
	return &Handler{store: store, deliverer: deliverer, source: source, validateOpts: validateOpts}
}

// Routes returns the webhook admin routes, to be mounted under a prefix.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/deliveries", h.ListDeliveries)
	r.Get("/{id}/dead-letters", h.ListDeadLetters)
	r.Post("/{id}/dead-letters/{dlid}/replay", h.ReplayDeadLetter)
	r.Post("/{id}/test", h.Test)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (h *Handler) createdResponse(wh *webhook.Endpoint) WebhookResponse {
	resp := newWebhookResponse(wh, h.deliverer.CircuitState(wh.ID))
	resp.Secret = wh.Secret
	return resp
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*webhook.Endpoint, bool) {
	wh, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, webhook.ErrNotFound) {
		writeError(w, http.StatusNotFound, "webhook not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load webhook")
		return nil, false
	}
	return wh, true
}

// Create handles POST /
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "name and url are required")
		return
	}

	if err := urlvalidation.ValidateWebhookURL(req.URL, h.validateOpts...); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook URL: "+err.Error())
		return
	}

	secret, err := webhook.GenerateSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate secret")
		return
	}

	types := req.EventTypes
	if len(types) == 0 {
		types = []events.EventType{events.SubmissionConfirmed}
	}
	for _, et := range types {
		if !et.Valid() {
			writeError(w, http.StatusBadRequest, "unknown event type: "+string(et))
			return
		}
	}

	wh := &webhook.Endpoint{
		Name:        req.Name,
		URL:         req.URL,
		Secret:      secret,
		EventTypes:  webhook.EventTypesJSON(types),
		IsActive:    true,
		Description: req.Description,
	}

	if err := h.store.CreateEndpoint(r.Context(), wh); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create webhook")
		return
	}

	writeJSON(w, http.StatusCreated, h.createdResponse(wh))
}

// List handles GET /
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.store.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list webhooks")
		return
	}

	resp := make([]WebhookResponse, 0, len(endpoints))
	for i := range endpoints {
		resp = append(resp, newWebhookResponse(&endpoints[i], h.deliverer.CircuitState(endpoints[i].ID)))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	wh, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newWebhookResponse(wh, h.deliverer.CircuitState(wh.ID)))
}

// Delete handles DELETE /{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, webhook.ErrNotFound) {
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete webhook")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDeliveries handles GET /{id}/deliveries
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r.URL.Query())
	attempts, err := h.store.ListDeliveries(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}

	resp := make([]DeliveryResponse, 0, len(attempts))
	for _, a := range attempts {
		resp = append(resp, newDeliveryResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListDeadLetters handles GET /{id}/dead-letters
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	letters, err := h.store.ListDeadLetters(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}

	resp := make([]DeadLetterResponse, 0, len(letters))
	for _, dl := range letters {
		resp = append(resp, newDeadLetterResponse(dl))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReplayDeadLetter handles POST /{id}/dead-letters/{dlid}/replay. The
// envelope is redelivered to its endpoint only, not re-broadcast.
func (h *Handler) ReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	wh, ok := h.lookup(w, r)
	if !ok {
		return
	}
	dlid := chi.URLParam(r, "dlid")

	letters, err := h.store.ListDeadLetters(r.Context(), wh.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}

	var found *webhook.DeadLetter
	for i := range letters {
		if letters[i].ID == dlid {
			found = &letters[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "dead letter not found")
		return
	}

	var env events.Envelope
	if err := json.Unmarshal([]byte(found.Payload), &env); err != nil {
		writeError(w, http.StatusInternalServerError, "corrupt dead letter payload")
		return
	}

	if err := h.store.MarkDeadLetterReplayed(r.Context(), dlid); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark dead letter replayed")
		return
	}

	go h.deliverer.Deliver(context.WithoutCancel(r.Context()), *wh, env)
	w.WriteHeader(http.StatusAccepted)
}

// Test handles POST /{id}/test
func (h *Handler) Test(w http.ResponseWriter, r *http.Request) {
	wh, ok := h.lookup(w, r)
	if !ok {
		return
	}

	data, _ := json.Marshal(events.WebhookTestData{
		WebhookID: wh.ID,
		Message:   "This is a test webhook delivery from the portfolio assistant",
	})
	env := events.Envelope{
		ID:        xid.New().String(),
		Type:      events.WebhookTest,
		Source:    h.source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	go h.deliverer.Deliver(context.WithoutCancel(r.Context()), *wh, env)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "test delivery scheduled"})
}
