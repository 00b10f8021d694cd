// Package handler exposes the conversation engine over a JSON HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/xid"

	"github.com/kavishka-codxlab/portfolio-assistant/internal/httputil"
	"github.com/kavishka-codxlab/portfolio-assistant/internal/store"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/conversation"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/events"
)

const (
	maxRequestBodySize = 64 << 10
	greetingIntent     = "greeting"
)

// SinkFactory hands out a submission sink bound to one session.
// *dispatch.Dispatcher satisfies it.
type SinkFactory interface {
	SubmitFor(sessionID string) conversation.SubmitFunc
}

// Config tunes the chat API.
type Config struct {
	SessionTTL       time.Duration
	MaxSlotRetries   int
	MaxMessageLength int
	AllowedOrigins   []string
	AdminToken       string
}

// Handler serves the chat and inbox endpoints.
type Handler struct {
	catalog   func() *conversation.Catalog
	sinks     SinkFactory
	inbox     store.Store
	publisher *events.Publisher
	logger    *slog.Logger
	cfg       Config
	sessions  *SessionStore
}

// New creates a chat handler. catalog is consulted for every new session,
// so a hot-reloaded catalog applies to sessions started after the reload.
func New(catalog func() *conversation.Catalog, sinks SinkFactory, inbox store.Store, publisher *events.Publisher, logger *slog.Logger, cfg Config) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 2000
	}
	h := &Handler{
		catalog:   catalog,
		sinks:     sinks,
		inbox:     inbox,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
	}
	h.sessions = NewSessionStore(cfg.SessionTTL, h.sessionEnded)
	return h
}

// Sessions exposes the live session store.
func (h *Handler) Sessions() *SessionStore {
	return h.sessions
}

// Router builds the chi router. Callers may mount extra routes on it.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httputil.Logging(h.logger))

	origins := h.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/api/health", h.handleHealth)
	r.Get("/api/intents", h.handleIntents)

	r.Route("/api/chat/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreateSession)
		r.Get("/{id}", h.handleGetSession)
		r.Delete("/{id}", h.handleDeleteSession)
		r.Post("/{id}/messages", h.handleMessage)
		r.Post("/{id}/reset", h.handleReset)
	})

	r.Group(func(r chi.Router) {
		r.Use(httputil.BearerAuth(h.cfg.AdminToken))
		r.Get("/api/messages", h.handleListMessages)
		r.Put("/api/messages/{id}/read", h.handleMarkRead)
	})
	return r
}

type sessionResponse struct {
	SessionID    string   `json:"session_id"`
	Response     string   `json:"response"`
	QuickReplies []string `json:"quick_replies,omitempty"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type replyResponse struct {
	SessionID    string             `json:"session_id"`
	Response     string             `json:"response"`
	QuickReplies []string           `json:"quick_replies,omitempty"`
	IsComplete   bool               `json:"is_complete"`
	Phase        conversation.Phase `json:"phase"`
}

type stateResponse struct {
	SessionID string                    `json:"session_id"`
	StartedAt time.Time                 `json:"started_at"`
	Phase     conversation.Phase        `json:"phase"`
	State     conversation.State        `json:"state"`
	History   []conversation.Transition `json:"history"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"sessions":  h.sessions.Count(),
	})
}

func (h *Handler) handleIntents(w http.ResponseWriter, r *http.Request) {
	c := h.catalog()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"catalog": c.Name,
		"version": c.Version,
		"menu":    c.Menu,
		"intents": c.IntentNames(),
	})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	c := h.catalog()
	id := xid.New().String()

	opts := []conversation.Option{
		conversation.WithLogger(h.logger),
		conversation.WithMaxSlotRetries(h.cfg.MaxSlotRetries),
	}
	if h.publisher != nil {
		opts = append(opts, conversation.WithPublisher(h.publisher, id))
	}
	var sink conversation.SubmitFunc
	if h.sinks != nil {
		sink = h.sinks.SubmitFor(id)
	}

	s := &chatSession{
		id:        id,
		startedAt: time.Now().UTC(),
		engine:    conversation.NewEngine(c, sink, opts...),
	}
	h.sessions.put(s)
	h.emit(r.Context(), events.SessionStarted, id, &events.SessionData{Reason: "created"})

	resp := sessionResponse{SessionID: id, QuickReplies: c.Menu}
	if in, ok := c.Intent(greetingIntent); ok && len(in.Responses) > 0 {
		resp.Response = in.Responses[0]
		if len(in.QuickReplies) > 0 {
			resp.QuickReplies = in.QuickReplies
		}
	} else {
		resp.Response = "How can I help today?"
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*chatSession, bool) {
	s, ok := h.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if utf8.RuneCountInString(req.Text) > h.cfg.MaxMessageLength {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "message too long")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	reply := s.engine.ProcessUserInput(r.Context(), strings.ToValidUTF8(req.Text, ""))
	phase := s.engine.State().Phase()
	s.mu.Unlock()

	httputil.WriteJSON(w, http.StatusOK, replyResponse{
		SessionID:    s.id,
		Response:     reply.Response,
		QuickReplies: reply.QuickReplies,
		IsComplete:   reply.IsComplete,
		Phase:        phase,
	})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	st := s.engine.State()
	hist := s.engine.History()
	s.mu.Unlock()

	httputil.WriteJSON(w, http.StatusOK, stateResponse{
		SessionID: s.id,
		StartedAt: s.startedAt,
		Phase:     st.Phase(),
		State:     st,
		History:   hist,
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	s.engine.Reset()
	s.mu.Unlock()
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.close(chi.URLParam(r, "id")) {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.inbox.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list messages failed", slog.String("error", err.Error()))
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, msgs)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	err := h.inbox.MarkRead(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "Message not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "mark message read failed", slog.String("error", err.Error()))
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Message marked as read"})
}

func (h *Handler) sessionEnded(id, reason string) {
	h.logger.Debug("chat session ended", slog.String("session_id", id), slog.String("reason", reason))
	h.emit(context.Background(), events.SessionEnded, id, &events.SessionData{Reason: reason})
}

func (h *Handler) emit(ctx context.Context, et events.EventType, sessionID string, data any) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Emit(ctx, et, sessionID, data); err != nil {
		h.logger.WarnContext(ctx, "emit event failed",
			slog.String("event_type", string(et)),
			slog.String("error", err.Error()))
	}
}
