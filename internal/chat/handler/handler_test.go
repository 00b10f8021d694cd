package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavishka-codxlab/portfolio-assistant/internal/dispatch"
	"github.com/kavishka-codxlab/portfolio-assistant/internal/store"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/contact"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/conversation"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/events"
)

type testServer struct {
	srv   *httptest.Server
	inbox *store.MemoryStore
	pub   *events.Publisher
	h     *Handler
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	inbox := store.NewMemoryStore()
	pub := events.NewPublisher(nil, "test", "chat")
	catalog := conversation.DefaultCatalog()
	h := New(func() *conversation.Catalog { return catalog }, dispatch.New(inbox, pub, nil), inbox, pub, nil, cfg)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, inbox: inbox, pub: pub, h: h}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ts *testServer) newSession(t *testing.T) sessionResponse {
	t.Helper()
	var created sessionResponse
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/chat/sessions", nil, &created))
	require.NotEmpty(t, created.SessionID)
	return created
}

func (ts *testServer) say(t *testing.T, id, text string) replyResponse {
	t.Helper()
	var reply replyResponse
	require.Equal(t, http.StatusOK,
		ts.do(t, http.MethodPost, "/api/chat/sessions/"+id+"/messages", messageRequest{Text: text}, &reply))
	return reply
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Config{})
	var body map[string]any
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/health", nil, &body))
	assert.Equal(t, "OK", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestIntents(t *testing.T) {
	ts := newTestServer(t, Config{})
	var body struct {
		Catalog string   `json:"catalog"`
		Menu    []string `json:"menu"`
		Intents []string `json:"intents"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/intents", nil, &body))
	assert.Equal(t, "portfolio", body.Catalog)
	assert.Len(t, body.Menu, 5)
	assert.Contains(t, body.Intents, "project_inquiry")
}

func TestCreateSessionGreets(t *testing.T) {
	ts := newTestServer(t, Config{})
	created := ts.newSession(t)
	assert.True(t, strings.HasPrefix(created.Response, "Hi"))
	assert.Contains(t, created.QuickReplies, "Discuss a project")
	assert.Equal(t, 1, ts.h.Sessions().Count())
}

func TestResumeSubmissionRoundTrip(t *testing.T) {
	ts := newTestServer(t, Config{})
	ch := ts.pub.Subscribe("t", 32)
	defer ts.pub.Unsubscribe("t")

	id := ts.newSession(t).SessionID

	r := ts.say(t, id, "Send my resume / Portfolio")
	assert.Equal(t, "Upload your resume or paste a portfolio link.", r.Response)
	assert.Equal(t, conversation.PhaseCollecting, r.Phase)

	r = ts.say(t, id, "not a link")
	assert.Equal(t, "Please provide a valid url. Upload or paste link.", r.Response)

	ts.say(t, id, "https://me.dev/cv.pdf")
	r = ts.say(t, id, "hr@corp.com")
	assert.Equal(t, "Ready to send your resume?", r.Response)
	assert.Equal(t, conversation.PhaseConfirming, r.Phase)
	assert.Equal(t, []string{"Yes, send it", "No, let me change something"}, r.QuickReplies)

	r = ts.say(t, id, "Yes, send it")
	assert.True(t, r.IsComplete)
	assert.Equal(t, conversation.PhaseIdle, r.Phase)
	assert.Equal(t, "Resume sent 📑 Kavishka will review it soon.", r.Response)

	var inbox []contact.Message
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/messages", nil, &inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, "hr@corp.com", inbox[0].Email)
	assert.Equal(t, "Resume Submission\n\nResume/Portfolio Link: https://me.dev/cv.pdf", inbox[0].Message)

	var types []events.EventType
	for len(ch) > 0 {
		env := <-ch
		assert.Equal(t, id, env.SessionID)
		types = append(types, env.Type)
	}
	assert.Equal(t, events.SessionStarted, types[0])
	assert.Contains(t, types, events.SubmissionDelivered)
	assert.Equal(t, events.SubmissionConfirmed, types[len(types)-1])
}

func TestSessionSnapshotAndReset(t *testing.T) {
	ts := newTestServer(t, Config{})
	id := ts.newSession(t).SessionID
	ts.say(t, id, "Discuss a project")

	var snap stateResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/chat/sessions/"+id, nil, &snap))
	assert.Equal(t, conversation.PhaseCollecting, snap.Phase)
	assert.Equal(t, "project_inquiry", snap.State.CurrentIntent)
	assert.Equal(t, "project_type", snap.State.CurrentSlot)
	require.NotEmpty(t, snap.History)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/chat/sessions/"+id+"/reset", nil, nil))
	var after stateResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/chat/sessions/"+id, nil, &after))
	assert.Equal(t, conversation.PhaseIdle, after.Phase)
	assert.Empty(t, after.State.CurrentIntent)
	assert.Empty(t, after.State.CollectedSlots)
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t, Config{})
	assert.Equal(t, http.StatusNotFound,
		ts.do(t, http.MethodPost, "/api/chat/sessions/nope/messages", messageRequest{Text: "hi"}, nil))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/chat/sessions/nope", nil, nil))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/chat/sessions/nope", nil, nil))
}

func TestDeleteSessionEndsIt(t *testing.T) {
	ts := newTestServer(t, Config{})
	ch := ts.pub.Subscribe("t", 8)
	defer ts.pub.Unsubscribe("t")

	id := ts.newSession(t).SessionID
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/chat/sessions/"+id, nil, nil))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/chat/sessions/"+id, nil, nil))

	require.Len(t, ch, 2)
	<-ch
	env := <-ch
	assert.Equal(t, events.SessionEnded, env.Type)
	var data events.SessionData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, EndReasonClosed, data.Reason)
}

func TestMessageValidation(t *testing.T) {
	ts := newTestServer(t, Config{MaxMessageLength: 10})
	id := ts.newSession(t).SessionID

	assert.Equal(t, http.StatusRequestEntityTooLarge,
		ts.do(t, http.MethodPost, "/api/chat/sessions/"+id+"/messages", messageRequest{Text: strings.Repeat("x", 11)}, nil))

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost,
		ts.srv.URL+"/api/chat/sessions/"+id+"/messages", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConcurrentTurnsOnOneSession(t *testing.T) {
	ts := newTestServer(t, Config{})
	id := ts.newSession(t).SessionID

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, _ := json.Marshal(messageRequest{Text: "what?"})
			resp, err := http.Post(ts.srv.URL+"/api/chat/sessions/"+id+"/messages", "application/json", bytes.NewReader(body))
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	var snap stateResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/chat/sessions/"+id, nil, &snap))
	assert.Equal(t, conversation.PhaseIdle, snap.Phase)
}

func TestMarkRead(t *testing.T) {
	ts := newTestServer(t, Config{})
	msg, err := ts.inbox.Add(t.Context(), contact.NewMessage{Name: "A", Email: "a@b.co", Message: "hello"})
	require.NoError(t, err)

	var body map[string]string
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/messages/"+msg.ID+"/read", nil, &body))
	assert.Equal(t, "Message marked as read", body["message"])

	list, err := ts.inbox.List(t.Context())
	require.NoError(t, err)
	assert.True(t, list[0].IsRead)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, "/api/messages/missing/read", nil, nil))
}

func TestInboxRequiresAdminToken(t *testing.T) {
	ts := newTestServer(t, Config{AdminToken: "s3cret"})
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/messages", nil, nil))

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.srv.URL+"/api/messages", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionExpiry(t *testing.T) {
	var mu sync.Mutex
	ended := map[string]string{}
	st := NewSessionStore(10*time.Millisecond, func(id, reason string) {
		mu.Lock()
		ended[id] = reason
		mu.Unlock()
	})
	st.put(&chatSession{id: "a", engine: conversation.NewEngine(conversation.DefaultCatalog(), nil)})

	_, ok := st.get("a")
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, ok = st.get("a")
	assert.False(t, ok)

	st.Sweep()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, EndReasonExpired, ended["a"])
}
