package store

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavishka-codxlab/portfolio-assistant/internal/database"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/contact"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/urlvalidation"
)

func sample(body string) contact.NewMessage {
	return contact.NewMessage{Name: "Chatbot User", Email: "a@b.co", Message: body}
}

// runStoreSuite checks the behaviour every backend shares.
func runStoreSuite(t *testing.T, s Store) {
	ctx := t.Context()

	first, err := s.Add(ctx, sample("Project Inquiry\n\nfirst"))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.IsRead)
	assert.False(t, first.Timestamp.IsZero())

	second, err := s.Add(ctx, sample("General Question\n\nsecond"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, "Project Inquiry\n\nfirst", list[1].Message)

	require.NoError(t, s.MarkRead(ctx, first.ID))
	require.NoError(t, s.MarkRead(ctx, first.ID), "marking twice is not an error")
	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.False(t, list[0].IsRead)
	assert.True(t, list[1].IsRead)

	assert.ErrorIs(t, s.MarkRead(ctx, "does-not-exist"), ErrNotFound)

	_, err = s.Add(ctx, contact.NewMessage{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "messages.json")
	s := NewFileStore(path)

	list, err := s.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, list, "missing file reads as empty")

	runStoreSuite(t, s)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk []contact.Message
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Len(t, onDisk, 2)

	reopened, err := NewFileStore(path).List(t.Context())
	require.NoError(t, err)
	assert.Equal(t, onDisk[0].ID, reopened[0].ID)

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	assert.Empty(t, leftovers)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Add(t.Context(), sample("x"))
	assert.Error(t, err)
}

// fakeBackend mimics the portfolio backend's messages API over a MemoryStore.
func fakeBackend(t *testing.T) *httptest.Server {
	inner := NewMemoryStore()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/messages", func(w http.ResponseWriter, r *http.Request) {
		var in contact.NewMessage
		json.NewDecoder(r.Body).Decode(&in)
		m, err := inner.Add(r.Context(), in)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"message": "Message saved successfully", "newMessage": m})
	})
	mux.HandleFunc("GET /api/messages", func(w http.ResponseWriter, r *http.Request) {
		list, _ := inner.List(r.Context())
		json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("PUT /api/messages/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		if err := inner.MarkRead(r.Context(), r.PathValue("id")); errors.Is(err, ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "Message marked as read"})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTPStore(t *testing.T) {
	ts := fakeBackend(t)
	client, err := contact.NewClient(ts.URL, contact.WithURLValidation(urlvalidation.AllowPrivateIPs()))
	require.NoError(t, err)
	runStoreSuite(t, NewHTTPStore(client))
}

func TestDatabaseStore(t *testing.T) {
	dsn := os.Getenv("STORE_TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: STORE_TEST_DSN not set")
	}
	db, err := database.Open(database.Config{DSN: dsn}, nil)
	require.NoError(t, err)

	s := NewDatabaseStore(db)
	require.NoError(t, s.Migrate(t.Context()))
	require.NoError(t, db.Exec("DELETE FROM contact_messages").Error)
	runStoreSuite(t, s)
}
