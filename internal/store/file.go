package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/contact"
)

// FileStore keeps messages in a single JSON file, rewritten atomically on
// every change.
type FileStore struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewFileStore creates a store backed by path. The file and its directory
// are created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) Add(_ context.Context, msg contact.NewMessage) (contact.Message, error) {
	if err := validate(msg); err != nil {
		return contact.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.load()
	if err != nil {
		return contact.Message{}, err
	}
	m := contact.Message{
		ID:        xid.New().String(),
		Name:      msg.Name,
		Email:     msg.Email,
		Message:   msg.Message,
		Timestamp: s.now().UTC(),
	}
	messages = append([]contact.Message{m}, messages...)
	if err := s.save(messages); err != nil {
		return contact.Message{}, err
	}
	return m, nil
}

func (s *FileStore) List(context.Context) ([]contact.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.load()
	if err != nil {
		return err
	}
	for i := range messages {
		if messages[i].ID == id {
			if messages[i].IsRead {
				return nil
			}
			messages[i].IsRead = true
			return s.save(messages)
		}
	}
	return ErrNotFound
}

func (s *FileStore) load() ([]contact.Message, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []contact.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", s.path, err)
	}
	var messages []contact.Message
	if len(data) == 0 {
		return []contact.Message{}, nil
	}
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("decode %q: %w", s.path, err)
	}
	return messages, nil
}

func (s *FileStore) save(messages []contact.Message) error {
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %q: %w", s.path, err)
	}
	return nil
}
