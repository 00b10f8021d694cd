package contact

import (
	"bytes"
	"encoding/json"
	"time"
)

// Message is one entry in the portfolio owner's contact inbox.
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
}

// NewMessage is the payload accepted by the messages endpoint.
type NewMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// flexibleID accepts both numeric and string identifiers; the portfolio
// backend issues autoincrement integers.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = flexibleID(n.String())
	return nil
}

// wireMessage mirrors the backend row shape, which uses createdAt for
// stored rows and timestamp for freshly created ones.
type wireMessage struct {
	ID        flexibleID `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Message   string     `json:"message"`
	Timestamp string     `json:"timestamp"`
	CreatedAt string     `json:"createdAt"`
	IsRead    readFlag   `json:"isRead"`
}

// readFlag decodes SQLite-style 0/1 as well as JSON booleans.
type readFlag bool

func (f *readFlag) UnmarshalJSON(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

func (w wireMessage) toMessage() Message {
	m := Message{
		ID:      string(w.ID),
		Name:    w.Name,
		Email:   w.Email,
		Message: w.Message,
		IsRead:  bool(w.IsRead),
	}
	for _, raw := range []string{w.Timestamp, w.CreatedAt} {
		if raw == "" {
			continue
		}
		if ts, ok := parseTime(raw); ok {
			m.Timestamp = ts
			break
		}
	}
	return m
}

func parseTime(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
