package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types emitted by operations after their transaction commits.
const (
	EventProcessClosed = "process.closed"
	EventNewDeveloper  = "developer.new"
	EventAMAssigned    = "am.assigned"
	EventAMUnassigned  = "am.unassigned"
	EventProcessFrozen = "process.frozen"
)

// Event is one side-channel notification. Delivery is best-effort: a failed
// send propagates to the caller but never rolls back committed state.
type Event struct {
	Type    string         `json:"type"`
	Person  string         `json:"person,omitempty"` // natural key
	Process int64          `json:"process,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Notifier interface {
	Send(ctx context.Context, evt Event) error
}

// Null swallows all events.
type Null struct{}

func (Null) Send(context.Context, Event) error { return nil }

const defaultTimeout = 5 * time.Second

// Webhook POSTs events as JSON to a single endpoint.
type Webhook struct {
	URL    string
	Secret string
	HTTP   *http.Client
	Log    zerolog.Logger
}

func NewWebhook(url, secret string, log zerolog.Logger) *Webhook {
	return &Webhook{
		URL:    url,
		Secret: secret,
		HTTP:   &http.Client{Timeout: defaultTimeout},
		Log:    log,
	}
}

type delivery struct {
	ID string `json:"delivery_id"`
	TS string `json:"ts"`
	Event
}

func (w *Webhook) Send(ctx context.Context, evt Event) error {
	body := delivery{
		ID:    uuid.New().String(),
		TS:    time.Now().UTC().Format(time.RFC3339),
		Event: evt,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-NMFlow-Event", evt.Type)
	req.Header.Set("X-NMFlow-Delivery", body.ID)
	if strings.TrimSpace(w.Secret) != "" {
		req.Header.Set("X-NMFlow-Secret", w.Secret)
	}
	res, err := w.HTTP.Do(req)
	if err != nil {
		w.Log.Warn().Err(err).Str("event", evt.Type).Msg("notification delivery failed")
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		err := fmt.Errorf("notify %s: status %d: %s", evt.Type, res.StatusCode, strings.TrimSpace(string(respBody)))
		w.Log.Warn().Err(err).Msg("notification rejected")
		return err
	}
	w.Log.Debug().Str("event", evt.Type).Str("delivery", body.ID).Msg("notification delivered")
	return nil
}
