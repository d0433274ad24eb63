package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "gopkg.in/inconshreveable/log15.v2"
)

const (
	EventSettingsUpdated  = "feed_settings_updated"
	EventTokenRegenerated = "feed_token_regenerated"
)

type WebhookEvent struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

// WebhookNotifier posts feed events to the webhook URL configured by a user.
type WebhookNotifier struct {
	Client *http.Client
	Logger log.Logger
	Now    func() time.Time
}

func NewWebhookNotifier(logger log.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		Client: &http.Client{Timeout: 10 * time.Second},
		Logger: logger,
		Now:    time.Now,
	}
}

// Notify posts event to url. Any non-2xx response is an error.
func (n *WebhookNotifier) Notify(ctx context.Context, url, event string) error {
	body, err := json.Marshal(WebhookEvent{Event: event, Timestamp: n.Now().UTC().Format(TimeFormat)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s returned %d", url, resp.StatusCode)
	}
	return nil
}

// NotifyAsync sends event in the background and logs the outcome.
func (n *WebhookNotifier) NotifyAsync(url, event string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := n.Notify(ctx, url, event); err != nil {
			n.Logger.Warn("Webhook notification failed", "url", url, "event", event, "error", err)
			return
		}
		n.Logger.Info("Webhook notified", "url", url, "event", event)
	}()
}
