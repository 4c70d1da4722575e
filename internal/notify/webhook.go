package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/andymarkow/accountmart/internal/httpclient"
)

// Webhook posts events as JSON to an HTTP endpoint.
type Webhook struct {
	log    *slog.Logger
	client *resty.Client
	url    string
}

type WebhookOption func(w *Webhook)

func WithWebhookLogger(logger *slog.Logger) WebhookOption {
	return func(w *Webhook) {
		w.log = logger
	}
}

func WithWebhookClient(client *resty.Client) WebhookOption {
	return func(w *Webhook) {
		w.client = client
	}
}

func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		log:    slog.New(slog.DiscardHandler),
		client: httpclient.New(),
		url:    url,
	}

	for _, opt := range opts {
		opt(w)
	}

	w.log = w.log.With(slog.String("module", "notify_webhook"))

	return w
}

func (w *Webhook) Notify(ctx context.Context, evt Event) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(evt).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("client.R: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s", ErrDeliveryRejected, resp.Status())
	}

	w.log.Debug("Webhook delivered", slog.String("kind", string(evt.Kind)), slog.Int("status", resp.StatusCode()))

	return nil
}
