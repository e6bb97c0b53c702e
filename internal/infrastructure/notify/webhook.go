// Package notify delivers order status notifications to the external
// messaging collaborator. Delivery is at-least-once: the dispatcher keeps
// retrying until the collaborator acknowledges, and the collaborator must
// deduplicate by (order_id, status).
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

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/config"
)

// Payload is the JSON body sent for one order transition
type Payload struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	SentAt  string `json:"sent_at"`
}

// WebhookNotifier posts notifications to a configured HTTP endpoint
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier creates a webhook notifier
func NewWebhookNotifier(cfg config.NotifyConfig, logger *zap.Logger) (*WebhookNotifier, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL required")
	}

	return &WebhookNotifier{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}, nil
}

// Notify delivers one order transition; a nil return means the collaborator
// acknowledged receipt
func (n *WebhookNotifier) Notify(ctx context.Context, orderID, status string) error {
	body, err := json.Marshal(Payload{
		OrderID: orderID,
		Status:  status,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification rejected with status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	return nil
}
