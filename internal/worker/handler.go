package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/acme/storefront/internal/domain"
)

// NotificationHandler turns order.placed events into confirmation emails.
// Malformed payloads are logged and skipped so one bad message cannot wedge
// the consumer group.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(ctx, "skipping malformed order placed event", "error", err)
		return nil
	}

	h.logger.InfoContext(ctx, "processing order placed event", "order_id", event.OrderID, "customer_id", event.CustomerID)

	if err := h.sendConfirmationEmail(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	h.logger.InfoContext(ctx, "order confirmation sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) sendConfirmationEmail(ctx context.Context, event domain.OrderPlacedEvent) error {
	var totalCents int64
	for _, item := range event.Items {
		totalCents += int64(item.Quantity) * item.UnitPriceCents
	}

	body := map[string]string{
		"to":      event.Email,
		"subject": "Order Confirmation: " + event.OrderID,
		"body": fmt.Sprintf("Your order %s has been placed: %d items, total %d.%02d.",
			event.OrderID, len(event.Items), totalCents/100, totalCents%100),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
