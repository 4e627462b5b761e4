// Package notify delivers owner alerts about inactive services.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yukpo/yukpo/internal/log"
)

// Alert tells an owner their service stopped being visible.
type Alert struct {
	ServiceID int64     `json:"service_id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"titre"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// LogNotifier writes alerts to the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: log.OrDefault(logger)}
}

// Notify logs the alert.
func (n *LogNotifier) Notify(ctx context.Context, a Alert) error {
	n.logger.InfoContext(ctx, "service inactive alert",
		slog.Int64("service_id", a.ServiceID),
		slog.Int64("user_id", a.UserID),
		slog.String("reason", a.Reason),
	)
	return nil
}

const webhookTimeout = 10 * time.Second

// WebhookNotifier posts alerts as JSON to a URL.
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	client := resty.New().
		SetTimeout(webhookTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		}).
		SetHeader("Content-Type", "application/json")
	return &WebhookNotifier{client: client, url: url}
}

// Notify posts the alert.
func (n *WebhookNotifier) Notify(ctx context.Context, a Alert) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(a).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post alert: status %d", resp.StatusCode())
	}
	return nil
}

// Sender delivers one alert.
type Sender interface {
	Notify(ctx context.Context, a Alert) error
}

// Multi fans an alert out to every sender and joins their errors.
type Multi []Sender

// Notify delivers to every sender.
func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New returns the log notifier, plus a webhook when webhookURL is set.
func New(webhookURL string, logger *slog.Logger) Sender {
	senders := Multi{NewLogNotifier(logger)}
	if webhookURL != "" {
		senders = append(senders, NewWebhookNotifier(webhookURL))
	}
	return senders
}
