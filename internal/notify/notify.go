// Package notify delivers fire-and-forget outbound notifications: a webhook
// call per reservation mutation and formatted SMS-style guest messages.
// Failures are logged, never retried.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	appLog "staycal/internal/log"
	"staycal/internal/metrics"
	"staycal/internal/model"
)

// SMSSender abstracts the message transport so the delivery mechanism can be
// swapped without touching callers.
type SMSSender interface {
	Send(to, message string) error
}

// ConsoleSMS logs messages instead of sending them.
type ConsoleSMS struct{}

func (ConsoleSMS) Send(to, message string) error {
	appLog.Info("sms (console)", "to", to, "message", message)
	return nil
}

// event is the webhook body for a reservation mutation.
type event struct {
	EventID     string            `json:"event_id"`
	Action      string            `json:"action"`
	Reservation model.Reservation `json:"reservation"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Notifier pushes mutation events to the configured webhook URL and guest
// messages through the SMS sender. A zero-value Notifier is a no-op.
type Notifier struct {
	WebhookURL string
	SMS        SMSSender
	Metrics    *metrics.Metrics

	client *http.Client
}

func New(webhookURL string, sms SMSSender, m *metrics.Metrics) *Notifier {
	return &Notifier{
		WebhookURL: webhookURL,
		SMS:        sms,
		Metrics:    m,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Event posts {action, reservation, timestamp} to the webhook. Errors are
// logged and swallowed; delivery is best-effort by design of the source
// integrations.
func (n *Notifier) Event(ctx context.Context, action string, r model.Reservation) {
	if n == nil || n.WebhookURL == "" {
		return
	}

	body, err := json.Marshal(event{
		EventID:     uuid.NewString(),
		Action:      action,
		Reservation: r,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		appLog.Error("webhook payload encode failed", err, "action", action)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		appLog.Error("webhook request build failed", err, "action", action)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.count("error")
		appLog.Error("webhook delivery failed", err, "action", action, "reservation", r.ID)
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.count("error")
		appLog.Warn("webhook delivery rejected", "action", action, "status", resp.StatusCode)
		return
	}
	n.count("ok")
	appLog.Debug("webhook delivered", "action", action, "reservation", r.ID)
}

// Confirmation sends the booking-confirmed message when enough contact data
// exists; silently does nothing otherwise.
func (n *Notifier) Confirmation(r model.Reservation) {
	if n == nil || n.SMS == nil || r.Phone == "" || r.FirstName == "" {
		return
	}
	if err := n.SMS.Send(r.Phone, ConfirmationMessage(r)); err != nil {
		n.count("error")
		appLog.Error("confirmation sms failed", err, "reservation", r.ID)
		return
	}
	n.count("ok")
}

// Reminder sends the day-before check-in message.
func (n *Notifier) Reminder(r model.Reservation) {
	if n == nil || n.SMS == nil || r.Phone == "" || r.FirstName == "" {
		return
	}
	if err := n.SMS.Send(r.Phone, ReminderMessage(r)); err != nil {
		n.count("error")
		appLog.Error("reminder sms failed", err, "reservation", r.ID)
		return
	}
	n.count("ok")
}

func (n *Notifier) count(result string) {
	if n.Metrics != nil {
		n.Metrics.NotificationsTotal.WithLabelValues(result).Inc()
	}
}

// ConfirmationMessage formats the booking-confirmed text.
func ConfirmationMessage(r model.Reservation) string {
	return fmt.Sprintf("Hi %s! Your booking at %s is confirmed for %s to %s. We look forward to hosting you!",
		r.FirstName, r.Property, r.CheckIn, r.CheckOut)
}

// ReminderMessage formats the day-before check-in text.
func ReminderMessage(r model.Reservation) string {
	return fmt.Sprintf("Hi %s! Just a reminder that your check-in at %s is tomorrow. Check-in time is 3:00 PM. Looking forward to your stay!",
		r.FirstName, r.Property)
}
