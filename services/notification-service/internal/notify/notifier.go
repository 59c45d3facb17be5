// Package notify turns scheduling.appointment.* events into e-mails and
// records every delivery attempt.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slotbook/slotbook/services/notification-service/internal/email"
	"github.com/slotbook/slotbook/services/notification-service/internal/storage"
)

const (
	EventAppointmentReserved  = "scheduling.appointment.reserved.v1"
	EventAppointmentCancelled = "scheduling.appointment.cancelled.v1"
	EventAppointmentCompleted = "scheduling.appointment.completed.v1"

	channelEmail = "email"
)

// EventTypes lists the events the notifier understands.
func EventTypes() []string {
	return []string{EventAppointmentReserved, EventAppointmentCancelled, EventAppointmentCompleted}
}

// AppointmentPayload mirrors the body published by the scheduling service.
type AppointmentPayload struct {
	AppointmentID   string `json:"appointment_id"`
	SlotID          string `json:"slot_id"`
	ClientID        int64  `json:"client_id"`
	PractitionerID  int64  `json:"practitioner_id"`
	ServiceType     string `json:"service_type"`
	Status          string `json:"status"`
	OccursAt        string `json:"occurs_at"`
	DurationMinutes int    `json:"duration_minutes"`
	RecipientEmail  string `json:"recipient_email,omitempty"`
	Reason          string `json:"reason,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

type Recorder interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Notifier struct {
	sender email.Sender
	store  Recorder
	logger *slog.Logger
	loc    *time.Location
}

func New(sender email.Sender, store Recorder, logger *slog.Logger, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{sender: sender, store: store, logger: logger, loc: loc}
}

// canonical strips an environment topic prefix from eventType.
func canonical(eventType string) (string, bool) {
	for _, known := range EventTypes() {
		if eventType == known || strings.HasSuffix(eventType, "."+known) {
			return known, true
		}
	}
	return "", false
}

// Handle processes one event. Malformed events are dropped; only a failure
// to record the attempt is returned, so the event can be retried.
func (n *Notifier) Handle(ctx context.Context, eventType string, raw []byte) error {
	kind, ok := canonical(eventType)
	if !ok {
		n.logger.Warn("unsupported event type", "event_type", eventType)
		return nil
	}
	var p AppointmentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		n.logger.Error("invalid appointment payload", "err", err, "event_type", kind)
		return nil
	}
	if p.AppointmentID == "" {
		n.logger.Error("missing appointment_id", "event_type", kind)
		return nil
	}

	rec := storage.Notification{
		AppointmentID: p.AppointmentID,
		EventType:     kind,
		Channel:       channelEmail,
		Recipient:     strings.TrimSpace(p.RecipientEmail),
		Status:        storage.StatusSent,
		Payload:       json.RawMessage(raw),
	}
	if rec.Recipient == "" {
		rec.Status = storage.StatusSkipped
		rec.Error = "no recipient"
	} else {
		subject, body := n.compose(kind, p)
		if err := n.sender.Send(rec.Recipient, subject, body); err != nil {
			rec.Status = storage.StatusFailed
			rec.Error = err.Error()
			n.logger.Error("email send failed", "err", err, "appointment_id", p.AppointmentID)
		}
	}

	if err := n.store.Insert(ctx, rec); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	n.logger.Info("notification processed", "appointment_id", p.AppointmentID, "event_type", kind, "status", rec.Status)
	return nil
}

func (n *Notifier) compose(kind string, p AppointmentPayload) (subject, body string) {
	when := p.OccursAt
	if t, err := time.Parse(time.RFC3339, p.OccursAt); err == nil {
		when = t.In(n.loc).Format("Mon 2 Jan 2006 15:04 MST")
	}
	service := p.ServiceType
	if service == "" {
		service = "your"
	}

	switch kind {
	case EventAppointmentReserved:
		return "Appointment confirmed", fmt.Sprintf(
			"Your %s appointment is confirmed for %s (%d minutes).\nReference: %s",
			service, when, p.DurationMinutes, p.AppointmentID)
	case EventAppointmentCancelled:
		body = fmt.Sprintf("Your %s appointment on %s has been cancelled.", service, when)
		if p.Reason != "" {
			body += "\nReason: " + p.Reason
		}
		return "Appointment cancelled", body + "\nReference: " + p.AppointmentID
	default:
		return "Appointment completed", fmt.Sprintf(
			"Thank you for attending your %s appointment on %s.\nReference: %s",
			service, when, p.AppointmentID)
	}
}
