package outbox

import (
	"encoding/json"
	"time"

	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

// Event is the envelope written to outbox_events. The Kafka topic is
// EventType, optionally prefixed per environment.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventAppointmentReserved  = "scheduling.appointment.reserved.v1"
	EventAppointmentCancelled = "scheduling.appointment.cancelled.v1"
	EventAppointmentCompleted = "scheduling.appointment.completed.v1"
)

// AppointmentPayload is the body of every scheduling.appointment.* event.
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

// AppointmentEvent builds an outbox event for appt. recipient is the e-mail
// address the notification service should write to, if known.
func AppointmentEvent(eventType string, appt model.Appointment, recipient string) (Event, error) {
	body, err := json.Marshal(AppointmentPayload{
		AppointmentID:   appt.ID,
		SlotID:          appt.SlotID,
		ClientID:        appt.ClientID,
		PractitionerID:  appt.PractitionerID,
		ServiceType:     appt.ServiceType,
		Status:          string(appt.Status),
		OccursAt:        appt.OccursAt.UTC().Format(time.RFC3339),
		DurationMinutes: appt.DurationMinutes,
		RecipientEmail:  recipient,
		Reason:          appt.CancellationReason,
		OccurredAt:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
