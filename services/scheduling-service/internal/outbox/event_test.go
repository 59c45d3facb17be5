package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slotbook/slotbook/libs/kafkax"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

func TestAppointmentEvent(t *testing.T) {
	appt := model.Appointment{
		ID:              "appt-1",
		SlotID:          "slot-1",
		ClientID:        11,
		PractitionerID:  3,
		ServiceType:     "consultation",
		Status:          model.StatusConfirmed,
		OccursAt:        time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
	}
	evt, err := AppointmentEvent(EventAppointmentReserved, appt, "client@example.com")
	if err != nil {
		t.Fatalf("AppointmentEvent failed: %v", err)
	}
	if evt.AggregateID != "appt-1" || evt.EventType != EventAppointmentReserved {
		t.Fatalf("unexpected envelope %+v", evt)
	}
	var payload AppointmentPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload.OccursAt != "2026-01-28T10:00:00Z" || payload.RecipientEmail != "client@example.com" || payload.Status != "confirmed" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestPublisherMessage(t *testing.T) {
	p := &Publisher{topicPrefix: "staging"}
	msg := p.message(context.Background(), Record{
		EventID:     "evt-1",
		AggregateID: "appt-1",
		EventType:   EventAppointmentCancelled,
		Payload:     []byte(`{}`),
	})
	if msg.Topic != "staging."+EventAppointmentCancelled {
		t.Fatalf("unexpected topic %q", msg.Topic)
	}
	if string(msg.Key) != "appt-1" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	meta := kafkax.ExtractEventMeta(kafka.Message{Topic: msg.Topic, Key: msg.Key, Headers: msg.Headers})
	if meta.EventID != "evt-1" || meta.EventType != EventAppointmentCancelled {
		t.Fatalf("unexpected meta %+v", meta)
	}
}
