package storage

import (
	"context"
	"encoding/json"

	"github.com/slotbook/slotbook/libs/db"
)

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Notification is one delivery attempt for an appointment event.
type Notification struct {
	AppointmentID string
	EventType     string
	Channel       string
	Recipient     string
	Status        string
	Error         string
	Payload       json.RawMessage
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload := n.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, event_type, channel, recipient, status, error, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.AppointmentID, n.EventType, n.Channel, n.Recipient, n.Status, n.Error, []byte(payload))
	return err
}
