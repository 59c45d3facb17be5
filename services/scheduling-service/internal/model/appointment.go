package model

import "time"

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Active reports whether the appointment still holds its slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Appointment struct {
	ID                 string            `json:"id"`
	ClientID           int64             `json:"clientId"`
	PractitionerID     int64             `json:"practitionerId"`
	SlotID             string            `json:"slotId"`
	OccursAt           time.Time         `json:"occursAt"`
	DurationMinutes    int               `json:"durationMinutes"`
	Status             AppointmentStatus `json:"status"`
	ServiceType        string            `json:"serviceType"`
	Notes              string            `json:"notes,omitempty"`
	CancelledAt        *time.Time        `json:"cancelledAt,omitempty"`
	CancellationReason string            `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

func (a Appointment) EndsAt() time.Time {
	return a.OccursAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
