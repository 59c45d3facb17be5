// Package reservation grants a slot to at most one client. The slot row
// lock, the reserved flip and the appointment insert commit together.
package reservation

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	otelx "github.com/slotbook/slotbook/libs/otel"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/calendar"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/outbox"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	MaxServiceTypeLen = 100
	MaxNotesLen       = 2000
)

type SlotStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	LockSlot(ctx context.Context, tx pgx.Tx, slotID string) (model.WeeklySlot, error)
	SetReserved(ctx context.Context, tx pgx.Tx, slotID string, reserved bool) error
	PractitionerActive(ctx context.Context, tx pgx.Tx, practitionerID int64) (bool, error)
}

// Recorder writes the appointment inside the reservation transaction.
type Recorder interface {
	RecordAppointment(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error
}

// EventSink receives post-commit events. Failures never undo a reservation.
type EventSink interface {
	Enqueue(ctx context.Context, evt outbox.Event) error
}

type Request struct {
	SlotID      string
	ClientID    int64
	ClientEmail string
	ServiceType string
	Notes       string
}

type Coordinator struct {
	slots    SlotStore
	recorder Recorder
	events   EventSink
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
	tracer   trace.Tracer
}

type Option func(*Coordinator)

// WithLocation sets the zone slot times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(slots SlotStore, recorder Recorder, events EventSink, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		slots:    slots,
		recorder: recorder,
		events:   events,
		logger:   logger,
		loc:      time.UTC,
		now:      time.Now,
		tracer:   otelx.Tracer("scheduling-service/reservation"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (r *Request) normalize() error {
	r.SlotID = strings.TrimSpace(r.SlotID)
	r.ServiceType = strings.TrimSpace(r.ServiceType)
	r.Notes = strings.TrimSpace(r.Notes)
	switch {
	case r.SlotID == "":
		return &model.ValidationError{Field: "slotId", Message: "is required"}
	case r.ServiceType == "":
		return &model.ValidationError{Field: "serviceType", Message: "is required"}
	case utf8.RuneCountInString(r.ServiceType) > MaxServiceTypeLen:
		return &model.ValidationError{Field: "serviceType", Message: "must be at most 100 characters"}
	case utf8.RuneCountInString(r.Notes) > MaxNotesLen:
		return &model.ValidationError{Field: "notes", Message: "must be at most 2000 characters"}
	}
	return nil
}

// ReserveSlot locks the slot row, rejects it if already reserved, flips the
// flag and records a confirmed appointment for the slot's next occurrence,
// all in one transaction. Any failure before commit leaves the slot free.
func (c *Coordinator) ReserveSlot(ctx context.Context, req Request) (model.Appointment, error) {
	if req.ClientID <= 0 {
		return model.Appointment{}, model.ErrPermission
	}
	if err := req.normalize(); err != nil {
		return model.Appointment{}, err
	}

	ctx, span := c.tracer.Start(ctx, "reservation.ReserveSlot",
		trace.WithAttributes(attribute.String("slot.id", req.SlotID), attribute.Int64("client.id", req.ClientID)))
	defer span.End()

	appt, err := c.reserve(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.logger.Info("reservation rejected", "slot_id", req.SlotID, "client_id", req.ClientID, "err", err)
		return model.Appointment{}, err
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID))
	c.logger.Info("slot reserved", "slot_id", appt.SlotID, "appointment_id", appt.ID,
		"client_id", appt.ClientID, "occurs_at", appt.OccursAt.Format(time.RFC3339))

	c.notify(ctx, appt, req.ClientEmail)
	return appt, nil
}

func (c *Coordinator) reserve(ctx context.Context, req Request) (model.Appointment, error) {
	tx, err := c.slots.Begin(ctx)
	if err != nil {
		return model.Appointment{}, model.Wrap("reserve slot", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	slot, err := c.slots.LockSlot(ctx, tx, req.SlotID)
	if err != nil {
		return model.Appointment{}, model.Wrap("reserve slot", err)
	}
	// Slots of a deactivated practitioner are hidden from discovery and
	// cannot be booked by id either.
	active, err := c.slots.PractitionerActive(ctx, tx, slot.PractitionerID)
	if err != nil {
		return model.Appointment{}, model.Wrap("reserve slot", err)
	}
	if !active {
		return model.Appointment{}, model.ErrNotFound
	}
	if slot.Reserved {
		return model.Appointment{}, model.ErrAlreadyReserved
	}
	if err := c.slots.SetReserved(ctx, tx, slot.ID, true); err != nil {
		return model.Appointment{}, model.Wrap("reserve slot", err)
	}

	start, _ := calendar.NextOccurrence(slot, c.now(), c.loc)
	appt := model.Appointment{
		ClientID:        req.ClientID,
		PractitionerID:  slot.PractitionerID,
		SlotID:          slot.ID,
		OccursAt:        start,
		DurationMinutes: int(slot.End - slot.Start),
		Status:          model.StatusConfirmed,
		ServiceType:     req.ServiceType,
		Notes:           req.Notes,
	}
	if err := c.recorder.RecordAppointment(ctx, tx, &appt); err != nil {
		return model.Appointment{}, model.Wrap("record appointment", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, model.Wrap("commit reservation", err)
	}
	return appt, nil
}

func (c *Coordinator) notify(ctx context.Context, appt model.Appointment, recipient string) {
	if c.events == nil {
		return
	}
	evt, err := outbox.AppointmentEvent(outbox.EventAppointmentReserved, appt, recipient)
	if err == nil {
		err = c.events.Enqueue(ctx, evt)
	}
	if err != nil {
		c.logger.Error("reservation event not enqueued", "appointment_id", appt.ID, "err", err)
	}
}
