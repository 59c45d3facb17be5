// Package ledger keeps appointments and their status transitions.
package ledger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/identity"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/outbox"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error
	LockForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Appointment, error)
	SetStatus(ctx context.Context, tx pgx.Tx, appointmentID string, status model.AppointmentStatus, reason string) (model.Appointment, error)
	Get(ctx context.Context, appointmentID string) (model.Appointment, error)
	ListByPractitioner(ctx context.Context, practitionerID int64, limit int) ([]model.Appointment, error)
	ListByClient(ctx context.Context, clientID int64, limit int) ([]model.Appointment, error)
}

// SlotReleaser clears a slot's reserved flag inside the given transaction.
type SlotReleaser interface {
	ReleaseSlot(ctx context.Context, tx pgx.Tx, slotID string) error
}

type EventSink interface {
	Enqueue(ctx context.Context, evt outbox.Event) error
}

type Service struct {
	txs      TxBeginner
	store    Store
	releaser SlotReleaser
	events   EventSink
	logger   *slog.Logger
}

func NewService(txs TxBeginner, store Store, releaser SlotReleaser, events EventSink, logger *slog.Logger) *Service {
	return &Service{txs: txs, store: store, releaser: releaser, events: events, logger: logger}
}

// RecordAppointment inserts appt within tx. A live appointment already
// booked for the same slot occurrence yields model.ErrAlreadyReserved.
func (s *Service) RecordAppointment(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	if appt.Status == "" {
		appt.Status = model.StatusConfirmed
	}
	if !appt.Status.Active() {
		return &model.ValidationError{Field: "status", Message: "new appointments must be pending or confirmed"}
	}
	if appt.SlotID == "" || appt.ClientID <= 0 || appt.PractitionerID <= 0 || appt.DurationMinutes <= 0 {
		return &model.ValidationError{Message: "appointment is missing slot, client, practitioner or duration"}
	}
	return s.store.Insert(ctx, tx, appt)
}

func (s *Service) Get(ctx context.Context, appointmentID string) (model.Appointment, error) {
	appt, err := s.store.Get(ctx, strings.TrimSpace(appointmentID))
	return appt, model.Wrap("get appointment", err)
}

func (s *Service) ListForPractitioner(ctx context.Context, practitionerID int64, limit int) ([]model.Appointment, error) {
	appts, err := s.store.ListByPractitioner(ctx, practitionerID, clampLimit(limit))
	return appts, model.Wrap("list practitioner appointments", err)
}

func (s *Service) ListForClient(ctx context.Context, clientID int64, limit int) ([]model.Appointment, error) {
	appts, err := s.store.ListByClient(ctx, clientID, clampLimit(limit))
	return appts, model.Wrap("list client appointments", err)
}

// ListFor returns the caller's own appointments.
func (s *Service) ListFor(ctx context.Context, actor identity.UserRole, limit int) ([]model.Appointment, error) {
	switch a := actor.(type) {
	case identity.Practitioner:
		return s.ListForPractitioner(ctx, a.PractitionerID, limit)
	case identity.Client:
		return s.ListForClient(ctx, a.ClientID, limit)
	default:
		return nil, model.ErrPermission
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// MarkCompleted is reserved for the owning practitioner. The slot is
// released in the same transaction so its next weekly occurrence can be
// booked.
func (s *Service) MarkCompleted(ctx context.Context, appointmentID string, actor identity.UserRole) (model.Appointment, error) {
	p, ok := actor.(identity.Practitioner)
	if !ok {
		return model.Appointment{}, model.ErrPermission
	}

	tx, err := s.txs.Begin(ctx)
	if err != nil {
		return model.Appointment{}, model.Wrap("complete appointment", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.store.LockForUpdate(ctx, tx, appointmentID)
	if err != nil {
		return model.Appointment{}, model.Wrap("complete appointment", err)
	}
	if appt.PractitionerID != p.PractitionerID {
		return model.Appointment{}, model.ErrPermission
	}
	switch appt.Status {
	case model.StatusCompleted:
		return appt, nil
	case model.StatusCancelled:
		return model.Appointment{}, model.ErrInvalidTransition
	}

	updated, err := s.store.SetStatus(ctx, tx, appt.ID, model.StatusCompleted, "")
	if err != nil {
		return model.Appointment{}, model.Wrap("complete appointment", err)
	}
	if err := s.releaser.ReleaseSlot(ctx, tx, appt.SlotID); err != nil {
		return model.Appointment{}, model.Wrap("release slot", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, model.Wrap("complete appointment", err)
	}
	s.logger.Info("appointment completed", "appointment_id", updated.ID, "practitioner_id", p.PractitionerID)
	s.notify(ctx, outbox.EventAppointmentCompleted, updated, "")
	return updated, nil
}

// MarkCancelled may be called by the client or the practitioner of the
// appointment. The slot is released in the same transaction. Cancelling
// twice returns the cancelled appointment unchanged.
func (s *Service) MarkCancelled(ctx context.Context, appointmentID string, actor identity.UserRole, reason string) (model.Appointment, error) {
	if actor == nil {
		return model.Appointment{}, model.ErrPermission
	}

	tx, err := s.txs.Begin(ctx)
	if err != nil {
		return model.Appointment{}, model.Wrap("cancel appointment", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.store.LockForUpdate(ctx, tx, appointmentID)
	if err != nil {
		return model.Appointment{}, model.Wrap("cancel appointment", err)
	}
	if !owns(actor, appt) {
		return model.Appointment{}, model.ErrPermission
	}
	switch appt.Status {
	case model.StatusCancelled:
		return appt, nil
	case model.StatusCompleted:
		return model.Appointment{}, model.ErrInvalidTransition
	}

	updated, err := s.store.SetStatus(ctx, tx, appt.ID, model.StatusCancelled, strings.TrimSpace(reason))
	if err != nil {
		return model.Appointment{}, model.Wrap("cancel appointment", err)
	}
	if err := s.releaser.ReleaseSlot(ctx, tx, appt.SlotID); err != nil {
		return model.Appointment{}, model.Wrap("release slot", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, model.Wrap("cancel appointment", err)
	}
	s.logger.Info("appointment cancelled", "appointment_id", updated.ID, "slot_id", updated.SlotID)

	recipient := ""
	if _, isClient := actor.(identity.Client); isClient {
		recipient = identity.PrincipalOf(actor).Email
	}
	s.notify(ctx, outbox.EventAppointmentCancelled, updated, recipient)
	return updated, nil
}

func owns(actor identity.UserRole, appt model.Appointment) bool {
	switch a := actor.(type) {
	case identity.Client:
		return a.ClientID == appt.ClientID
	case identity.Practitioner:
		return a.PractitionerID == appt.PractitionerID
	default:
		return false
	}
}

func (s *Service) notify(ctx context.Context, eventType string, appt model.Appointment, recipient string) {
	if s.events == nil {
		return
	}
	evt, err := outbox.AppointmentEvent(eventType, appt, recipient)
	if err == nil {
		err = s.events.Enqueue(ctx, evt)
	}
	if err != nil {
		s.logger.Error("appointment event not enqueued", "appointment_id", appt.ID, "event_type", eventType, "err", err)
	}
}
