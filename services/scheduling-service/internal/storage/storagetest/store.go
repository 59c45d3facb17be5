// Package storagetest is an in-memory stand-in for the PostgreSQL
// repositories. Row locks are emulated per key and held until the owning
// transaction commits or rolls back; writes become visible on commit.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/outbox"
)

type Store struct {
	// LockTimeout bounds lock waits like lock_timeout does. Zero waits forever.
	LockTimeout time.Duration
	// FailAppointmentInsert, when set, is returned by the next appointment insert.
	FailAppointmentInsert error

	mu            sync.Mutex
	locks         map[string]chan struct{}
	slots         map[string]model.WeeklySlot
	appointments  map[string]model.Appointment
	practitioners map[string]model.Practitioner
	events        []outbox.Event
	failEvents    error
}

func New() *Store {
	return &Store{
		locks:         map[string]chan struct{}{},
		slots:         map[string]model.WeeklySlot{},
		appointments:  map[string]model.Appointment{},
		practitioners: map[string]model.Practitioner{},
	}
}

func (s *Store) Slots() *SlotRepo                 { return &SlotRepo{s: s} }
func (s *Store) Appointments() *AppointmentRepo   { return &AppointmentRepo{s: s} }
func (s *Store) Practitioners() *PractitionerRepo { return &PractitionerRepo{s: s} }
func (s *Store) Events() *EventSink               { return &EventSink{s: s} }

func (s *Store) Begin(context.Context) (pgx.Tx, error) {
	return &Tx{s: s}, nil
}

// AddPractitioner seeds the practitioner mirror.
func (s *Store) AddPractitioner(p model.Practitioner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.practitioners[p.UserID] = p
}

// PutSlot seeds a committed slot.
func (s *Store) PutSlot(slot model.WeeklySlot) model.WeeklySlot {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot.ID] = slot
	return slot
}

func (s *Store) Slot(id string) (model.WeeklySlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	return slot, ok
}

func (s *Store) AllAppointments() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		out = append(out, a)
	}
	return out
}

func (s *Store) PublishedEvents() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// FailEvents makes every later Enqueue return err.
func (s *Store) FailEvents(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failEvents = err
}

func (s *Store) acquire(ctx context.Context, tx *Tx, key string) error {
	if slices.Contains(tx.held, key) {
		return nil
	}
	s.mu.Lock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	s.mu.Unlock()

	var timeout <-chan time.Time
	if s.LockTimeout > 0 {
		timer := time.NewTimer(s.LockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case ch <- struct{}{}:
		tx.held = append(tx.held, key)
		return nil
	case <-timeout:
		return model.ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		<-s.locks[k]
	}
}

// Tx implements the parts of pgx.Tx the services use. Any other method
// panics through the nil embedded interface.
type Tx struct {
	pgx.Tx
	s     *Store
	held  []string
	ops   []func()
	slots []model.WeeklySlot
	appts []model.Appointment
	done  bool
}

func (tx *Tx) Commit(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.s.mu.Lock()
	for _, op := range tx.ops {
		op()
	}
	tx.s.mu.Unlock()
	tx.s.release(tx.held)
	return nil
}

func (tx *Tx) Rollback(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.s.release(tx.held)
	return nil
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.done {
		return nil, errors.New("storagetest: unknown or closed transaction")
	}
	return t, nil
}

type SlotRepo struct{ s *Store }

func (r *SlotRepo) Begin(ctx context.Context) (pgx.Tx, error) { return r.s.Begin(ctx) }

func (r *SlotRepo) LockPractitionerDay(ctx context.Context, tx pgx.Tx, practitionerID int64, weekday model.Weekday) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	return r.s.acquire(ctx, t, fmt.Sprintf("day:%d:%d", practitionerID, weekday))
}

func (r *SlotRepo) ListForDay(_ context.Context, tx pgx.Tx, practitionerID int64, weekday model.Weekday) ([]model.WeeklySlot, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.WeeklySlot
	for _, slot := range r.s.slots {
		if slot.PractitionerID == practitionerID && slot.Weekday == weekday {
			out = append(out, slot)
		}
	}
	slices.SortFunc(out, func(a, b model.WeeklySlot) int { return int(a.Start - b.Start) })
	return out, nil
}

// Insert enforces the same exclusion rule as weekly_slots_no_overlap.
func (r *SlotRepo) Insert(_ context.Context, tx pgx.Tx, slot *model.WeeklySlot) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range append(slices.Collect(maps.Values(r.s.slots)), t.slots...) {
		if existing.PractitionerID == slot.PractitionerID && existing.Overlaps(slot.Weekday, slot.Start, slot.End) {
			return &model.OverlapError{}
		}
	}
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.Reserved = false
	slot.CreatedAt = time.Now().UTC()
	created := *slot
	t.slots = append(t.slots, created)
	t.ops = append(t.ops, func() { r.s.slots[created.ID] = created })
	return nil
}

func (r *SlotRepo) LockSlot(ctx context.Context, tx pgx.Tx, slotID string) (model.WeeklySlot, error) {
	t, err := asTx(tx)
	if err != nil {
		return model.WeeklySlot{}, err
	}
	if err := r.s.acquire(ctx, t, "slot:"+slotID); err != nil {
		return model.WeeklySlot{}, err
	}
	slot, ok := r.s.Slot(slotID)
	if !ok {
		return model.WeeklySlot{}, model.ErrNotFound
	}
	return slot, nil
}

func (r *SlotRepo) SetReserved(_ context.Context, tx pgx.Tx, slotID string, reserved bool) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, ok := r.s.Slot(slotID); !ok {
		return model.ErrNotFound
	}
	t.ops = append(t.ops, func() {
		if slot, ok := r.s.slots[slotID]; ok {
			slot.Reserved = reserved
			r.s.slots[slotID] = slot
		}
	})
	return nil
}

func (r *SlotRepo) PractitionerActive(_ context.Context, tx pgx.Tx, practitionerID int64) (bool, error) {
	if _, err := asTx(tx); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.practitioners {
		if p.ID == practitionerID {
			return p.Active, nil
		}
	}
	return true, nil
}

func (r *SlotRepo) Delete(_ context.Context, tx pgx.Tx, slotID string) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	slot, ok := r.s.Slot(slotID)
	if !ok || slot.Reserved {
		return model.ErrNotFound
	}
	t.ops = append(t.ops, func() { delete(r.s.slots, slotID) })
	return nil
}

func (r *SlotRepo) ListByPractitioner(_ context.Context, practitionerID int64) ([]model.WeeklySlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.WeeklySlot
	for _, slot := range r.s.slots {
		if slot.PractitionerID == practitionerID {
			out = append(out, slot)
		}
	}
	sortSlots(out)
	return out, nil
}

func (r *SlotRepo) ListAvailable(context.Context) ([]model.AvailableSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	names := map[int64]model.Practitioner{}
	for _, p := range r.s.practitioners {
		names[p.ID] = p
	}
	var slots []model.WeeklySlot
	for _, slot := range r.s.slots {
		if p, ok := names[slot.PractitionerID]; ok && p.Active && !slot.Reserved {
			slots = append(slots, slot)
		}
	}
	sortSlots(slots)
	out := make([]model.AvailableSlot, 0, len(slots))
	for _, slot := range slots {
		out = append(out, model.AvailableSlot{WeeklySlot: slot, PractitionerName: names[slot.PractitionerID].DisplayName})
	}
	return out, nil
}

type AppointmentRepo struct{ s *Store }

func (r *AppointmentRepo) Begin(ctx context.Context) (pgx.Tx, error) { return r.s.Begin(ctx) }

// Insert enforces appointments_slot_occurrence_uniq.
func (r *AppointmentRepo) Insert(_ context.Context, tx pgx.Tx, appt *model.Appointment) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.FailAppointmentInsert; err != nil {
		r.s.FailAppointmentInsert = nil
		return err
	}
	for _, existing := range append(slices.Collect(maps.Values(r.s.appointments)), t.appts...) {
		if existing.SlotID == appt.SlotID && existing.OccursAt.Equal(appt.OccursAt) && existing.Status != model.StatusCancelled {
			return model.ErrAlreadyReserved
		}
	}
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	appt.CreatedAt, appt.UpdatedAt = now, now
	created := *appt
	t.appts = append(t.appts, created)
	t.ops = append(t.ops, func() { r.s.appointments[created.ID] = created })
	return nil
}

func (r *AppointmentRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Appointment, error) {
	t, err := asTx(tx)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.s.acquire(ctx, t, "appt:"+appointmentID); err != nil {
		return model.Appointment{}, err
	}
	return r.Get(ctx, appointmentID)
}

func (r *AppointmentRepo) SetStatus(ctx context.Context, tx pgx.Tx, appointmentID string, status model.AppointmentStatus, reason string) (model.Appointment, error) {
	t, err := asTx(tx)
	if err != nil {
		return model.Appointment{}, err
	}
	appt, err := r.Get(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	now := time.Now().UTC()
	appt.Status = status
	appt.UpdatedAt = now
	if status == model.StatusCancelled {
		appt.CancelledAt = &now
		appt.CancellationReason = reason
	}
	updated := appt
	t.ops = append(t.ops, func() { r.s.appointments[appointmentID] = updated })
	return updated, nil
}

func (r *AppointmentRepo) Get(_ context.Context, appointmentID string) (model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	appt, ok := r.s.appointments[appointmentID]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	return appt, nil
}

func (r *AppointmentRepo) ListByPractitioner(_ context.Context, practitionerID int64, limit int) ([]model.Appointment, error) {
	return r.list(func(a model.Appointment) bool { return a.PractitionerID == practitionerID }, limit), nil
}

func (r *AppointmentRepo) ListByClient(_ context.Context, clientID int64, limit int) ([]model.Appointment, error) {
	return r.list(func(a model.Appointment) bool { return a.ClientID == clientID }, limit), nil
}

func (r *AppointmentRepo) list(match func(model.Appointment) bool, limit int) []model.Appointment {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Appointment
	for _, a := range r.s.appointments {
		if match(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b model.Appointment) int { return b.OccursAt.Compare(a.OccursAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type PractitionerRepo struct{ s *Store }

func (r *PractitionerRepo) ByUserID(_ context.Context, userID string) (model.Practitioner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.practitioners[userID]
	if !ok {
		return model.Practitioner{}, model.ErrNotFound
	}
	return p, nil
}

// EventSink records events instead of writing outbox rows.
type EventSink struct{ s *Store }

func (e *EventSink) Enqueue(_ context.Context, evt outbox.Event) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if e.s.failEvents != nil {
		return e.s.failEvents
	}
	e.s.events = append(e.s.events, evt)
	return nil
}

func sortSlots(slots []model.WeeklySlot) {
	slices.SortFunc(slots, func(a, b model.WeeklySlot) int {
		if a.Weekday != b.Weekday {
			return int(a.Weekday - b.Weekday)
		}
		if a.Start != b.Start {
			return int(a.Start - b.Start)
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
