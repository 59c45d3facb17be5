// Package slots owns the weekly availability of practitioners: creation
// with overlap checks, batch creation and guarded deletion.
package slots

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

const (
	MaxBatchBlocks      = 48
	MinBlockMinutes     = 5
	MaxBlockMinutes     = 240
	DefaultBlockMinutes = 30
)

type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	LockPractitionerDay(ctx context.Context, tx pgx.Tx, practitionerID int64, weekday model.Weekday) error
	ListForDay(ctx context.Context, tx pgx.Tx, practitionerID int64, weekday model.Weekday) ([]model.WeeklySlot, error)
	Insert(ctx context.Context, tx pgx.Tx, slot *model.WeeklySlot) error
	LockSlot(ctx context.Context, tx pgx.Tx, slotID string) (model.WeeklySlot, error)
	Delete(ctx context.Context, tx pgx.Tx, slotID string) error
	ListByPractitioner(ctx context.Context, practitionerID int64) ([]model.WeeklySlot, error)
	ListAvailable(ctx context.Context) ([]model.AvailableSlot, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateSlot adds one block. The overlap check and the insert share a
// transaction holding the practitioner/weekday lock.
func (s *Service) CreateSlot(ctx context.Context, practitionerID int64, weekday model.Weekday, start, end model.TimeOfDay) (model.WeeklySlot, error) {
	if practitionerID <= 0 {
		return model.WeeklySlot{}, model.ErrPermission
	}
	if err := model.ValidateRange(weekday, start, end); err != nil {
		return model.WeeklySlot{}, err
	}

	tx, existing, err := s.beginDay(ctx, practitionerID, weekday)
	if err != nil {
		return model.WeeklySlot{}, model.Wrap("create slot", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, e := range existing {
		if e.Overlaps(weekday, start, end) {
			return model.WeeklySlot{}, &model.OverlapError{Conflicting: e}
		}
	}

	slot := model.WeeklySlot{PractitionerID: practitionerID, Weekday: weekday, Start: start, End: end}
	if err := s.store.Insert(ctx, tx, &slot); err != nil {
		return model.WeeklySlot{}, model.Wrap("create slot", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.WeeklySlot{}, model.Wrap("create slot", err)
	}
	s.logger.Info("slot created", "slot_id", slot.ID, "practitioner_id", practitionerID,
		"weekday", int(weekday), "start", start.String(), "end", end.String())
	return slot, nil
}

// CreateSlotsBatch splits [start, start+count*blockMinutes) into blocks.
// A block that exactly matches an existing slot is reused; a block that
// overlaps any other slot fails the whole batch and nothing is written.
func (s *Service) CreateSlotsBatch(ctx context.Context, practitionerID int64, weekday model.Weekday, start model.TimeOfDay, count, blockMinutes int) ([]model.WeeklySlot, error) {
	if practitionerID <= 0 {
		return nil, model.ErrPermission
	}
	if blockMinutes == 0 {
		blockMinutes = DefaultBlockMinutes
	}
	if count < 1 || count > MaxBatchBlocks {
		return nil, &model.ValidationError{Field: "blocks", Message: "must be between 1 and 48"}
	}
	if blockMinutes < MinBlockMinutes || blockMinutes > MaxBlockMinutes {
		return nil, &model.ValidationError{Field: "blockMinutes", Message: "must be between 5 and 240"}
	}
	end := start + model.TimeOfDay(count*blockMinutes)
	if err := model.ValidateRange(weekday, start, end); err != nil {
		return nil, err
	}

	tx, existing, err := s.beginDay(ctx, practitionerID, weekday)
	if err != nil {
		return nil, model.Wrap("create slots batch", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := make([]model.WeeklySlot, 0, count)
	created := 0
	for i := 0; i < count; i++ {
		bStart := start + model.TimeOfDay(i*blockMinutes)
		bEnd := bStart + model.TimeOfDay(blockMinutes)

		match, conflict := classify(existing, weekday, bStart, bEnd)
		if conflict != nil {
			return nil, &model.OverlapError{Conflicting: *conflict}
		}
		if match != nil {
			out = append(out, *match)
			continue
		}

		slot := model.WeeklySlot{PractitionerID: practitionerID, Weekday: weekday, Start: bStart, End: bEnd}
		if err := s.store.Insert(ctx, tx, &slot); err != nil {
			return nil, model.Wrap("create slots batch", err)
		}
		existing = append(existing, slot)
		out = append(out, slot)
		created++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, model.Wrap("create slots batch", err)
	}
	s.logger.Info("slot batch applied", "practitioner_id", practitionerID, "weekday", int(weekday),
		"blocks", count, "created", created, "reused", count-created)
	return out, nil
}

func classify(existing []model.WeeklySlot, weekday model.Weekday, start, end model.TimeOfDay) (match, conflict *model.WeeklySlot) {
	for i := range existing {
		e := &existing[i]
		if e.Weekday == weekday && e.Start == start && e.End == end {
			return e, nil
		}
	}
	for i := range existing {
		if existing[i].Overlaps(weekday, start, end) {
			return nil, &existing[i]
		}
	}
	return nil, nil
}

func (s *Service) beginDay(ctx context.Context, practitionerID int64, weekday model.Weekday) (pgx.Tx, []model.WeeklySlot, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.LockPractitionerDay(ctx, tx, practitionerID, weekday); err != nil {
		_ = tx.Rollback(ctx)
		return nil, nil, err
	}
	existing, err := s.store.ListForDay(ctx, tx, practitionerID, weekday)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, nil, err
	}
	return tx, existing, nil
}

// DeleteSlot removes an unreserved slot owned by practitionerID.
func (s *Service) DeleteSlot(ctx context.Context, slotID string, practitionerID int64) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Wrap("delete slot", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	slot, err := s.store.LockSlot(ctx, tx, slotID)
	if err != nil {
		return model.Wrap("delete slot", err)
	}
	if slot.PractitionerID != practitionerID {
		return model.ErrPermission
	}
	if slot.Reserved {
		return model.ErrAlreadyReserved
	}
	if err := s.store.Delete(ctx, tx, slotID); err != nil {
		return model.Wrap("delete slot", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Wrap("delete slot", err)
	}
	s.logger.Info("slot deleted", "slot_id", slotID, "practitioner_id", practitionerID)
	return nil
}

func (s *Service) ListSlots(ctx context.Context, practitionerID int64) ([]model.WeeklySlot, error) {
	slots, err := s.store.ListByPractitioner(ctx, practitionerID)
	return slots, model.Wrap("list slots", err)
}

func (s *Service) ListAvailable(ctx context.Context) ([]model.AvailableSlot, error) {
	slots, err := s.store.ListAvailable(ctx)
	return slots, model.Wrap("list available slots", err)
}
